package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// DimensionKeyQuality 质量维度为保留维度，分数由批次质量数据自动推导，不接受人工录入
const DimensionKeyQuality = "quality"

// WeightSumTolerance 权重总和允许的误差
const WeightSumTolerance = 0.01

// Dimension 评价维度（名称、键、权重）
type Dimension struct {
	Name            string  `json:"name"`
	Key             string  `json:"key"`
	Weight          float64 `json:"weight"`
	CalculationRule string  `json:"calculationRule,omitempty"`
	ScoringStandard string  `json:"scoringStandard,omitempty"`
}

// GradeRule 等级规则（分数区间 -> 等级标签）
type GradeRule struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// EvaluationConfig 评价配置（维度、权重、等级规则）
type EvaluationConfig struct {
	Dimensions  []Dimension `json:"dimensions"`
	GradeRules  []GradeRule `json:"gradeRules"`
	GradeColors []string    `json:"gradeColors,omitempty"`
}

func (c EvaluationConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *EvaluationConfig) Scan(value interface{}) error {
	if value == nil {
		*c = EvaluationConfig{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan EvaluationConfig: %v", value)
	}
	return json.Unmarshal(bytes, c)
}

// DefaultConfig 系统默认评价配置
func DefaultConfig() *EvaluationConfig {
	return &EvaluationConfig{
		Dimensions: []Dimension{
			{Name: "质量", Key: DimensionKeyQuality, Weight: 0.4, CalculationRule: "合格批次量 / 到货批次量 × 100%", ScoringStandard: "当月合格批次/当月交付总批次×100%×权重"},
			{Name: "使用情况", Key: "usage", Weight: 0.3, CalculationRule: "来料上线使用情况、下游客户端投诉", ScoringStandard: "现场反馈性能/尺寸类-10分，外观类-5分，客诉一次-15分"},
			{Name: "服务", Key: "service", Weight: 0.15, CalculationRule: "供应商评价期间业务、协作、共同提升、配合度考核", ScoringStandard: "异常反馈等事项每次未及时响应扣4分；当月仅发生一次事项未及时响应扣10分，仅两次的每次扣5分"},
			{Name: "交付", Key: "delivery", Weight: 0.15, CalculationRule: "按时按量到货批次量 / 到货批次量 × 100%", ScoringStandard: "按时按量批次交付率低于100%每1%扣2分，不满1%按1%计算"},
		},
		GradeRules: []GradeRule{
			{Label: "优秀", Min: 95, Max: 100},
			{Label: "合格", Min: 85, Max: 95},
			{Label: "整改后合格", Min: 70, Max: 85},
			{Label: "不合格", Min: 0, Max: 70},
		},
		GradeColors: []string{"#16a34a", "#2563eb", "#f59e0b", "#dc2626", "#6b7280", "#1f2937"},
	}
}

// ValidationError 配置或请求参数校验失败
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate 校验配置一致性：权重总和、保留维度、等级区间
func (c *EvaluationConfig) Validate() error {
	if len(c.Dimensions) == 0 {
		return &ValidationError{Code: "MISSING_FIELD", Message: "至少需要一个评价维度"}
	}

	var weightSum float64
	hasQuality := false
	for _, d := range c.Dimensions {
		if d.Name == "" || d.Key == "" {
			return &ValidationError{Code: "MISSING_FIELD", Message: "维度必须包含name和key"}
		}
		if d.Weight <= 0 {
			return &ValidationError{Code: "INVALID_WEIGHT", Message: fmt.Sprintf("维度%s的权重必须为正数", d.Name)}
		}
		if d.Key == DimensionKeyQuality {
			hasQuality = true
		}
		weightSum += d.Weight
	}
	if !hasQuality {
		return &ValidationError{Code: "MISSING_FIELD", Message: "缺少保留维度quality"}
	}
	if math.Abs(weightSum-1) > WeightSumTolerance {
		return &ValidationError{Code: "WEIGHT_SUM_MISMATCH", Message: fmt.Sprintf("权重总和必须为1，当前为%.2f", weightSum)}
	}

	if len(c.GradeRules) == 0 {
		return &ValidationError{Code: "INVALID_GRADE_RANGE", Message: "至少需要一个等级规则"}
	}
	for _, r := range c.GradeRules {
		if r.Label == "" {
			return &ValidationError{Code: "INVALID_GRADE_RANGE", Message: "等级规则必须包含label"}
		}
		if r.Min >= r.Max {
			return &ValidationError{Code: "INVALID_GRADE_RANGE", Message: fmt.Sprintf("等级%s的min必须小于max", r.Label)}
		}
	}

	sorted := make([]GradeRule, len(c.GradeRules))
	copy(sorted, c.GradeRules)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].Max > sorted[i+1].Min {
			return &ValidationError{Code: "INVALID_GRADE_RANGE", Message: fmt.Sprintf("等级规则%s和%s有重叠", sorted[i].Label, sorted[i+1].Label)}
		}
	}
	if sorted[0].Min > 0 {
		return &ValidationError{Code: "INVALID_GRADE_RANGE", Message: "等级规则未覆盖0分"}
	}
	if sorted[len(sorted)-1].Max < 100 {
		return &ValidationError{Code: "INVALID_GRADE_RANGE", Message: "等级规则未覆盖100分"}
	}

	return nil
}

// Grade 按配置顺序匹配等级规则。区间为左闭右开，
// 总分等于全表最高上界时取闭区间，保证满分可评级。
func (c *EvaluationConfig) Grade(totalScore float64) string {
	var top float64
	for _, r := range c.GradeRules {
		if r.Max > top {
			top = r.Max
		}
	}

	for _, r := range c.GradeRules {
		if totalScore >= r.Min && (totalScore < r.Max || (totalScore == r.Max && r.Max == top)) {
			return r.Label
		}
	}

	// 规则覆盖[0,100]时不可达，兜底取最低区间的标签
	lowest := c.GradeRules[0]
	for _, r := range c.GradeRules {
		if r.Min < lowest.Min {
			lowest = r
		}
	}
	return lowest.Label
}

// NormalizeScores 收敛输入分数到配置的维度集合：缺失维度按0分计，越界截断到[0,100]
func (c *EvaluationConfig) NormalizeScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(c.Dimensions))
	for _, d := range c.Dimensions {
		out[d.Key] = clampScore(in[d.Key])
	}
	return out
}

// ScoreAndGrade 计算加权总分（保留一位小数）并评级
func (c *EvaluationConfig) ScoreAndGrade(scores map[string]float64) (float64, string) {
	var total float64
	for _, d := range c.Dimensions {
		total += clampScore(scores[d.Key]) * d.Weight
	}
	total = math.Round(total*10) / 10
	return total, c.Grade(total)
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// EvaluationConfigRecord 当前评价配置的持久化记录（单行表）
type EvaluationConfigRecord struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	Config    EvaluationConfig `json:"config" gorm:"type:jsonb;not null"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (EvaluationConfigRecord) TableName() string {
	return "evaluation_configs"
}
