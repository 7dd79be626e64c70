package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	qcentity "github.com/bitfantasy/qms/internal/quality/entity"
)

// 评价周期状态
const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// 周期类型
const (
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
	PeriodYearly    = "yearly"
	PeriodCustom    = "custom"
)

// ValidPeriodType 是否为合法的周期类型
func ValidPeriodType(t string) bool {
	switch t {
	case PeriodMonthly, PeriodQuarterly, PeriodYearly, PeriodCustom:
		return true
	}
	return false
}

// ScoreMap 各维度分数
type ScoreMap map[string]float64

func (m ScoreMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(ScoreMap{})
	}
	return json.Marshal(m)
}

func (m *ScoreMap) Scan(value interface{}) error {
	if value == nil {
		*m = ScoreMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan ScoreMap: %v", value)
	}
	return json.Unmarshal(bytes, m)
}

// Evaluation 供应商绩效评价周期
type Evaluation struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	PeriodName string    `json:"period_name" gorm:"size:255;not null"`
	PeriodType string    `json:"period_type" gorm:"size:20;not null"` // monthly/quarterly/yearly/custom
	StartDate  time.Time `json:"start_date" gorm:"type:date;not null"`
	EndDate    time.Time `json:"end_date" gorm:"type:date;not null"`
	Status     string    `json:"status" gorm:"size:20;not null;default:draft"` // draft/in_progress/completed

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Details []EvaluationDetail `json:"details,omitempty" gorm:"foreignKey:EvaluationID"`
}

func (Evaluation) TableName() string {
	return "performance_evaluations"
}

// EvaluationDetail 周期内的单个评价实体（供应商 × 数据段）。
// 同一供应商在外购、外协两个数据段下分别评价时会有两条独立记录。
type EvaluationDetail struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	EvaluationID uint   `json:"evaluation_id" gorm:"not null;uniqueIndex:idx_eval_entity_segment"`
	EntityName   string `json:"entityName" gorm:"column:entity_name;size:255;not null;uniqueIndex:idx_eval_entity_segment"`
	DataType     string `json:"dataType" gorm:"column:data_type;size:20;not null;default:purchase;uniqueIndex:idx_eval_entity_segment"`

	Scores     ScoreMap `json:"scores" gorm:"type:jsonb"`
	TotalScore *float64 `json:"totalScore" gorm:"type:decimal(5,1)"`
	Grade      string   `json:"grade" gorm:"size:20"`
	Remarks    string   `json:"remarks" gorm:"type:text"`

	// 质量数据快照，开始评价时从IQC数据提取，周期内不再回查
	QualityData qcentity.QualityData `json:"qualityData" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (EvaluationDetail) TableName() string {
	return "performance_evaluation_details"
}

// Scored 是否已保存评分
func (d *EvaluationDetail) Scored() bool {
	return d.TotalScore != nil
}

// Exempt 零批次实体免评，不阻塞周期完成
func (d *EvaluationDetail) Exempt() bool {
	return d.QualityData.TotalBatches == 0
}
