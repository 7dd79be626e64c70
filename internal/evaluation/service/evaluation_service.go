package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bitfantasy/qms/internal/evaluation/entity"
	"github.com/bitfantasy/qms/internal/evaluation/repository"
	qcentity "github.com/bitfantasy/qms/internal/quality/entity"
	qcrepo "github.com/bitfantasy/qms/internal/quality/repository"
	qcservice "github.com/bitfantasy/qms/internal/quality/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dateLayout = "2006-01-02"

// EvaluationService 评价周期生命周期与实体评分服务
type EvaluationService struct {
	db         *gorm.DB
	repo       *repository.EvaluationRepository
	configSvc  *ConfigService
	vendorRepo *qcrepo.VendorRepository
	extraction *qcservice.ExtractionService
	logger     *zap.Logger
}

func NewEvaluationService(
	db *gorm.DB,
	repo *repository.EvaluationRepository,
	configSvc *ConfigService,
	vendorRepo *qcrepo.VendorRepository,
	extraction *qcservice.ExtractionService,
	logger *zap.Logger,
) *EvaluationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{
		db:         db,
		repo:       repo,
		configSvc:  configSvc,
		vendorRepo: vendorRepo,
		extraction: extraction,
		logger:     logger,
	}
}

// CreateEvaluationRequest 创建评价周期请求
type CreateEvaluationRequest struct {
	PeriodName string `json:"period_name" binding:"required"`
	PeriodType string `json:"period_type" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
	EndDate    string `json:"end_date" binding:"required"`
}

// ScoreEntityRequest 保存单个评价实体评分的请求
type ScoreEntityRequest struct {
	Scores   map[string]float64 `json:"scores" binding:"required"`
	Remarks  string             `json:"remarks"`
	DataType string             `json:"dataType"`
}

// StartResult 开始/继续评价的返回数据
type StartResult struct {
	Evaluation         *entity.Evaluation        `json:"evaluation"`
	EvaluationEntities []entity.EvaluationDetail `json:"evaluationEntities"`
}

// ResultStatistics 评价结果统计
type ResultStatistics struct {
	TotalEntities    int            `json:"totalEntities"`
	EvaluatedCount   int            `json:"evaluatedCount"`
	UnevaluatedCount int            `json:"unevaluatedCount"`
	AverageScore     float64        `json:"averageScore"`
	GradeCount       map[string]int `json:"gradeCount"`
}

// EvaluationResults 评价结果
type EvaluationResults struct {
	Evaluation *entity.Evaluation        `json:"evaluation"`
	Details    []entity.EvaluationDetail `json:"details"`
	Statistics ResultStatistics          `json:"statistics"`
}

// TrendPoint 单个周期的趋势数据点
type TrendPoint struct {
	PeriodName string          `json:"periodName"`
	StartDate  time.Time       `json:"startDate"`
	EndDate    time.Time       `json:"endDate"`
	DataType   string          `json:"dataType"`
	Scores     entity.ScoreMap `json:"scores"`
	TotalScore *float64        `json:"totalScore"`
	Grade      string          `json:"grade"`
}

// List 获取所有评价周期
func (s *EvaluationService) List(ctx context.Context) ([]entity.Evaluation, error) {
	return s.repo.FindAll(ctx)
}

// Get 获取评价周期详情（含评价实体）
func (s *EvaluationService) Get(ctx context.Context, id uint) (*entity.Evaluation, error) {
	return s.repo.FindByIDWithDetails(ctx, id)
}

// Create 创建评价周期（draft状态，尚无评价实体）
func (s *EvaluationService) Create(ctx context.Context, req *CreateEvaluationRequest) (*entity.Evaluation, error) {
	if !entity.ValidPeriodType(req.PeriodType) {
		return nil, &entity.ValidationError{Code: "INVALID_PERIOD_TYPE", Message: fmt.Sprintf("无效的周期类型: %s", req.PeriodType)}
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, &entity.ValidationError{Code: "INVALID_DATE", Message: "开始日期格式无效，应为YYYY-MM-DD"}
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, &entity.ValidationError{Code: "INVALID_DATE", Message: "结束日期格式无效，应为YYYY-MM-DD"}
	}
	if end.Before(start) {
		return nil, &entity.ValidationError{Code: "INVALID_DATE", Message: "结束日期不能早于开始日期"}
	}

	eval := &entity.Evaluation{
		PeriodName: req.PeriodName,
		PeriodType: req.PeriodType,
		StartDate:  start,
		EndDate:    end,
		Status:     entity.StatusDraft,
	}
	if err := s.repo.Create(ctx, eval); err != nil {
		return nil, err
	}
	s.logger.Info("创建评价周期成功", zap.String("period", eval.PeriodName))
	return eval, nil
}

// Delete 删除评价周期（任意状态），级联删除评价详情
func (s *EvaluationService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("删除评价周期成功", zap.Uint("evaluation_id", id))
	return nil
}

// Start 开始评价（draft -> in_progress）：从IQC数据为每个启用绩效评价的
// 供应商建立质量数据快照。对in_progress周期可重入（继续评价）：补充新启用
// 供应商的记录，并刷新未评分记录的质量快照。
func (s *EvaluationService) Start(ctx context.Context, id uint) (*StartResult, error) {
	eval, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if eval.Status == entity.StatusCompleted {
		return nil, &StateError{Message: "评价周期已完成，无法继续评价"}
	}

	vendors, err := s.vendorRepo.FindPerformanceEnabled(ctx)
	if err != nil {
		return nil, err
	}
	purchase, err := s.extraction.ExtractQualityData(ctx, eval.StartDate, eval.EndDate, qcentity.DataTypePurchase)
	if err != nil {
		return nil, err
	}
	external, err := s.extraction.ExtractQualityData(ctx, eval.StartDate, eval.EndDate, qcentity.DataTypeExternal)
	if err != nil {
		return nil, err
	}

	resuming := eval.Status == entity.StatusInProgress

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []entity.EvaluationDetail
		if err := tx.Where("evaluation_id = ?", id).Find(&existing).Error; err != nil {
			return err
		}
		seen := make(map[string]*entity.EvaluationDetail, len(existing))
		for i := range existing {
			d := &existing[i]
			seen[d.EntityName+"|"+d.DataType] = d
		}

		for _, v := range vendors {
			if err := upsertDetail(tx, id, v.SupplierName, qcentity.DataTypePurchase, purchase[v.SupplierName], seen); err != nil {
				return err
			}
			if eqd := external[v.SupplierName]; eqd != nil && eqd.TotalBatches > 0 {
				if err := upsertDetail(tx, id, v.SupplierName, qcentity.DataTypeExternal, eqd, seen); err != nil {
					return err
				}
			}
		}

		if eval.Status == entity.StatusDraft {
			eval.Status = entity.StatusInProgress
			if err := tx.Save(eval).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	details, err := s.repo.FindDetails(ctx, id)
	if err != nil {
		return nil, err
	}

	if resuming {
		s.logger.Info("继续评价", zap.String("period", eval.PeriodName), zap.Int("entities", len(details)))
	} else {
		s.logger.Info("开始评价", zap.String("period", eval.PeriodName), zap.Int("entities", len(details)))
	}
	return &StartResult{Evaluation: eval, EvaluationEntities: details}, nil
}

// upsertDetail 补建缺失的评价详情；未评分记录刷新质量快照
func upsertDetail(tx *gorm.DB, evaluationID uint, entityName, dataType string, qd *qcentity.QualityData, seen map[string]*entity.EvaluationDetail) error {
	snapshot := qcentity.QualityData{}
	if qd != nil {
		snapshot = *qd
	}

	if d, ok := seen[entityName+"|"+dataType]; ok {
		if d.Scored() {
			return nil
		}
		d.QualityData = snapshot
		return tx.Save(d).Error
	}

	detail := &entity.EvaluationDetail{
		EvaluationID: evaluationID,
		EntityName:   entityName,
		DataType:     dataType,
		Scores:       entity.ScoreMap{},
		QualityData:  snapshot,
	}
	if err := tx.Create(detail).Error; err != nil {
		return err
	}
	seen[entityName+"|"+dataType] = detail
	return nil
}

// Entities 获取周期内的评价实体列表
func (s *EvaluationService) Entities(ctx context.Context, id uint) ([]entity.EvaluationDetail, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.FindDetails(ctx, id)
}

// ScoreEntity 保存单个评价实体的评分并在同一事务内执行完成检查。
// 质量维度分数由质量数据快照推导，不信任请求中提交的值；评分与完成检查
// 对周期行加锁执行，避免两个并发的最后一家评分各自触发提交。
func (s *EvaluationService) ScoreEntity(ctx context.Context, id uint, entityName string, req *ScoreEntityRequest) (*entity.EvaluationDetail, error) {
	cfg, err := s.configSvc.Get(ctx)
	if err != nil {
		return nil, err
	}

	dataType := req.DataType
	if dataType == "" {
		dataType = qcentity.DataTypePurchase
	}

	var detail *entity.EvaluationDetail
	var completed bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eval entity.Evaluation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&eval, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}
		switch eval.Status {
		case entity.StatusDraft:
			return &StateError{Message: "评价周期尚未开始"}
		case entity.StatusCompleted:
			return &StateError{Message: "评价周期已完成，无法修改评分"}
		}

		var d entity.EvaluationDetail
		err := tx.Where("evaluation_id = ? AND entity_name = ? AND data_type = ?", id, entityName, dataType).
			First(&d).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrNotFound
			}
			return err
		}

		scores := cfg.NormalizeScores(req.Scores)
		scores[entity.DimensionKeyQuality] = d.QualityData.PassRate
		total, grade := cfg.ScoreAndGrade(scores)

		d.Scores = scores
		d.TotalScore = &total
		d.Grade = grade
		d.Remarks = req.Remarks
		if err := tx.Save(&d).Error; err != nil {
			return err
		}

		var all []entity.EvaluationDetail
		if err := tx.Where("evaluation_id = ?", id).Find(&all).Error; err != nil {
			return err
		}
		required, unscored := completionStats(all)
		if required > 0 && unscored == 0 {
			eval.Status = entity.StatusCompleted
			if err := tx.Save(&eval).Error; err != nil {
				return err
			}
			completed = true
		}

		detail = &d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("保存评价实体评分成功",
		zap.Uint("evaluation_id", id),
		zap.String("entity", entityName),
		zap.String("data_type", dataType),
		zap.Float64p("total_score", detail.TotalScore))
	if completed {
		s.logger.Info("所有需评价实体已评分，评价周期自动完成", zap.Uint("evaluation_id", id))
	}
	return detail, nil
}

// completionStats 统计需评价与未评分的实体数。零批次实体免评。
func completionStats(details []entity.EvaluationDetail) (required, unscored int) {
	for i := range details {
		d := &details[i]
		if d.Exempt() {
			continue
		}
		required++
		if !d.Scored() {
			unscored++
		}
	}
	return required, unscored
}

// Submit 提交评价（in_progress -> completed）。操作员显式提交可在仍有
// 未评分实体时强制完成；对已完成周期重复提交为幂等空操作。
func (s *EvaluationService) Submit(ctx context.Context, id uint) (*entity.Evaluation, error) {
	eval, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch eval.Status {
	case entity.StatusCompleted:
		return eval, nil
	case entity.StatusDraft:
		return nil, &StateError{Message: "评价周期尚未开始"}
	}

	eval.Status = entity.StatusCompleted
	if err := s.repo.Save(ctx, eval); err != nil {
		return nil, err
	}
	s.logger.Info("提交评价成功", zap.String("period", eval.PeriodName))
	return eval, nil
}

// Results 获取评价结果与统计数据
func (s *EvaluationService) Results(ctx context.Context, id uint) (*EvaluationResults, error) {
	eval, err := s.repo.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configSvc.Get(ctx)
	if err != nil {
		return nil, err
	}

	gradeCount := make(map[string]int, len(cfg.GradeRules))
	for _, r := range cfg.GradeRules {
		gradeCount[r.Label] = 0
	}

	var evaluated int
	var scoreSum float64
	for i := range eval.Details {
		d := &eval.Details[i]
		if !d.Scored() {
			continue
		}
		evaluated++
		scoreSum += *d.TotalScore
		if _, ok := gradeCount[d.Grade]; ok {
			gradeCount[d.Grade]++
		}
	}

	var average float64
	if evaluated > 0 {
		average = math.Round(scoreSum/float64(evaluated)*100) / 100
	}

	return &EvaluationResults{
		Evaluation: eval,
		Details:    eval.Details,
		Statistics: ResultStatistics{
			TotalEntities:    len(eval.Details),
			EvaluatedCount:   evaluated,
			UnevaluatedCount: len(eval.Details) - evaluated,
			AverageScore:     average,
			GradeCount:       gradeCount,
		},
	}, nil
}

// Trend 获取某评价实体在所有已完成周期内的得分趋势
func (s *EvaluationService) Trend(ctx context.Context, entityName string) ([]TrendPoint, error) {
	evaluations, err := s.repo.FindCompletedByEntity(ctx, entityName)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(evaluations))
	for i := range evaluations {
		eval := &evaluations[i]
		for j := range eval.Details {
			d := &eval.Details[j]
			points = append(points, TrendPoint{
				PeriodName: eval.PeriodName,
				StartDate:  eval.StartDate,
				EndDate:    eval.EndDate,
				DataType:   d.DataType,
				Scores:     d.Scores,
				TotalScore: d.TotalScore,
				Grade:      d.Grade,
			})
		}
	}
	return points, nil
}
