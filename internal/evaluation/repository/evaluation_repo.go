package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/qms/internal/evaluation/entity"
	"gorm.io/gorm"
)

// EvaluationRepository 评价周期仓库
type EvaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// FindAll 查询评价周期列表
func (r *EvaluationRepository) FindAll(ctx context.Context) ([]entity.Evaluation, error) {
	var items []entity.Evaluation
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找评价周期
func (r *EvaluationRepository) FindByID(ctx context.Context, id uint) (*entity.Evaluation, error) {
	var eval entity.Evaluation
	err := r.db.WithContext(ctx).First(&eval, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &eval, nil
}

// FindByIDWithDetails 根据ID查找评价周期（含评价详情）
func (r *EvaluationRepository) FindByIDWithDetails(ctx context.Context, id uint) (*entity.Evaluation, error) {
	var eval entity.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB {
			return db.Order("entity_name ASC, data_type ASC")
		}).
		First(&eval, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &eval, nil
}

// Create 创建评价周期
func (r *EvaluationRepository) Create(ctx context.Context, eval *entity.Evaluation) error {
	return r.db.WithContext(ctx).Create(eval).Error
}

// Save 保存评价周期
func (r *EvaluationRepository) Save(ctx context.Context, eval *entity.Evaluation) error {
	return r.db.WithContext(ctx).Save(eval).Error
}

// Delete 删除评价周期并级联删除评价详情
func (r *EvaluationRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("evaluation_id = ?", id).Delete(&entity.EvaluationDetail{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.Evaluation{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// FindDetails 查询周期内的评价详情列表
func (r *EvaluationRepository) FindDetails(ctx context.Context, evaluationID uint) ([]entity.EvaluationDetail, error) {
	var items []entity.EvaluationDetail
	err := r.db.WithContext(ctx).
		Where("evaluation_id = ?", evaluationID).
		Order("entity_name ASC, data_type ASC").
		Find(&items).Error
	return items, err
}

// FindDetail 按（周期、实体、数据段）查找评价详情
func (r *EvaluationRepository) FindDetail(ctx context.Context, evaluationID uint, entityName, dataType string) (*entity.EvaluationDetail, error) {
	var detail entity.EvaluationDetail
	err := r.db.WithContext(ctx).
		Where("evaluation_id = ? AND entity_name = ? AND data_type = ?", evaluationID, entityName, dataType).
		First(&detail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &detail, nil
}

// FindCompletedByEntity 查询某实体在所有已完成周期内的评价（趋势数据）
func (r *EvaluationRepository) FindCompletedByEntity(ctx context.Context, entityName string) ([]entity.Evaluation, error) {
	var items []entity.Evaluation
	err := r.db.WithContext(ctx).
		Preload("Details", "entity_name = ?", entityName).
		Joins("JOIN performance_evaluation_details pd ON pd.evaluation_id = performance_evaluations.id AND pd.entity_name = ?", entityName).
		Where("performance_evaluations.status = ?", entity.StatusCompleted).
		Distinct("performance_evaluations.*").
		Order("performance_evaluations.start_date ASC").
		Find(&items).Error
	return items, err
}
