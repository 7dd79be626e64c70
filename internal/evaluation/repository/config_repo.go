package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/qms/internal/evaluation/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 配置为单行表，固定主键
const configRecordID = 1

// ConfigRepository 评价配置仓库
type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get 读取当前持久化的评价配置
func (r *ConfigRepository) Get(ctx context.Context) (*entity.EvaluationConfigRecord, error) {
	var record entity.EvaluationConfigRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", configRecordID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Save 整体替换当前配置（插入或覆盖单行记录）
func (r *ConfigRepository) Save(ctx context.Context, config entity.EvaluationConfig) error {
	record := entity.EvaluationConfigRecord{
		ID:     configRecordID,
		Config: config,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"config", "updated_at"}),
		}).
		Create(&record).Error
}
