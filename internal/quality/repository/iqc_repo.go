package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/qms/internal/quality/entity"
	"gorm.io/gorm"
)

// IQCRepository IQC检验数据仓库
type IQCRepository struct {
	db *gorm.DB
}

func NewIQCRepository(db *gorm.DB) *IQCRepository {
	return &IQCRepository{db: db}
}

// FindOverlapping 查询与指定时间范围有交集的IQC数据（按数据段过滤）
func (r *IQCRepository) FindOverlapping(ctx context.Context, dataType string, start, end time.Time) ([]entity.IQCRecord, error) {
	var items []entity.IQCRecord
	err := r.db.WithContext(ctx).
		Where("data_type = ? AND time_range_start <= ? AND time_range_end >= ?", dataType, end, start).
		Order("time_range_start ASC").
		Find(&items).Error
	return items, err
}

// Create 归档一条IQC检验数据
func (r *IQCRepository) Create(ctx context.Context, record *entity.IQCRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}
