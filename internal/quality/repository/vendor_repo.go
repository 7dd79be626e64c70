package repository

import (
	"context"

	"github.com/bitfantasy/qms/internal/quality/entity"
	"gorm.io/gorm"
)

// VendorRepository 供应商配置仓库
type VendorRepository struct {
	db *gorm.DB
}

func NewVendorRepository(db *gorm.DB) *VendorRepository {
	return &VendorRepository{db: db}
}

// FindAll 查询供应商配置列表
func (r *VendorRepository) FindAll(ctx context.Context) ([]entity.VendorConfig, error) {
	var items []entity.VendorConfig
	err := r.db.WithContext(ctx).
		Order("supplier_name ASC").
		Find(&items).Error
	return items, err
}

// FindPerformanceEnabled 查询已启用绩效评价的活跃供应商
func (r *VendorRepository) FindPerformanceEnabled(ctx context.Context) ([]entity.VendorConfig, error) {
	var items []entity.VendorConfig
	err := r.db.WithContext(ctx).
		Where("enable_performance_mgmt = ? AND status = ?", true, entity.VendorStatusActive).
		Order("supplier_name ASC").
		Find(&items).Error
	return items, err
}

// Create 创建供应商配置
func (r *VendorRepository) Create(ctx context.Context, vendor *entity.VendorConfig) error {
	return r.db.WithContext(ctx).Create(vendor).Error
}
