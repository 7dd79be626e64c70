package repository

import "gorm.io/gorm"

// Repositories 质量数据仓库集合
type Repositories struct {
	Vendor *VendorRepository
	IQC    *IQCRepository
}

// NewRepositories 创建质量数据仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Vendor: NewVendorRepository(db),
		IQC:    NewIQCRepository(db),
	}
}
