package entity

import "time"

// VendorConfig 供应商配置中心记录
type VendorConfig struct {
	ID           uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	SupplierName string `json:"supplier_name" gorm:"size:255;uniqueIndex;not null"`
	Source       string `json:"source" gorm:"size:50;not null;default:IQC"` // IQC/MANUAL/IMPORT

	EnableDocumentMgmt    bool `json:"enable_document_mgmt" gorm:"not null;default:false"`
	EnablePerformanceMgmt bool `json:"enable_performance_mgmt" gorm:"not null;default:false;index"`

	Status string `json:"status" gorm:"size:20;not null;default:Active;index"` // Active/Inactive

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (VendorConfig) TableName() string {
	return "vendor_configs"
}

// 供应商状态
const (
	VendorStatusActive   = "Active"
	VendorStatusInactive = "Inactive"
)
