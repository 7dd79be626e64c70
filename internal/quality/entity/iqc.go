package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// JSONB JSONB类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// JSONBArray JSONB数组类型
type JSONBArray []interface{}

func (j JSONBArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONBArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONBArray: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

// 数据段：外购/外协
const (
	DataTypePurchase = "purchase"
	DataTypeExternal = "external"
)

// QualityData 供应商在一个周期内的批次质量数据
type QualityData struct {
	TotalBatches int     `json:"totalBatches"`
	OkBatches    int     `json:"okBatches"`
	NgBatches    int     `json:"ngBatches"`
	PassRate     float64 `json:"passRate"`
}

func (q QualityData) Value() (driver.Value, error) {
	return json.Marshal(q)
}

func (q *QualityData) Scan(value interface{}) error {
	if value == nil {
		*q = QualityData{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan QualityData: %v", value)
	}
	return json.Unmarshal(bytes, q)
}

// RecalcPassRate 重算合格率（保留两位小数），零批次为0
func (q *QualityData) RecalcPassRate() {
	if q.TotalBatches <= 0 {
		q.PassRate = 0
		return
	}
	rate := float64(q.OkBatches) / float64(q.TotalBatches) * 100
	q.PassRate = math.Round(rate*100) / 100
}

// IQCRecord IQC检验数据（按数据段与时间范围归档）
type IQCRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	FileName       string    `json:"file_name" gorm:"size:255"`
	DataType       string    `json:"data_type" gorm:"size:20;not null;default:purchase;index"`
	TimeRangeStart time.Time `json:"time_range_start" gorm:"type:date;not null;index"`
	TimeRangeEnd   time.Time `json:"time_range_end" gorm:"type:date;not null;index"`

	// Summary.bySupplier 按供应商预汇总的批次统计，缺失时从RawData折算
	Summary JSONB      `json:"summary" gorm:"type:jsonb"`
	RawData JSONBArray `json:"raw_data" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (IQCRecord) TableName() string {
	return "iqc_records"
}
