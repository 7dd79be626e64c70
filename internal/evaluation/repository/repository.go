package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 评价仓库集合
type Repositories struct {
	Config     *ConfigRepository
	Evaluation *EvaluationRepository
}

// NewRepositories 创建评价仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Config:     NewConfigRepository(db),
		Evaluation: NewEvaluationRepository(db),
	}
}
