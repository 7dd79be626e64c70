package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bitfantasy/qms/internal/evaluation/entity"
	"github.com/bitfantasy/qms/internal/evaluation/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	configCacheKey = "qms:evaluation-config"
	configCacheTTL = 10 * time.Minute
)

// ConfigService 评价配置服务。配置不做版本化：更新后对下一次评分立即生效，
// 包括在旧配置下已创建但尚未评分的实体。
type ConfigService struct {
	repo   *repository.ConfigRepository
	rdb    *redis.Client
	logger *zap.Logger
}

func NewConfigService(repo *repository.ConfigRepository, rdb *redis.Client, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{repo: repo, rdb: rdb, logger: logger}
}

// Get 获取当前评价配置，未持久化时写入并返回系统默认配置
func (s *ConfigService) Get(ctx context.Context) (*entity.EvaluationConfig, error) {
	if cfg := s.fromCache(ctx); cfg != nil {
		return cfg, nil
	}

	record, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		cfg := entity.DefaultConfig()
		if err := s.repo.Save(ctx, *cfg); err != nil {
			return nil, err
		}
		s.toCache(ctx, cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := record.Config
	s.toCache(ctx, &cfg)
	return &cfg, nil
}

// Update 校验后整体替换当前配置
func (s *ConfigService) Update(ctx context.Context, cfg *entity.EvaluationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, *cfg); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info("评价配置已更新",
		zap.Int("dimensions", len(cfg.Dimensions)),
		zap.Int("grade_rules", len(cfg.GradeRules)))
	return nil
}

// Reset 恢复系统默认配置（幂等）
func (s *ConfigService) Reset(ctx context.Context) (*entity.EvaluationConfig, error) {
	cfg := entity.DefaultConfig()
	if err := s.repo.Save(ctx, *cfg); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.logger.Info("评价配置已重置为系统默认")
	return cfg, nil
}

func (s *ConfigService) fromCache(ctx context.Context) *entity.EvaluationConfig {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, configCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var cfg entity.EvaluationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil
	}
	return &cfg
}

func (s *ConfigService) toCache(ctx context.Context, cfg *entity.EvaluationConfig) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, configCacheKey, raw, configCacheTTL).Err(); err != nil {
		s.logger.Warn("缓存评价配置失败", zap.Error(err))
	}
}

func (s *ConfigService) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, configCacheKey).Err(); err != nil {
		s.logger.Warn("清除评价配置缓存失败", zap.Error(err))
	}
}
