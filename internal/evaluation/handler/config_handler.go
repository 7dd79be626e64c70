package handler

import (
	"github.com/bitfantasy/qms/internal/evaluation/entity"
	"github.com/bitfantasy/qms/internal/evaluation/service"
	"github.com/gin-gonic/gin"
)

// ConfigHandler 评价配置处理器
type ConfigHandler struct {
	svc *service.ConfigService
}

func NewConfigHandler(svc *service.ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// GetConfig 获取评价配置
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	cfg, err := h.svc.Get(c.Request.Context())
	if err != nil {
		HandleError(c, err, "评价配置不存在")
		return
	}
	Success(c, cfg)
}

// UpdateConfig 更新评价配置
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	var cfg entity.EvaluationConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		Fail(c, 400, "参数错误: "+err.Error())
		return
	}

	if err := h.svc.Update(c.Request.Context(), &cfg); err != nil {
		HandleError(c, err, "评价配置不存在")
		return
	}
	SuccessData(c, cfg, "配置更新成功")
}

// ResetConfig 重置为默认配置
func (h *ConfigHandler) ResetConfig(c *gin.Context) {
	cfg, err := h.svc.Reset(c.Request.Context())
	if err != nil {
		HandleError(c, err, "评价配置不存在")
		return
	}
	SuccessData(c, cfg, "已重置为默认配置")
}
