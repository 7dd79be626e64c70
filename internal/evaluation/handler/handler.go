package handler

import (
	"errors"
	"net/http"

	"github.com/bitfantasy/qms/internal/evaluation/entity"
	"github.com/bitfantasy/qms/internal/evaluation/repository"
	"github.com/bitfantasy/qms/internal/evaluation/service"
	"github.com/gin-gonic/gin"
)

// Handlers 评价处理器集合
type Handlers struct {
	Config     *ConfigHandler
	Evaluation *EvaluationHandler
}

// NewHandlers 创建评价处理器集合
func NewHandlers(configSvc *service.ConfigService, evalSvc *service.EvaluationService) *Handlers {
	return &Handlers{
		Config:     NewConfigHandler(configSvc),
		Evaluation: NewEvaluationHandler(evalSvc),
	}
}

// Response 统一响应
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func SuccessMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

func SuccessData(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Message: message})
}

// HandleError 按错误类别映射HTTP状态码：校验失败400、记录不存在404、
// 状态不允许409，其余一律500且不透出内部细节
func HandleError(c *gin.Context, err error, notFoundMessage string) {
	var validationErr *entity.ValidationError
	var stateErr *service.StateError

	switch {
	case errors.As(err, &validationErr):
		Fail(c, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, repository.ErrNotFound):
		Fail(c, http.StatusNotFound, notFoundMessage)
	case errors.As(err, &stateErr):
		Fail(c, http.StatusConflict, stateErr.Message)
	default:
		Fail(c, http.StatusInternalServerError, "服务器内部错误")
	}
}
