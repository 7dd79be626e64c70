package handler

import (
	"strconv"

	"github.com/bitfantasy/qms/internal/evaluation/service"
	"github.com/gin-gonic/gin"
)

// EvaluationHandler 评价周期处理器
type EvaluationHandler struct {
	svc *service.EvaluationService
}

func NewEvaluationHandler(svc *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

func evaluationID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		Fail(c, 400, "无效的评价周期ID")
		return 0, false
	}
	return uint(id), true
}

// ListEvaluations 评价周期列表
func (h *EvaluationHandler) ListEvaluations(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	Success(c, items)
}

// CreateEvaluation 创建评价周期
func (h *EvaluationHandler) CreateEvaluation(c *gin.Context) {
	var req service.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, 400, "缺少必要参数: "+err.Error())
		return
	}

	eval, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	SuccessData(c, eval, "创建评价周期成功")
}

// GetEvaluation 评价周期详情
func (h *EvaluationHandler) GetEvaluation(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	eval, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	Success(c, eval)
}

// DeleteEvaluation 删除评价周期
func (h *EvaluationHandler) DeleteEvaluation(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	SuccessMessage(c, "删除成功")
}

// StartEvaluation 开始/继续评价
func (h *EvaluationHandler) StartEvaluation(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	result, err := h.svc.Start(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	Success(c, result)
}

// ListEntities 周期内评价实体列表
func (h *EvaluationHandler) ListEntities(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	entities, err := h.svc.Entities(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	Success(c, entities)
}

// ScoreEntity 保存单个评价实体评分
func (h *EvaluationHandler) ScoreEntity(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	entityName := c.Param("entityName")

	var req service.ScoreEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, 400, "缺少scores参数: "+err.Error())
		return
	}

	detail, err := h.svc.ScoreEntity(c.Request.Context(), id, entityName, &req)
	if err != nil {
		HandleError(c, err, "评价实体不存在")
		return
	}
	SuccessData(c, detail, "保存成功")
}

// SubmitEvaluation 提交评价
func (h *EvaluationHandler) SubmitEvaluation(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	eval, err := h.svc.Submit(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	SuccessData(c, eval, "提交成功")
}

// GetResults 评价结果与统计
func (h *EvaluationHandler) GetResults(c *gin.Context) {
	id, ok := evaluationID(c)
	if !ok {
		return
	}
	results, err := h.svc.Results(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err, "评价周期不存在")
		return
	}
	Success(c, results)
}

// GetTrend 评价实体得分趋势
func (h *EvaluationHandler) GetTrend(c *gin.Context) {
	entityName := c.Param("entityName")
	points, err := h.svc.Trend(c.Request.Context(), entityName)
	if err != nil {
		HandleError(c, err, "评价实体不存在")
		return
	}
	Success(c, points)
}
