package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bitfantasy/qms/internal/evaluation/repository"
	"github.com/bitfantasy/qms/internal/evaluation/service"
	qcentity "github.com/bitfantasy/qms/internal/quality/entity"
	qcrepo "github.com/bitfantasy/qms/internal/quality/repository"
	qcservice "github.com/bitfantasy/qms/internal/quality/service"
	"github.com/bitfantasy/qms/internal/testutil"
)

func setupEvaluationTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	qcRepos := qcrepo.NewRepositories(db)
	evalRepos := repository.NewRepositories(db)

	extractionSvc := qcservice.NewExtractionService(qcRepos.IQC, nil)
	configSvc := service.NewConfigService(evalRepos.Config, nil, nil)
	evalSvc := service.NewEvaluationService(db, evalRepos.Evaluation, configSvc, qcRepos.Vendor, extractionSvc, nil)

	h := NewHandlers(configSvc, evalSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api")
	evaluations := api.Group("/evaluations")
	evaluations.GET("", h.Evaluation.ListEvaluations)
	evaluations.POST("", h.Evaluation.CreateEvaluation)
	evaluations.GET("/trend/:entityName", h.Evaluation.GetTrend)
	evaluations.GET("/:id", h.Evaluation.GetEvaluation)
	evaluations.DELETE("/:id", h.Evaluation.DeleteEvaluation)
	evaluations.POST("/:id/start", h.Evaluation.StartEvaluation)
	evaluations.GET("/:id/entities", h.Evaluation.ListEntities)
	evaluations.PUT("/:id/entities/:entityName", h.Evaluation.ScoreEntity)
	evaluations.PUT("/:id/submit", h.Evaluation.SubmitEvaluation)
	evaluations.GET("/:id/results", h.Evaluation.GetResults)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

func seedQuality(t *testing.T, env *testutil.TestEnv, start, end time.Time) {
	t.Helper()
	testutil.SeedVendor(t, env.DB, "供应商A", true)
	testutil.SeedVendor(t, env.DB, "供应商B", true)
	testutil.SeedVendor(t, env.DB, "停用供应商", false)

	testutil.SeedIQCRecord(t, env.DB, qcentity.DataTypePurchase, start, end, map[string]*qcentity.QualityData{
		"供应商A": {TotalBatches: 10, OkBatches: 9, NgBatches: 1, PassRate: 90},
		"供应商B": {TotalBatches: 5, OkBatches: 5, NgBatches: 0, PassRate: 100},
	})
}

func createPeriod(t *testing.T, env *testutil.TestEnv, token string) float64 {
	t.Helper()
	body := map[string]interface{}{
		"period_name": "2026年3月",
		"period_type": "monthly",
		"start_date":  "2026-03-01",
		"end_date":    "2026-03-31",
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/evaluations", body, token)
	if w.Code != http.StatusOK {
		t.Fatalf("create period failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != "draft" {
		t.Fatalf("new period should be draft, got %v", data["status"])
	}
	return data["id"].(float64)
}

func TestCreateEvaluationValidation(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	// 无效周期类型
	body := map[string]interface{}{
		"period_name": "bad",
		"period_type": "weekly",
		"start_date":  "2026-03-01",
		"end_date":    "2026-03-31",
	}
	w := testutil.DoRequest(env.Router, http.MethodPost, "/api/evaluations", body, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid period type, got %d", w.Code)
	}

	// 结束早于开始
	body["period_type"] = "monthly"
	body["start_date"] = "2026-03-31"
	body["end_date"] = "2026-03-01"
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/evaluations", body, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for end before start, got %d", w.Code)
	}

	// 日期格式错误
	body["start_date"] = "03/01/2026"
	w = testutil.DoRequest(env.Router, http.MethodPost, "/api/evaluations", body, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date format, got %d", w.Code)
	}
}

func TestEvaluationLifecycle(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	start, _ := time.Parse("2006-01-02", "2026-03-01")
	end, _ := time.Parse("2006-01-02", "2026-03-31")
	seedQuality(t, env, start, end)

	id := createPeriod(t, env, token)
	base := fmt.Sprintf("/api/evaluations/%.0f", id)

	// draft阶段不允许评分
	scoreBody := map[string]interface{}{
		"scores": map[string]float64{"usage": 90, "service": 80, "delivery": 80},
	}
	w := testutil.DoRequest(env.Router, http.MethodPut, base+"/entities/供应商A", scoreBody, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 scoring a draft period, got %d: %s", w.Code, w.Body.String())
	}

	// 开始评价：只有启用绩效评价的供应商进入
	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["evaluation"].(map[string]interface{})["status"] != "in_progress" {
		t.Fatalf("expected in_progress after start, got %v", data)
	}
	entities := data["evaluationEntities"].([]interface{})
	if len(entities) != 2 {
		t.Fatalf("expected 2 evaluation entities, got %d", len(entities))
	}

	// 评分供应商A：质量维度由快照合格率推导，忽略请求中提交的值
	scoreBody["scores"] = map[string]float64{"quality": 10, "usage": 90, "service": 80, "delivery": 80}
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/entities/供应商A", scoreBody, token)
	if w.Code != http.StatusOK {
		t.Fatalf("score failed: %d %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	detail := resp["data"].(map[string]interface{})
	scores := detail["scores"].(map[string]interface{})
	if scores["quality"].(float64) != 90 {
		t.Fatalf("quality score must come from the pass rate snapshot, got %v", scores["quality"])
	}
	// 0.4*90 + 0.3*90 + 0.15*80 + 0.15*80 = 87.0
	if detail["totalScore"].(float64) != 87.0 {
		t.Fatalf("expected total 87.0, got %v", detail["totalScore"])
	}
	if detail["grade"] != "合格" {
		t.Fatalf("expected grade 合格, got %v", detail["grade"])
	}

	// 还有未评分实体，周期仍在进行中
	w = testutil.DoRequest(env.Router, http.MethodGet, base, nil, token)
	resp = testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["status"] != "in_progress" {
		t.Fatal("period must stay in_progress while entities are unscored")
	}

	// 评分最后一家实体触发自动完成
	scoreBody["scores"] = map[string]float64{"usage": 100, "service": 100, "delivery": 100}
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/entities/供应商B", scoreBody, token)
	if w.Code != http.StatusOK {
		t.Fatalf("score failed: %d %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	detail = resp["data"].(map[string]interface{})
	if detail["totalScore"].(float64) != 100.0 {
		t.Fatalf("expected total 100.0, got %v", detail["totalScore"])
	}
	if detail["grade"] != "优秀" {
		t.Fatalf("expected grade 优秀 for full marks, got %v", detail["grade"])
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, base, nil, token)
	resp = testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["status"] != "completed" {
		t.Fatal("period must auto-complete once every required entity is scored")
	}

	// 完成后禁止改分
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/entities/供应商A", scoreBody, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 scoring a completed period, got %d", w.Code)
	}

	// 完成后继续评价被拒绝
	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 starting a completed period, got %d", w.Code)
	}

	// 对已完成周期重复提交幂等
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/submit", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("submit on completed period should be idempotent, got %d", w.Code)
	}

	// 结果统计
	w = testutil.DoRequest(env.Router, http.MethodGet, base+"/results", nil, token)
	resp = testutil.ParseResponse(w)
	stats := resp["data"].(map[string]interface{})["statistics"].(map[string]interface{})
	if stats["totalEntities"].(float64) != 2 || stats["evaluatedCount"].(float64) != 2 {
		t.Fatalf("unexpected statistics: %v", stats)
	}
	if stats["averageScore"].(float64) != 93.5 {
		t.Fatalf("expected average 93.5, got %v", stats["averageScore"])
	}
	gradeCount := stats["gradeCount"].(map[string]interface{})
	if gradeCount["合格"].(float64) != 1 || gradeCount["优秀"].(float64) != 1 {
		t.Fatalf("unexpected grade count: %v", gradeCount)
	}

	// 趋势：已完成周期的数据点
	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/evaluations/trend/供应商A", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("trend failed: %d %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	points := resp["data"].([]interface{})
	if len(points) != 1 {
		t.Fatalf("expected 1 trend point, got %d", len(points))
	}
	point := points[0].(map[string]interface{})
	if point["totalScore"].(float64) != 87.0 {
		t.Fatalf("unexpected trend point: %v", point)
	}
}

func TestZeroBatchEntitiesAreExempt(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	start, _ := time.Parse("2006-01-02", "2026-03-01")
	end, _ := time.Parse("2006-01-02", "2026-03-31")

	testutil.SeedVendor(t, env.DB, "供应商A", true)
	testutil.SeedVendor(t, env.DB, "无来料供应商", true)
	testutil.SeedIQCRecord(t, env.DB, qcentity.DataTypePurchase, start, end, map[string]*qcentity.QualityData{
		"供应商A": {TotalBatches: 10, OkBatches: 9, NgBatches: 1, PassRate: 90},
	})

	id := createPeriod(t, env, token)
	base := fmt.Sprintf("/api/evaluations/%.0f", id)

	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start failed: %d %s", w.Code, w.Body.String())
	}

	// 只评有批次的供应商：零批次实体免评，周期应自动完成
	scoreBody := map[string]interface{}{
		"scores": map[string]float64{"usage": 90, "service": 80, "delivery": 80},
	}
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/entities/供应商A", scoreBody, token)
	if w.Code != http.StatusOK {
		t.Fatalf("score failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, base, nil, token)
	resp := testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["status"] != "completed" {
		t.Fatal("period with only exempt entities remaining must auto-complete")
	}
}

func TestSubmitOverridesIncompletePeriod(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	start, _ := time.Parse("2006-01-02", "2026-03-01")
	end, _ := time.Parse("2006-01-02", "2026-03-31")
	seedQuality(t, env, start, end)

	id := createPeriod(t, env, token)
	base := fmt.Sprintf("/api/evaluations/%.0f", id)

	// draft阶段不允许提交
	w := testutil.DoRequest(env.Router, http.MethodPut, base+"/submit", nil, token)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 submitting a draft period, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start failed: %d %s", w.Code, w.Body.String())
	}

	// 仍有未评分实体，显式提交强制完成
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/submit", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("explicit submit failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["data"].(map[string]interface{})["status"] != "completed" {
		t.Fatal("explicit submit must complete the period")
	}
}

func TestResumeAddsNewVendors(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	start, _ := time.Parse("2006-01-02", "2026-03-01")
	end, _ := time.Parse("2006-01-02", "2026-03-31")

	testutil.SeedVendor(t, env.DB, "供应商A", true)
	testutil.SeedIQCRecord(t, env.DB, qcentity.DataTypePurchase, start, end, map[string]*qcentity.QualityData{
		"供应商A": {TotalBatches: 10, OkBatches: 9, NgBatches: 1, PassRate: 90},
		"供应商B": {TotalBatches: 4, OkBatches: 4, NgBatches: 0, PassRate: 100},
	})

	id := createPeriod(t, env, token)
	base := fmt.Sprintf("/api/evaluations/%.0f", id)

	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start failed: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	entities := resp["data"].(map[string]interface{})["evaluationEntities"].([]interface{})
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity before resume, got %d", len(entities))
	}

	// 期中启用新供应商后继续评价
	testutil.SeedVendor(t, env.DB, "供应商B", true)
	w = testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("resume failed: %d %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	entities = resp["data"].(map[string]interface{})["evaluationEntities"].([]interface{})
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities after resume, got %d", len(entities))
	}
}

func TestEvaluationNotFound(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	w := testutil.DoRequest(env.Router, http.MethodGet, "/api/evaluations/9999", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, http.MethodDelete, "/api/evaluations/9999", nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting missing period, got %d", w.Code)
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, "/api/evaluations/abc", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", w.Code)
	}
}

func TestScoreUnknownEntity(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	start, _ := time.Parse("2006-01-02", "2026-03-01")
	end, _ := time.Parse("2006-01-02", "2026-03-31")
	seedQuality(t, env, start, end)

	id := createPeriod(t, env, token)
	base := fmt.Sprintf("/api/evaluations/%.0f", id)
	w := testutil.DoRequest(env.Router, http.MethodPost, base+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start failed: %d %s", w.Code, w.Body.String())
	}

	scoreBody := map[string]interface{}{
		"scores": map[string]float64{"usage": 90},
	}
	w = testutil.DoRequest(env.Router, http.MethodPut, base+"/entities/不存在的供应商", scoreBody, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 scoring unknown entity, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteEvaluation(t *testing.T) {
	env := setupEvaluationTest(t)
	token := testutil.DefaultTestToken()

	id := createPeriod(t, env, token)
	base := fmt.Sprintf("/api/evaluations/%.0f", id)

	w := testutil.DoRequest(env.Router, http.MethodDelete, base, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("delete failed: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(env.Router, http.MethodGet, base, nil, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}
