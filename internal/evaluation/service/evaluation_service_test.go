package service

import (
	"testing"

	"github.com/bitfantasy/qms/internal/evaluation/entity"
	qcentity "github.com/bitfantasy/qms/internal/quality/entity"
)

func scoredDetail(name string, total float64) entity.EvaluationDetail {
	return entity.EvaluationDetail{
		EntityName:  name,
		DataType:    qcentity.DataTypePurchase,
		TotalScore:  &total,
		QualityData: qcentity.QualityData{TotalBatches: 10, OkBatches: 9, NgBatches: 1, PassRate: 90},
	}
}

func unscoredDetail(name string, batches int) entity.EvaluationDetail {
	return entity.EvaluationDetail{
		EntityName:  name,
		DataType:    qcentity.DataTypePurchase,
		QualityData: qcentity.QualityData{TotalBatches: batches, OkBatches: batches},
	}
}

func TestCompletionStats(t *testing.T) {
	tests := []struct {
		name         string
		details      []entity.EvaluationDetail
		wantRequired int
		wantUnscored int
	}{
		{
			name:         "no details",
			details:      nil,
			wantRequired: 0,
			wantUnscored: 0,
		},
		{
			name: "all scored",
			details: []entity.EvaluationDetail{
				scoredDetail("供应商A", 92),
				scoredDetail("供应商B", 85.5),
			},
			wantRequired: 2,
			wantUnscored: 0,
		},
		{
			name: "one pending",
			details: []entity.EvaluationDetail{
				scoredDetail("供应商A", 92),
				unscoredDetail("供应商B", 8),
			},
			wantRequired: 2,
			wantUnscored: 1,
		},
		{
			name: "zero batch entity exempt",
			details: []entity.EvaluationDetail{
				scoredDetail("供应商A", 92),
				unscoredDetail("供应商B", 0),
			},
			wantRequired: 1,
			wantUnscored: 0,
		},
		{
			name: "only exempt entities never complete",
			details: []entity.EvaluationDetail{
				unscoredDetail("供应商A", 0),
				unscoredDetail("供应商B", 0),
			},
			wantRequired: 0,
			wantUnscored: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			required, unscored := completionStats(tt.details)
			if required != tt.wantRequired || unscored != tt.wantUnscored {
				t.Fatalf("completionStats = (%d, %d), want (%d, %d)",
					required, unscored, tt.wantRequired, tt.wantUnscored)
			}
		})
	}
}

// 完成判定：required>0 且 unscored==0 时触发自动提交；
// 全部免评的周期不会自动完成。
func TestAutoCompletionPredicate(t *testing.T) {
	allExempt := []entity.EvaluationDetail{unscoredDetail("供应商A", 0)}
	required, unscored := completionStats(allExempt)
	if required > 0 && unscored == 0 {
		t.Fatal("all-exempt period must not auto-complete")
	}

	done := []entity.EvaluationDetail{
		scoredDetail("供应商A", 88),
		unscoredDetail("供应商B", 0),
	}
	required, unscored = completionStats(done)
	if !(required > 0 && unscored == 0) {
		t.Fatal("scored period with only exempt remainder should auto-complete")
	}
}
