package service

import (
	"context"
	"time"

	"github.com/bitfantasy/qms/internal/quality/entity"
	"github.com/bitfantasy/qms/internal/quality/repository"
	"go.uber.org/zap"
)

// ExtractionService 从IQC检验数据提取供应商质量数据
type ExtractionService struct {
	iqcRepo *repository.IQCRepository
	logger  *zap.Logger
}

func NewExtractionService(iqcRepo *repository.IQCRepository, logger *zap.Logger) *ExtractionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionService{iqcRepo: iqcRepo, logger: logger}
}

// ExtractQualityData 提取指定周期内各供应商的批次质量数据。
// 优先使用归档时预汇总的 summary.bySupplier，缺失时从原始检验行折算。
func (s *ExtractionService) ExtractQualityData(ctx context.Context, start, end time.Time, dataType string) (map[string]*entity.QualityData, error) {
	records, err := s.iqcRepo.FindOverlapping(ctx, dataType, start, end)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*entity.QualityData)
	for i := range records {
		rec := &records[i]
		if bySupplier, ok := rec.Summary["bySupplier"].(map[string]interface{}); ok {
			for name, v := range bySupplier {
				stats, ok := v.(map[string]interface{})
				if !ok {
					continue
				}
				qd := ensureEntry(result, name)
				qd.TotalBatches += toInt(stats["totalBatches"])
				qd.OkBatches += toInt(stats["okBatches"])
				qd.NgBatches += toInt(stats["ngBatches"])
			}
			continue
		}
		for name, folded := range foldRawData(rec.RawData, start, end) {
			qd := ensureEntry(result, name)
			qd.TotalBatches += folded.TotalBatches
			qd.OkBatches += folded.OkBatches
			qd.NgBatches += folded.NgBatches
		}
	}

	for _, qd := range result {
		qd.RecalcPassRate()
	}

	s.logger.Info("提取质量数据完成",
		zap.String("data_type", dataType),
		zap.Int("suppliers", len(result)))
	return result, nil
}

// foldRawData 从原始检验行按供应商折算批次统计，周期范围外的行跳过
func foldRawData(rows entity.JSONBArray, start, end time.Time) map[string]*entity.QualityData {
	result := make(map[string]*entity.QualityData)
	endExclusive := end.AddDate(0, 0, 1)

	for _, raw := range rows {
		row, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		supplier, _ := row["supplier"].(string)
		if supplier == "" {
			continue
		}

		if ts, _ := row["time"].(string); ts != "" {
			t, ok := parseRowTime(ts)
			if ok && (t.Before(start) || !t.Before(endExclusive)) {
				continue
			}
		}

		qd := ensureEntry(result, supplier)
		qd.TotalBatches++
		switch row["result"] {
		case "OK":
			qd.OkBatches++
		case "NG":
			qd.NgBatches++
		}
	}
	return result
}

func parseRowTime(s string) (time.Time, bool) {
	layouts := []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func ensureEntry(m map[string]*entity.QualityData, name string) *entity.QualityData {
	qd, ok := m[name]
	if !ok {
		qd = &entity.QualityData{}
		m[name] = qd
	}
	return qd
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
