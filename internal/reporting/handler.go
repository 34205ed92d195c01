package reporting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	breakdown "fleetops-cloud/internal/breakdown/domain"
	"fleetops-cloud/internal/observability/metrics"
)

const dayLayout = "2006-01-02"

// RecordLister reads a day's records from the record store.
type RecordLister interface {
	ListByDay(ctx context.Context, day string) ([]breakdown.Record, error)
}

// DailyReportHandler serves GET /api/v1/reports/daily exports.
type DailyReportHandler struct {
	store  RecordLister
	logger *zap.Logger
}

// NewDailyReportHandler constructs the report handler.
func NewDailyReportHandler(store RecordLister, logger *zap.Logger) (*DailyReportHandler, error) {
	if store == nil {
		return nil, errors.New("report handler: nil record store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyReportHandler{store: store, logger: logger}, nil
}

func (h *DailyReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	day := r.URL.Query().Get("date")
	if _, err := time.Parse(dayLayout, day); err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		http.Error(w, "invalid format, want xlsx or pdf", http.StatusBadRequest)
		return
	}

	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveReportExport(format, result, time.Since(start))
	}()

	records, err := h.store.ListByDay(r.Context(), day)
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("daily report listing failed",
			zap.String("day", day),
			zap.Error(err))
		http.Error(w, "report data unavailable", http.StatusServiceUnavailable)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildDailyReportPDF(day, records)
		contentType = "application/pdf"
	default:
		data, err = BuildDailyReportXLSX(day, records)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		h.logger.Error("daily report build failed",
			zap.String("day", day),
			zap.String("format", format),
			zap.Error(err))
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=breakdowns-%s.%s", day, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
