package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fleetops-cloud/internal/breakdown/application"
	breakdown "fleetops-cloud/internal/breakdown/domain"
	"fleetops-cloud/internal/observability/metrics"
)

const maxBodyBytes = 1 << 20

// PipelineRunner processes one raw report end to end.
type PipelineRunner interface {
	Run(ctx context.Context, raw []byte) (application.RunResult, error)
}

// IngestHandler accepts breakdown reports on POST /api/v1/breakdowns.
type IngestHandler struct {
	pipeline PipelineRunner
	logger   *zap.Logger
}

// NewIngestHandler constructs the ingest handler.
func NewIngestHandler(pipeline PipelineRunner, logger *zap.Logger) (*IngestHandler, error) {
	if pipeline == nil {
		return nil, errors.New("ingest handler: nil pipeline")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestHandler{pipeline: pipeline, logger: logger}, nil
}

type ingestResponse struct {
	EventID string `json:"eventId"`
	State   string `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	ingestResult := metrics.IngestResultError
	defer func() {
		metrics.ObserveIngest(ingestResult, time.Since(start))
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IncIngestError("read_body")
		writeError(w, http.StatusBadRequest, "unable to read request body", "")
		return
	}

	result, err := h.pipeline.Run(r.Context(), raw)
	if err != nil {
		h.respondError(w, result, err)
		return
	}

	ingestResult = metrics.IngestResultSuccess
	writeJSON(w, http.StatusAccepted, ingestResponse{
		EventID: result.EventID,
		State:   string(result.State),
	})
}

func (h *IngestHandler) respondError(w http.ResponseWriter, result application.RunResult, err error) {
	var (
		status  int
		reason  string
		message string
	)
	switch {
	case errors.Is(err, breakdown.ErrMalformedPayload):
		status, reason, message = http.StatusBadRequest, "malformed_payload", err.Error()
	case errors.Is(err, breakdown.ErrMissingField):
		status, reason, message = http.StatusBadRequest, "missing_field", err.Error()
	case errors.Is(err, breakdown.ErrInvalidPriority):
		status, reason, message = http.StatusBadRequest, "invalid_priority", err.Error()
	case errors.Is(err, breakdown.ErrInvalidTimestamp):
		status, reason, message = http.StatusBadRequest, "invalid_timestamp", err.Error()
	case errors.Is(err, breakdown.ErrStorageUnavailable):
		status, reason, message = http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable, retry later"
	default:
		status, reason, message = http.StatusInternalServerError, "internal", "internal error"
	}
	metrics.IncIngestError(reason)

	var field string
	var verr *breakdown.ValidationError
	if errors.As(err, &verr) {
		field = verr.Field
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("ingest failed",
			zap.String("event_id", result.EventID),
			zap.String("state", string(result.State)),
			zap.Error(err))
	} else {
		h.logger.Debug("ingest rejected",
			zap.String("event_id", result.EventID),
			zap.String("reason", reason))
	}
	writeError(w, status, message, field)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, field string) {
	writeJSON(w, status, errorResponse{Error: message, Field: field})
}

var _ PipelineRunner = (*application.Pipeline)(nil)
