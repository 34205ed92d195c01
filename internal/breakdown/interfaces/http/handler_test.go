package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	alerting "fleetops-cloud/internal/alerting/domain"
	"fleetops-cloud/internal/breakdown/application"
	breakdown "fleetops-cloud/internal/breakdown/domain"
)

type stubRunner struct {
	result application.RunResult
	err    error
	raw    []byte
}

func (s *stubRunner) Run(_ context.Context, raw []byte) (application.RunResult, error) {
	s.raw = append([]byte(nil), raw...)
	return s.result, s.err
}

func TestIngestHandler_AcceptsValidReport(t *testing.T) {
	runner := &stubRunner{result: application.RunResult{
		EventID: "evt-1",
		State:   application.StateCompleted,
	}}
	handler, err := NewIngestHandler(runner, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := `{"routeNumber":"12","occurredOn":"2025-03-01T08:30:00Z","priority":"high"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/breakdowns", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rec.Code)
	}
	if string(runner.raw) != body {
		t.Fatalf("expected raw body passed through, got %q", runner.raw)
	}
	var resp ingestResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EventID != "evt-1" {
		t.Fatalf("expected event id evt-1, got %q", resp.EventID)
	}
	if resp.State != string(application.StateCompleted) {
		t.Fatalf("expected state completed, got %q", resp.State)
	}
}

func TestIngestHandler_RejectsNonPost(t *testing.T) {
	handler, err := NewIngestHandler(&stubRunner{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/breakdowns", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestIngestHandler_MapsPipelineErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
	}{
		{
			name:       "malformed payload",
			err:        fmt.Errorf("%w: unexpected end of JSON input", breakdown.ErrMalformedPayload),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing field",
			err:        &breakdown.ValidationError{Field: "routeNumber", Err: breakdown.ErrMissingField},
			wantStatus: http.StatusBadRequest,
			wantField:  "routeNumber",
		},
		{
			name:       "invalid priority",
			err:        &breakdown.ValidationError{Field: "priority", Err: breakdown.ErrInvalidPriority},
			wantStatus: http.StatusBadRequest,
			wantField:  "priority",
		},
		{
			name:       "invalid timestamp",
			err:        &breakdown.ValidationError{Field: "occurredOn", Err: breakdown.ErrInvalidTimestamp},
			wantStatus: http.StatusBadRequest,
			wantField:  "occurredOn",
		},
		{
			name:       "storage unavailable",
			err:        fmt.Errorf("%w: put object: connection refused", breakdown.ErrStorageUnavailable),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unexpected error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := application.StateRejected
			if tc.wantStatus >= http.StatusInternalServerError {
				state = application.StateFailed
			}
			runner := &stubRunner{
				result: application.RunResult{EventID: "evt-1", State: state},
				err:    tc.err,
			}
			handler, err := NewIngestHandler(runner, zap.NewNop())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/v1/breakdowns", strings.NewReader(`{}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Error == "" {
				t.Fatal("expected error message in response")
			}
			if resp.Field != tc.wantField {
				t.Fatalf("expected field %q, got %q", tc.wantField, resp.Field)
			}
		})
	}
}

func TestIngestHandler_StorageErrorBodyStaysGeneric(t *testing.T) {
	runner := &stubRunner{
		result: application.RunResult{EventID: "evt-1", State: application.StateFailed},
		err:    fmt.Errorf("%w: put object: AccessDenied", breakdown.ErrStorageUnavailable),
	}
	handler, err := NewIngestHandler(runner, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/breakdowns", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if strings.Contains(resp.Error, "AccessDenied") {
		t.Fatalf("expected generic storage message, got %q", resp.Error)
	}
}

type noopArchiver struct{ calls int }

func (a *noopArchiver) Archive(context.Context, string, []byte) error {
	a.calls++
	return nil
}

type noopStore struct{ calls int }

func (s *noopStore) Upsert(context.Context, breakdown.Record) error {
	s.calls++
	return nil
}

type noopEmitter struct{}

func (noopEmitter) EmitHighPriority(context.Context, string, time.Time) error { return nil }

type noopEvaluator struct{}

func (noopEvaluator) Evaluate(context.Context, time.Time) (alerting.Decision, error) {
	return alerting.Decision{}, nil
}

func TestIngestHandler_RejectedReportWritesNothing(t *testing.T) {
	archiver := &noopArchiver{}
	store := &noopStore{}
	pipeline, err := application.NewPipeline(archiver, store, noopEmitter{}, noopEvaluator{}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handler, err := NewIngestHandler(pipeline, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/breakdowns", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if archiver.calls != 0 {
		t.Fatalf("expected no archive writes, got %d", archiver.calls)
	}
	if store.calls != 0 {
		t.Fatalf("expected no record writes, got %d", store.calls)
	}
}

func TestNewIngestHandler_RequiresPipeline(t *testing.T) {
	if _, err := NewIngestHandler(nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for nil pipeline")
	}
}
