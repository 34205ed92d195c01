package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "fleetops_"

	resultSuccess = "success"
	resultError   = "error"

	evaluationBreached = "breached"
	evaluationClear    = "clear"
	evaluationError    = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	pipelineRuns *prometheus.CounterVec

	archiveTotal   *prometheus.CounterVec
	archiveLatency *prometheus.HistogramVec

	recordUpsertTotal   *prometheus.CounterVec
	recordUpsertLatency *prometheus.HistogramVec

	metricEmitTotal  *prometheus.CounterVec
	evaluationsTotal *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	streamClients *prometheus.GaugeVec
)

// Init registers the service metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		pipelineRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total pipeline runs by terminal state",
			},
			[]string{"state"},
		)

		archiveTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "raw_archive_total",
				Help: "Total raw archive writes by result",
			},
			[]string{"result"},
		)
		archiveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "raw_archive_latency_seconds",
				Help:    "Raw archive write latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		recordUpsertTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "record_upsert_total",
				Help: "Total structured record upserts by result",
			},
			[]string{"result"},
		)
		recordUpsertLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "record_upsert_latency_seconds",
				Help:    "Structured record upsert latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		metricEmitTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_metric_emit_total",
				Help: "Total high-priority metric emissions by result",
			},
			[]string{"result"},
		)
		evaluationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_evaluations_total",
				Help: "Total alert window evaluations by outcome",
			},
			[]string{"outcome"},
		)
		dispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_dispatch_total",
				Help: "Total alert dispatches by result",
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total daily report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Daily report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		streamClients = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Connected event stream clients by stream",
			},
			[]string{"stream"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestErrors,
			ingestLatency,
			pipelineRuns,
			archiveTotal,
			archiveLatency,
			recordUpsertTotal,
			recordUpsertLatency,
			metricEmitTotal,
			evaluationsTotal,
			dispatchTotal,
			reportExportTotal,
			reportExportLatency,
			streamClients,
		)
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncIngestError increments the ingest error counter.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// IncPipelineRun counts a pipeline run by its terminal state.
func IncPipelineRun(state string) {
	if state == "" {
		state = "unknown"
	}
	if pipelineRuns != nil {
		pipelineRuns.WithLabelValues(state).Inc()
	}
}

// ObserveArchive records raw archive write duration and result.
func ObserveArchive(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if archiveTotal != nil {
		archiveTotal.WithLabelValues(result).Inc()
	}
	if archiveLatency != nil {
		archiveLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveRecordUpsert records structured record write duration and result.
func ObserveRecordUpsert(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if recordUpsertTotal != nil {
		recordUpsertTotal.WithLabelValues(result).Inc()
	}
	if recordUpsertLatency != nil {
		recordUpsertLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncMetricEmit counts a high-priority metric emission.
func IncMetricEmit(result string) {
	if result == "" {
		result = resultSuccess
	}
	if metricEmitTotal != nil {
		metricEmitTotal.WithLabelValues(result).Inc()
	}
}

// IncAlertEvaluation counts one alert window evaluation.
func IncAlertEvaluation(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if evaluationsTotal != nil {
		evaluationsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncAlertDispatch counts one alert dispatch attempt.
func IncAlertDispatch(result string) {
	if result == "" {
		result = resultSuccess
	}
	if dispatchTotal != nil {
		dispatchTotal.WithLabelValues(result).Inc()
	}
}

// ObserveReportExport records daily report export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncStreamClients bumps the connected client gauge for a stream.
func IncStreamClients(stream string) {
	if stream == "" {
		stream = "unknown"
	}
	if streamClients != nil {
		streamClients.WithLabelValues(stream).Inc()
	}
}

// DecStreamClients drops the connected client gauge for a stream.
func DecStreamClients(stream string) {
	if stream == "" {
		stream = "unknown"
	}
	if streamClients != nil {
		streamClients.WithLabelValues(stream).Dec()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	IngestResultSuccess = resultSuccess
	IngestResultError   = resultError

	EvaluationBreached = evaluationBreached
	EvaluationClear    = evaluationClear
	EvaluationError    = evaluationError
)
