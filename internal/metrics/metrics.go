package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/customeros/mailsorter/dto"
)

const namespace = "mailsorter"

// Stage outcome label values.
const (
	ResultAdvanced = "advanced"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
)

var (
	StageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Per record outcomes of each pipeline stage",
		},
		[]string{"stage", "result"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full pipeline run",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3m
		},
		[]string{"status"},
	)

	LabelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "labels_created_total",
			Help:      "Gmail labels created by the label stage",
		},
	)
)

func RecordStage(report dto.StageReport) {
	StageOutcomes.WithLabelValues(report.Stage, ResultAdvanced).Add(float64(report.Advanced))
	StageOutcomes.WithLabelValues(report.Stage, ResultSkipped).Add(float64(report.Skipped))
	StageOutcomes.WithLabelValues(report.Stage, ResultFailed).Add(float64(report.Failed))
}

func RecordRun(status string, duration time.Duration) {
	RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordLabelCreated() {
	LabelsCreated.Inc()
}
