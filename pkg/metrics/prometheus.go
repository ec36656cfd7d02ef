// Package metrics provides Prometheus metrics for the assignment engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager owns every Prometheus collector the engine registers.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Assignment pipeline metrics.
	assignmentsTotal        *prometheus.CounterVec
	assignmentLatency       prometheus.Histogram
	noCandidatesTotal       prometheus.Counter
	similarityFilterLatency prometheus.Histogram
	embeddingProviderErrors prometheus.Counter

	// Bandit metrics.
	banditUpdatesTotal   prometheus.Counter
	banditColdStartTotal prometheus.Counter
	banditSelectionScore prometheus.Histogram

	// Feedback / reward metrics.
	feedbackTotal prometheus.Counter
	rewardValue   prometheus.Histogram
	rewardRaw     prometheus.Histogram

	// Persistence metrics.
	repositoryOpLatency *prometheus.HistogramVec
	repositoryOpErrors  *prometheus.CounterVec

	// Notification pipeline metrics.
	notifyEnqueueTotal    prometheus.Counter
	notifyDequeueTotal    prometheus.Counter
	notifyEnqueueErrors   prometheus.Counter
	notifyDispatchErrors  prometheus.Counter
	notifyDispatchLatency prometheus.Histogram
	notifyQueueSize       prometheus.Gauge
	notifyQueueCapacity   prometheus.Gauge
	notifyWorkerCount     prometheus.Gauge

	// Idempotency metrics.
	dedupeHitsTotal prometheus.Counter

	// Enhanced error metrics, mirroring a component/type breakdown.
	errorRateByComponent *prometheus.CounterVec

	// System performance metrics.
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "assignengine",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one registration block per collector
	auto := promauto.With(m.registry)

	m.assignmentsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "assignments_total",
			Help:      "Total number of task assignments by mode (auto/manual)",
		},
		[]string{"mode"},
	)

	m.assignmentLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignment_latency_milliseconds",
		Help:      "End-to-end latency of an assign_task call",
		Buckets:   m.histogramBuckets,
	})

	m.noCandidatesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "no_candidates_total",
		Help:      "Total number of assign_task calls that found zero eligible candidates",
	})

	m.similarityFilterLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "similarity_filter_latency_milliseconds",
		Help:      "Latency of the skill similarity filter stage",
		Buckets:   m.histogramBuckets,
	})

	m.embeddingProviderErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "embedding_provider_errors_total",
		Help:      "Total number of embedding provider failures during candidate backfill",
	})

	m.banditUpdatesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bandit_updates_total",
		Help:      "Total number of bandit arm updates applied on task completion",
	})

	m.banditColdStartTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bandit_cold_starts_total",
		Help:      "Total number of arms initialized from cold start (no prior state, or Cholesky fallback)",
	})

	m.banditSelectionScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bandit_selection_score",
		Help:      "UCB score of the winning arm at selection time",
		Buckets:   []float64{-2, -1, -0.5, 0, 0.5, 1, 1.5, 2, 3, 5, 10},
	})

	m.feedbackTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feedback_total",
		Help:      "Total number of feedback rows recorded on task completion",
	})

	m.rewardValue = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reward_value",
		Help:      "Distribution of the clipped reward value",
		Buckets:   []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2},
	})

	m.rewardRaw = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reward_raw",
		Help:      "Distribution of the raw (pre-clip) reward sum",
		Buckets:   []float64{-3, -2, -1, 0, 1, 2, 3},
	})

	m.repositoryOpLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "repository_operation_latency_milliseconds",
			Help:      "Persistence operation latency by operation name",
			Buckets:   m.histogramBuckets,
		},
		[]string{"operation"},
	)

	m.repositoryOpErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "repository_operation_errors_total",
			Help:      "Persistence operation errors by operation name",
		},
		[]string{"operation"},
	)

	m.notifyEnqueueTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_enqueue_total",
		Help:      "Total number of notification events enqueued",
	})

	m.notifyDequeueTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_dequeue_total",
		Help:      "Total number of notification events dequeued",
	})

	m.notifyEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_enqueue_errors_total",
		Help:      "Total number of notification events dropped at enqueue time (queue full or closed)",
	})

	m.notifyDispatchErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_dispatch_errors_total",
		Help:      "Total number of Notifier.Notify failures",
	})

	m.notifyDispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_dispatch_latency_milliseconds",
		Help:      "Latency of a single Notifier.Notify call",
		Buckets:   m.histogramBuckets,
	})

	m.notifyQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_queue_size",
		Help:      "Current depth of the notification queue",
	})

	m.notifyQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_queue_capacity",
		Help:      "Configured capacity of the notification queue",
	})

	m.notifyWorkerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notify_worker_count",
		Help:      "Number of notification dispatch workers running",
	})

	m.dedupeHitsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_hits_total",
		Help:      "Total number of operations rejected as already-seen by the idempotency guard",
	})

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and type",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordAssignment increments the assignment counter for mode ("auto"/"manual").
func RecordAssignment(mode string) {
	globalManager.assignmentsTotal.WithLabelValues(mode).Inc()
}

// RecordAssignmentLatency records the latency of an assign_task call.
func RecordAssignmentLatency(latencyMs float64) {
	globalManager.assignmentLatency.Observe(latencyMs)
}

// RecordNoCandidates increments the zero-candidates counter.
func RecordNoCandidates() {
	globalManager.noCandidatesTotal.Inc()
}

// RecordSimilarityFilterLatency records the similarity filter stage latency.
func RecordSimilarityFilterLatency(latencyMs float64) {
	globalManager.similarityFilterLatency.Observe(latencyMs)
}

// RecordEmbeddingProviderError increments the embedding provider error counter.
func RecordEmbeddingProviderError() {
	globalManager.embeddingProviderErrors.Inc()
}

// RecordBanditUpdate increments the bandit update counter.
func RecordBanditUpdate() {
	globalManager.banditUpdatesTotal.Inc()
}

// RecordBanditColdStart increments the bandit cold-start counter.
func RecordBanditColdStart() {
	globalManager.banditColdStartTotal.Inc()
}

// RecordBanditSelectionScore records the winning arm's UCB score.
func RecordBanditSelectionScore(score float64) {
	globalManager.banditSelectionScore.Observe(score)
}

// RecordFeedback increments the feedback counter.
func RecordFeedback() {
	globalManager.feedbackTotal.Inc()
}

// RecordReward records the clipped reward value and raw reward sum.
func RecordReward(value, raw float64) {
	globalManager.rewardValue.Observe(value)
	globalManager.rewardRaw.Observe(raw)
}

// RecordRepositoryOpLatency records a persistence operation's latency.
func RecordRepositoryOpLatency(operation string, latencyMs float64) {
	globalManager.repositoryOpLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordRepositoryOpError increments the persistence error counter for operation.
func RecordRepositoryOpError(operation string) {
	globalManager.repositoryOpErrors.WithLabelValues(operation).Inc()
}

// RecordNotifyEnqueue increments the notification enqueue counter.
func RecordNotifyEnqueue() {
	globalManager.notifyEnqueueTotal.Inc()
}

// RecordNotifyDequeue increments the notification dequeue counter.
func RecordNotifyDequeue() {
	globalManager.notifyDequeueTotal.Inc()
}

// RecordNotifyEnqueueError increments the notification enqueue error counter.
func RecordNotifyEnqueueError() {
	globalManager.notifyEnqueueErrors.Inc()
}

// RecordNotifyDispatchError increments the notification dispatch error counter.
func RecordNotifyDispatchError() {
	globalManager.notifyDispatchErrors.Inc()
}

// RecordNotifyDispatchLatency records a single Notifier.Notify call's latency.
func RecordNotifyDispatchLatency(latencyMs float64) {
	globalManager.notifyDispatchLatency.Observe(latencyMs)
}

// UpdateNotifyQueueSize sets the current notification queue depth.
func UpdateNotifyQueueSize(size int) {
	globalManager.notifyQueueSize.Set(float64(size))
}

// UpdateNotifyQueueCapacity sets the configured notification queue capacity.
func UpdateNotifyQueueCapacity(capacity int) {
	globalManager.notifyQueueCapacity.Set(float64(capacity))
}

// UpdateNotifyWorkerCount sets the number of running notification workers.
func UpdateNotifyWorkerCount(count int) {
	globalManager.notifyWorkerCount.Set(float64(count))
}

// RecordDedupeHit increments the idempotency-guard hit counter.
func RecordDedupeHit() {
	globalManager.dedupeHitsTotal.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by these metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
