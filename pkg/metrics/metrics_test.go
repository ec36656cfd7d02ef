package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test-prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestAssignmentMetrics(t *testing.T) {
	Convey("Given the assignment pipeline metrics", t, func() {
		Convey("When recording an assignment and its latency", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordAssignment("auto")
					RecordAssignment("manual")
					RecordAssignmentLatency(12.5)
					RecordNoCandidates()
					RecordSimilarityFilterLatency(3.2)
					RecordEmbeddingProviderError()
				}, ShouldNotPanic)
			})
		})
	})
}

func TestBanditMetrics(t *testing.T) {
	Convey("Given the bandit metrics", t, func() {
		Convey("When recording updates, cold starts, and a selection score", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordBanditUpdate()
					RecordBanditColdStart()
					RecordBanditSelectionScore(1.75)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestRewardMetrics(t *testing.T) {
	Convey("Given the reward metrics", t, func() {
		Convey("When recording feedback and a reward observation", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordFeedback()
					RecordReward(1.2, 1.7)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestRepositoryMetrics(t *testing.T) {
	Convey("Given the repository metrics", t, func() {
		Convey("When recording latency and errors for an operation", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordRepositoryOpLatency("assign_task", 4.0)
					RecordRepositoryOpError("assign_task")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestNotifyMetrics(t *testing.T) {
	Convey("Given the notification pipeline metrics", t, func() {
		Convey("When recording queue and dispatch activity", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordNotifyEnqueue()
					RecordNotifyDequeue()
					RecordNotifyEnqueueError()
					RecordNotifyDispatchError()
					RecordNotifyDispatchLatency(8.0)
					UpdateNotifyQueueSize(3)
					UpdateNotifyQueueCapacity(10000)
					UpdateNotifyWorkerCount(4)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestDedupeAndErrorMetrics(t *testing.T) {
	Convey("Given the dedupe and generic error metrics", t, func() {
		Convey("When recording a dedupe hit and a componentized error", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					RecordDedupeHit()
					RecordErrorByComponent("bandit", "cholesky_failure")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestSystemMetrics(t *testing.T) {
	Convey("Given the system metrics", t, func() {
		Convey("When updating memory and goroutine gauges", func() {
			Convey("Then it should not panic", func() {
				So(func() {
					UpdateSystemMemoryUsage(1024 * 1024)
					UpdateSystemGoroutineCount(42)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the package-level registry", t, func() {
		Convey("When calling GetRegistry", func() {
			registry := GetRegistry()

			Convey("Then it should return a non-nil custom registry", func() {
				So(registry, ShouldNotBeNil)
			})
		})
	})
}
