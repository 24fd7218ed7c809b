package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then collectors should be registered under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.runsSubmitted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["drivermatch_matcher_runs_submitted_total"], ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("fleet"),
				WithSubsystem("assign"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"region": "ar-north"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and const labels should follow the options", func() {
				manager.queueRejected.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "fleet_assign_queue_rejected_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "ar-north")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording run outcomes", func() {
			before := testutil.ToFloat64(globalManager.runsCompleted.WithLabelValues("succeeded"))
			RecordRunSubmitted()
			RecordRunCompleted("succeeded")
			RecordRunError("infeasible")

			Convey("Then counters should move", func() {
				So(testutil.ToFloat64(globalManager.runsCompleted.WithLabelValues("succeeded")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.runErrors.WithLabelValues("infeasible")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When publishing the last run", func() {
			UpdateLastRun(150, 200, 350*150, 14250.75, 3.5)

			Convey("Then gauges should hold the values", func() {
				So(testutil.ToFloat64(globalManager.lastAssigned), ShouldEqual, 150)
				So(testutil.ToFloat64(globalManager.lastUnassigned), ShouldEqual, 200)
				So(testutil.ToFloat64(globalManager.lastMatrixCells), ShouldEqual, 52500)
				So(testutil.ToFloat64(globalManager.lastTotalWeight), ShouldEqual, 14250.75)
			})
		})

		Convey("When adjusting busy workers", func() {
			start := testutil.ToFloat64(globalManager.workerBusy)
			AddWorkerBusy(1)
			AddWorkerBusy(1)
			AddWorkerBusy(-1)

			Convey("Then the gauge should net out", func() {
				So(testutil.ToFloat64(globalManager.workerBusy), ShouldEqual, start+1)
			})
		})

		Convey("When recording latency and adapter metrics", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					RecordStageLatency(StageSolve, 12.5)
					RecordStageLatency(StageBuild, 1.5)
					RecordStoreLatency("save_run", 2)
					RecordPublish("ok")
					UpdateQueueSize(3)
					UpdateQueueCapacity(64)
					RecordQueueRejected()
					UpdateWorkerCount(2)
					RecordHTTPRequest("runs", "POST", "202")
					RecordHTTPRequestDuration("runs", "POST", "202", 4)
					RecordErrorByComponent("solver", "infeasible")
				}, ShouldNotPanic)
			})
		})

		Convey("When reading the registry", func() {
			Convey("Then it should be the private one", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
