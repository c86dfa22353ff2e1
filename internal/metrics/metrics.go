package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSpaces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncspace",
		Name:      "active_spaces",
		Help:      "Number of spaces with at least one connected user",
	})

	connectedSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncspace",
		Name:      "connected_sockets",
		Help:      "Number of live WebSocket connections attached to spaces",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspace",
		Name:      "commands_total",
		Help:      "Inbound commands handled by type and outcome",
	}, []string{"type", "outcome"}) // outcome=ok|error

	broadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspace",
		Name:      "broadcasts_total",
		Help:      "Outbound events fanned out to a space",
	}, []string{"event"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspace",
		Name:      "music_cache_lookups_total",
		Help:      "Metadata cache lookups by result",
	}, []string{"result"}) // result=catalog_id|exact|fuzzy|miss

	cacheLookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "syncspace",
		Name:      "music_cache_lookup_seconds",
		Help:      "Metadata cache lookup latency",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	})

	workerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncspace",
		Name:      "worker_tasks_total",
		Help:      "Worker pool tasks by type and outcome",
	}, []string{"type", "outcome"}) // outcome=success|failure

	workerTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "syncspace",
		Name:      "worker_task_seconds",
		Help:      "Worker pool task processing time",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})
)

func SpaceCreated() { activeSpaces.Inc() }
func SpaceDestroyed() { activeSpaces.Dec() }

func SocketAttached() { connectedSockets.Inc() }
func SocketDetached() { connectedSockets.Dec() }

func RecordCommand(commandType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	commandsTotal.WithLabelValues(commandType, outcome).Inc()
}

func RecordBroadcast(event string) {
	broadcastsTotal.WithLabelValues(event).Inc()
}

func RecordCacheLookup(result string, elapsed time.Duration) {
	cacheLookups.WithLabelValues(result).Inc()
	cacheLookupDuration.Observe(elapsed.Seconds())
}

func RecordWorkerTask(taskType string, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	workerTasks.WithLabelValues(taskType, outcome).Inc()
	workerTaskDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
}
