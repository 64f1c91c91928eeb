package queue

import "github.com/prometheus/client_golang/prometheus"

var (
	TasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_enqueued_total",
			Help: "Tasks handed to the background queue grouped by type and result",
		},
		[]string{"type", "result"},
	)
	TasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_tasks_processed_total",
			Help: "Tasks processed by the worker grouped by type and status",
		},
		[]string{"type", "status"},
	)
	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_size",
			Help: "Tasks waiting in a queue grouped by state",
		},
		[]string{"queue", "state"},
	)
)

func init() {
	prometheus.MustRegister(TasksEnqueuedTotal, TasksProcessedTotal, QueueSize)
}
