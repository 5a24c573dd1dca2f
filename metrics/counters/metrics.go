package counters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "server",
	Name:      "connections_active",
	Help:      "Number of connected charge points",
})

var framesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "frames_received_total",
	Help:      "Inbound frames by decoded kind.",
}, []string{"kind"})

var callErrorsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ocpp",
	Name:      "call_errors_sent_total",
	Help:      "CallError frames sent by error code.",
}, []string{"code"})

var hookFailuresCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hooks",
	Name:      "failures_total",
	Help:      "Hook invocations that failed, by hook category.",
}, []string{"category"})

var tasksCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tasks",
	Name:      "executed_total",
	Help:      "Task executions by task name and result.",
}, []string{"task", "result"})

func ObserveConnections(count int) {
	connectionsGauge.Set(float64(count))
}

func CountFrame(kind string) {
	if len(kind) == 0 {
		return
	}
	framesCounter.With(prometheus.Labels{"kind": kind}).Inc()
}

func CountCallError(code string) {
	if len(code) == 0 {
		return
	}
	callErrorsCounter.With(prometheus.Labels{"code": code}).Inc()
}

func CountHookFailure(category string) {
	hookFailuresCounter.With(prometheus.Labels{"category": category}).Inc()
}

func CountTask(task, result string) {
	tasksCounter.With(prometheus.Labels{"task": task, "result": result}).Inc()
}
