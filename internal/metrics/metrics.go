package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // SolveRuns counts solve runs by terminal status
    SolveRuns = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "solve_runs_total", Help: "Solve runs by status."},
        []string{"status"},
    )
    // SolveDuration tracks wall-clock solve time in seconds
    SolveDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solve_duration_seconds", Help: "Solve wall-clock duration in seconds.", Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 60}},
    )
    // SolveGenerations tracks generations completed per run
    SolveGenerations = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solve_generations", Help: "Generations completed per solve run.", Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000}},
    )
    // SolveUnassigned tracks orders left unassigned per run
    SolveUnassigned = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "solve_unassigned_orders", Help: "Unassigned orders per solve run.", Buckets: []float64{0, 1, 2, 5, 10, 50, 100}},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(SolveRuns)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(SolveGenerations)
        Registry.MustRegister(SolveUnassigned)
        Registry.MustRegister(WebhookDeliveries)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
