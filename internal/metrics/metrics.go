// Package metrics exports dispatcher activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "netrec"

// QueueDepther reports how many requests are waiting for the worker.
type QueueDepther interface {
	Len() int
}

// Observer implements dispatcher.Observer on top of Prometheus collectors.
type Observer struct {
	submitted   prometheus.Counter
	dropped     *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New registers the dispatcher collectors on reg. queue may be nil, in which
// case no queue depth gauge is exported.
func New(reg prometheus.Registerer, queue QueueDepther) (*Observer, error) {
	o := &Observer{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_submitted_total",
			Help:      "Recommendation requests handed to the queue, including those a stopped looper refused.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_dropped_total",
			Help:      "Recommendation requests dropped before evaluation.",
		}, []string{"reason"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluator invocations by outcome.",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Callback deliveries by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in the evaluator per request.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}

	collectors := []prometheus.Collector{o.submitted, o.dropped, o.evaluations, o.deliveries, o.duration}
	if queue != nil {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Requests waiting for the worker.",
		}, func() float64 { return float64(queue.Len()) }))
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Submitted counts a request handed to the queue.
func (o *Observer) Submitted() { o.submitted.Inc() }

// Dropped counts a request that will never be evaluated.
func (o *Observer) Dropped(reason string) { o.dropped.WithLabelValues(reason).Inc() }

// Evaluated records one evaluator run.
func (o *Observer) Evaluated(outcome string, took time.Duration) {
	o.evaluations.WithLabelValues(outcome).Inc()
	o.duration.Observe(took.Seconds())
}

// Delivered counts one callback attempt.
func (o *Observer) Delivered(outcome string) { o.deliveries.WithLabelValues(outcome).Inc() }

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
