// Package metrics exports run results to a Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

const defaultJob = "ferry_watch"

var outcomes = []domain.Outcome{domain.OutcomeAvailable, domain.OutcomeUnavailable, domain.OutcomeError}

// Every label domain.ErrorLabel can return for a failed run. Each is pushed on every run
// so a category from an earlier failure does not linger on the gateway.
var errorCategories = []string{"cancelled", "timeout", "navigation", "unrecognised", "configuration", "notification", "other"}

// Pusher bundles the per-run gauges and pushes them after every run.
type Pusher struct {
	url      string
	job      string
	instance string
	client   push.HTTPDoer

	Registry            *prometheus.Registry
	Outcome             *prometheus.GaugeVec
	ErrorCategory       *prometheus.GaugeVec
	Duration            prometheus.Gauge
	LastRun             prometheus.Gauge
	LastAvailable       prometheus.Gauge
	Notified            prometheus.Gauge
	NotificationFailure prometheus.Gauge
}

var _ usecase.RunObserver = (*Pusher)(nil)

// Option customises a Pusher.
type Option func(*Pusher)

// WithJob overrides the Pushgateway job label.
func WithJob(job string) Option {
	return func(p *Pusher) {
		if job != "" {
			p.job = job
		}
	}
}

// WithInstance overrides the instance grouping label (defaults to the hostname).
func WithInstance(instance string) Option {
	return func(p *Pusher) {
		if instance != "" {
			p.instance = instance
		}
	}
}

// WithHTTPClient replaces the client used to reach the gateway.
func WithHTTPClient(client push.HTTPDoer) Option {
	return func(p *Pusher) {
		if client != nil {
			p.client = client
		}
	}
}

// NewPusher constructs and registers all gauges on a dedicated registry.
func NewPusher(url string, opts ...Option) *Pusher {
	registry := prometheus.NewRegistry()

	outcome := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ferry_watch_last_run_outcome",
			Help: "1 for the outcome of the most recent run, 0 for the others.",
		},
		[]string{"outcome"},
	)
	errorCategory := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ferry_watch_last_run_error",
			Help: "1 for the error category of the most recent failed run.",
		},
		[]string{"category"},
	)
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ferry_watch_last_run_duration_seconds",
		Help: "Wall-clock duration of the most recent run.",
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ferry_watch_last_run_timestamp_seconds",
		Help: "Unix time the most recent run finished.",
	})
	lastAvailable := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ferry_watch_last_available_timestamp_seconds",
		Help: "Unix time of the most recent run that found availability.",
	})
	notified := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ferry_watch_last_run_notified",
		Help: "1 if the most recent run delivered a notification.",
	})
	notifyFailure := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ferry_watch_last_run_notification_failed",
		Help: "1 if the most recent run found availability but could not deliver the alert.",
	})

	registry.MustRegister(outcome, errorCategory, duration, lastRun, lastAvailable, notified, notifyFailure)

	p := &Pusher{
		url:                 url,
		job:                 defaultJob,
		client:              &http.Client{Timeout: 15 * time.Second},
		Registry:            registry,
		Outcome:             outcome,
		ErrorCategory:       errorCategory,
		Duration:            duration,
		LastRun:             lastRun,
		LastAvailable:       lastAvailable,
		Notified:            notified,
		NotificationFailure: notifyFailure,
	}
	if host, err := os.Hostname(); err == nil {
		p.instance = host
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ObserveRun records result and pushes it. The push adds to the group rather than
// replacing it, so the last-available timestamp survives runs that do not set it.
func (p *Pusher) ObserveRun(ctx context.Context, result domain.RunResult) error {
	if p == nil {
		return nil
	}

	for _, o := range outcomes {
		value := 0.0
		if o == result.Outcome {
			value = 1
		}
		p.Outcome.WithLabelValues(string(o)).Set(value)
	}

	label := domain.ErrorLabel(result.Err)
	for _, c := range errorCategories {
		p.ErrorCategory.WithLabelValues(c).Set(boolGauge(c == label))
	}

	p.Duration.Set(result.Duration().Seconds())
	p.LastRun.Set(float64(result.FinishedAt.Unix()))
	p.Notified.Set(boolGauge(result.Notified))
	p.NotificationFailure.Set(boolGauge(result.NotifyErr != nil))

	collectors := []prometheus.Collector{p.Outcome, p.ErrorCategory, p.Duration, p.LastRun, p.Notified, p.NotificationFailure}
	if result.Outcome == domain.OutcomeAvailable {
		p.LastAvailable.Set(float64(result.FinishedAt.Unix()))
		collectors = append(collectors, p.LastAvailable)
	}

	pusher := push.New(p.url, p.job).Client(p.client)
	if p.instance != "" {
		pusher = pusher.Grouping("instance", p.instance)
	}
	for _, c := range collectors {
		pusher = pusher.Collector(c)
	}

	if err := pusher.AddContext(ctx); err != nil {
		return fmt.Errorf("push run metrics to %s: %w", p.url, err)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
