package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fastygo/banking/domain"
)

const namespace = "banking"

// Channel outcomes.
const (
	OutcomeProcessed    = "processed"
	OutcomeRetried      = "retried"
	OutcomeDeadlettered = "deadlettered"
)

// Metrics exposes the saga's prometheus collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	channelItems    *prometheus.CounterVec
	lockWait        *prometheus.HistogramVec
	published       *prometheus.CounterVec
}

// New instantiates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "commands handled by aggregate handlers",
			},
			[]string{"context", "command", "code"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "histogram of command handling latencies, lock wait included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"context", "command"},
		),
		channelItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "channel_items_total",
				Help:      "durable channel items by outcome",
			},
			[]string{"channel", "outcome"},
		),
		lockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_wait_seconds",
				Help:      "time spent waiting for a distributed lock",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
			},
			[]string{"acquired"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "events handed to the broker",
			},
			[]string{"context", "result"},
		),
	}
}

// Register adds every collector to registry.
func (m *Metrics) Register(registry prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.commands, m.commandDuration, m.channelItems, m.lockWait, m.published} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// CommandHandled counts a command by its domain error code; "OK" on success.
func (m *Metrics) CommandHandled(boundedContext, command string, err error, took time.Duration) {
	if m == nil {
		return
	}
	code := "OK"
	if err != nil {
		code = string(domain.CodeOf(err))
	}
	m.commands.WithLabelValues(boundedContext, command, code).Inc()
	m.commandDuration.WithLabelValues(boundedContext, command).Observe(took.Seconds())
}

func (m *Metrics) ChannelItem(channel, outcome string) {
	if m == nil {
		return
	}
	m.channelItems.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) LockWait(waited time.Duration, acquired bool) {
	if m == nil {
		return
	}
	label := "false"
	if acquired {
		label = "true"
	}
	m.lockWait.WithLabelValues(label).Observe(waited.Seconds())
}

func (m *Metrics) Published(boundedContext string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.published.WithLabelValues(boundedContext, result).Inc()
}
