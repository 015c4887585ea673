// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	LinesReceived prometheus.Counter
	LinesDropped  prometheus.Counter
	SendFailures  prometheus.Counter
	StoreFailures prometheus.Counter
	WakeCycles    prometheus.Counter

	// Per-room counters
	NewcomersAdmitted *prometheus.CounterVec
	NewcomersRemoved  *prometheus.CounterVec
	Graduations       *prometheus.CounterVec // labels: room, mode (welcome|silent)
	WaitTimeChanges   *prometheus.CounterVec // labels: room, result (accepted|denied)

	// Histograms (seconds)
	WakeDuration prometheus.Observer

	// Gauges
	PendingNewcomers *prometheus.GaugeVec
	KnownNicks       *prometheus.GaugeVec
	WaitTimeSeconds  *prometheus.GaugeVec
	Connected        prometheus.Gauge // 1=connected,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LinesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_lines_received_total", Help: "Number of protocol lines received"})
		LinesDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_lines_dropped_total", Help: "Number of received lines without an addressable actor"})
		SendFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_send_failures_total", Help: "Number of outgoing lines the transport rejected"})
		StoreFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_store_failures_total", Help: "Number of failed known-nick store operations"})
		WakeCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_wake_cycles_total", Help: "Number of scheduler wake-ups"})
		NewcomersAdmitted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "greeter_newcomers_admitted_total", Help: "Newcomers added to the pending list"}, []string{"room"})
		NewcomersRemoved = promauto.NewCounterVec(prometheus.CounterOpts{Name: "greeter_newcomers_removed_total", Help: "Pending newcomers that left before their wait time elapsed"}, []string{"room"})
		Graduations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "greeter_graduations_total", Help: "Newcomers moved to the known list"}, []string{"room", "mode"})
		WaitTimeChanges = promauto.NewCounterVec(prometheus.CounterOpts{Name: "greeter_wait_time_changes_total", Help: "Wait time change requests by outcome"}, []string{"room", "result"})
		WakeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "greeter_wake_duration_seconds", Help: "Time spent handling one wake-up", Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1}})
		PendingNewcomers = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "greeter_pending_newcomers", Help: "Current number of pending newcomers"}, []string{"room"})
		KnownNicks = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "greeter_known_nicks", Help: "Current number of known nick keys"}, []string{"room"})
		WaitTimeSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "greeter_wait_time_seconds", Help: "Configured wait time before a newcomer is welcomed"}, []string{"room"})
		Connected = promauto.NewGauge(prometheus.GaugeOpts{Name: "greeter_connected", Help: "Transport connected=1 disconnected=0"})
	})
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// RecordLine counts a received line; dropped marks lines the parser rejected.
func RecordLine(dropped bool) {
	inc(LinesReceived)
	if dropped {
		inc(LinesDropped)
	}
}

// RecordSendFailure counts a transport send error.
func RecordSendFailure() { inc(SendFailures) }

// RecordStoreFailure counts a failed load or save of known nicks.
func RecordStoreFailure() { inc(StoreFailures) }

// RecordWake counts one scheduler wake-up.
func RecordWake() { inc(WakeCycles) }

// RecordAdmission counts a newcomer admitted in room.
func RecordAdmission(room string) {
	if NewcomersAdmitted != nil {
		NewcomersAdmitted.WithLabelValues(room).Inc()
	}
}

// RecordRemoval counts a pending newcomer that left room.
func RecordRemoval(room string) {
	if NewcomersRemoved != nil {
		NewcomersRemoved.WithLabelValues(room).Inc()
	}
}

// RecordGraduation counts a graduation; welcomed distinguishes greeted from silent ones.
func RecordGraduation(room string, welcomed bool) {
	if Graduations == nil {
		return
	}
	mode := "silent"
	if welcomed {
		mode = "welcome"
	}
	Graduations.WithLabelValues(room, mode).Inc()
}

// RecordWaitTimeChange counts an accepted or denied wait time request.
func RecordWaitTimeChange(room string, accepted bool) {
	if WaitTimeChanges == nil {
		return
	}
	result := "denied"
	if accepted {
		result = "accepted"
	}
	WaitTimeChanges.WithLabelValues(room, result).Inc()
}

// SetRoomState publishes the current size and wait time of a room.
func SetRoomState(room string, pending, known int, wait time.Duration) {
	if PendingNewcomers != nil {
		PendingNewcomers.WithLabelValues(room).Set(float64(pending))
	}
	if KnownNicks != nil {
		KnownNicks.WithLabelValues(room).Set(float64(known))
	}
	if WaitTimeSeconds != nil {
		WaitTimeSeconds.WithLabelValues(room).Set(wait.Seconds())
	}
}

// SetConnected sets gauge to 1 if connected else 0.
func SetConnected(up bool) {
	if Connected == nil {
		return
	}
	if up {
		Connected.Set(1)
	} else {
		Connected.Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
