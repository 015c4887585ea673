package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()
	// Init must be idempotent; a second registration would panic.
	Init()

	if LinesReceived == nil || LinesDropped == nil || SendFailures == nil || StoreFailures == nil {
		t.Error("counters not initialized")
	}
	if Graduations == nil || WaitTimeChanges == nil || NewcomersAdmitted == nil || NewcomersRemoved == nil {
		t.Error("per-room counters not initialized")
	}
	if WakeDuration == nil {
		t.Error("WakeDuration histogram not initialized")
	}
	if PendingNewcomers == nil || KnownNicks == nil || WaitTimeSeconds == nil || Connected == nil {
		t.Error("gauges not initialized")
	}
}

func TestRecordLineCountsDropped(t *testing.T) {
	Init()
	received := testutil.ToFloat64(LinesReceived)
	dropped := testutil.ToFloat64(LinesDropped)

	RecordLine(false)
	RecordLine(true)

	if got := testutil.ToFloat64(LinesReceived) - received; got != 2 {
		t.Errorf("lines received delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(LinesDropped) - dropped; got != 1 {
		t.Errorf("lines dropped delta = %v, want 1", got)
	}
}

func TestRecordGraduationModes(t *testing.T) {
	Init()
	welcome := Graduations.WithLabelValues("#metrics", "welcome")
	silent := Graduations.WithLabelValues("#metrics", "silent")
	w0, s0 := testutil.ToFloat64(welcome), testutil.ToFloat64(silent)

	RecordGraduation("#metrics", true)
	RecordGraduation("#metrics", false)
	RecordGraduation("#metrics", false)

	if got := testutil.ToFloat64(welcome) - w0; got != 1 {
		t.Errorf("welcome graduations delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(silent) - s0; got != 2 {
		t.Errorf("silent graduations delta = %v, want 2", got)
	}
}

func TestRecordWaitTimeChange(t *testing.T) {
	Init()
	accepted := WaitTimeChanges.WithLabelValues("#metrics", "accepted")
	denied := WaitTimeChanges.WithLabelValues("#metrics", "denied")
	a0, d0 := testutil.ToFloat64(accepted), testutil.ToFloat64(denied)

	RecordWaitTimeChange("#metrics", false)

	if got := testutil.ToFloat64(accepted) - a0; got != 0 {
		t.Errorf("accepted delta = %v, want 0", got)
	}
	if got := testutil.ToFloat64(denied) - d0; got != 1 {
		t.Errorf("denied delta = %v, want 1", got)
	}
}

func TestSetRoomState(t *testing.T) {
	Init()
	SetRoomState("#gauges", 3, 12, 90*time.Second)

	if got := testutil.ToFloat64(PendingNewcomers.WithLabelValues("#gauges")); got != 3 {
		t.Errorf("pending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(KnownNicks.WithLabelValues("#gauges")); got != 12 {
		t.Errorf("known = %v, want 12", got)
	}
	if got := testutil.ToFloat64(WaitTimeSeconds.WithLabelValues("#gauges")); got != 90 {
		t.Errorf("wait time = %v, want 90", got)
	}
}

func TestSetConnected(t *testing.T) {
	Init()
	SetConnected(true)
	if got := testutil.ToFloat64(Connected); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}
	SetConnected(false)
	if got := testutil.ToFloat64(Connected); got != 0 {
		t.Errorf("connected = %v, want 0", got)
	}
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || metric.Histogram.GetSampleCount() == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestTimeFuncNilObserver(t *testing.T) {
	ran := false
	TimeFunc(nil, func() { ran = true })
	if !ran {
		t.Error("TimeFunc did not execute provided function")
	}
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation(empty) = %q", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
