package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/campus-events/attendance-service/internal/services"
)

// fakeFrameSource serves queued frames; an empty string means no code in view.
type fakeFrameSource struct {
	frames []string
	err    error
}

func (f *fakeFrameSource) DecodeFrame(ctx context.Context) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	if len(f.frames) == 0 {
		return "", false, nil
	}
	frame := f.frames[0]
	f.frames = f.frames[1:]
	if frame == "" {
		return "", false, nil
	}
	return frame, true, nil
}

type fakeReconciler struct {
	calls   int
	results []*services.ScanResult
	err     error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, rawPayload string, eventID string) (*services.ScanResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > 0 {
		result := f.results[0]
		f.results = f.results[1:]
		return result, nil
	}
	return &services.ScanResult{Outcome: services.OutcomeAccepted}, nil
}

func newTestStation(source *fakeFrameSource, reconciler *fakeReconciler, now *time.Time) *Station {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	station := NewStation(source, reconciler, logger, Config{
		PollInterval: 300 * time.Millisecond,
		Cooldown:     2 * time.Second,
	})
	station.now = func() time.Time { return *now }
	return station
}

func TestStation_StateMachine(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)

	t.Run("idle stations ignore frames", func(t *testing.T) {
		source := &fakeFrameSource{frames: []string{`{"userId":"U1"}`}}
		reconciler := &fakeReconciler{}
		station := newTestStation(source, reconciler, &now)

		station.Poll(ctx)
		if reconciler.calls != 0 {
			t.Error("Idle station must not reconcile")
		}
		if station.State() != StateIdle {
			t.Errorf("Expected idle, got %s", station.State())
		}
	})

	t.Run("a handled code enters cooldown", func(t *testing.T) {
		source := &fakeFrameSource{frames: []string{"", `{"userId":"U1"}`}}
		reconciler := &fakeReconciler{}
		station := newTestStation(source, reconciler, &now)
		var delivered []*services.ScanResult
		station.OnResult = func(r *services.ScanResult) { delivered = append(delivered, r) }

		station.Start()

		// First frame has no code in view: stay scanning.
		station.Poll(ctx)
		if station.State() != StateScanning {
			t.Fatalf("Expected scanning after empty frame, got %s", station.State())
		}

		// Second frame decodes: reconcile once, deliver once, cool down.
		station.Poll(ctx)
		if reconciler.calls != 1 {
			t.Fatalf("Expected exactly one reconcile, got %d", reconciler.calls)
		}
		if len(delivered) != 1 {
			t.Fatalf("Expected exactly one delivered result, got %d", len(delivered))
		}
		if station.State() != StateCoolingDown {
			t.Fatalf("Expected cooling_down, got %s", station.State())
		}

		// Polls during cooldown do nothing, even with a code in view.
		source.frames = []string{`{"userId":"U2"}`}
		now = now.Add(1 * time.Second)
		station.Poll(ctx)
		if reconciler.calls != 1 {
			t.Errorf("Cooldown poll must not reconcile, calls=%d", reconciler.calls)
		}

		// After the cooldown elapses the station scans again.
		now = now.Add(1500 * time.Millisecond)
		station.Poll(ctx)
		if reconciler.calls != 2 {
			t.Errorf("Expected reconcile after cooldown, calls=%d", reconciler.calls)
		}
		if station.State() != StateCoolingDown {
			t.Errorf("Expected cooling_down after second code, got %s", station.State())
		}
	})

	t.Run("duplicate results also trigger cooldown", func(t *testing.T) {
		first := time.Date(2024, 12, 25, 8, 0, 0, 0, time.UTC)
		source := &fakeFrameSource{frames: []string{`{"userId":"U1"}`}}
		reconciler := &fakeReconciler{results: []*services.ScanResult{
			{Outcome: services.OutcomeDuplicate, FirstScanTime: &first},
		}}
		station := newTestStation(source, reconciler, &now)
		var got *services.ScanResult
		station.OnResult = func(r *services.ScanResult) { got = r }

		station.Start()
		station.Poll(ctx)

		if got == nil || got.Outcome != services.OutcomeDuplicate {
			t.Fatalf("Expected delivered duplicate result, got %+v", got)
		}
		if station.State() != StateCoolingDown {
			t.Errorf("Duplicate should still cool down, got %s", station.State())
		}
	})

	t.Run("transient reconcile errors cool down before retrying", func(t *testing.T) {
		clock := time.Date(2024, 12, 25, 11, 0, 0, 0, time.UTC)
		source := &fakeFrameSource{frames: []string{`{"userId":"U1"}`, `{"userId":"U1"}`, `{"userId":"U1"}`}}
		reconciler := &fakeReconciler{err: services.ErrLedgerTimeout}
		station := newTestStation(source, reconciler, &clock)

		station.Start()
		station.Poll(ctx)

		if station.State() != StateCoolingDown {
			t.Fatalf("Expected cooling_down after transient fault, got %s", station.State())
		}

		// The badge still in frame on the next tick must not be resubmitted.
		clock = clock.Add(300 * time.Millisecond)
		station.Poll(ctx)
		if reconciler.calls != 1 {
			t.Errorf("Poll within cooldown must not reconcile, calls=%d", reconciler.calls)
		}

		// Once the cooldown elapses the station retries normally.
		reconciler.err = nil
		clock = clock.Add(2 * time.Second)
		station.Poll(ctx)
		if reconciler.calls != 2 {
			t.Errorf("Expected retry after cooldown, calls=%d", reconciler.calls)
		}
		if station.State() != StateCoolingDown {
			t.Errorf("Expected cooling_down after retry, got %s", station.State())
		}
	})

	t.Run("decode errors are swallowed", func(t *testing.T) {
		source := &fakeFrameSource{err: errors.New("camera unplugged")}
		reconciler := &fakeReconciler{}
		station := newTestStation(source, reconciler, &now)

		station.Start()
		station.Poll(ctx)

		if reconciler.calls != 0 {
			t.Error("Decode failure must not reconcile")
		}
		if station.State() != StateScanning {
			t.Errorf("Expected scanning, got %s", station.State())
		}
	})

	t.Run("stop returns to idle from any state", func(t *testing.T) {
		source := &fakeFrameSource{frames: []string{`{"userId":"U1"}`}}
		reconciler := &fakeReconciler{}
		station := newTestStation(source, reconciler, &now)

		station.Start()
		station.Poll(ctx)
		if station.State() != StateCoolingDown {
			t.Fatalf("Expected cooling_down, got %s", station.State())
		}

		station.Stop()
		if station.State() != StateIdle {
			t.Errorf("Expected idle after stop, got %s", station.State())
		}
	})
}

func TestStation_RunCancellation(t *testing.T) {
	source := &fakeFrameSource{}
	reconciler := &fakeReconciler{}
	now := time.Now()
	station := newTestStation(source, reconciler, &now)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- station.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if station.State() != StateIdle {
		t.Errorf("Expected idle after Run returns, got %s", station.State())
	}
}
