package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campus-events/attendance-service/internal/services"
)

// State is the scan station lifecycle state.
type State string

const (
	// StateIdle means the station is not polling frames.
	StateIdle State = "idle"

	// StateScanning means the station polls the frame source.
	StateScanning State = "scanning"

	// StateCoolingDown means a code was just handled; polling is paused so
	// the same badge held in front of the camera is not re-submitted every
	// frame.
	StateCoolingDown State = "cooling_down"
)

// FrameSource yields decoded QR text from whatever produces frames (camera,
// USB wedge scanner, test fixture). ok is false when no code is visible in
// the current frame.
type FrameSource interface {
	DecodeFrame(ctx context.Context) (payload string, ok bool, err error)
}

// Reconciler is the slice of the attendance service the station needs.
type Reconciler interface {
	Reconcile(ctx context.Context, rawPayload string, eventID string) (*services.ScanResult, error)
}

// Config tunes one station.
type Config struct {
	// PollInterval is how often a frame is sampled while scanning.
	PollInterval time.Duration

	// Cooldown is how long polling pauses after a handled code.
	Cooldown time.Duration

	// EventID tags every scan this station produces.
	EventID string
}

const (
	defaultPollInterval = 300 * time.Millisecond
	defaultCooldown     = 2 * time.Second
)

// Station drives one physical scan point: poll a frame, reconcile the decoded
// payload, cool down, repeat. Every ScanResult is delivered to the OnResult
// callback exactly once and then dropped; the station keeps no history.
type Station struct {
	source     FrameSource
	reconciler Reconciler
	logger     *slog.Logger
	config     Config

	// OnResult receives every reconcile outcome. Optional; may be nil.
	OnResult func(*services.ScanResult)

	now func() time.Time

	mu            sync.Mutex
	state         State
	cooldownUntil time.Time
}

func NewStation(source FrameSource, reconciler Reconciler, logger *slog.Logger, config Config) *Station {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaultCooldown
	}
	return &Station{
		source:     source,
		reconciler: reconciler,
		logger:     logger,
		config:     config,
		now:        time.Now,
		state:      StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Station) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start moves the station into scanning. No-op when already running.
func (s *Station) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		s.state = StateScanning
		s.logger.Info("Station started", "event_id", s.config.EventID)
	}
}

// Stop returns the station to idle from any state.
func (s *Station) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		s.state = StateIdle
		s.logger.Info("Station stopped")
	}
}

// Run starts the station and polls until ctx is cancelled. Cancellation is
// observed between frames, never mid-reconcile.
func (s *Station) Run(ctx context.Context) error {
	s.Start()
	defer s.Stop()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Poll(ctx)
		}
	}
}

// Poll advances the state machine by one tick. Exposed so callers with their
// own loop (and tests) can drive the station deterministically.
func (s *Station) Poll(ctx context.Context) {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		return
	case StateCoolingDown:
		if s.now().Before(s.cooldownUntil) {
			s.mu.Unlock()
			return
		}
		s.state = StateScanning
	}
	s.mu.Unlock()

	payload, ok, err := s.source.DecodeFrame(ctx)
	if err != nil {
		s.logger.Warn("Frame decode failed", "error", err)
		return
	}
	if !ok {
		return
	}

	result, err := s.reconciler.Reconcile(ctx, payload, s.config.EventID)
	if err != nil {
		// Transient fault: the badge is likely still in frame, so take the
		// same pause as a handled code instead of retrying every tick.
		s.logger.Warn("Reconcile failed", "error", err)
		s.coolDown()
		return
	}

	s.logger.Info("Scan handled", "outcome", result.Outcome)
	if s.OnResult != nil {
		s.OnResult(result)
	}

	s.coolDown()
}

func (s *Station) coolDown() {
	s.mu.Lock()
	if s.state == StateScanning {
		s.state = StateCoolingDown
		s.cooldownUntil = s.now().Add(s.config.Cooldown)
	}
	s.mu.Unlock()
}
