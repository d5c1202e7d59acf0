package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// DefaultReentryDelay is how long the guard waits after a fullscreen exit
// before automatically re-requesting fullscreen.
const DefaultReentryDelay = 2 * time.Second

// Config tunes a session guard.
type Config struct {
	MaxTier      int
	ReentryDelay time.Duration
	DedupeWindow time.Duration
	Enabled      bool
}

// Status is a point-in-time snapshot of a guard.
type Status struct {
	State        models.ComplianceState `json:"state"`
	Enabled      bool                   `json:"enabled"`
	ManualPrompt bool                   `json:"manual_prompt"`
	Violations   models.ViolationRecord `json:"violations"`
}

// Guard owns the fullscreen compliance state machine for one assessment
// session. It consumes capability events from the environment, drives the
// violation monitor, and pushes warning and suppression directives back.
//
// States: uninitialized -> compliant <-> exited -> warning_shown -> compliant.
// The exited state is transient: the violation is recorded and the warning
// shown in the same step, then an automatic re-entry attempt is scheduled.
type Guard struct {
	env     Environment
	monitor *Monitor
	cfg     Config
	logger  zerolog.Logger

	mu           sync.Mutex
	state        models.ComplianceState
	enabled      bool
	manualPrompt bool
	flaggedSent  bool
	reentry      *time.Timer
	closed       bool
}

// NewGuard builds a guard around the given environment. Run must be called
// to start consuming events.
func NewGuard(env Environment, cfg Config, logger zerolog.Logger) *Guard {
	if cfg.ReentryDelay <= 0 {
		cfg.ReentryDelay = DefaultReentryDelay
	}

	return &Guard{
		env:     env,
		monitor: NewMonitor(cfg.MaxTier, cfg.DedupeWindow),
		cfg:     cfg,
		logger:  logger.With().Str("component", "session_guard").Logger(),
		state:   models.ComplianceUninitialized,
		enabled: cfg.Enabled,
	}
}

// Run issues the initial fullscreen request and processes environment events
// until the context is cancelled or the environment goes away.
func (g *Guard) Run(ctx context.Context) {
	if g.Enabled() {
		if err := g.env.RequestFullscreen(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("initial fullscreen request failed")
			g.setManualPrompt()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-g.env.Events():
			if !ok {
				return
			}
			g.handle(ctx, ev)
		}
	}
}

func (g *Guard) handle(ctx context.Context, ev Event) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// All transitions and interceptions are inert while monitoring is off.
	if !g.enabled && ev.Kind != EventFullscreenEntered {
		return
	}

	switch ev.Kind {
	case EventFullscreenEntered:
		g.cancelReentryLocked()
		g.state = models.ComplianceCompliant
		g.manualPrompt = false

	case EventFullscreenExited:
		if !g.monitor.Record(ViolationFullscreenExit, ev.At) {
			return
		}
		// Violation recorded atomically with the transition, then the
		// warning is shown and re-entry scheduled.
		g.state = models.ComplianceExited
		g.sendWarningLocked()
		g.state = models.ComplianceWarningShown
		g.scheduleReentryLocked(ctx)

	case EventFullscreenDenied:
		g.manualPrompt = true
		g.send(Directive{Kind: DirectiveManualFullscreen})

	case EventVisibilityHidden:
		// Backgrounding counts as a violation but does not force a
		// fullscreen transition; the app may still hold fullscreen.
		if g.monitor.Record(ViolationVisibilityLoss, ev.At) {
			g.sendWarningLocked()
		}

	case EventKeyDown:
		if !Blocked(ev.Key) {
			return
		}
		key := ev.Key
		g.send(Directive{Kind: DirectiveSuppressInput, Key: &key})
		g.monitor.Record(ViolationBlockedInput, ev.At)

	case EventContextMenu:
		g.send(Directive{Kind: DirectiveSuppressInput})
		g.monitor.Record(ViolationBlockedInput, ev.At)
	}
}

// DismissWarning acknowledges the warning overlay and re-issues the
// fullscreen request synchronously.
func (g *Guard) DismissWarning(ctx context.Context) error {
	g.mu.Lock()
	if g.state != models.ComplianceWarningShown {
		g.mu.Unlock()
		return nil
	}
	g.cancelReentryLocked()
	g.mu.Unlock()

	return g.env.RequestFullscreen(ctx)
}

// SetEnabled toggles monitoring for the session. Enabling re-issues the
// fullscreen request; disabling leaves the environment unobstructed.
func (g *Guard) SetEnabled(ctx context.Context, enabled bool) {
	g.mu.Lock()
	was := g.enabled
	g.enabled = enabled
	g.mu.Unlock()

	if enabled && !was {
		if err := g.env.RequestFullscreen(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("fullscreen request failed on enable")
			g.setManualPrompt()
		}
	}
}

// Enabled reports whether monitoring is active.
func (g *Guard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// Status snapshots the guard and its violation record.
func (g *Guard) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Status{
		State:        g.state,
		Enabled:      g.enabled,
		ManualPrompt: g.manualPrompt,
		Violations:   g.monitor.Snapshot(),
	}
}

// Violations exposes the underlying violation record.
func (g *Guard) Violations() models.ViolationRecord {
	return g.monitor.Snapshot()
}

// Close tears the guard down and releases fullscreen.
func (g *Guard) Close(ctx context.Context) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.cancelReentryLocked()
	g.mu.Unlock()

	_ = g.env.ExitFullscreen(ctx)
}

func (g *Guard) sendWarningLocked() {
	record := g.monitor.Snapshot()
	g.send(Directive{Kind: DirectiveWarning, Warning: &Warning{
		Count:   record.Count,
		Max:     g.monitor.MaxTier(),
		Flagged: record.Flagged,
	}})

	if record.Flagged && !g.flaggedSent {
		g.flaggedSent = true
		g.send(Directive{Kind: DirectiveFlagged})
		g.logger.Warn().Int("violations", record.Count).Msg("session flagged for review")
	}
}

func (g *Guard) scheduleReentryLocked(ctx context.Context) {
	g.cancelReentryLocked()
	g.reentry = time.AfterFunc(g.cfg.ReentryDelay, func() {
		if !g.Enabled() {
			return
		}
		if err := g.env.RequestFullscreen(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("automatic fullscreen re-entry failed")
		}
	})
}

func (g *Guard) cancelReentryLocked() {
	if g.reentry != nil {
		g.reentry.Stop()
		g.reentry = nil
	}
}

func (g *Guard) setManualPrompt() {
	g.mu.Lock()
	g.manualPrompt = true
	g.mu.Unlock()
	g.send(Directive{Kind: DirectiveManualFullscreen})
}

func (g *Guard) send(directive Directive) {
	if err := g.env.Send(directive); err != nil {
		g.logger.Debug().Err(err).Str("directive", string(directive.Kind)).Msg("directive delivery failed")
	}
}
