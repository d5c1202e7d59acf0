package proctor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// scriptedEnv is a deterministic Environment for driving the guard in tests.
type scriptedEnv struct {
	mu         sync.Mutex
	events     chan Event
	directives []Directive
	requests   int
	exits      int
	requestErr error
}

func newScriptedEnv() *scriptedEnv {
	return &scriptedEnv{events: make(chan Event, 16)}
}

func (e *scriptedEnv) RequestFullscreen(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests++
	return e.requestErr
}

func (e *scriptedEnv) ExitFullscreen(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exits++
	return nil
}

func (e *scriptedEnv) Events() <-chan Event {
	return e.events
}

func (e *scriptedEnv) Send(d Directive) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.directives = append(e.directives, d)
	return nil
}

func (e *scriptedEnv) emit(ev Event) {
	e.events <- ev
}

func (e *scriptedEnv) requestCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests
}

func (e *scriptedEnv) directivesOf(kind DirectiveKind) []Directive {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Directive
	for _, d := range e.directives {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

func startGuard(t *testing.T, env *scriptedEnv, cfg Config) *Guard {
	t.Helper()

	guard := NewGuard(env, cfg, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	go func() {
		guard.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return guard
}

func testConfig() Config {
	return Config{
		MaxTier:      3,
		ReentryDelay: 20 * time.Millisecond,
		DedupeWindow: time.Millisecond,
		Enabled:      true,
	}
}

func TestGuardRequestsFullscreenOnStart(t *testing.T) {
	env := newScriptedEnv()
	guard := startGuard(t, env, testConfig())

	require.Eventually(t, func() bool {
		return env.requestCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, models.ComplianceUninitialized, guard.Status().State)

	env.emit(Event{Kind: EventFullscreenEntered, At: time.Now()})
	require.Eventually(t, func() bool {
		return guard.Status().State == models.ComplianceCompliant
	}, time.Second, 5*time.Millisecond)
}

func TestGuardFullscreenExitRecordsViolationAndReenters(t *testing.T) {
	env := newScriptedEnv()
	guard := startGuard(t, env, testConfig())

	env.emit(Event{Kind: EventFullscreenEntered, At: time.Now()})
	env.emit(Event{Kind: EventFullscreenExited, At: time.Now().Add(time.Second)})

	require.Eventually(t, func() bool {
		return guard.Status().State == models.ComplianceWarningShown
	}, time.Second, 5*time.Millisecond)

	record := guard.Violations()
	require.Equal(t, 1, record.Count)
	require.False(t, record.Flagged)

	warnings := env.directivesOf(DirectiveWarning)
	require.Len(t, warnings, 1)
	require.Equal(t, 1, warnings[0].Warning.Count)
	require.Equal(t, 3, warnings[0].Warning.Max)

	// Automatic re-entry fires after the configured delay.
	require.Eventually(t, func() bool {
		return env.requestCount() >= 2
	}, time.Second, 5*time.Millisecond)

	env.emit(Event{Kind: EventFullscreenEntered, At: time.Now().Add(2 * time.Second)})
	require.Eventually(t, func() bool {
		return guard.Status().State == models.ComplianceCompliant
	}, time.Second, 5*time.Millisecond)
}

func TestGuardFlagsSessionAtTierCap(t *testing.T) {
	env := newScriptedEnv()
	guard := startGuard(t, env, testConfig())

	base := time.Now()
	for i := 0; i < 4; i++ {
		env.emit(Event{Kind: EventFullscreenEntered, At: base.Add(time.Duration(2*i) * time.Second)})
		env.emit(Event{Kind: EventFullscreenExited, At: base.Add(time.Duration(2*i+1) * time.Second)})
	}

	require.Eventually(t, func() bool {
		return guard.Violations().Count == 4
	}, time.Second, 5*time.Millisecond)

	record := guard.Violations()
	require.Equal(t, 3, record.Tier)
	require.True(t, record.Flagged, "flag persists past the fourth exit")
	require.Len(t, env.directivesOf(DirectiveFlagged), 1, "flagged directive sent once")
}

func TestGuardVisibilityLossDoesNotForceFullscreenTransition(t *testing.T) {
	env := newScriptedEnv()
	guard := startGuard(t, env, testConfig())

	env.emit(Event{Kind: EventFullscreenEntered, At: time.Now()})
	require.Eventually(t, func() bool {
		return guard.Status().State == models.ComplianceCompliant
	}, time.Second, 5*time.Millisecond)

	env.emit(Event{Kind: EventVisibilityHidden, At: time.Now().Add(time.Second)})

	require.Eventually(t, func() bool {
		return guard.Violations().Count == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, models.ComplianceCompliant, guard.Status().State)
}

func TestGuardSuppressesBlockedInput(t *testing.T) {
	env := newScriptedEnv()
	guard := startGuard(t, env, testConfig())

	env.emit(Event{Kind: EventKeyDown, Key: KeyChord{Key: "I", Ctrl: true, Shift: true}, At: time.Now()})
	require.Eventually(t, func() bool {
		return len(env.directivesOf(DirectiveSuppressInput)) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, guard.Violations().Count)

	// Ordinary typing is left alone.
	env.emit(Event{Kind: EventKeyDown, Key: KeyChord{Key: "a"}, At: time.Now().Add(time.Second)})
	env.emit(Event{Kind: EventContextMenu, At: time.Now().Add(2 * time.Second)})

	require.Eventually(t, func() bool {
		return len(env.directivesOf(DirectiveSuppressInput)) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, guard.Violations().Count)
}

func TestGuardDisabledIsInert(t *testing.T) {
	env := newScriptedEnv()
	cfg := testConfig()
	cfg.Enabled = false
	guard := startGuard(t, env, cfg)

	env.emit(Event{Kind: EventFullscreenExited, At: time.Now()})
	env.emit(Event{Kind: EventVisibilityHidden, At: time.Now().Add(time.Second)})
	env.emit(Event{Kind: EventKeyDown, Key: KeyChord{Key: "F12"}, At: time.Now().Add(2 * time.Second)})

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, guard.Violations().Count)
	require.Empty(t, env.directivesOf(DirectiveWarning))
	require.Empty(t, env.directivesOf(DirectiveSuppressInput))
	require.Equal(t, 0, env.requestCount(), "no fullscreen demand while disabled")
}

func TestGuardDeniedFullscreenShowsManualPrompt(t *testing.T) {
	env := newScriptedEnv()
	guard := startGuard(t, env, testConfig())

	env.emit(Event{Kind: EventFullscreenDenied, At: time.Now()})

	require.Eventually(t, func() bool {
		return guard.Status().ManualPrompt
	}, time.Second, 5*time.Millisecond)
	require.Len(t, env.directivesOf(DirectiveManualFullscreen), 1)

	// The prompt persists until an explicit grant.
	env.emit(Event{Kind: EventFullscreenEntered, At: time.Now().Add(time.Second)})
	require.Eventually(t, func() bool {
		status := guard.Status()
		return status.State == models.ComplianceCompliant && !status.ManualPrompt
	}, time.Second, 5*time.Millisecond)
}

func TestGuardDismissWarningReissuesRequest(t *testing.T) {
	env := newScriptedEnv()
	cfg := testConfig()
	cfg.ReentryDelay = time.Hour // keep the automatic path out of the way
	guard := startGuard(t, env, cfg)

	env.emit(Event{Kind: EventFullscreenEntered, At: time.Now()})
	env.emit(Event{Kind: EventFullscreenExited, At: time.Now().Add(time.Second)})

	require.Eventually(t, func() bool {
		return guard.Status().State == models.ComplianceWarningShown
	}, time.Second, 5*time.Millisecond)

	before := env.requestCount()
	require.NoError(t, guard.DismissWarning(context.Background()))
	require.Equal(t, before+1, env.requestCount())
}
