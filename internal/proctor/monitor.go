package proctor

import (
	"sync"
	"time"

	"github.com/arka-labs/sentra-go-api/internal/models"
	"github.com/arka-labs/sentra-go-api/internal/observability"
)

// ViolationKind classifies an integrity violation.
type ViolationKind string

const (
	ViolationFullscreenExit ViolationKind = "fullscreen_exit"
	ViolationVisibilityLoss ViolationKind = "visibility_loss"
	ViolationBlockedInput   ViolationKind = "blocked_input"
)

// DefaultMaxTier is the severity cap at which a session is flagged for review.
const DefaultMaxTier = 3

// DefaultDedupeWindow bounds how close together two reports of the same kind
// may arrive and still be treated as one underlying event. Vendor-prefixed
// listener variants fire for the same fullscreen change within milliseconds.
const DefaultDedupeWindow = 500 * time.Millisecond

// Monitor converts discrete integrity events into a monotone violation
// counter with a capped severity tier. It is owned by exactly one session
// and torn down with it; the count never decreases within a session.
type Monitor struct {
	mu           sync.Mutex
	count        int
	maxTier      int
	flagged      bool
	dedupeWindow time.Duration
	lastCounted  map[ViolationKind]time.Time
}

// NewMonitor builds a monitor with the given tier cap and dedupe window.
// Zero values fall back to the defaults.
func NewMonitor(maxTier int, dedupeWindow time.Duration) *Monitor {
	if maxTier <= 0 {
		maxTier = DefaultMaxTier
	}
	if dedupeWindow <= 0 {
		dedupeWindow = DefaultDedupeWindow
	}

	return &Monitor{
		maxTier:      maxTier,
		dedupeWindow: dedupeWindow,
		lastCounted:  make(map[ViolationKind]time.Time),
	}
}

// Record registers one integrity event and reports whether it was counted.
// Duplicate reports of the same kind inside the dedupe window collapse into
// one, as do a fullscreen exit and a visibility loss caused by the same
// underlying action (minimising the window fires both signals).
func (m *Monitor) Record(kind ViolationKind, at time.Time) bool {
	if at.IsZero() {
		at = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.withinWindow(kind, at) {
		return false
	}
	if paired, ok := pairedKind(kind); ok && m.withinWindow(paired, at) {
		return false
	}

	m.lastCounted[kind] = at
	m.count++
	if m.tierLocked() >= m.maxTier {
		m.flagged = true
	}
	observability.ObserveViolation(string(kind))
	return true
}

// Snapshot returns the current violation record. The tier is capped at the
// configured maximum; the raw count is not.
func (m *Monitor) Snapshot() models.ViolationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	return models.ViolationRecord{
		Count:   m.count,
		Tier:    m.tierLocked(),
		Flagged: m.flagged,
	}
}

// MaxTier returns the configured severity cap.
func (m *Monitor) MaxTier() int {
	return m.maxTier
}

func (m *Monitor) tierLocked() int {
	if m.count > m.maxTier {
		return m.maxTier
	}
	return m.count
}

func (m *Monitor) withinWindow(kind ViolationKind, at time.Time) bool {
	last, ok := m.lastCounted[kind]
	return ok && at.Sub(last) < m.dedupeWindow && !at.Before(last.Add(-m.dedupeWindow))
}

// pairedKind maps a kind to the other signal a single real-world event can
// raise alongside it.
func pairedKind(kind ViolationKind) (ViolationKind, bool) {
	switch kind {
	case ViolationFullscreenExit:
		return ViolationVisibilityLoss, true
	case ViolationVisibilityLoss:
		return ViolationFullscreenExit, true
	default:
		return "", false
	}
}
