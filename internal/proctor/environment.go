// Package proctor enforces the exclusive full-screen, single-tab assessment
// policy. It owns the session guard state machine and the violation monitor;
// the surrounding environment (a browser page, or anything able to report
// capability changes) is abstracted behind the Environment interface.
package proctor

import (
	"context"
	"time"
)

// EventKind identifies a capability-change signal reported by the environment.
type EventKind string

const (
	EventFullscreenEntered EventKind = "fullscreen_entered"
	EventFullscreenExited  EventKind = "fullscreen_exited"
	EventFullscreenDenied  EventKind = "fullscreen_denied"
	EventVisibilityHidden  EventKind = "visibility_hidden"
	EventVisibilityVisible EventKind = "visibility_visible"
	EventKeyDown           EventKind = "key_down"
	EventContextMenu       EventKind = "context_menu"
)

// Event is a single environment signal. Source names the listener variant
// that observed it; vendor-prefixed listeners may report the same underlying
// event more than once, which the monitor deduplicates.
type Event struct {
	Kind   EventKind `json:"kind"`
	Key    KeyChord  `json:"key,omitempty"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// DirectiveKind identifies an instruction pushed back to the environment.
type DirectiveKind string

const (
	DirectiveRequestFullscreen DirectiveKind = "request_fullscreen"
	DirectiveExitFullscreen    DirectiveKind = "exit_fullscreen"
	DirectiveManualFullscreen  DirectiveKind = "manual_fullscreen"
	DirectiveSuppressInput     DirectiveKind = "suppress_input"
	DirectiveWarning           DirectiveKind = "warning"
	DirectiveFlagged           DirectiveKind = "flagged"
)

// Warning carries the escalation payload shown to the test-taker.
type Warning struct {
	Count   int  `json:"count"`
	Max     int  `json:"max"`
	Flagged bool `json:"flagged"`
}

// Directive is an instruction for the environment to execute.
type Directive struct {
	Kind    DirectiveKind `json:"kind"`
	Key     *KeyChord     `json:"key,omitempty"`
	Warning *Warning      `json:"warning,omitempty"`
}

// Environment is the capability surface the guard depends on. Browser
// deployments implement it over a websocket; tests use a scripted fake.
type Environment interface {
	// RequestFullscreen asks the environment to enter exclusive fullscreen.
	// Grant or denial arrives asynchronously as an Event; an error means the
	// request could not even be delivered.
	RequestFullscreen(ctx context.Context) error

	// ExitFullscreen releases exclusive fullscreen, used on teardown.
	ExitFullscreen(ctx context.Context) error

	// Events yields capability-change signals. The channel closes when the
	// environment goes away.
	Events() <-chan Event

	// Send delivers a directive to the environment.
	Send(Directive) error
}
