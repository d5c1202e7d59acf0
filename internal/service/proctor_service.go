package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/models"
	"github.com/arka-labs/sentra-go-api/internal/observability"
	"github.com/arka-labs/sentra-go-api/internal/proctor"
)

// ErrSessionNotFound indicates no live proctored session with the given id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionForbidden indicates the caller does not own the session.
var ErrSessionForbidden = errors.New("forbidden")

// ErrSessionAttached indicates the session already has a live connection.
var ErrSessionAttached = errors.New("session already attached")

const (
	proctorEventBufferSize     = 32
	proctorDirectiveBufferSize = 16
	proctorKeepaliveInterval   = 30 * time.Second
)

// SessionConnectionOptions wraps metadata extracted during the HTTP upgrade.
// SessionID attaches the connection to a session opened over REST; when
// empty, a session is opened implicitly for this connection.
type SessionConnectionOptions struct {
	SessionID     string
	UserID        uint
	ProblemID     uint
	Enabled       bool
	CorrelationID string
	Context       context.Context
}

// ProctorService manages proctored exam sessions. A session is opened either
// over REST (Start) or implicitly by a websocket connection; each websocket
// backs at most one session, carrying capability events in and enforcement
// directives out until either side disconnects.
type ProctorService interface {
	Start(ctx context.Context, userID uint, req dto.StartSessionRequest) (dto.SessionResponse, error)
	ServeConnection(conn *websocket.Conn, opts SessionConnectionOptions)
	Sessions(ctx context.Context, userID uint) []dto.SessionResponse
	Get(ctx context.Context, userID uint, sessionID string) (dto.SessionResponse, error)
	DismissWarning(ctx context.Context, userID uint, sessionID string) (dto.SessionResponse, error)
	SetEnabled(ctx context.Context, userID uint, sessionID string, enabled bool) (dto.SessionResponse, error)
	Teardown(ctx context.Context, userID uint, sessionID string) error
}

// liveSession pairs the immutable session record with its connection state.
// The session field never changes after creation; enabled, guard, env and
// cancel are guarded by the registry mutex.
type liveSession struct {
	session models.ExamSession
	enabled bool
	guard   *proctor.Guard
	env     *wsEnvironment
	cancel  context.CancelFunc
}

type proctorService struct {
	config   proctor.Config
	validate *validator.Validate
	logger   zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// NewProctorService constructs the session registry.
func NewProctorService(cfg proctor.Config, validate *validator.Validate, logger zerolog.Logger) ProctorService {
	return &proctorService{
		config:   cfg,
		validate: validate,
		logger:   logger.With().Str("component", "proctor_service").Logger(),
		sessions: make(map[string]*liveSession),
	}
}

// Start registers a session ahead of its websocket connection. The session
// sits in the uninitialized state until a connection attaches by id.
func (s *proctorService) Start(ctx context.Context, userID uint, req dto.StartSessionRequest) (dto.SessionResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.SessionResponse{}, err
	}

	sessionID := uuid.NewString()
	live := &liveSession{
		session: models.ExamSession{
			ID:        sessionID,
			UserID:    userID,
			ProblemID: req.ProblemID,
			StartedAt: time.Now(),
		},
		enabled: req.Enabled,
	}

	s.mu.Lock()
	s.sessions[sessionID] = live
	s.mu.Unlock()

	s.logger.Info().Str("session_id", sessionID).Uint("user_id", userID).Uint("problem_id", req.ProblemID).Bool("enabled", req.Enabled).Msg("proctor session started")
	return s.response(live), nil
}

func (s *proctorService) ServeConnection(conn *websocket.Conn, opts SessionConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)

	env := newWSEnvironment(conn, s.logger)

	live, err := s.attach(env, cancel, opts)
	if err != nil {
		cancel()
		s.logger.Warn().Err(err).Str("session_id", opts.SessionID).Uint("user_id", opts.UserID).Msg("proctor connection rejected")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		_ = conn.Close()
		return
	}

	sessionID := live.session.ID
	observability.ProctorSessionsActive().Inc()
	s.logger.Info().Str("session_id", sessionID).Uint("user_id", opts.UserID).Uint("problem_id", live.session.ProblemID).Msg("proctor session opened")

	// Tell the client its session id so it can drive the REST surface.
	_ = conn.WriteJSON(s.response(live))

	go env.writer()
	go env.reader()

	// Blocks until the event channel closes or the context is cancelled.
	live.guard.Run(ctx)

	s.remove(sessionID)
	env.close()
	cancel()

	record := live.guard.Violations()
	observability.ProctorSessionsActive().Dec()
	s.logger.Info().Str("session_id", sessionID).Uint("user_id", opts.UserID).Int("violations", record.Count).Bool("flagged", record.Flagged).Msg("proctor session closed")
}

// attach binds the connection to its session, creating one when no id is
// given. The guard is constructed under the registry lock so REST readers
// either see a fully wired session or none.
func (s *proctorService) attach(env *wsEnvironment, cancel context.CancelFunc, opts SessionConnectionOptions) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.config

	if opts.SessionID != "" {
		live, ok := s.sessions[opts.SessionID]
		if !ok {
			return nil, ErrSessionNotFound
		}
		if live.session.UserID != opts.UserID {
			return nil, ErrSessionForbidden
		}
		if live.guard != nil {
			return nil, ErrSessionAttached
		}

		cfg.Enabled = live.enabled
		live.guard = proctor.NewGuard(env, cfg, s.logger.With().Str("session_id", live.session.ID).Logger())
		live.env = env
		live.cancel = cancel
		return live, nil
	}

	sessionID := uuid.NewString()
	cfg.Enabled = opts.Enabled
	live := &liveSession{
		session: models.ExamSession{
			ID:        sessionID,
			UserID:    opts.UserID,
			ProblemID: opts.ProblemID,
			StartedAt: time.Now(),
		},
		enabled: opts.Enabled,
		guard:   proctor.NewGuard(env, cfg, s.logger.With().Str("session_id", sessionID).Logger()),
		env:     env,
		cancel:  cancel,
	}
	s.sessions[sessionID] = live
	return live, nil
}

func (s *proctorService) Sessions(ctx context.Context, userID uint) []dto.SessionResponse {
	s.mu.RLock()
	owned := make([]*liveSession, 0, len(s.sessions))
	for _, live := range s.sessions {
		if live.session.UserID == userID {
			owned = append(owned, live)
		}
	}
	s.mu.RUnlock()

	responses := make([]dto.SessionResponse, 0, len(owned))
	for _, live := range owned {
		responses = append(responses, s.response(live))
	}
	return responses
}

func (s *proctorService) Get(ctx context.Context, userID uint, sessionID string) (dto.SessionResponse, error) {
	live, err := s.lookup(userID, sessionID)
	if err != nil {
		return dto.SessionResponse{}, err
	}
	return s.response(live), nil
}

func (s *proctorService) DismissWarning(ctx context.Context, userID uint, sessionID string) (dto.SessionResponse, error) {
	live, err := s.lookup(userID, sessionID)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	if guard := s.guardFor(live); guard != nil {
		if err := guard.DismissWarning(ctx); err != nil {
			return dto.SessionResponse{}, err
		}
	}
	return s.response(live), nil
}

func (s *proctorService) SetEnabled(ctx context.Context, userID uint, sessionID string, enabled bool) (dto.SessionResponse, error) {
	live, err := s.lookup(userID, sessionID)
	if err != nil {
		return dto.SessionResponse{}, err
	}

	s.mu.Lock()
	live.enabled = enabled
	guard := live.guard
	s.mu.Unlock()

	if guard != nil {
		guard.SetEnabled(ctx, enabled)
	}
	return s.response(live), nil
}

func (s *proctorService) Teardown(ctx context.Context, userID uint, sessionID string) error {
	live, err := s.lookup(userID, sessionID)
	if err != nil {
		return err
	}

	s.mu.RLock()
	guard, env, cancel := live.guard, live.env, live.cancel
	s.mu.RUnlock()

	if guard != nil {
		guard.Close(ctx)
	}
	if cancel != nil {
		cancel()
	}
	if env != nil {
		env.close()
	}
	s.remove(sessionID)
	return nil
}

func (s *proctorService) lookup(userID uint, sessionID string) (*liveSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if live.session.UserID != userID {
		return nil, ErrSessionForbidden
	}
	return live, nil
}

func (s *proctorService) guardFor(live *liveSession) *proctor.Guard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return live.guard
}

func (s *proctorService) remove(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *proctorService) response(live *liveSession) dto.SessionResponse {
	s.mu.RLock()
	guard := live.guard
	enabled := live.enabled
	s.mu.RUnlock()

	if guard == nil {
		return dto.NewSessionResponse(live.session, models.ComplianceUninitialized, enabled, false, models.ViolationRecord{})
	}

	status := guard.Status()
	return dto.NewSessionResponse(live.session, status.State, status.Enabled, status.ManualPrompt, status.Violations)
}

// wsEnvironment adapts a websocket connection to the guard's capability
// surface. The client reports events as JSON frames and executes directives
// pushed the other way.
type wsEnvironment struct {
	conn   *websocket.Conn
	events chan proctor.Event
	send   chan proctor.Directive
	closed chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newWSEnvironment(conn *websocket.Conn, logger zerolog.Logger) *wsEnvironment {
	return &wsEnvironment{
		conn:   conn,
		events: make(chan proctor.Event, proctorEventBufferSize),
		send:   make(chan proctor.Directive, proctorDirectiveBufferSize),
		closed: make(chan struct{}),
		logger: logger.With().Str("component", "proctor_ws").Logger(),
	}
}

func (e *wsEnvironment) RequestFullscreen(ctx context.Context) error {
	return e.Send(proctor.Directive{Kind: proctor.DirectiveRequestFullscreen})
}

func (e *wsEnvironment) ExitFullscreen(ctx context.Context) error {
	return e.Send(proctor.Directive{Kind: proctor.DirectiveExitFullscreen})
}

func (e *wsEnvironment) Events() <-chan proctor.Event {
	return e.events
}

func (e *wsEnvironment) Send(directive proctor.Directive) error {
	select {
	case <-e.closed:
		return errors.New("environment closed")
	case e.send <- directive:
		return nil
	default:
		return errors.New("directive queue full")
	}
}

// reader is the sole producer on the events channel and closes it on exit.
func (e *wsEnvironment) reader() {
	defer close(e.events)
	defer e.close()

	for {
		var event proctor.Event
		if err := e.conn.ReadJSON(&event); err != nil {
			e.logger.Debug().Err(err).Msg("proctor read loop ended")
			return
		}
		if event.At.IsZero() {
			event.At = time.Now()
		}

		select {
		case e.events <- event:
		default:
			e.logger.Warn().Str("kind", string(event.Kind)).Msg("dropping event, guard backlog full")
		}
	}
}

func (e *wsEnvironment) writer() {
	for {
		select {
		case directive := <-e.send:
			if err := e.conn.WriteJSON(directive); err != nil {
				e.logger.Debug().Err(err).Msg("proctor write loop terminated")
				e.close()
				return
			}
		case <-time.After(proctorKeepaliveInterval):
			if err := e.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				e.logger.Debug().Err(err).Msg("proctor ping failed")
				e.close()
				return
			}
		case <-e.closed:
			return
		}
	}
}

func (e *wsEnvironment) close() {
	e.once.Do(func() {
		close(e.closed)
		_ = e.conn.Close()
	})
}
