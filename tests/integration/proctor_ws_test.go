package integration_test

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/handler"
	"github.com/arka-labs/sentra-go-api/internal/middleware"
	"github.com/arka-labs/sentra-go-api/internal/proctor"
	"github.com/arka-labs/sentra-go-api/internal/service"
)

type directiveFrame struct {
	Kind    string `json:"kind"`
	Warning *struct {
		Count   int  `json:"count"`
		Max     int  `json:"max"`
		Flagged bool `json:"flagged"`
	} `json:"warning"`
}

func TestProctorWebsocketSessionLifecycle(t *testing.T) {
	svc := service.NewProctorService(proctor.Config{
		MaxTier:      3,
		ReentryDelay: 50 * time.Millisecond,
		DedupeWindow: time.Millisecond,
		Enabled:      true,
	}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	app := fiber.New()
	app.Use(middleware.CorrelationID())

	proctorHandler := handler.NewProctorHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	group := app.Group("/api/v2/proctor", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		return c.Next()
	})
	proctorHandler.Register(group)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v2/proctor/ws?problem_id=5"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	// First frame announces the session.
	var session dto.SessionResponse
	require.NoError(t, readFrame(t, conn, &session))
	require.NotEmpty(t, session.SessionID)
	require.Equal(t, uint(42), session.UserID)
	require.Equal(t, uint(5), session.ProblemID)

	// The guard opens by requesting fullscreen.
	directive := readDirective(t, conn)
	require.Equal(t, "request_fullscreen", directive.Kind)

	sendEvent(t, conn, "fullscreen_entered")
	require.Eventually(t, func() bool {
		return fetchSession(t, baseURL, session.SessionID).State == "compliant"
	}, time.Second, 10*time.Millisecond)

	// A fullscreen exit triggers a warning followed by an automatic
	// re-entry request.
	sendEvent(t, conn, "fullscreen_exited")
	directive = readDirective(t, conn)
	require.Equal(t, "warning", directive.Kind)
	require.NotNil(t, directive.Warning)
	require.Equal(t, 1, directive.Warning.Count)
	require.False(t, directive.Warning.Flagged)

	directive = readDirective(t, conn)
	require.Equal(t, "request_fullscreen", directive.Kind)

	// Two more exits reach the flagging threshold.
	for i := 0; i < 2; i++ {
		sendEvent(t, conn, "fullscreen_entered")
		time.Sleep(5 * time.Millisecond)
		sendEvent(t, conn, "fullscreen_exited")
	}

	require.Eventually(t, func() bool {
		snapshot := fetchSession(t, baseURL, session.SessionID)
		return snapshot.Violations == 3 && snapshot.Flagged
	}, time.Second, 10*time.Millisecond)

	// Teardown releases fullscreen and removes the session.
	req, err := http.NewRequest(http.MethodDelete, baseURL+"/api/v2/proctor/sessions/"+session.SessionID, nil)
	require.NoError(t, err)
	teardownResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, teardownResp.StatusCode)
	_ = teardownResp.Body.Close()

	getResp, err := http.Get(baseURL + "/api/v2/proctor/sessions/" + session.SessionID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
	_ = getResp.Body.Close()
}

func TestProctorSessionStartedOverRESTThenAttached(t *testing.T) {
	svc := service.NewProctorService(proctor.Config{
		MaxTier:      3,
		ReentryDelay: 50 * time.Millisecond,
		DedupeWindow: time.Millisecond,
		Enabled:      true,
	}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	app := fiber.New()
	proctorHandler := handler.NewProctorHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	group := app.Group("/api/v2/proctor", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		return c.Next()
	})
	proctorHandler.Register(group)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	startResp, err := http.Post(baseURL+"/api/v2/proctor/sessions", "application/json", strings.NewReader(`{"problem_id":5,"enabled":true}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, startResp.StatusCode)
	body, err := io.ReadAll(startResp.Body)
	require.NoError(t, err)
	_ = startResp.Body.Close()

	var envelope struct {
		Data dto.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	created := envelope.Data
	require.NotEmpty(t, created.SessionID)
	require.Equal(t, "uninitialized", string(created.State))
	require.True(t, created.Enabled)

	// The pending session is visible over REST before any connection.
	require.Equal(t, uint(5), fetchSession(t, baseURL, created.SessionID).ProblemID)

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v2/proctor/ws?session_id=" + created.SessionID
	conn, handshake, err := (&websocket.Dialer{HandshakeTimeout: 3 * time.Second}).Dial(wsURL, nil)
	require.NoError(t, err)
	if handshake != nil {
		_ = handshake.Body.Close()
	}
	defer conn.Close()

	var session dto.SessionResponse
	require.NoError(t, readFrame(t, conn, &session))
	require.Equal(t, created.SessionID, session.SessionID)
	require.Equal(t, uint(5), session.ProblemID)

	directive := readDirective(t, conn)
	require.Equal(t, "request_fullscreen", directive.Kind)

	sendEvent(t, conn, "fullscreen_entered")
	require.Eventually(t, func() bool {
		return fetchSession(t, baseURL, created.SessionID).State == "compliant"
	}, time.Second, 10*time.Millisecond)

	// A second connection cannot claim the already attached session.
	other, otherResp, err := (&websocket.Dialer{HandshakeTimeout: 3 * time.Second}).Dial(wsURL, nil)
	require.NoError(t, err)
	if otherResp != nil {
		_ = otherResp.Body.Close()
	}
	require.NoError(t, other.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, readErr := other.ReadMessage()
	require.Error(t, readErr)
	_ = other.Close()
}

func TestProctorWebsocketBlockedKeySuppressed(t *testing.T) {
	svc := service.NewProctorService(proctor.Config{
		MaxTier:      3,
		ReentryDelay: time.Second,
		DedupeWindow: time.Millisecond,
		Enabled:      true,
	}, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	app := fiber.New()
	proctorHandler := handler.NewProctorHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	group := app.Group("/api/v2/proctor", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(42))
		return c.Next()
	})
	proctorHandler.Register(group)

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v2/proctor/ws?problem_id=5"
	conn, resp, err := (&websocket.Dialer{HandshakeTimeout: 3 * time.Second}).Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	var session dto.SessionResponse
	require.NoError(t, readFrame(t, conn, &session))
	directive := readDirective(t, conn)
	require.Equal(t, "request_fullscreen", directive.Kind)

	sendEvent(t, conn, "fullscreen_entered")

	payload := map[string]interface{}{
		"kind": "key_down",
		"key":  map[string]interface{}{"key": "i", "ctrl": true, "shift": true},
	}
	require.NoError(t, conn.WriteJSON(payload))

	directive = readDirective(t, conn)
	require.Equal(t, "suppress_input", directive.Kind)

	// An ordinary key passes through without a directive.
	payload["key"] = map[string]interface{}{"key": "a"}
	require.NoError(t, conn.WriteJSON(payload))

	sendEvent(t, conn, "visibility_hidden")
	directive = readDirective(t, conn)
	require.Equal(t, "warning", directive.Kind)
}

func sendEvent(t *testing.T, conn *websocket.Conn, kind string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"kind": kind}))
}

func readFrame(t *testing.T, conn *websocket.Conn, out interface{}) error {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn.ReadJSON(out)
}

func readDirective(t *testing.T, conn *websocket.Conn) directiveFrame {
	t.Helper()
	var frame directiveFrame
	require.NoError(t, readFrame(t, conn, &frame))
	return frame
}

func fetchSession(t *testing.T, baseURL, sessionID string) dto.SessionResponse {
	t.Helper()
	resp, err := http.Get(baseURL + "/api/v2/proctor/sessions/" + sessionID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope struct {
		Data dto.SessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Data
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
