package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/handler"
	"github.com/arka-labs/sentra-go-api/internal/service"
)

type mockSubmissionService struct {
	response      dto.SubmissionResponse
	err           error
	lastUserID    uint
	lastPayload   dto.SubmitCodeRequest
	lastProblemID uint
}

func (m *mockSubmissionService) Submit(_ context.Context, userID uint, payload dto.SubmitCodeRequest) (dto.SubmissionResponse, error) {
	m.lastUserID = userID
	m.lastPayload = payload
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockSubmissionService) Latest(_ context.Context, userID uint, problemID uint) (dto.SubmissionResponse, error) {
	m.lastUserID = userID
	m.lastProblemID = problemID
	if m.err != nil {
		return dto.SubmissionResponse{}, m.err
	}
	return m.response, nil
}

func newSubmissionApp(svc service.SubmissionService, userID uint) *fiber.App {
	app := fiber.New()
	h := handler.NewSubmissionHandler(svc, validator.New(validator.WithRequiredStructEnabled()), zerolog.New(io.Discard))
	h.Register(app.Group("/api/submissions", withUser(userID)))
	return app
}

func submitRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSubmissionHandler_Success(t *testing.T) {
	svc := &mockSubmissionService{response: dto.SubmissionResponse{
		ProblemID: 1,
		IsCorrect: true,
		Score:     92,
		Passed:    true,
		Solved:    true,
	}}
	app := newSubmissionApp(svc, 7)

	resp, err := app.Test(submitRequest(`{"problem_id":1,"code":"class Main {}"}`))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.True(t, body.Data.Passed)
	require.Equal(t, uint(7), svc.lastUserID)
	require.Equal(t, "class Main {}", svc.lastPayload.Code)
}

func TestSubmissionHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", service.ErrProblemNotFound, fiber.StatusNotFound},
		{"locked", service.ErrProblemLocked, fiber.StatusForbidden},
		{"in flight", service.ErrSubmissionInFlight, fiber.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newSubmissionApp(&mockSubmissionService{err: tc.err}, 7)

			resp, err := app.Test(submitRequest(`{"problem_id":1,"code":"class Main {}"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestSubmissionHandler_Latest(t *testing.T) {
	svc := &mockSubmissionService{response: dto.SubmissionResponse{
		ProblemID: 3,
		IsCorrect: true,
		Score:     88,
		Passed:    true,
	}}
	app := newSubmissionApp(svc, 7)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/latest?problem_id=3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, uint(3), body.Data.ProblemID)
	require.Equal(t, uint(7), svc.lastUserID)
	require.Equal(t, uint(3), svc.lastProblemID)
}

func TestSubmissionHandler_LatestMissingProblemID(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{}, 7)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/latest", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmissionHandler_LatestNotFound(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{err: service.ErrVerdictNotFound}, 7)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/submissions/latest?problem_id=3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSubmissionHandler_Unauthorized(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{}, 0)

	resp, err := app.Test(submitRequest(`{"problem_id":1,"code":"class Main {}"}`))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestSubmissionHandler_InvalidBody(t *testing.T) {
	app := newSubmissionApp(&mockSubmissionService{}, 7)

	resp, err := app.Test(submitRequest(`{not json`))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
