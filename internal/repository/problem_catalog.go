// Package repository holds clients for the data sources this service
// consumes. The problem catalog is an external collaborator: CRUD for
// problem records lives there, and this service only speaks its typed
// contract.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// ErrProblemNotFound indicates the catalog has no problem with the given id.
var ErrProblemNotFound = errors.New("problem not found")

// ProblemCatalog is the typed contract of the catalog API.
type ProblemCatalog interface {
	List(ctx context.Context) ([]models.Problem, error)
	Get(ctx context.Context, id uint) (models.Problem, error)
	Create(ctx context.Context, problem models.Problem) (models.Problem, error)
	Update(ctx context.Context, problem models.Problem) (models.Problem, error)
	Delete(ctx context.Context, id uint) error
}

type httpProblemCatalog struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewProblemCatalog builds an HTTP client for the catalog service.
func NewProblemCatalog(baseURL string, timeout time.Duration, logger zerolog.Logger) ProblemCatalog {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &httpProblemCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "problem_catalog").Logger(),
	}
}

func (c *httpProblemCatalog) List(ctx context.Context) ([]models.Problem, error) {
	var problems []models.Problem
	if err := c.do(ctx, http.MethodGet, "/questions", nil, &problems); err != nil {
		return nil, err
	}
	return problems, nil
}

func (c *httpProblemCatalog) Get(ctx context.Context, id uint) (models.Problem, error) {
	var problem models.Problem
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/questions/%d", id), nil, &problem); err != nil {
		return models.Problem{}, err
	}
	return problem, nil
}

func (c *httpProblemCatalog) Create(ctx context.Context, problem models.Problem) (models.Problem, error) {
	var created models.Problem
	if err := c.do(ctx, http.MethodPost, "/questions", problem, &created); err != nil {
		return models.Problem{}, err
	}
	return created, nil
}

func (c *httpProblemCatalog) Update(ctx context.Context, problem models.Problem) (models.Problem, error) {
	var updated models.Problem
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/questions/%d", problem.ID), problem, &updated); err != nil {
		return models.Problem{}, err
	}
	return updated, nil
}

func (c *httpProblemCatalog) Delete(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/questions/%d", id), nil, nil)
}

func (c *httpProblemCatalog) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProblemNotFound
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
