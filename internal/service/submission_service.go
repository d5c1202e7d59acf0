package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/grading"
	"github.com/arka-labs/sentra-go-api/internal/ledger"
	"github.com/arka-labs/sentra-go-api/internal/models"
	"github.com/arka-labs/sentra-go-api/internal/observability"
	"github.com/arka-labs/sentra-go-api/internal/repository"
	"github.com/arka-labs/sentra-go-api/pkg/ai"
)

// ErrSubmissionInFlight indicates the user already has a grading request
// running for the same problem.
var ErrSubmissionInFlight = errors.New("submission already being graded")

// ErrProblemLocked indicates the problem has not been released yet.
var ErrProblemLocked = errors.New("problem not yet available")

// ErrVerdictNotFound indicates the user has no stored verdict for the problem.
var ErrVerdictNotFound = errors.New("no graded submission for problem")

// SubmissionService grades code submissions and records solved state. Each
// graded verdict is also kept in the verdict store so a reconnecting client
// can recover it through Latest.
type SubmissionService interface {
	Submit(ctx context.Context, userID uint, payload dto.SubmitCodeRequest) (dto.SubmissionResponse, error)
	Latest(ctx context.Context, userID uint, problemID uint) (dto.SubmissionResponse, error)
}

// SubmissionConfig describes grading configuration knobs.
type SubmissionConfig struct {
	PassThreshold  int
	GradingTimeout time.Duration
}

type submissionService struct {
	catalog   repository.ProblemCatalog
	solved    ledger.SolvedLedger
	verdicts  ledger.VerdictStore
	client    ai.Client
	prompts   *grading.PromptBuilder
	validator *validator.Validate
	logger    zerolog.Logger
	config    SubmissionConfig
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSubmissionService constructs the grading pipeline service.
func NewSubmissionService(catalog repository.ProblemCatalog, solved ledger.SolvedLedger, verdicts ledger.VerdictStore, client ai.Client, prompts *grading.PromptBuilder, validate *validator.Validate, logger zerolog.Logger, cfg SubmissionConfig) SubmissionService {
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = ledger.DefaultPassThreshold
	}

	return &submissionService{
		catalog:   catalog,
		solved:    solved,
		verdicts:  verdicts,
		client:    client,
		prompts:   prompts,
		validator: validate,
		logger:    logger.With().Str("component", "submission_service").Logger(),
		config:    cfg,
		now:       time.Now,
		inFlight:  make(map[string]struct{}),
	}
}

func (s *submissionService) Submit(ctx context.Context, userID uint, payload dto.SubmitCodeRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	key := inFlightKey(userID, payload.ProblemID)
	if !s.acquire(key) {
		return dto.SubmissionResponse{}, ErrSubmissionInFlight
	}
	defer s.release(key)

	problem, err := s.catalog.Get(ctx, payload.ProblemID)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return dto.SubmissionResponse{}, ErrProblemNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !problem.Unlocked(s.now()) {
		return dto.SubmissionResponse{}, ErrProblemLocked
	}

	verdict := s.grade(ctx, grading.SubmissionContext{
		Code:    payload.Code,
		Problem: problem,
	})

	passed := verdict.Passing(s.config.PassThreshold)
	observability.ObserveGrading(passed, verdict.Fallback)

	solved := false
	if passed {
		newly, err := s.solved.Apply(ctx, userID, payload.ProblemID, verdict)
		if err != nil {
			// The verdict is still valid. Losing the ledger write is
			// reported, not fatal.
			s.logger.Error().Err(err).Uint("user_id", userID).Uint("problem_id", payload.ProblemID).Msg("failed to record solved state")
		} else {
			solved = true
			if newly {
				s.logger.Info().Uint("user_id", userID).Uint("problem_id", payload.ProblemID).Int("score", verdict.Score).Msg("problem solved")
			}
		}
	}

	gradedAt := s.now()
	record := models.GradedSubmission{
		ProblemID: payload.ProblemID,
		Verdict:   verdict,
		Passed:    passed,
		Solved:    solved,
		GradedAt:  gradedAt,
	}
	if err := s.verdicts.Save(ctx, userID, record); err != nil {
		// Continuity state only. The caller still gets the verdict.
		s.logger.Error().Err(err).Uint("user_id", userID).Uint("problem_id", payload.ProblemID).Msg("failed to store verdict")
	}

	return dto.NewSubmissionResponse(payload.ProblemID, verdict, passed, solved, gradedAt), nil
}

// Latest returns the stored verdict for the user's most recent graded
// attempt at the problem.
func (s *submissionService) Latest(ctx context.Context, userID uint, problemID uint) (dto.SubmissionResponse, error) {
	record, err := s.verdicts.Latest(ctx, userID, problemID)
	if err != nil {
		if errors.Is(err, ledger.ErrNoVerdict) {
			return dto.SubmissionResponse{}, ErrVerdictNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(record.ProblemID, record.Verdict, record.Passed, record.Solved, record.GradedAt), nil
}

// grade runs build, complete and parse. It never returns an error: grader
// failures degrade to a retryable fallback verdict so the caller always sees
// structured feedback.
func (s *submissionService) grade(ctx context.Context, sub grading.SubmissionContext) models.GradeVerdict {
	if s.config.GradingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.GradingTimeout)
		defer cancel()
	}

	prompt := s.prompts.Build(sub)

	raw, err := s.client.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error().Err(err).Uint("problem_id", sub.Problem.ID).Msg("grader completion failed")
		return grading.Fallback(err.Error())
	}

	verdict := grading.Parse(raw)
	if verdict.Fallback {
		s.logger.Warn().Uint("problem_id", sub.Problem.ID).Msg("grader response unparseable, returned fallback verdict")
	}
	return verdict
}

func (s *submissionService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *submissionService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func inFlightKey(userID, problemID uint) string {
	return fmt.Sprintf("%d:%d", userID, problemID)
}
