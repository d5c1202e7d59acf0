package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/dto"
	"github.com/arka-labs/sentra-go-api/internal/ledger"
	"github.com/arka-labs/sentra-go-api/internal/repository"
)

// ErrProblemNotFound indicates the requested problem does not exist.
var ErrProblemNotFound = errors.New("problem not found")

// ProblemService exposes problem listing and detail with reveal gating.
type ProblemService interface {
	List(ctx context.Context, userID uint) ([]dto.ProblemResponse, error)
	Get(ctx context.Context, userID uint, problemID uint) (dto.ProblemResponse, error)
	Create(ctx context.Context, payload dto.ProblemUpsertRequest) (dto.ProblemResponse, error)
	Update(ctx context.Context, problemID uint, payload dto.ProblemUpsertRequest) (dto.ProblemResponse, error)
	Delete(ctx context.Context, problemID uint) error
}

type problemService struct {
	catalog   repository.ProblemCatalog
	solved    ledger.SolvedLedger
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProblemService constructs a problem service backed by the external
// catalog and the solved-state ledger.
func NewProblemService(catalog repository.ProblemCatalog, solved ledger.SolvedLedger, validate *validator.Validate, logger zerolog.Logger) ProblemService {
	return &problemService{
		catalog:   catalog,
		solved:    solved,
		validator: validate,
		logger:    logger.With().Str("component", "problem_service").Logger(),
		now:       time.Now,
	}
}

func (s *problemService) List(ctx context.Context, userID uint) ([]dto.ProblemResponse, error) {
	problems, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	solved, err := s.solved.Solved(ctx, userID)
	if err != nil {
		// Listing must survive a ledger outage. Solutions stay hidden, the
		// catalog itself is still served.
		s.logger.Warn().Err(err).Uint("user_id", userID).Msg("solved lookup failed, serving list without solved state")
		solved = nil
	}

	solvedSet := make(map[uint]struct{}, len(solved))
	for _, id := range solved {
		solvedSet[id] = struct{}{}
	}

	now := s.now()
	responses := make([]dto.ProblemResponse, 0, len(problems))
	for _, problem := range problems {
		_, isSolved := solvedSet[problem.ID]
		responses = append(responses, dto.NewProblemResponse(problem, now, isSolved))
	}

	return responses, nil
}

func (s *problemService) Get(ctx context.Context, userID uint, problemID uint) (dto.ProblemResponse, error) {
	problem, err := s.catalog.Get(ctx, problemID)
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return dto.ProblemResponse{}, ErrProblemNotFound
		}
		return dto.ProblemResponse{}, err
	}

	isSolved, err := s.solved.IsSolved(ctx, userID, problemID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("user_id", userID).Uint("problem_id", problemID).Msg("solved lookup failed, hiding solution")
		isSolved = false
	}

	return dto.NewProblemResponse(problem, s.now(), isSolved), nil
}

func (s *problemService) Create(ctx context.Context, payload dto.ProblemUpsertRequest) (dto.ProblemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}

	created, err := s.catalog.Create(ctx, payload.Problem(0))
	if err != nil {
		return dto.ProblemResponse{}, err
	}

	return dto.NewProblemResponse(created, s.now(), false), nil
}

func (s *problemService) Update(ctx context.Context, problemID uint, payload dto.ProblemUpsertRequest) (dto.ProblemResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ProblemResponse{}, err
	}

	updated, err := s.catalog.Update(ctx, payload.Problem(problemID))
	if err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return dto.ProblemResponse{}, ErrProblemNotFound
		}
		return dto.ProblemResponse{}, err
	}

	return dto.NewProblemResponse(updated, s.now(), false), nil
}

func (s *problemService) Delete(ctx context.Context, problemID uint) error {
	if err := s.catalog.Delete(ctx, problemID); err != nil {
		if errors.Is(err, repository.ErrProblemNotFound) {
			return ErrProblemNotFound
		}
		return err
	}
	return nil
}
