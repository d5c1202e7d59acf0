package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// ErrNoVerdict indicates the user has no stored verdict for the problem.
var ErrNoVerdict = errors.New("no graded submission")

// VerdictStore keeps each user's most recent verdict per problem so a client
// that reconnects mid-session can restore its grading state. Entries expire:
// this is continuity state, not an archive.
type VerdictStore interface {
	// Save overwrites the stored verdict for the submission's problem.
	Save(ctx context.Context, userID uint, submission models.GradedSubmission) error

	// Latest returns the most recent verdict the user received for the
	// problem, or ErrNoVerdict.
	Latest(ctx context.Context, userID uint, problemID uint) (models.GradedSubmission, error)
}

type redisVerdictStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewVerdictStore builds a redis-backed verdict store. A zero ttl keeps
// entries indefinitely.
func NewVerdictStore(client *redis.Client, keyPrefix string, ttl time.Duration, logger zerolog.Logger) VerdictStore {
	if keyPrefix == "" {
		keyPrefix = "sentra:verdicts"
	}

	return &redisVerdictStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger.With().Str("component", "verdict_store").Logger(),
	}
}

func (s *redisVerdictStore) Save(ctx context.Context, userID uint, submission models.GradedSubmission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}

	if err := s.client.Set(ctx, s.key(userID, submission.ProblemID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store verdict: %w", err)
	}
	return nil
}

func (s *redisVerdictStore) Latest(ctx context.Context, userID uint, problemID uint) (models.GradedSubmission, error) {
	raw, err := s.client.Get(ctx, s.key(userID, problemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.GradedSubmission{}, ErrNoVerdict
	}
	if err != nil {
		return models.GradedSubmission{}, fmt.Errorf("load verdict: %w", err)
	}

	var submission models.GradedSubmission
	if err := json.Unmarshal(raw, &submission); err != nil {
		return models.GradedSubmission{}, fmt.Errorf("decode verdict: %w", err)
	}
	return submission, nil
}

func (s *redisVerdictStore) key(userID uint, problemID uint) string {
	return fmt.Sprintf("%s:%d:%d", s.keyPrefix, userID, problemID)
}
