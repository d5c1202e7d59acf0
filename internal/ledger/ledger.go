// Package ledger persists the per-user set of solved problems. The set is
// append-only: a problem once certified solved is never unmarked here, and
// inserting an already-present id is a no-op.
package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

// DefaultPassThreshold is the minimum score a correct verdict needs before
// the problem is marked solved.
const DefaultPassThreshold = 70

// SolvedLedger records which problems a user has been certified to have
// solved, gating reveal of reference solutions.
type SolvedLedger interface {
	// Apply marks the problem solved when the verdict passes the threshold.
	// It reports whether the problem is newly marked.
	Apply(ctx context.Context, userID uint, problemID uint, verdict models.GradeVerdict) (bool, error)

	// IsSolved reports whether the user has solved the problem.
	IsSolved(ctx context.Context, userID uint, problemID uint) (bool, error)

	// Solved returns all problem ids the user has solved.
	Solved(ctx context.Context, userID uint) ([]uint, error)
}

type redisLedger struct {
	client    *redis.Client
	keyPrefix string
	threshold int
	logger    zerolog.Logger
}

// New builds a redis-backed ledger. A non-positive threshold falls back to
// DefaultPassThreshold.
func New(client *redis.Client, keyPrefix string, threshold int, logger zerolog.Logger) SolvedLedger {
	if keyPrefix == "" {
		keyPrefix = "sentra:solved"
	}
	if threshold <= 0 {
		threshold = DefaultPassThreshold
	}

	return &redisLedger{
		client:    client,
		keyPrefix: keyPrefix,
		threshold: threshold,
		logger:    logger.With().Str("component", "solved_ledger").Logger(),
	}
}

func (l *redisLedger) Apply(ctx context.Context, userID uint, problemID uint, verdict models.GradeVerdict) (bool, error) {
	if !verdict.Passing(l.threshold) {
		return false, nil
	}

	added, err := l.client.SAdd(ctx, l.key(userID), member(problemID)).Result()
	if err != nil {
		return false, fmt.Errorf("mark solved: %w", err)
	}

	if added > 0 {
		l.logger.Info().Uint("user_id", userID).Uint("problem_id", problemID).Int("score", verdict.Score).Msg("problem marked solved")
	}
	return added > 0, nil
}

func (l *redisLedger) IsSolved(ctx context.Context, userID uint, problemID uint) (bool, error) {
	solved, err := l.client.SIsMember(ctx, l.key(userID), member(problemID)).Result()
	if err != nil {
		return false, fmt.Errorf("check solved: %w", err)
	}
	return solved, nil
}

func (l *redisLedger) Solved(ctx context.Context, userID uint) ([]uint, error) {
	members, err := l.client.SMembers(ctx, l.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list solved: %w", err)
	}

	ids := make([]uint, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			// A foreign member in the set is skipped rather than failing the
			// whole read; the ledger itself only ever writes numeric ids.
			l.logger.Warn().Str("member", m).Msg("skipping non-numeric ledger member")
			continue
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func (l *redisLedger) key(userID uint) string {
	return fmt.Sprintf("%s:%d", l.keyPrefix, userID)
}

func member(problemID uint) string {
	return strconv.FormatUint(uint64(problemID), 10)
}
