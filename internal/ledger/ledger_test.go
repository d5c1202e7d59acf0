package ledger

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arka-labs/sentra-go-api/internal/models"
)

func newTestLedger(t *testing.T) (SolvedLedger, *miniredis.Miniredis) {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return New(client, "test:solved", 70, zerolog.Nop()), mini
}

func TestApplyMarksSolvedOnPassingVerdict(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	added, err := led.Apply(ctx, 1, 42, models.GradeVerdict{IsCorrect: true, Score: 85})
	require.NoError(t, err)
	require.True(t, added)

	solved, err := led.IsSolved(ctx, 1, 42)
	require.NoError(t, err)
	require.True(t, solved)
}

func TestApplyIgnoresFailingVerdicts(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	cases := []models.GradeVerdict{
		{IsCorrect: false, Score: 40},
		{IsCorrect: false, Score: 95}, // high score alone is not enough
		{IsCorrect: true, Score: 69},  // below threshold
	}

	for _, verdict := range cases {
		added, err := led.Apply(ctx, 1, 42, verdict)
		require.NoError(t, err)
		require.False(t, added)
	}

	solved, err := led.IsSolved(ctx, 1, 42)
	require.NoError(t, err)
	require.False(t, solved)
}

func TestApplyIsIdempotent(t *testing.T) {
	led, mini := newTestLedger(t)
	ctx := context.Background()

	verdict := models.GradeVerdict{IsCorrect: true, Score: 100}

	added, err := led.Apply(ctx, 7, 3, verdict)
	require.NoError(t, err)
	require.True(t, added)

	added, err = led.Apply(ctx, 7, 3, verdict)
	require.NoError(t, err)
	require.False(t, added, "second insert is a no-op")

	members, err := mini.SMembers("test:solved:7")
	require.NoError(t, err)
	require.Len(t, members, 1)
}

func TestSolvedListsAllProblems(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	for _, id := range []uint{1, 2, 9} {
		_, err := led.Apply(ctx, 5, id, models.GradeVerdict{IsCorrect: true, Score: 90})
		require.NoError(t, err)
	}

	ids, err := led.Solved(ctx, 5)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint{1, 2, 9}, ids)
}

func TestLedgersAreScopedPerUser(t *testing.T) {
	led, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := led.Apply(ctx, 1, 10, models.GradeVerdict{IsCorrect: true, Score: 90})
	require.NoError(t, err)

	solved, err := led.IsSolved(ctx, 2, 10)
	require.NoError(t, err)
	require.False(t, solved)
}

func TestSolvedSkipsForeignMembers(t *testing.T) {
	led, mini := newTestLedger(t)
	ctx := context.Background()

	_, err := mini.SAdd("test:solved:8", "not-a-number")
	require.NoError(t, err)
	_, err = led.Apply(ctx, 8, 4, models.GradeVerdict{IsCorrect: true, Score: 99})
	require.NoError(t, err)

	ids, err := led.Solved(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, []uint{4}, ids)
}
