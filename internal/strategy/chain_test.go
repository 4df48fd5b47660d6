package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	var calls []string
	chain := []Strategy[string, int]{
		{Name: "fails", Run: func(_ context.Context, _ string) (int, bool, error) {
			calls = append(calls, "fails")
			return 0, false, errors.New("blocked")
		}},
		{Name: "empty", Run: func(_ context.Context, _ string) (int, bool, error) {
			calls = append(calls, "empty")
			return 0, false, nil
		}},
		{Name: "hit", Run: func(_ context.Context, in string) (int, bool, error) {
			calls = append(calls, "hit")
			return len(in), true, nil
		}},
		{Name: "never", Run: func(_ context.Context, _ string) (int, bool, error) {
			calls = append(calls, "never")
			return 99, true, nil
		}},
	}

	res := Run(context.Background(), "abcd", chain)

	require.True(t, res.Found)
	require.Equal(t, 4, res.Value)
	require.Equal(t, "hit", res.Strategy)
	require.Equal(t, []string{"fails", "empty", "hit"}, calls)
	require.Len(t, res.Attempts, 2)
	require.EqualError(t, res.Attempts[0].Err, "blocked")
	require.NoError(t, res.Attempts[1].Err)
}

func TestRunExhaustedChain(t *testing.T) {
	t.Parallel()

	chain := []Strategy[int, string]{
		{Name: "a", Run: func(context.Context, int) (string, bool, error) { return "", false, nil }},
		{Name: "b", Run: func(context.Context, int) (string, bool, error) { return "", false, errors.New("x") }},
	}

	res := Run(context.Background(), 1, chain)

	require.False(t, res.Found)
	require.Empty(t, res.Strategy)
	require.Len(t, res.Attempts, 2)
}

func TestRunHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	chain := []Strategy[int, int]{
		{Name: "a", Run: func(context.Context, int) (int, bool, error) {
			called = true
			return 1, true, nil
		}},
	}

	res := Run(ctx, 0, chain)

	require.False(t, res.Found)
	require.False(t, called)
	require.ErrorIs(t, res.Attempts[0].Err, context.Canceled)
}
