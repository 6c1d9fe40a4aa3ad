package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/unitgrid/internal/config"
)

func TestRunSingleItemIsInline(t *testing.T) {
	e := New(4)
	var calls atomic.Int32

	err := e.Run(context.Background(), 1, func(ctx context.Context, i int) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, e.PoolsSpawned(), "no pool for a single item")
}

func TestRunEmpty(t *testing.T) {
	e := New(2)
	require.NoError(t, e.Run(context.Background(), 0, func(ctx context.Context, i int) error {
		t.Fatal("must not be called")
		return nil
	}))
	assert.Zero(t, e.PoolsSpawned())
}

func TestRunVisitsEachItemOnce(t *testing.T) {
	e := New(2)
	var mu sync.Mutex
	seen := map[int]int{}
	var active, peak atomic.Int32

	err := e.Run(context.Background(), 4, func(ctx context.Context, i int) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)

		mu.Lock()
		seen[i]++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 1, 3: 1}, seen)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(1), e.PoolsSpawned())
}

func TestRunAbortsOnError(t *testing.T) {
	e := New(1)
	boom := errors.New("boom")
	var calls atomic.Int32

	err := e.Run(context.Background(), 5, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 1 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load(), "a single worker stops dispatching after the failure")
}

func TestRunRecoversPanics(t *testing.T) {
	e := New(2)
	err := e.Run(context.Background(), 3, func(ctx context.Context, i int) error {
		if i == 2 {
			panic("kaboom")
		}
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestWorkerBudget(t *testing.T) {
	assert.Equal(t, 3, FromBudget(config.Fixed(3)).Workers())
	assert.Equal(t, 1, New(0).Workers(), "budgets below one run a single worker")
	assert.Positive(t, FromBudget(config.WorkerBudget{Auto: true}).Workers())
}

func TestMapKeepsOrder(t *testing.T) {
	e := FromBudget(config.Fixed(3))
	got, err := Map(context.Background(), e, []int{1, 2, 3, 4, 5}, func(ctx context.Context, n int) (int, error) {
		return n * n, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, got)
}

func TestCollectIsolatesFailures(t *testing.T) {
	e := New(2)
	outcomes := Collect(context.Background(), e, []string{"a", "bad", "c"}, func(ctx context.Context, s string) (string, error) {
		if s == "bad" {
			return "", errors.New("failed " + s)
		}
		return s + "!", nil
	})
	require.Len(t, outcomes, 3)
	assert.Equal(t, "a!", outcomes[0].Value)
	assert.NoError(t, outcomes[0].Err)
	assert.EqualError(t, outcomes[1].Err, "failed bad")
	assert.Equal(t, "c!", outcomes[2].Value)
	assert.Equal(t, 2, outcomes[2].Index)
}
