// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scorecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/guardrag/pkg/types"
)

func TestGetOrComputeIdempotent(t *testing.T) {
	c := New(types.CacheConfig{})
	var calls int32
	compute := func(context.Context) (types.JudgeScore, error) {
		atomic.AddInt32(&calls, 1)
		return types.JudgeScore{Score: 0.8, Label: "safe"}, nil
	}

	first, err := c.GetOrCompute(context.Background(), "k1", compute)
	require.NoError(t, err)
	second, err := c.GetOrCompute(context.Background(), "k1", compute)
	require.NoError(t, err)

	assert.Equal(t, first, second, "cached verdict must be bit-identical")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "compute must run exactly once")
}

func TestConcurrentAtMostOnce(t *testing.T) {
	c := New(types.CacheConfig{})
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(context.Context) (types.JudgeScore, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return types.JudgeScore{Score: 0.5}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]types.JudgeScore, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := c.GetOrCompute(context.Background(), "shared", compute)
			require.NoError(t, err)
			results[i] = s
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent callers must share one computation")
	for _, r := range results {
		assert.Equal(t, 0.5, r.Score)
	}
}

func TestFailureNotCached(t *testing.T) {
	c := New(types.CacheConfig{})
	var calls int32
	compute := func(context.Context) (types.JudgeScore, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return types.JudgeScore{}, fmt.Errorf("oracle down")
		}
		return types.JudgeScore{Score: 0.7}, nil
	}

	_, err := c.GetOrCompute(context.Background(), "k", compute)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len(), "failure must not be cached")

	s, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 0.7, s.Score)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLRUEviction(t *testing.T) {
	c := New(types.CacheConfig{MaxEntries: 2})
	mk := func(score float64) ComputeFunc {
		return func(context.Context) (types.JudgeScore, error) {
			return types.JudgeScore{Score: score}, nil
		}
	}

	_, _ = c.GetOrCompute(context.Background(), "a", mk(1))
	_, _ = c.GetOrCompute(context.Background(), "b", mk(2))
	_, _ = c.Get("a") // refresh a; b becomes LRU
	_, _ = c.GetOrCompute(context.Background(), "c", mk(3))

	assert.Equal(t, 2, c.Len())
	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA, "recently used entry evicted")
	assert.False(t, okB, "least recently used entry kept")
	assert.True(t, okC)
}

func TestReportMismatchVersionsKey(t *testing.T) {
	c := New(types.CacheConfig{})
	var calls int32
	compute := func(context.Context) (types.JudgeScore, error) {
		return types.JudgeScore{Score: float64(atomic.AddInt32(&calls, 1))}, nil
	}

	first, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1.0, first.Score)

	c.ReportMismatch("k")

	// The stale entry must never be served again; the key recomputes
	// into a fresh versioned entry.
	fresh, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, 2.0, fresh.Score)

	again, err := c.GetOrCompute(context.Background(), "k", compute)
	require.NoError(t, err)
	assert.Equal(t, fresh, again)
}

func TestStats(t *testing.T) {
	c := New(types.CacheConfig{})
	compute := func(context.Context) (types.JudgeScore, error) {
		return types.JudgeScore{Score: 0.1}, nil
	}
	_, _ = c.GetOrCompute(context.Background(), "k", compute)
	_, _ = c.GetOrCompute(context.Background(), "k", compute)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Computes)
	assert.GreaterOrEqual(t, st.Hits, int64(1))
	assert.Equal(t, 1, st.Entries)
}
