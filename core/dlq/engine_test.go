package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siherrmann/docflow/helper"
	"github.com/siherrmann/docflow/memory"
	"github.com/siherrmann/docflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, maxAttempts int) (*Engine, *memory.JobStore) {
	t.Helper()
	store := memory.NewJobStore()
	config := model.DLQConfig{
		MaxAttempts:   maxAttempts,
		DedupWindow:   time.Minute,
		StaleLease:    5 * time.Minute,
		SweepInterval: 10 * time.Millisecond,
		PortTimeout:   time.Second,
	}
	return NewEngine(store, config, slog.New(slog.DiscardHandler)), store
}

func enqueueN(t *testing.T, engine *Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := engine.Enqueue(context.Background(), model.JobKindEmbed, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)), "", fmt.Errorf("boom %d", i))
		require.NoError(t, err)
	}
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("Enqueued job is pending with last error", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)

		job, err := engine.Enqueue(ctx, model.JobKindRetrieve, json.RawMessage(`{"query":"q"}`), "", fmt.Errorf("port down"))
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, "port down", job.LastError)
		assert.Equal(t, 0, job.AttemptCount)

		depth, err := engine.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth)
	})

	t.Run("Unknown kind returns invalid input", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)

		_, err := engine.Enqueue(ctx, model.JobKind("frobnicate"), nil, "", fmt.Errorf("x"))
		require.Error(t, err)
		assert.Equal(t, helper.KindInvalidInput, helper.KindOf(err))
	})

	t.Run("Same dedup key within window collapses to one job", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)

		first, err := engine.Enqueue(ctx, model.JobKindEmbed, json.RawMessage(`{}`), "embed:xyz", fmt.Errorf("first failure"))
		require.NoError(t, err)
		second, err := engine.Enqueue(ctx, model.JobKindEmbed, json.RawMessage(`{}`), "embed:xyz", fmt.Errorf("second failure"))
		require.NoError(t, err)

		assert.Equal(t, first.RID, second.RID, "Expected the deduplicated job to be the stored one")
		assert.Equal(t, "second failure", second.LastError, "Expected last error to be refreshed")

		depth, err := engine.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth, "Expected a single job despite two enqueues")
	})

	t.Run("Different dedup keys stay separate", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)

		_, err := engine.Enqueue(ctx, model.JobKindEmbed, json.RawMessage(`{}`), "k1", fmt.Errorf("x"))
		require.NoError(t, err)
		_, err = engine.Enqueue(ctx, model.JobKindEmbed, json.RawMessage(`{}`), "k2", fmt.Errorf("x"))
		require.NoError(t, err)

		depth, err := engine.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, depth)
	})
}

func TestReprocess(t *testing.T) {
	ctx := context.Background()

	t.Run("Reprocess claims up to max and succeeds jobs", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			return nil
		})
		enqueueN(t, engine, 3)

		reprocessed, err := engine.Reprocess(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, reprocessed)

		depth, err := engine.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, depth, "Expected one job left pending")
	})

	t.Run("Reprocess zero is a no-op", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)
		enqueueN(t, engine, 1)

		reprocessed, err := engine.Reprocess(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, reprocessed)
	})

	t.Run("Negative max returns invalid input", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)

		_, err := engine.Reprocess(ctx, -1)
		require.Error(t, err)
		assert.Equal(t, helper.KindInvalidInput, helper.KindOf(err))
	})

	t.Run("Transient failure requeues with incremented attempt count", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			return helper.NewKindError("embed", helper.KindPortUnavailable, fmt.Errorf("still down"))
		})
		enqueueN(t, engine, 1)

		reprocessed, err := engine.Reprocess(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, reprocessed)

		jobs, err := engine.Jobs(ctx, model.JobStatusPending, 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "Expected job back in pending")
		assert.Equal(t, 1, jobs[0].AttemptCount)
		assert.Contains(t, jobs[0].LastError, "still down")
	})

	t.Run("Permanent failure quarantines in one cycle", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			return helper.NewKindError("embed", helper.KindPermanentPort, fmt.Errorf("malformed payload"))
		})
		enqueueN(t, engine, 1)

		reprocessed, err := engine.Reprocess(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, reprocessed)

		quarantined, err := engine.Jobs(ctx, model.JobStatusQuarantined, 10)
		require.NoError(t, err)
		require.Len(t, quarantined, 1, "Expected job quarantined without exhausting retries")

		depth, err := engine.Depth(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, depth, "Expected quarantined jobs to not count towards depth")
	})

	t.Run("Exhausted attempts quarantine the job", func(t *testing.T) {
		engine, _ := newTestEngine(t, 2)
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			return helper.NewKindError("embed", helper.KindPortTimeout, fmt.Errorf("timeout"))
		})
		enqueueN(t, engine, 1)

		for i := 0; i < 2; i++ {
			_, err := engine.Reprocess(ctx, 1)
			require.NoError(t, err)
		}

		quarantined, err := engine.Jobs(ctx, model.JobStatusQuarantined, 10)
		require.NoError(t, err)
		require.Len(t, quarantined, 1, "Expected job quarantined after max attempts")
		assert.Equal(t, 2, quarantined[0].AttemptCount)
	})

	t.Run("Missing executor quarantines the job", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)
		enqueueN(t, engine, 1)

		reprocessed, err := engine.Reprocess(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, reprocessed)

		quarantined, err := engine.Jobs(ctx, model.JobStatusQuarantined, 10)
		require.NoError(t, err)
		require.Len(t, quarantined, 1)
		assert.Contains(t, quarantined[0].LastError, "no executor")
	})

	t.Run("Succeeded jobs are archived, not deleted", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			return nil
		})
		enqueueN(t, engine, 1)

		_, err := engine.Reprocess(ctx, 1)
		require.NoError(t, err)

		succeeded, err := engine.Jobs(ctx, model.JobStatusSucceeded, 10)
		require.NoError(t, err)
		assert.Len(t, succeeded, 1)
	})
}

func TestReprocessConcurrent(t *testing.T) {
	t.Run("Concurrent reprocess never double-claims", func(t *testing.T) {
		engine, _ := newTestEngine(t, 5)

		const total = 50
		var executions atomic.Int64
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			executions.Add(1)
			return nil
		})
		enqueueN(t, engine, total)

		var wg sync.WaitGroup
		var attempted atomic.Int64
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					n, err := engine.Reprocess(context.Background(), 5)
					assert.NoError(t, err)
					attempted.Add(int64(n))
					if n == 0 {
						return
					}
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(total), attempted.Load(), "Expected claims to sum to the pending jobs exactly")
		assert.Equal(t, int64(total), executions.Load(), "Expected every job to run exactly once")

		depth, err := engine.Depth(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, depth)
	})
}

func TestReleaseQuarantined(t *testing.T) {
	ctx := context.Background()

	t.Run("Released job returns to pending with reset attempts", func(t *testing.T) {
		engine, _ := newTestEngine(t, 1)
		engine.RegisterExecutor(model.JobKindEmbed, func(ctx context.Context, payload json.RawMessage) error {
			return helper.NewKindError("embed", helper.KindPortTimeout, fmt.Errorf("timeout"))
		})
		enqueueN(t, engine, 1)

		_, err := engine.Reprocess(ctx, 1)
		require.NoError(t, err)

		quarantined, err := engine.Jobs(ctx, model.JobStatusQuarantined, 10)
		require.NoError(t, err)
		require.Len(t, quarantined, 1)

		err = engine.ReleaseQuarantined(ctx, quarantined[0].RID)
		require.NoError(t, err)

		pending, err := engine.Jobs(ctx, model.JobStatusPending, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 0, pending[0].AttemptCount, "Expected attempt count to reset on release")
	})
}

func TestSweeper(t *testing.T) {
	t.Run("Sweeper releases stale in-flight jobs", func(t *testing.T) {
		store := memory.NewJobStore()
		config := model.DLQConfig{
			MaxAttempts:   5,
			DedupWindow:   time.Minute,
			StaleLease:    time.Millisecond,
			SweepInterval: 5 * time.Millisecond,
			PortTimeout:   time.Second,
		}
		engine := NewEngine(store, config, slog.New(slog.DiscardHandler))

		_, err := engine.Enqueue(context.Background(), model.JobKindEmbed, json.RawMessage(`{}`), "", fmt.Errorf("x"))
		require.NoError(t, err)

		// Claim without finishing, simulating a crashed worker.
		claimed, err := store.ClaimPendingJobs(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		engine.StartSweeper()
		defer engine.StopSweeper()

		assert.Eventually(t, func() bool {
			depth, err := engine.Depth(context.Background())
			return err == nil && depth == 1
		}, time.Second, 5*time.Millisecond, "Expected stale job to return to pending")
	})
}
