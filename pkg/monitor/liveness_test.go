package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 10 * time.Millisecond

// sequence answers not-ready until call n, then ready.
func sequence(n int) (CheckFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, ref domain.ProcessRef) (domain.LivenessRecord, error) {
		c := int(calls.Add(1))
		if c < n {
			return domain.LivenessRecord{"ready": false, "n": c}, nil
		}
		return domain.LivenessRecord{"ready": true, "n": c}, nil
	}, &calls
}

type results struct {
	mu   sync.Mutex
	seen []domain.LivenessRecord
}

func (r *results) add(rec domain.LivenessRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rec)
}

func (r *results) all() []domain.LivenessRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LivenessRecord(nil), r.seen...)
}

func TestMonitor_FiresOnceWithNthResult(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		check, calls := sequence(n)
		var got results

		h, err := Start(context.Background(), "P1", Options{Interval: tick, Check: check, OnResult: got.add})
		require.NoError(t, err)

		state, err := h.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, Ready, state)

		// Give a stray extra tick the chance to show up.
		time.Sleep(3 * tick)

		seen := got.all()
		require.Len(t, seen, 1, "n=%d", n)
		assert.Equal(t, n, seen[0]["n"])
		assert.Equal(t, n, h.Ticks())
		assert.Equal(t, int32(n), calls.Load())
		assert.Equal(t, seen[0], h.Record())
	}
}

func TestMonitor_FirstCheckAfterOneInterval(t *testing.T) {
	check, calls := sequence(100)
	h, err := Start(context.Background(), "P1", Options{Interval: time.Hour, Check: check})
	require.NoError(t, err)
	defer h.Cancel()

	time.Sleep(2 * tick)
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, Polling, h.State())
}

func TestMonitor_CancelBeforeReady(t *testing.T) {
	check, calls := sequence(1000)
	var got results

	h, err := Start(context.Background(), "P1", Options{Interval: tick, Check: check, OnResult: got.add})
	require.NoError(t, err)

	time.Sleep(3 * tick)
	h.Cancel()
	h.Cancel()

	state, err := h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, state)

	after := calls.Load()
	time.Sleep(3 * tick)
	assert.Equal(t, after, calls.Load(), "no checks after cancel")
	assert.Empty(t, got.all())
	assert.Nil(t, h.Record())
}

func TestMonitor_CancelAfterReadyIsNoop(t *testing.T) {
	check, _ := sequence(1)
	var got results

	h, err := Start(context.Background(), "P1", Options{Interval: tick, Check: check, OnResult: got.add})
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)

	h.Cancel()
	assert.Equal(t, Ready, h.State())
	assert.Len(t, got.all(), 1)
}

func TestMonitor_ContextCancel(t *testing.T) {
	check, _ := sequence(1000)
	ctx, cancel := context.WithCancel(context.Background())

	h, err := Start(ctx, "P1", Options{Interval: tick, Check: check})
	require.NoError(t, err)
	cancel()

	state, err := h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, state)
}

func TestMonitor_ReadyAfterCancelIsDropped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var got results
	check := func(context.Context, domain.ProcessRef) (domain.LivenessRecord, error) {
		cancel()
		return domain.LivenessRecord{"ready": true}, nil
	}

	h, err := Start(ctx, "P1", Options{Interval: tick, Check: check, OnResult: got.add})
	require.NoError(t, err)

	state, err := h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, Cancelled, state)
	assert.Empty(t, got.all())
	assert.Nil(t, h.Record())
}

func TestMonitor_RetriesFailedChecks(t *testing.T) {
	var calls atomic.Int32
	check := func(ctx context.Context, ref domain.ProcessRef) (domain.LivenessRecord, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection refused")
		}
		return domain.LivenessRecord{"ready": true}, nil
	}

	h, err := Start(context.Background(), "P1", Options{Interval: tick, Check: check})
	require.NoError(t, err)

	state, err := h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, Ready, state)
	assert.Equal(t, 3, h.Ticks())
}

func TestMonitor_EmptyRecordIsNotReady(t *testing.T) {
	var calls atomic.Int32
	check := func(ctx context.Context, ref domain.ProcessRef) (domain.LivenessRecord, error) {
		if calls.Add(1) < 2 {
			return domain.LivenessRecord{}, nil
		}
		return domain.LivenessRecord{"at-slot": "1"}, nil
	}

	h, err := Start(context.Background(), "P1", Options{Interval: tick, Check: check})
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, h.Ticks())
}

func TestStart_RequiresCheck(t *testing.T) {
	_, err := Start(context.Background(), "P1", Options{})
	assert.ErrorIs(t, err, ErrNoCheck)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "polling", Polling.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", State(9).String())
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
