package draft

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/quickinvoice/internal/clock"
	"github.com/stretchr/testify/assert"
)

func newTestDebouncer(clk clock.Clock, calls *int) *Debouncer {
	return NewDebouncer(clk, func() time.Duration { return time.Second }, func(context.Context) { *calls++ })
}

func TestDebouncerIsTrailing(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	calls := 0
	d := newTestDebouncer(clk, &calls)

	assert.Equal(t, Idle, d.State())
	d.Trigger()
	assert.Equal(t, PendingSave, d.State())

	clk.Advance(500 * time.Millisecond)
	d.Trigger()
	clk.Advance(900 * time.Millisecond)
	assert.Equal(t, 0, calls)
	assert.Equal(t, PendingSave, d.State())

	clk.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Idle, d.State())
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(time.Hour)
	assert.Equal(t, 1, calls)
}

func TestDebouncerFlushAndCancel(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	calls := 0
	d := newTestDebouncer(clk, &calls)

	assert.False(t, d.Flush(context.Background()))
	d.Trigger()
	assert.True(t, d.Flush(context.Background()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, Idle, d.State())

	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, calls)

	d.Trigger()
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())
	clk.Advance(2 * time.Second)
	assert.Equal(t, 1, calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending_save", PendingSave.String())
}

type ctxKey struct{}

func TestDebouncerFlushPassesCallerContext(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	var got []any
	d := NewDebouncer(clk, func() time.Duration { return time.Second }, func(ctx context.Context) {
		got = append(got, ctx.Value(ctxKey{}))
	})

	d.Trigger()
	assert.True(t, d.Flush(context.WithValue(context.Background(), ctxKey{}, "flush")))

	d.Trigger()
	clk.Advance(time.Second)

	assert.Equal(t, []any{"flush", nil}, got)
}
