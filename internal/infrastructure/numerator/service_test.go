package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "mfgerp/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences row: strict calls pass (key),
// cached calls pass (key, increment).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	keys         []string
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	increment := int64(1)
	if len(args) == 2 {
		if v, ok := args[1].(int64); ok {
			increment = v
		}
	}
	if key, ok := args[0].(string); ok {
		m.keys = append(m.keys, key)
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

var period = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("MV")

	num, err := svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "MV-2026-00001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "MV-2026-00002", num)

	assert.Equal(t, []string{"MV_2026", "MV_2026"}, q.keys)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("MV")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "MV-2026-00001", num)
	assert.Equal(t, int64(10), q.currentValue)

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "MV-2026-00002", num)
	assert.Equal(t, int64(10), q.currentValue, "second number comes from the reserved range")

	for i := 0; i < 8; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "MV-2026-00011", num)
	assert.Equal(t, int64(20), q.currentValue)
}

func TestGetNextNumber_QueryError(t *testing.T) {
	svc := New(errQuerier{})
	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("MV"), nil, period)
	assert.Error(t, err)
}

type errQuerier struct{}

func (errQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return &mockRow{err: assert.AnError}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		cfg  corenumerator.Config
		num  int64
		want string
	}{
		{"default", corenumerator.DefaultConfig("MV"), 7, "MV-2026-00007"},
		{"no year", corenumerator.Config{Prefix: "MV", PadWidth: 3}, 42, "MV-042"},
		{"default pad", corenumerator.Config{Prefix: "MV"}, 1, "MV-00001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Format(period, tt.num))
		})
	}
}

func TestSequenceKey(t *testing.T) {
	assert.Equal(t, "MV_2026", corenumerator.Config{Prefix: "MV", ResetPeriod: "year"}.SequenceKey(period))
	assert.Equal(t, "MV_2026_03", corenumerator.Config{Prefix: "MV", ResetPeriod: "month"}.SequenceKey(period))
	assert.Equal(t, "MV", corenumerator.Config{Prefix: "MV", ResetPeriod: "never"}.SequenceKey(period))
}
