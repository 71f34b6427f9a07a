package determinism

import (
	"testing"
	"time"

	"github.com/andrewh/tracecheck/pkg/spans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func seedPtr(s uint64) *uint64 { return &s }

func TestNew_FrozenClockBackfill(t *testing.T) {
	n, err := New(Config{FreezeClock: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.True(t, n.HasFrozenClock())

	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	explicit := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []spans.Record{
		{ID: "a", Name: "untimed"},
		{ID: "b", Name: "start-only", StartTime: explicit},
		{ID: "c", Name: "timed", StartTime: explicit, EndTime: explicit.Add(time.Second)},
	}
	n.Apply(records)

	assert.Equal(t, frozen, records[0].StartTime)
	assert.Equal(t, frozen.Add(time.Millisecond), records[0].EndTime)
	assert.Equal(t, explicit, records[1].StartTime)
	assert.Equal(t, explicit.Add(SyntheticDuration), records[1].EndTime)
	assert.Equal(t, explicit, records[2].StartTime)
	assert.Equal(t, explicit.Add(time.Second), records[2].EndTime)
	assert.Equal(t, "a", records[0].ID, "ids are untouched without a seed")
}

func TestNew_InvalidConfig(t *testing.T) {
	for _, bad := range []string{"yesterday", "2024-13-45", "-5", "0"} {
		_, err := New(Config{FreezeClock: bad})
		require.Error(t, err, bad)
		assert.ErrorIs(t, err, ErrInvalidConfig, bad)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T01:00:00+01:00",
		"2024-01-01T00:00:00",
		"2024-01-01 00:00:00",
		"2024-01-01",
		"1704067200000000000",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCurrentTimestamp_WallClock(t *testing.T) {
	n, err := New(Config{})
	require.NoError(t, err)
	assert.False(t, n.HasFrozenClock())
	assert.False(t, Config{}.IsConfigured())

	fixed := time.Date(2030, 5, 5, 0, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }
	records := []spans.Record{{Name: "a"}, {Name: "b"}}
	n.Apply(records)
	assert.Equal(t, fixed, records[0].StartTime)
	assert.Equal(t, fixed, records[1].StartTime, "one clock read per Apply")
}

func TestApply_SeededIDs(t *testing.T) {
	cfg := Config{Seed: seedPtr(42)}
	require.True(t, cfg.IsConfigured())

	run := func() []spans.Record {
		n, err := New(cfg)
		require.NoError(t, err)
		records := []spans.Record{{Name: "a"}, {Name: "b", ID: "keep", TraceID: "trace"}, {Name: "c"}}
		n.Apply(records)
		return records
	}
	first, second := run(), run()

	assert.Len(t, first[0].ID, 16)
	assert.Len(t, first[0].TraceID, 32)
	assert.Equal(t, "keep", first[1].ID)
	assert.Equal(t, "trace", first[1].TraceID)
	assert.NotEqual(t, first[0].ID, first[2].ID)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[2].TraceID, second[2].TraceID)

	n, err := New(Config{Seed: seedPtr(43)})
	require.NoError(t, err)
	other := []spans.Record{{Name: "a"}}
	n.Apply(other)
	assert.NotEqual(t, first[0].ID, other[0].ID)

	seed, ok := n.Seed()
	assert.True(t, ok)
	assert.Equal(t, uint64(43), seed)
}

func TestApply_IdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frozen := time.Unix(0, rapid.Int64Range(1, 1<<62).Draw(t, "frozen")).UTC()
		n := &Normalizer{frozen: frozen, hasFrozen: true, seed: seedPtr(rapid.Uint64().Draw(t, "seed"))}

		count := rapid.IntRange(0, 10).Draw(t, "count")
		records := make([]spans.Record, count)
		for i := range records {
			if rapid.Bool().Draw(t, "hasStart") {
				records[i].StartTime = time.Unix(0, rapid.Int64Range(1, 1<<62).Draw(t, "start")).UTC()
			}
		}
		n.Apply(records)
		once := make([]spans.Record, len(records))
		copy(once, records)
		n.Apply(records)

		for i := range records {
			if !records[i].HasTiming() || records[i].EndTime.Before(records[i].StartTime) {
				t.Fatalf("record %d not backfilled: %+v", i, records[i])
			}
			if !assert.ObjectsAreEqual(once[i], records[i]) {
				t.Fatalf("second Apply changed record %d", i)
			}
		}
	})
}
