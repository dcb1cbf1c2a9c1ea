package discord

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const discordEpochMs = 1420070400000

func snowflakeAt(t time.Time, seq int64) string {
	return strconv.FormatInt((t.UnixMilli()-discordEpochMs)<<22|seq, 10)
}

func snowflakes(t time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = snowflakeAt(t, int64(i))
	}
	return out
}

func TestPlanDeletes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := now.Add(-time.Hour)
	stale := now.Add(-15 * 24 * time.Hour)

	t.Run("one batch", func(t *testing.T) {
		ids := snowflakes(fresh, 3)
		batches, singles := planDeletes(ids, now)
		assert.Equal(t, [][]string{ids}, batches)
		assert.Empty(t, singles)
	})

	t.Run("lone leftover after full batch", func(t *testing.T) {
		ids := snowflakes(fresh, 101)
		batches, singles := planDeletes(ids, now)
		assert.Equal(t, [][]string{ids[:100]}, batches)
		assert.Equal(t, []string{ids[100]}, singles)
	})

	t.Run("two batches", func(t *testing.T) {
		ids := snowflakes(fresh, 102)
		batches, singles := planDeletes(ids, now)
		assert.Equal(t, [][]string{ids[:100], ids[100:]}, batches)
		assert.Empty(t, singles)
	})

	t.Run("too old for bulk delete", func(t *testing.T) {
		old := snowflakeAt(stale, 0)
		recent := snowflakes(fresh, 2)
		batches, singles := planDeletes(append([]string{old}, recent...), now)
		assert.Equal(t, [][]string{recent}, batches)
		assert.Equal(t, []string{old}, singles)
	})

	t.Run("only one recent", func(t *testing.T) {
		old := snowflakeAt(stale, 0)
		recent := snowflakeAt(fresh, 1)
		batches, singles := planDeletes([]string{old, recent}, now)
		assert.Empty(t, batches)
		assert.Equal(t, []string{old, recent}, singles)
	})

	t.Run("not a snowflake", func(t *testing.T) {
		batches, singles := planDeletes([]string{"abc"}, now)
		assert.Empty(t, batches)
		assert.Equal(t, []string{"abc"}, singles)
	})
}
