package channels

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserRateLimiter_Burst(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewUserRateLimiter(6, 2)
	r.now = func() time.Time { return now }

	assert.True(t, r.Allow("u1"))
	assert.True(t, r.Allow("u1"))
	assert.False(t, r.Allow("u1"))

	// Other users have their own budget.
	assert.True(t, r.Allow("u2"))

	// 6 per minute refills one token every 10s.
	now = now.Add(10 * time.Second)
	assert.True(t, r.Allow("u1"))
	assert.False(t, r.Allow("u1"))
	assert.Equal(t, 2, r.Tracked())
}

func TestUserRateLimiter_Defaults(t *testing.T) {
	r := NewUserRateLimiter(0, 0)
	for range DefaultBurst {
		assert.True(t, r.Allow("u1"))
	}
	assert.False(t, r.Allow("u1"))
}

func TestUserRateLimiter_Nil(t *testing.T) {
	var r *UserRateLimiter
	assert.True(t, r.Allow("anyone"))
}

func TestUserRateLimiter_Cap(t *testing.T) {
	r := NewUserRateLimiter(6, 1)
	for i := range maxTrackedKeys + 10 {
		r.Allow(fmt.Sprintf("u%d", i))
	}
	assert.LessOrEqual(t, r.Tracked(), maxTrackedKeys)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "héé...", Truncate("hééllo", 3))
}
