package server

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRateLimiter(t *testing.T, perSecond, perMinute int, ban time.Duration) (*RateLimiter, *manualClock) {
	t.Helper()
	clock := newManualClock()
	rl := NewRateLimiter(perSecond, perMinute, ban)
	rl.now = clock.Now
	t.Cleanup(rl.Close)
	return rl, clock
}

func TestRateLimiter_PerSecond(t *testing.T) {
	t.Parallel()
	rl, clock := newTestRateLimiter(t, 5, 10, time.Second)
	ip := "127.0.0.1"

	for i := range 5 {
		assert.True(t, rl.Allow(ip), "request %d", i)
	}
	assert.False(t, rl.Allow(ip))
	assert.True(t, rl.IsBanned(ip))

	clock.Advance(500 * time.Millisecond)
	assert.False(t, rl.Allow(ip), "still banned")

	clock.Advance(time.Second)
	assert.False(t, rl.IsBanned(ip))
	assert.True(t, rl.Allow(ip))
}

func TestRateLimiter_PerMinute(t *testing.T) {
	t.Parallel()
	rl, clock := newTestRateLimiter(t, 100, 3, time.Minute)
	ip := "10.0.0.1"

	for range 3 {
		assert.True(t, rl.Allow(ip))
		clock.Advance(2 * time.Second)
	}
	assert.False(t, rl.Allow(ip))
	assert.True(t, rl.Allow("10.0.0.2"), "other IPs are independent")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	rl, clock := newTestRateLimiter(t, 1, 1, time.Hour)

	rl.Allow("idle")
	rl.Allow("banned")
	rl.Allow("banned")
	assert.True(t, rl.IsBanned("banned"))

	clock.Advance(11 * time.Minute)
	assert.Equal(t, 1, rl.cleanup())
	assert.True(t, rl.IsBanned("banned"))
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list allows all", nil, "http://evil.com", true},
		{"wildcard", []string{"*"}, "http://evil.com", true},
		{"listed", []string{"http://game.example.com"}, "http://game.example.com", true},
		{"case insensitive", []string{"http://Game.Example.com"}, "HTTP://GAME.EXAMPLE.COM", true},
		{"not listed", []string{"http://game.example.com"}, "http://evil.com", false},
		{"no origin header", []string{"http://game.example.com"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			oc := NewOriginChecker(tt.allowed)
			r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, oc.Check(r))
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"remote addr", nil, "192.168.1.10:5555", "192.168.1.10"},
		{"remote addr without port", nil, "192.168.1.10", "192.168.1.10"},
		{"x-forwarded-for", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 10.0.0.1"}, "10.0.0.2:1", "1.2.3.4"},
		{"x-real-ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.2:1", "5.6.7.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _ := http.NewRequest(http.MethodGet, "/ws", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}

func TestMessageRateLimiter(t *testing.T) {
	t.Parallel()
	clock := newManualClock()
	ml := NewMessageRateLimiter(4)
	ml.now = clock.Now
	id := "conn-1"

	type result struct{ allowed, warning bool }
	var got []result
	for range 6 {
		a, w := ml.AllowMessage(id)
		got = append(got, result{a, w})
	}
	assert.Equal(t, []result{
		{true, false},
		{true, false},
		{true, true},
		{true, true},
		{false, true},
		{false, true},
	}, got)
	assert.Equal(t, 2, ml.Warnings(id))

	clock.Advance(time.Second)
	allowed, warning := ml.AllowMessage(id)
	assert.True(t, allowed)
	assert.False(t, warning)

	ml.Remove(id)
	assert.Zero(t, ml.Warnings(id))
}
