package boundary

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_AllowsWithinBurst(t *testing.T) {
	l := NewLocalLimiter(1, 3)

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(t.Context(), "caller-a")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d within burst should be allowed", i)
	}
}

func TestLocalLimiter_DeniesOnceBurstExhausted(t *testing.T) {
	l := NewLocalLimiter(0.001, 1)

	allowed, err := l.Allow(t.Context(), "caller-b")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = l.Allow(t.Context(), "caller-b")
	require.NoError(t, err)
	assert.False(t, allowed, "second request should be denied once the single token is spent")
}

func TestLocalLimiter_RefillsOverTime(t *testing.T) {
	l := NewLocalLimiter(1000, 1)

	allowed, _ := l.Allow(t.Context(), "caller-c")
	assert.True(t, allowed)

	allowed, _ = l.Allow(t.Context(), "caller-c")
	assert.False(t, allowed)

	time.Sleep(10 * time.Millisecond)

	allowed, err := l.Allow(t.Context(), "caller-c")
	require.NoError(t, err)
	assert.True(t, allowed, "token should have refilled after waiting")
}

func TestLocalLimiter_TracksCallersIndependently(t *testing.T) {
	l := NewLocalLimiter(0.001, 1)

	allowed, _ := l.Allow(t.Context(), "caller-d")
	assert.True(t, allowed)

	allowed, _ = l.Allow(t.Context(), "caller-e")
	assert.True(t, allowed, "a different caller key must have its own bucket")
}

func TestRateLimitMiddleware_AllowsThenBlocks(t *testing.T) {
	limiter := NewLocalLimiter(0.001, 1)
	called := 0
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/evaluate", nil)
	req.RemoteAddr = "203.0.113.5:54321"

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.Equal(t, "5", w2.Header().Get("Retry-After"))

	assert.Equal(t, 1, called)
}

func TestClientKey_SplitsHostFromPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:8080"
	assert.Equal(t, "192.0.2.1", clientKey(req))
}

func TestClientKey_FallsBackWhenNoPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", clientKey(req))
}
