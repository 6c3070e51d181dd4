package llmerr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransientClassification(t *testing.T) {
	require.True(t, RateLimited.IsTransient())
	require.True(t, ServerError.IsTransient())
	require.True(t, NetworkError.IsTransient())
	require.False(t, ClientError.IsTransient())
	require.False(t, ParseError.IsTransient())
}

func TestHTTPStatusClassification(t *testing.T) {
	require.Equal(t, RateLimited, ClassifyHTTPStatus(429))
	require.Equal(t, ServerError, ClassifyHTTPStatus(500))
	require.Equal(t, ServerError, ClassifyHTTPStatus(502))
	require.Equal(t, ServerError, ClassifyHTTPStatus(503))
	require.Equal(t, ServerError, ClassifyHTTPStatus(504))
	require.Equal(t, ClientError, ClassifyHTTPStatus(400))
	require.Equal(t, ClientError, ClassifyHTTPStatus(401))
	require.Equal(t, ClientError, ClassifyHTTPStatus(403))
	require.Equal(t, ServerError, ClassifyHTTPStatus(999))
}

func TestExponentialBackoffIncreasesAndCaps(t *testing.T) {
	d0 := SuggestedDelay(RateLimited, 0, nil)
	d1 := SuggestedDelay(RateLimited, 1, nil)
	d2 := SuggestedDelay(RateLimited, 2, nil)

	require.Greater(t, d1, d0)
	require.Greater(t, d2, d1)

	d10 := SuggestedDelay(RateLimited, 10, nil)
	require.LessOrEqual(t, d10, 60*time.Second)
}

func TestRetryAfterRespectedVerbatim(t *testing.T) {
	retryAfter := 30 * time.Second
	require.Equal(t, 30*time.Second, SuggestedDelay(RateLimited, 0, &retryAfter))
	require.Equal(t, 30*time.Second, SuggestedDelay(RateLimited, 5, &retryAfter))
}

func TestSuggestedDelayDeterministic(t *testing.T) {
	a := SuggestedDelay(ServerError, 3, nil)
	b := SuggestedDelay(ServerError, 3, nil)
	require.Equal(t, a, b)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	require.Equal(t, 3, cfg.MaxRetries)
	require.True(t, cfg.ShouldRetry(RateLimited))
	require.False(t, cfg.ShouldRetry(ClientError))
	require.False(t, cfg.ShouldRetry(IncompatibleModel))
}

func TestShouldFallback(t *testing.T) {
	require.False(t, ClientError.ShouldFallback())
	require.False(t, ParseError.ShouldFallback())
	require.True(t, IncompatibleModel.ShouldFallback())
	require.True(t, RateLimited.ShouldFallback())
}
