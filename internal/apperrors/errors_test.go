package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamWrap("coingecko", UpstreamUnavailable, cause, "request failed")

	assert.True(t, errors.Is(err, cause))

	var ue *UpstreamError
	assert.True(t, errors.As(err, &ue))
	assert.Equal(t, "coingecko", ue.Provider)
	assert.Equal(t, UpstreamUnavailable, ue.Kind)
}

func TestIsRateLimited(t *testing.T) {
	err := Upstream("coingecko", UpstreamRateLimited, "status 429")
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRateLimited(fmt.Errorf("fetch markets: %w", err)))

	assert.False(t, IsRateLimited(Upstream("coincap", UpstreamUnavailable, "status 502")))
	assert.False(t, IsRateLimited(errors.New("plain error")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "rate_limited", UpstreamRateLimited.String())
	assert.Equal(t, "bad_payload", UpstreamBadPayload.String())
	assert.Equal(t, "data_error", UpstreamDataError.String())
	assert.Equal(t, "unavailable", UpstreamUnavailable.String())
}
