package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"plain error", errors.New("connection reset"), KindTransport},
		{"protocol", Errorf(KindProtocol, "decode", "bad json"), KindProtocol},
		{"wrapped validation", fmt.Errorf("attempt 2: %w", Errorf(KindValidation, "validate", "missing title")), KindValidation},
		{"remote task", Errorf(KindRemoteTask, "poll", "task cancelled"), KindRemoteTask},
		{"auth by status", Errorf(KindAuthentication, "submit", "status 401"), KindAuthentication},
		{"auth by marker in transport error", Errorf(KindTransport, "stream", "Invalid API key provided"), KindAuthentication},
		{"auth marker plain", errors.New("Authentication failed for token"), KindAuthentication},
		{"gemini marker", errors.New("Error 400, API key not valid. Please pass a valid API key."), KindAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(NewError(KindTransport, "poll", fmt.Errorf("get: %w", context.DeadlineExceeded))))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(errors.New("boom")))
	assert.False(t, IsTimeout(nil))
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuthentication, KindForStatus(http.StatusUnauthorized))
	assert.Equal(t, KindAuthentication, KindForStatus(http.StatusForbidden))
	assert.Equal(t, KindTransport, KindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindTransport, KindForStatus(http.StatusBadGateway))
	assert.Equal(t, KindTransport, KindForStatus(http.StatusRequestTimeout))
	assert.Equal(t, KindProtocol, KindForStatus(http.StatusBadRequest))
	assert.Equal(t, KindProtocol, KindForStatus(http.StatusNotFound))
}

func TestNewAssetID(t *testing.T) {
	a, b := NewAssetID(), NewAssetID()
	assert.NotEqual(t, a, b)
	assert.True(t, a.Generated())
	assert.Regexp(t, `^poetry_image_[0-9a-f]{32}\.jpg$`, string(a))
	assert.False(t, FallbackAssetID.Generated())
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobPending.Terminal())
	assert.True(t, JobSucceeded.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, JobCancelled.Terminal())
}
