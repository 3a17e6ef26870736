package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	retryable := []ErrorCode{
		ErrCodeUploadFailed, ErrCodeTranscriptionFailed, ErrCodeGenerationFailed,
		ErrCodeRateLimited, ErrCodeTimeout, ErrCodeNetworkError,
	}
	nonRetryable := []ErrorCode{
		ErrCodeInvalidInput, ErrCodeUnsupportedFormat, ErrCodeFileTooLarge,
		ErrCodeDurationExceeded, ErrCodeInvalidURL, ErrCodeQuotaExceeded,
		ErrCodePlanLimitReached, ErrCodeFeatureNotEnabled, ErrCodeAPIQuotaExceeded,
		ErrCodeAPIKeyInvalid, ErrCodeAPIUnavailable, ErrCodeLowQualityASR,
		ErrCodeContentPolicy, ErrCodeHighRiskContent, ErrCodeInternal, ErrCodeUnknown,
	}

	for _, code := range retryable {
		assert.True(t, IsRetryableError(code), "code %s should be retryable", code)
	}
	for _, code := range nonRetryable {
		assert.False(t, IsRetryableError(code), "code %s should not be retryable", code)
	}

	// Unknown codes default to non-retryable
	assert.False(t, IsRetryableError("SOMETHING_ELSE"))
	assert.False(t, IsRetryableError(""))
}

func TestClassifyUpstreamError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantCode ErrorCode
		wantOK   bool
	}{
		{
			name:     "http 429",
			msg:      "request failed with status 429 Too Many Requests",
			wantCode: ErrCodeAPIQuotaExceeded,
			wantOK:   true,
		},
		{
			name:     "grpc resource exhausted",
			msg:      "rpc error: code = RESOURCE_EXHAUSTED desc = out of tokens",
			wantCode: ErrCodeAPIQuotaExceeded,
			wantOK:   true,
		},
		{
			name:     "quota wording",
			msg:      "Quota exceeded for requests per minute",
			wantCode: ErrCodeAPIQuotaExceeded,
			wantOK:   true,
		},
		{
			name:     "http 401",
			msg:      "server returned 401",
			wantCode: ErrCodeAPIKeyInvalid,
			wantOK:   true,
		},
		{
			name:     "grpc unauthenticated",
			msg:      "rpc error: code = UNAUTHENTICATED desc = invalid credentials",
			wantCode: ErrCodeAPIKeyInvalid,
			wantOK:   true,
		},
		{
			name:     "http 503",
			msg:      "503 Service Unavailable",
			wantCode: ErrCodeAPIUnavailable,
			wantOK:   true,
		},
		{
			name:     "model overloaded",
			msg:      "the model is overloaded, try again later",
			wantCode: ErrCodeAPIUnavailable,
			wantOK:   true,
		},
		{
			name:     "timeout wording",
			msg:      "context timeout while waiting for response",
			wantCode: ErrCodeTimeout,
			wantOK:   true,
		},
		{
			name:     "grpc deadline",
			msg:      "rpc error: code = DEADLINE_EXCEEDED",
			wantCode: ErrCodeTimeout,
			wantOK:   true,
		},
		{
			name:     "connection refused",
			msg:      "dial tcp 10.0.0.1:443: connection refused",
			wantCode: ErrCodeNetworkError,
			wantOK:   true,
		},
		{
			name:     "network wording",
			msg:      "temporary network failure",
			wantCode: ErrCodeNetworkError,
			wantOK:   true,
		},
		{
			name:   "no match falls through",
			msg:    "something completely different happened",
			wantOK: false,
		},
		{
			name:   "empty message",
			msg:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := ClassifyUpstreamError(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantCode, code)
			}
		})
	}
}
