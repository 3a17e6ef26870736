package domain

import "strings"

// ErrorCode identifies why a pipeline step failed. The set is closed: stage
// handlers must report one of these codes, and classification is pure set
// membership.
type ErrorCode string

// Retryable codes - transient failures eligible for bounded retry with backoff.
const (
	ErrCodeUploadFailed        ErrorCode = "UPLOAD_FAILED"
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	ErrCodeGenerationFailed    ErrorCode = "GENERATION_FAILED"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeTimeout             ErrorCode = "TIMEOUT"
	ErrCodeNetworkError        ErrorCode = "NETWORK_ERROR"
)

// Non-retryable codes - validation, entitlement, content, and system failures.
const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUnsupportedFormat  ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeFileTooLarge       ErrorCode = "FILE_TOO_LARGE"
	ErrCodeDurationExceeded   ErrorCode = "DURATION_EXCEEDED"
	ErrCodeInvalidURL         ErrorCode = "INVALID_URL"
	ErrCodeQuotaExceeded      ErrorCode = "QUOTA_EXCEEDED"
	ErrCodePlanLimitReached   ErrorCode = "PLAN_LIMIT_REACHED"
	ErrCodeFeatureNotEnabled  ErrorCode = "FEATURE_NOT_ENABLED"
	ErrCodeAPIQuotaExceeded   ErrorCode = "API_QUOTA_EXCEEDED"
	ErrCodeAPIKeyInvalid      ErrorCode = "API_KEY_INVALID"
	ErrCodeAPIUnavailable     ErrorCode = "API_UNAVAILABLE"
	ErrCodeLowQualityASR      ErrorCode = "LOW_QUALITY_TRANSCRIPT"
	ErrCodeContentPolicy      ErrorCode = "CONTENT_POLICY_VIOLATION"
	ErrCodeHighRiskContent    ErrorCode = "HIGH_RISK_CONTENT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknown            ErrorCode = "UNKNOWN_ERROR"
)

var retryableCodes = map[ErrorCode]struct{}{
	ErrCodeUploadFailed:        {},
	ErrCodeTranscriptionFailed: {},
	ErrCodeGenerationFailed:    {},
	ErrCodeRateLimited:         {},
	ErrCodeTimeout:             {},
	ErrCodeNetworkError:        {},
}

// IsRetryableError reports whether a step that failed with this code may be
// retried automatically. Unknown codes are treated as non-retryable.
func IsRetryableError(code ErrorCode) bool {
	_, ok := retryableCodes[code]
	return ok
}

// classifyRule maps substrings of raw upstream error text to an API-specific
// error code. First match wins.
type classifyRule struct {
	needles []string
	code    ErrorCode
}

var classifyRules = []classifyRule{
	{[]string{"429", "quota", "resource_exhausted"}, ErrCodeAPIQuotaExceeded},
	{[]string{"401", "unauthenticated", "api key"}, ErrCodeAPIKeyInvalid},
	{[]string{"503", "unavailable", "overloaded"}, ErrCodeAPIUnavailable},
	{[]string{"timeout", "timed out", "deadline_exceeded"}, ErrCodeTimeout},
	{[]string{"network", "connection refused", "connection reset"}, ErrCodeNetworkError},
}

// ClassifyUpstreamError maps raw error text from an upstream call to an error
// code by substring matching. It is best-effort and lossy: when nothing
// matches it returns ok=false and the caller should keep the stage's own
// reported code.
func ClassifyUpstreamError(msg string) (ErrorCode, bool) {
	lower := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				return rule.code, true
			}
		}
	}
	return "", false
}
