package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnifiedError_Creation(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() *UnifiedError
		expected *UnifiedError
	}{
		{
			name: "validation error",
			builder: func() *UnifiedError {
				return Validation(CodeContentEmpty.String(), "content cannot be empty").
					WithDetails("block content is blank").
					Build()
			},
			expected: &UnifiedError{
				Type:      ErrorTypeValidation,
				Code:      "CONTENT_EMPTY",
				Message:   "content cannot be empty",
				Details:   "block content is blank",
				Severity:  SeverityLow,
				Retryable: false,
			},
		},
		{
			name: "not found error",
			builder: func() *UnifiedError {
				return NotFound(CodeBlockNotFound.String(), "block not found").
					WithResource("block").
					Build()
			},
			expected: &UnifiedError{
				Type:      ErrorTypeNotFound,
				Code:      "BLOCK_NOT_FOUND",
				Message:   "block not found",
				Resource:  "block",
				Severity:  SeverityLow,
				Retryable: false,
			},
		},
		{
			name: "retryable timeout",
			builder: func() *UnifiedError {
				return Timeout(CodeTimeout.String(), "operation timed out").
					WithRetryAfter(5 * time.Second).
					Build()
			},
			expected: &UnifiedError{
				Type:       ErrorTypeTimeout,
				Code:       "TIMEOUT",
				Message:    "operation timed out",
				Severity:   SeverityMedium,
				Retryable:  true,
				RetryAfter: 5 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder()

			assert.Equal(t, tt.expected.Type, err.Type)
			assert.Equal(t, tt.expected.Code, err.Code)
			assert.Equal(t, tt.expected.Message, err.Message)
			assert.Equal(t, tt.expected.Details, err.Details)
			assert.Equal(t, tt.expected.Resource, err.Resource)
			assert.Equal(t, tt.expected.Severity, err.Severity)
			assert.Equal(t, tt.expected.Retryable, err.Retryable)
			assert.Equal(t, tt.expected.RetryAfter, err.RetryAfter)
			assert.NotEmpty(t, err.File)
		})
	}
}

func TestUnifiedError_IsMatchesTypeAndCode(t *testing.T) {
	sentinel := NotFound(CodeBlockNotFound.String(), "block not found").Build()
	derived := From(sentinel).WithDetails("id=abc").Build()

	assert.True(t, errors.Is(derived, sentinel))
	assert.True(t, errors.Is(fmt.Errorf("load: %w", derived), sentinel))
	assert.False(t, errors.Is(derived, NotFound(CodeProjectNotFound.String(), "x").Build()))
	assert.Empty(t, sentinel.Details, "From must not mutate the source error")
}

func TestWrap(t *testing.T) {
	t.Run("preserves classification", func(t *testing.T) {
		original := Conflict(CodeVersionConflict.String(), "stale version").Build()
		wrapped := Wrap(original, "UpdateBlock", "update failed")

		require.NotNil(t, wrapped)
		assert.Equal(t, ErrorTypeConflict, wrapped.Type)
		assert.Equal(t, "stale version", wrapped.Details)
		assert.Equal(t, "UpdateBlock", wrapped.Operation)
		assert.True(t, IsVersionConflict(wrapped))
		assert.True(t, errors.Is(wrapped, original))
	})

	t.Run("plain errors become internal", func(t *testing.T) {
		wrapped := Wrap(errors.New("boom"), "Render", "render failed")

		assert.Equal(t, ErrorTypeInternal, wrapped.Type)
		assert.Equal(t, "boom", wrapped.Details)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "op", "msg"))
	})
}

func TestGateway(t *testing.T) {
	t.Run("raw failure becomes gateway failure", func(t *testing.T) {
		err := Gateway(errors.New("connection reset"), "InsertBlock", "knowledge_blocks")

		assert.True(t, IsGatewayFailure(err))
		assert.Equal(t, ErrorTypeExternal, err.Type)
		assert.Equal(t, 502, err.HTTPStatus())
		assert.True(t, err.Retryable)
	})

	t.Run("classified errors pass through", func(t *testing.T) {
		notFound := NotFound(CodeBlockNotFound.String(), "block not found").Build()
		err := Gateway(notFound, "UpdateBlock", "knowledge_blocks")

		assert.True(t, IsNotFound(err))
		assert.Equal(t, "UpdateBlock", err.Operation)
		assert.Empty(t, notFound.Operation)
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *UnifiedError
		want int
	}{
		{"not found", NotFound(CodeBlockNotFound.String(), "x").Build(), 404},
		{"validation", Validation(CodeSelfRelationship.String(), "x").Build(), 400},
		{"unsupported format", Validation(CodeUnsupportedFormat.String(), "x").Build(), 400},
		{"version conflict", Conflict(CodeVersionConflict.String(), "x").Build(), 409},
		{"unavailable", Unavailable(CodeGatewayUnavailable.String(), "x").Build(), 503},
		{"unknown code falls back to type", Conflict("SOMETHING", "x").Build(), 409},
		{"internal", Internal(CodeInternalError.String(), "x").Build(), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestErrorCode_Metadata(t *testing.T) {
	assert.True(t, CodeVersionConflict.IsRetryable())
	assert.False(t, CodeBlockNotFound.IsRetryable())
	assert.Equal(t, SeverityHigh, CodeGatewayFailure.Severity())
	assert.Equal(t, SeverityLow, CodeContentEmpty.Severity())
}
