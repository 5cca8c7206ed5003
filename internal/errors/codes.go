package errors

// ErrorCode represents a unique error code for specific error scenarios
type ErrorCode string

const (
	// Block errors
	CodeBlockNotFound       ErrorCode = "BLOCK_NOT_FOUND"
	CodeInvalidBlockType    ErrorCode = "INVALID_BLOCK_TYPE"
	CodeInvalidBlockID      ErrorCode = "INVALID_BLOCK_ID"
	CodeVersionNotFound     ErrorCode = "VERSION_NOT_FOUND"
	CodeVersionConflict     ErrorCode = "VERSION_CONFLICT"
	CodeInvalidPosition     ErrorCode = "INVALID_POSITION"
	CodeInvalidConfidence   ErrorCode = "INVALID_CONFIDENCE"
	CodeBlockOutsideProject ErrorCode = "BLOCK_OUTSIDE_PROJECT"

	// Relationship errors
	CodeRelationshipNotFound    ErrorCode = "RELATIONSHIP_NOT_FOUND"
	CodeInvalidRelationshipType ErrorCode = "INVALID_RELATIONSHIP_TYPE"
	CodeSelfRelationship        ErrorCode = "SELF_RELATIONSHIP"
	CodeInvalidRelationshipID   ErrorCode = "INVALID_RELATIONSHIP_ID"

	// Project errors
	CodeProjectNotFound  ErrorCode = "PROJECT_NOT_FOUND"
	CodeProjectNotOpen   ErrorCode = "PROJECT_NOT_OPEN"
	CodeInvalidProjectID ErrorCode = "INVALID_PROJECT_ID"
	CodeInvalidWorkMode  ErrorCode = "INVALID_WORK_MODE"
	CodeProjectForbidden ErrorCode = "PROJECT_FORBIDDEN"

	// Content errors
	CodeContentEmpty   ErrorCode = "CONTENT_EMPTY"
	CodeContentTooLong ErrorCode = "CONTENT_TOO_LONG"
	CodeTitleEmpty     ErrorCode = "TITLE_EMPTY"
	CodeTitleTooLong   ErrorCode = "TITLE_TOO_LONG"
	CodeTagTooLong     ErrorCode = "TAG_TOO_LONG"

	// User errors
	CodeUserUnauthorized ErrorCode = "USER_UNAUTHORIZED"
	CodeUserIDEmpty      ErrorCode = "USER_ID_EMPTY"

	// Export and persona errors
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	CodeUnknownPersona    ErrorCode = "UNKNOWN_PERSONA"
	CodePersonaFailure    ErrorCode = "PERSONA_FAILURE"

	// Validation errors
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"

	// Gateway errors
	CodeGatewayFailure     ErrorCode = "GATEWAY_FAILURE"
	CodeGatewayUnavailable ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"
	CodeDuplicateRecord    ErrorCode = "DUPLICATE_RECORD"

	// Infrastructure errors
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT"
)

// HTTPStatusCode returns the appropriate HTTP status code for an error code
func (c ErrorCode) HTTPStatusCode() int {
	switch c {
	// 400 Bad Request
	case CodeInvalidBlockType, CodeInvalidBlockID, CodeInvalidPosition, CodeInvalidConfidence,
		CodeInvalidRelationshipType, CodeSelfRelationship, CodeInvalidRelationshipID,
		CodeInvalidProjectID, CodeInvalidWorkMode, CodeContentEmpty, CodeContentTooLong,
		CodeTitleEmpty, CodeTitleTooLong, CodeTagTooLong, CodeUserIDEmpty, CodeUnsupportedFormat,
		CodeUnknownPersona, CodeValidationFailed, CodeInvalidInput, CodeBlockOutsideProject:
		return 400

	// 401 Unauthorized
	case CodeUserUnauthorized:
		return 401

	// 403 Forbidden
	case CodeProjectForbidden:
		return 403

	// 404 Not Found
	case CodeBlockNotFound, CodeRelationshipNotFound, CodeProjectNotFound, CodeVersionNotFound:
		return 404

	// 409 Conflict
	case CodeVersionConflict, CodeProjectNotOpen, CodeDuplicateRecord:
		return 409

	// 502 Bad Gateway
	case CodeGatewayFailure, CodePersonaFailure:
		return 502

	// 503 Service Unavailable
	case CodeGatewayUnavailable, CodeTimeout:
		return 503

	default:
		return 500
	}
}

// String returns the string representation of the error code
func (c ErrorCode) String() string {
	return string(c)
}

// IsRetryable returns whether an error with this code should be retried
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case CodeTimeout, CodeGatewayFailure, CodeGatewayUnavailable,
		CodeVersionConflict, CodeEventPublishFailed:
		return true
	default:
		return false
	}
}

// Severity returns the severity level for the error code
func (c ErrorCode) Severity() ErrorSeverity {
	switch c {
	case CodeInternalError:
		return SeverityCritical
	case CodeGatewayFailure, CodeGatewayUnavailable, CodeEventPublishFailed:
		return SeverityHigh
	case CodeVersionConflict, CodeTimeout, CodePersonaFailure:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
