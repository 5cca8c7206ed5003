// Package api provides the JSON response helpers shared by every HTTP handler.
package api

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Success sends data as JSON with statusCode. A nil data writes no body.
func Success(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error sends a plain error message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	Success(w, statusCode, ErrorBody{Error: message})
}

// FromError maps err onto a status and body. Errors that are not
// *errors.UnifiedError are reported as 500 without their text.
func FromError(w http.ResponseWriter, err error, requestID string) {
	var ue *errors.UnifiedError
	if !stderrors.As(err, &ue) {
		Success(w, http.StatusInternalServerError, ErrorBody{
			Error:     "internal server error",
			Code:      errors.CodeInternalError.String(),
			RequestID: requestID,
		})
		return
	}

	status := ue.HTTPStatus()
	body := ErrorBody{
		Error:     ue.Message,
		Code:      ue.Code,
		Details:   ue.Details,
		RequestID: requestID,
		Retryable: ue.Retryable,
	}
	if status >= http.StatusInternalServerError && ue.Type == errors.ErrorTypeInternal {
		body.Details = ""
	}
	if ue.RetryAfter > 0 {
		w.Header().Set("Retry-After", retryAfterSeconds(ue))
	}
	Success(w, status, body)
}

// Status returns the status FromError would send for err.
func Status(err error) int {
	var ue *errors.UnifiedError
	if stderrors.As(err, &ue) {
		return ue.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Attachment sends content as a file download.
func Attachment(w http.ResponseWriter, fileName, contentType, content string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(fileName, `"`, "'")+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

func retryAfterSeconds(ue *errors.UnifiedError) string {
	return strconv.Itoa(int(math.Ceil(ue.RetryAfter.Seconds())))
}
