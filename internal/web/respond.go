package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/msto63/personachat/internal/orchestrator"
	coreerrors "github.com/msto63/personachat/pkg/core/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes {error, code}. Internal
// errors get a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := coreerrors.CodeOf(err)
	msg := coreerrors.UserMessage(err)
	if status == http.StatusInternalServerError {
		if code == coreerrors.CodeUnknown {
			code = coreerrors.CodeInternal
		}
		msg = "Something went wrong. Please try again."
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: string(code)})
}

// statusFor maps error codes to HTTP status codes
func statusFor(err error) int {
	switch coreerrors.CodeOf(err) {
	case orchestrator.CodeValidation, coreerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case orchestrator.CodeBusy:
		return http.StatusConflict
	case orchestrator.CodeCaptureTimeout:
		return http.StatusRequestTimeout
	case orchestrator.CodeTranscriptionFailed, orchestrator.CodeGenerationFailed, orchestrator.CodeSynthesisFailed:
		return http.StatusBadGateway
	case coreerrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// wantsHTML reports whether the request came from a plain form post
// rather than the page's script
func wantsHTML(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
