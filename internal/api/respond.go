package api

import (
	"encoding/json"
	"net/http"
	"time"

	"querygate/internal/core"
	"querygate/internal/logger"
)

// errorBody is the structured error payload every failure carries to a
// caller: a machine code, a human-readable message and, when the request
// was admitted to the dispatch pipeline, the audit request id.
type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusFor(kind core.ErrorKind) (int, string) {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest, "VALIDATION"
	case core.KindAuth:
		return http.StatusUnauthorized, "AUTH"
	case core.KindConflict:
		return http.StatusConflict, "CONFLICT"
	case core.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case core.KindConnection:
		return http.StatusServiceUnavailable, "CONNECTION"
	}
	return http.StatusInternalServerError, "EXECUTION"
}

func writeError(w http.ResponseWriter, err error, requestID string) {
	status, code := statusFor(core.KindOf(err))
	writeJSON(w, status, errorBody{
		ErrorCode: code,
		Message:   err.Error(),
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("encode response: %v", err)
	}
}
