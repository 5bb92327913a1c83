package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/core/domain"
)

const maxBodyBytes = 1 << 20

// generateRequestID generates a unique request ID for tracing
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return hex.EncodeToString(b)
}

// requestID prefers the id assigned by the router's RequestID middleware
func requestID(r *http.Request) string {
	if id := chimw.GetReqID(r.Context()); id != "" {
		return id
	}
	return generateRequestID()
}

// logStructured logs one request line with worker metadata
func logStructured(logger *zap.Logger, requestID string, r *http.Request, endpoint string, statusCode int, duration time.Duration) {
	id, _ := middleware.GetIdentity(r.Context())
	logger.Info("request",
		zap.String("request_id", requestID),
		zap.String("worker_id", id.WorkerID),
		zap.String("role", id.Role),
		zap.String("method", r.Method),
		zap.String("endpoint", endpoint),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", duration.Milliseconds()))
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

// statusFor maps service errors to HTTP status codes. Store failures are never
// described to the client beyond a generic message.
func statusFor(err error) (int, ErrorResponse) {
	var verr *domain.ValidationError
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Message, Fields: verr.Fields}
	case errors.As(err, &perr):
		return http.StatusBadGateway, ErrorResponse{Error: "failed to save registration, please retry"}
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, ErrorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrSubmissionInProgress):
		return http.StatusConflict, ErrorResponse{Error: domain.ErrSubmissionInProgress.Error()}
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrFollowUpNotFound):
		return http.StatusNotFound, ErrorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error"}
	}
}

// fail writes the mapped error and returns the status for request logging
func fail(logger *zap.Logger, w http.ResponseWriter, reqID string, err error) int {
	status, resp := statusFor(err)
	resp.RequestID = reqID
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("request_id", reqID), zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.String("request_id", reqID), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, resp)
	return status
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst unchanged.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("invalid request body", map[string]string{"body": err.Error()})
	}
	return nil
}
