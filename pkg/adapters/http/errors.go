package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/runner"
)

type errorResponse struct {
	Error    string `json:"error"`
	ThreadID string `json:"thread_id,omitempty"`
	Node     string `json:"node,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrThreadNotFound), errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrThreadSuspended),
		errors.Is(err, domain.ErrThreadOwned),
		errors.Is(err, domain.ErrNotSuspended),
		errors.Is(err, runner.ErrNotFailed),
		errors.Is(err, proposal.ErrNotExportable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRecursionLimit), errors.Is(err, domain.ErrRevisionLimit):
		return http.StatusUnprocessableEntity
	case errors.Is(err, proposal.ErrEmptyFeedback), errors.Is(err, domain.ErrNegativeIteration):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNodeTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, threadID string, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), ThreadID: threadID}
	var nodeErr *runner.NodeError
	if errors.As(err, &nodeErr) {
		resp.Node = nodeErr.Node
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "thread_id", threadID, "err", err)
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, msg, threadID string) {
	writeJSON(w, status, errorResponse{Error: msg, ThreadID: threadID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
