package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"maps"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// SessionRFQID is the session key holding the RFQ a thread answers.
const SessionRFQID = "rfq_id"

type startRequest struct {
	UserQuery string `json:"user_query"`
	ThreadID  string `json:"thread_id,omitempty"`
	RFQID     *int64 `json:"rfq_id,omitempty"`
}

type resumeRequest struct {
	Decision string `json:"decision,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

// feedback builds the reviewer's verdict. An explicit decision wins over keywords in free text.
func (req resumeRequest) feedback() (domain.Feedback, error) {
	if req.Decision != "" {
		d, err := domain.ParseDecision(req.Decision)
		if err != nil {
			return domain.Feedback{}, err
		}
		comment := strings.TrimSpace(req.Comment)
		if comment == "" {
			comment = strings.TrimSpace(req.Feedback)
		}
		return domain.Feedback{Decision: d, Comment: comment}, nil
	}
	text := req.Feedback
	if text == "" {
		text = req.Comment
	}
	if strings.TrimSpace(text) == "" {
		return domain.Feedback{}, proposal.ErrEmptyFeedback
	}
	return domain.ParseFeedback(text), nil
}

// runResponse is returned by every call that drives a run.
type runResponse struct {
	Interrupt       bool             `json:"interrupt"`
	ThreadID        string           `json:"thread_id"`
	RunStatus       domain.RunStatus `json:"run_status"`
	Message         string           `json:"message,omitempty"`
	Proposal        string           `json:"proposal,omitempty"`
	Answer          string           `json:"answer,omitempty"`
	FeedbackOptions []string         `json:"feedback_options,omitempty"`
	State           domain.State     `json:"state"`
}

type threadSummary struct {
	ThreadID  string           `json:"thread_id"`
	RunStatus domain.RunStatus `json:"run_status"`
	Status    domain.Status    `json:"status"`
	Iteration int              `json:"iteration"`
	UserQuery string           `json:"user_query"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// owned loads a thread and hides threads of other tenants.
func (s *Server) owned(r *http.Request, threadID string) (*domain.Checkpoint, error) {
	cp, err := s.Engine.Get(r.Context(), threadID)
	if err != nil {
		return nil, err
	}
	if cp.State.Tenant() != sessionOf(r).TenantID {
		return nil, domain.ErrThreadNotFound
	}
	return cp, nil
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) startThread(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	sess := sessionOf(r)

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	} else {
		cp, err := s.Engine.Get(r.Context(), threadID)
		switch {
		case errors.Is(err, domain.ErrThreadNotFound):
		case err != nil:
			s.fail(w, threadID, err)
			return
		case cp.State.Tenant() != sess.TenantID:
			writeError(w, http.StatusConflict, "thread id is already in use", threadID)
			return
		}
	}

	data := sess.Map()
	if req.RFQID != nil {
		if s.Repo == nil {
			writeError(w, http.StatusBadRequest, "rfq_id given but no repository is configured", threadID)
			return
		}
		if _, err := s.Repo.GetRFQ(r.Context(), sess.TenantID, *req.RFQID); err != nil {
			s.fail(w, threadID, err)
			return
		}
		data[SessionRFQID] = *req.RFQID
	}

	initial := domain.NewState(req.UserQuery, data)
	s.drive(w, r, threadID, func(ctx context.Context) iter.Seq[runner.Step] {
		return s.Engine.Start(ctx, threadID, initial)
	})
}

func (s *Server) resumeThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	var req resumeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", threadID)
		return
	}
	fb, err := req.feedback()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), threadID)
		return
	}
	cp, err := s.owned(r, threadID)
	if err != nil {
		s.fail(w, threadID, err)
		return
	}
	data := maps.Clone(cp.State.SessionData)
	if data == nil {
		data = map[string]any{}
	}
	maps.Copy(data, sessionOf(r).Map())

	s.drive(w, r, threadID, func(ctx context.Context) iter.Seq[runner.Step] {
		return s.Engine.Resume(ctx, threadID, fb, data)
	})
}

func (s *Server) retryThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if _, err := s.owned(r, threadID); err != nil {
		s.fail(w, threadID, err)
		return
	}
	s.drive(w, r, threadID, func(ctx context.Context) iter.Seq[runner.Step] {
		return s.Engine.Retry(ctx, threadID)
	})
}

// drive runs a thread to its next stop, mirroring every step and token to SSE subscribers.
func (s *Server) drive(w http.ResponseWriter, r *http.Request, threadID string, run func(context.Context) iter.Seq[runner.Step]) {
	key := streamKey(sessionOf(r).TenantID, threadID)
	ctx := runner.ContextWithSink(r.Context(), func(_ context.Context, node, chunk string) {
		s.Streams.Publish(key, tokenEvent(node, chunk))
	})

	var last runner.Step
	for step := range run(ctx) {
		s.Streams.Publish(key, stepEvent(step))
		last = step
	}

	switch last.Kind {
	case runner.Suspended:
		resp := runResponse{
			Interrupt: true,
			ThreadID:  threadID,
			RunStatus: domain.RunSuspended,
			State:     last.State,
		}
		if last.Interrupt != nil {
			resp.Message = last.Interrupt.Message
			resp.Proposal = last.Interrupt.Proposal
			resp.FeedbackOptions = last.Interrupt.FeedbackOptions
		}
		writeJSON(w, http.StatusOK, resp)
	case runner.Done:
		writeJSON(w, http.StatusOK, runResponse{
			ThreadID:  threadID,
			RunStatus: domain.RunDone,
			Proposal:  last.State.Proposal(),
			Answer:    last.State.Answer,
			State:     last.State,
		})
	default:
		err := last.Err
		if err == nil {
			err = errors.New("run produced no steps")
		}
		s.fail(w, threadID, err)
	}
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.List(r.Context())
	if err != nil {
		s.fail(w, "", err)
		return
	}
	tenant := sessionOf(r).TenantID
	out := make([]threadSummary, 0, len(ids))
	for _, id := range ids {
		cp, err := s.Engine.Get(r.Context(), id)
		if errors.Is(err, domain.ErrThreadNotFound) {
			continue
		}
		if err != nil {
			s.fail(w, id, err)
			return
		}
		if cp.State.Tenant() != tenant {
			continue
		}
		out = append(out, threadSummary{
			ThreadID:  id,
			RunStatus: cp.RunStatus,
			Status:    cp.State.Status,
			Iteration: cp.State.Iteration,
			UserQuery: cp.State.UserQuery,
			UpdatedAt: cp.UpdatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	writeJSON(w, http.StatusOK, map[string]any{"threads": out})
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	cp, err := s.owned(r, threadID)
	if err != nil {
		s.fail(w, threadID, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if _, err := s.owned(r, threadID); err != nil {
		s.fail(w, threadID, err)
		return
	}
	if err := s.Engine.Delete(r.Context(), threadID); err != nil {
		s.fail(w, threadID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) threadHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if _, err := s.owned(r, threadID); err != nil {
		s.fail(w, threadID, err)
		return
	}
	versions, ok, err := s.Engine.History(r.Context(), threadID)
	if !ok {
		writeError(w, http.StatusNotImplemented, "the checkpoint store does not keep history", threadID)
		return
	}
	if err != nil {
		s.fail(w, threadID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "versions": versions})
}

func (s *Server) exportThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if s.Exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured", threadID)
		return
	}
	var req proposal.ExportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", threadID)
		return
	}
	cp, err := s.owned(r, threadID)
	if err != nil {
		s.fail(w, threadID, err)
		return
	}
	if req.RFQID == nil {
		req.RFQID = sessionRFQ(cp.State.SessionData)
	}
	res, err := s.Exporter.Export(r.Context(), threadID, req)
	if err != nil {
		s.fail(w, threadID, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// sessionRFQ reads the RFQ id stored at start. Checkpoints decoded from JSON hold it as float64.
func sessionRFQ(data map[string]any) *int64 {
	var id int64
	switch v := data[SessionRFQID].(type) {
	case int64:
		id = v
	case int:
		id = int64(v)
	case float64:
		id = int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil
		}
		id = n
	default:
		return nil
	}
	return &id
}
