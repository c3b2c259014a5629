package http

import (
	"net/http"
	"strconv"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/proposal"
)

const (
	defaultRFQLimit      = 10
	defaultActivityLimit = 20
)

type uploadResponse struct {
	Document domain.Document `json:"document"`
	RFQ      *domain.RFQ     `json:"rfq,omitempty"`
}

type documentRequest struct {
	Name     string `json:"name"`
	FileName string `json:"file_name,omitempty"`
	Content  string `json:"content"`
}

func (s *Server) requireRepo(w http.ResponseWriter) bool {
	if s.Repo == nil {
		writeError(w, http.StatusNotImplemented, "no repository is configured", "")
		return false
	}
	return true
}

func queryLimit(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return def
}

func (s *Server) recentRFQs(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	rfqs, err := s.Repo.RecentRFQs(r.Context(), sessionOf(r).TenantID, queryLimit(r, defaultRFQLimit))
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rfqs": rfqs})
}

func (s *Server) winningProposals(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	proposals, err := s.Repo.Proposals(r.Context(), sessionOf(r).TenantID, true)
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

func (s *Server) recentActivity(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	activity, err := s.Repo.RecentActivity(r.Context(), sessionOf(r).TenantID, queryLimit(r, defaultActivityLimit))
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": activity})
}

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	var req documentRequest
	if err := decodeBody(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name and content are required", "")
		return
	}
	if req.FileName == "" {
		req.FileName = req.Name
	}
	tenant := sessionOf(r).TenantID
	doc := domain.Document{Name: req.Name, FileName: req.FileName, Content: req.Content}

	if s.Ingester == nil {
		stored, err := s.Repo.SaveDocument(r.Context(), tenant, doc)
		if err != nil {
			s.fail(w, "", err)
			return
		}
		writeJSON(w, http.StatusCreated, uploadResponse{Document: stored})
		return
	}
	res, err := s.Ingester.Ingest(r.Context(), tenant, doc)
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Document: res.Document, RFQ: &res.RFQ})
}

func (s *Server) promptSuggestions(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	var rfqID *int64
	if v := r.URL.Query().Get("rfq_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "rfq_id must be an integer", "")
			return
		}
		rfqID = &id
	}
	prompts, err := proposal.Suggestions(r.Context(), s.Repo, sessionOf(r).TenantID, rfqID)
	if err != nil {
		s.fail(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts})
}
