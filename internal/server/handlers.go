package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jonathan/lead-collector/internal/export"
	"github.com/jonathan/lead-collector/internal/logger"
	"github.com/jonathan/lead-collector/internal/types"
)

// SearchRequest is the body of POST /api/search. The Portuguese field names
// are accepted for compatibility with the legacy web form.
type SearchRequest struct {
	Nicho  string `json:"nicho,omitempty"`
	Niche  string `json:"niche,omitempty"`
	Cidade string `json:"cidade,omitempty"`
	City   string `json:"city,omitempty"`
}

type searchQuery struct {
	Niche string `json:"niche" validate:"required"`
	City  string `json:"city" validate:"required"`
}

func (r SearchRequest) query() searchQuery {
	return searchQuery{
		Niche: firstNonEmpty(r.Niche, r.Nicho),
		City:  firstNonEmpty(r.City, r.Cidade),
	}
}

// SearchResponse is returned when a search job is accepted.
type SearchResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
}

// WhatsAppLeadsResponse lists every history record with a WhatsApp number.
type WhatsAppLeadsResponse struct {
	Total int                  `json:"total_whatsapp_leads"`
	Leads []types.WhatsAppLead `json:"leads"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// handleSearch starts a new search job, superseding the running one.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	q := req.query()
	if err := s.validate.Struct(q); err != nil {
		s.errorFrom(w, validationError(err))
		return
	}

	id, err := s.jobs.Start(r.Context(), q.Niche, q.City)
	if err != nil {
		s.errorFrom(w, err)
		return
	}

	s.jsonResponse(w, http.StatusAccepted, SearchResponse{
		Message: "Search started",
		Status:  string(types.JobRunning),
		JobID:   id,
	})
}

// handleStatus returns the current job snapshot, or a specific job's with ?job_id.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.progress(r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, p)
}

// handleStatusStream pushes a snapshot every stream interval until the job
// is no longer running or the client disconnects. The stream follows the job
// that was current when it opened, even if another search starts meanwhile.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	p, err := s.progress(r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	poll := func() (*types.JobProgress, error) { return s.jobs.Poll(p.JobID) }
	if p.JobID == "" {
		poll = func() (*types.JobProgress, error) { return s.jobs.Current(), nil }
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	interval := s.cfg.StreamInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := sse.WriteEvent("progress", p); err != nil {
			s.log.Debugw("status stream closed", logger.FieldError, err)
			return
		}
		if !p.Running {
			sse.WriteComplete(p.JobID, string(p.State))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		if p, err = poll(); err != nil {
			sse.WriteError(err.Error())
			return
		}
	}
}

// handleStop requests cancellation of the current job, or of ?job_id.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("job_id"); id != "" {
		if err := s.jobs.Cancel(id); err != nil {
			s.errorFrom(w, err)
			return
		}
	} else {
		s.jobs.CancelCurrent()
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"message": "Search stopped"})
}

// handleDownload exports the current results.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	p, err := s.progress(r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if len(p.Results) == 0 {
		s.errorFrom(w, &ErrNoResults{Message: "No results available"})
		return
	}
	s.fileResponse(w, export.FileName("leads", format, s.now()), format, export.LeadsLayout(), p.Results)
}

// handleDownloadWhatsApp exports the current results that have a WhatsApp number.
func (s *Server) handleDownloadWhatsApp(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	p, err := s.progress(r)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	leads := p.WhatsAppResults()
	if len(leads) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "No WhatsApp leads available")
		return
	}
	s.fileResponse(w, export.FileName("whatsapp_leads", format, s.now()), format, export.WhatsAppLayout(), leads)
}

// handleDashboardData returns the search history.
func (s *Server) handleDashboardData(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.jobs.History().Snapshot())
}

// handleWhatsAppLeads returns every history record with a WhatsApp number.
func (s *Server) handleWhatsAppLeads(w http.ResponseWriter, _ *http.Request) {
	leads := s.jobs.History().WhatsAppLeads()
	s.jsonResponse(w, http.StatusOK, WhatsAppLeadsResponse{Total: len(leads), Leads: leads})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Message:   "Lead collector API is running",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) progress(r *http.Request) (*types.JobProgress, error) {
	if id := r.URL.Query().Get("job_id"); id != "" {
		return s.jobs.Poll(id)
	}
	return s.jobs.Current(), nil
}

// fileResponse renders the export in memory so encoding failures still
// produce a JSON error instead of a truncated attachment.
func (s *Server) fileResponse(w http.ResponseWriter, name string, format export.Format, layout export.Layout, records []types.BusinessRecord) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, layout, records); err != nil {
		s.errorFrom(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warnw("download interrupted", logger.FieldError, err)
	}
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorw("error encoding JSON response", logger.FieldError, err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// errorFrom maps err to a status and writes it with any user-facing hints.
func (s *Server) errorFrom(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Errorw("request failed", logger.FieldError, err)
		s.errorResponse(w, status, http.StatusText(status))
		return
	}

	body := map[string]string{"error": err.Error()}
	if hint := errors.FlattenHints(err); hint != "" {
		body["hint"] = hint
	}
	s.jsonResponse(w, status, body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
