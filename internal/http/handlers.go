package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"nudged/internal/core"
	"nudged/internal/ingest"
	"nudged/internal/log"
	"nudged/internal/services"
	"nudged/internal/storage"
)

// InsightAPI is the slice of the service layer the handlers need.
type InsightAPI interface {
	ImportCSV(ctx context.Context, src io.Reader, mode string, month core.Month) (services.ImportResult, error)
	Transactions(ctx context.Context, month *core.Month) ([]core.Transaction, error)
	Insights(ctx context.Context, month *core.Month) (core.Insights, error)
	RefreshNudges(ctx context.Context, month *core.Month) ([]core.Nudge, error)
	CreateNudge(ctx context.Context, n core.Nudge) (core.Nudge, error)
	Nudges(ctx context.Context) ([]core.Nudge, error)
	UpdateNudgeStatus(ctx context.Context, id int64, status core.NudgeStatus) error
}

const maxUploadBytes = 10 << 20 // 10 MiB statement uploads

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Nudges(r.Context()); err != nil {
		s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// handleUpload ingests a multipart CSV statement. With ?mode=replace and
// ?month=YYYY-MM the month's rows are swapped atomically.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode != "" && mode != services.ModeReplace {
		http.Error(w, "mode must be 'replace' when given", http.StatusBadRequest)
		return
	}
	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}
	if mode == services.ModeReplace && month == nil {
		http.Error(w, "mode=replace requires month=YYYY-MM", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing form file 'file'", http.StatusBadRequest)
		return
	}
	defer file.Close()

	target := core.Month{}
	if month != nil {
		target = *month
	}
	result, err := s.service.ImportCSV(r.Context(), file, mode, target)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Import failed", log.FieldError, err)
		status := http.StatusInternalServerError
		if isParseError(err) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.respondJSON(w, http.StatusCreated, result)
}

// isParseError reports whether an import failure came from the uploaded
// file rather than the store.
func isParseError(err error) bool {
	var csvErr *csv.ParseError
	return errors.Is(err, ingest.ErrEmptyFile) ||
		errors.Is(err, ingest.ErrMissingHeader) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.As(err, &csvErr)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}

	txns, err := s.service.Transactions(r.Context(), month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list transactions", log.FieldError, err)
		http.Error(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"count":        len(txns),
	})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}

	insights, err := s.service.Insights(r.Context(), month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to build insights", log.FieldError, err)
		http.Error(w, "failed to build insights", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, insights)
}

// handleNudges lists nudges on GET, stores a manually authored one on POST.
func (s *Server) handleNudges(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		nudges, err := s.service.Nudges(r.Context())
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Failed to list nudges", log.FieldError, err)
			http.Error(w, "failed to list nudges", http.StatusInternalServerError)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"nudges": nudges,
			"count":  len(nudges),
		})
	case http.MethodPost:
		var req struct {
			Type        string         `json:"type"`
			Message     string         `json:"message"`
			TriggeredBy map[string]any `json:"triggered_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.Type == "" || req.Message == "" {
			http.Error(w, "type and message are required", http.StatusBadRequest)
			return
		}
		nudge, err := s.service.CreateNudge(r.Context(), core.Nudge{
			Type:        req.Type,
			Message:     req.Message,
			TriggeredBy: req.TriggeredBy,
			Status:      core.StatusPending,
		})
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Failed to create nudge", log.FieldError, err)
			http.Error(w, "failed to create nudge", http.StatusInternalServerError)
			return
		}
		s.respondJSON(w, http.StatusCreated, nudge)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSuggestNudges re-runs the rule engine and returns the resulting
// pending nudges.
func (s *Server) handleSuggestNudges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	month, ok := s.monthParam(w, r)
	if !ok {
		return
	}

	nudges, err := s.service.RefreshNudges(r.Context(), month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to refresh nudges", log.FieldError, err)
		http.Error(w, "failed to refresh nudges", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"nudges": nudges,
		"count":  len(nudges),
	})
}

// handleNudgeStatus moves a pending nudge to sent or dismissed, routed as
// POST /api/nudges/{id}/status.
func (s *Server) handleNudgeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/nudges/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "status" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid nudge id", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	status := core.NudgeStatus(req.Status)
	if status != core.StatusSent && status != core.StatusDismissed {
		http.Error(w, "status must be 'sent' or 'dismissed'", http.StatusBadRequest)
		return
	}

	if err := s.service.UpdateNudgeStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "no pending nudge with that id", http.StatusNotFound)
			return
		}
		s.logger.ErrorContext(r.Context(), "Failed to update nudge status",
			log.FieldError, err,
			"nudge_id", id)
		http.Error(w, "failed to update nudge status", http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}

// monthParam parses an optional ?month=YYYY-MM query parameter. A false
// return means the response has already been written.
func (s *Server) monthParam(w http.ResponseWriter, r *http.Request) (*core.Month, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return nil, true
	}
	month, err := core.ParseMonth(raw)
	if err != nil {
		http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
		return nil, false
	}
	return &month, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", log.FieldError, err)
	}
}
