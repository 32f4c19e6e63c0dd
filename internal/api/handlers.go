package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/source/email"
	"github.com/nhle/swipemail/internal/store"
)

const (
	defaultFetchLimit = 20
	maxBodyBytes      = 1 << 20
)

// statusRequest is the body of PATCH /items/{id}/status.
type statusRequest struct {
	Status string `json:"status"`
}

// mailboxRequest is the body of the /email endpoints.
type mailboxRequest struct {
	Provider string `json:"provider"`
	User     string `json:"user"`
	Password string `json:"password"`
	Limit    int    `json:"limit,omitempty"`
}

// TestResult is the response of POST /email/test.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FetchResult is the response of POST /email/fetch.
type FetchResult struct {
	Success bool         `json:"success"`
	Count   int          `json:"count"`
	Items   []model.Item `json:"items"`
}

// SuccessResponse acknowledges a mutation without a body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter, err := parseItemFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.store.GetItem(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	item, err := s.dispatcher.Transition(r.Context(), r.PathValue("id"), status)
	switch {
	case err == nil, errors.Is(err, dispatch.ErrAlreadyApplied):
		writeJSON(w, http.StatusOK, item)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Item not found")
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	item, err := s.dispatcher.Undo(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	_, err := s.dispatcher.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Item not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.store.ListActivities(r.Context(), store.DefaultActivityLimit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activities)
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, email.Providers())
}

func (s *Server) handleEmailTest(w http.ResponseWriter, r *http.Request) {
	src, _, ok := s.mailboxFromRequest(w, r)
	if !ok {
		return
	}

	msg, err := src.ValidateConnection(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, TestResult{Success: false, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, TestResult{Success: true, Message: msg})
}

func (s *Server) handleEmailFetch(w http.ResponseWriter, r *http.Request) {
	src, req, ok := s.mailboxFromRequest(w, r)
	if !ok {
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	fetched, err := src.FetchItems(r.Context(), source.FetchOptions{Limit: limit, UnseenOnly: true})
	if err != nil {
		status := http.StatusBadGateway
		if source.IsAuthError(err) {
			status = http.StatusUnauthorized
		}
		s.logger.WarnContext(r.Context(), "email fetch failed", slog.Any("error", err))
		writeError(w, status, "Failed to fetch emails")
		return
	}

	inserted, err := s.store.UpsertItems(r.Context(), fetched)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FetchResult{Success: true, Count: len(inserted), Items: inserted})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// mailboxFromRequest validates a mailbox request and builds its source.
// It writes the error response itself and reports false on failure.
func (s *Server) mailboxFromRequest(w http.ResponseWriter, r *http.Request) (source.Source, mailboxRequest, bool) {
	var req mailboxRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, req, false
	}
	if req.Provider == "" || req.User == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Provider, email, and password are required")
		return nil, req, false
	}
	preset, ok := email.LookupProvider(req.Provider)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unsupported email provider")
		return nil, req, false
	}

	src := s.newSource(email.Config{
		Host:     preset.Host,
		Port:     preset.Port,
		TLS:      preset.TLS,
		Username: req.User,
		Password: req.Password,
	})
	return src, req, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// parseItemFilter reads the GET /items query parameters.
func parseItemFilter(q url.Values) (store.ItemFilter, error) {
	var f store.ItemFilter

	if v := q.Get("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			return f, errors.New("invalid status")
		}
		f.Status = &st
	}
	f.Sender = q.Get("sender")
	f.Subject = q.Get("subject")

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid %s: expected RFC 3339 time", p.name)
		}
		*p.dst = &t
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid %s", p.name)
		}
		*p.dst = n
	}

	return f, nil
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
