package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mlcomp/mlboard/pkg/board"
	"github.com/mlcomp/mlboard/pkg/filter"
	"github.com/mlcomp/mlboard/pkg/loader"
	"github.com/mlcomp/mlboard/pkg/preferences"
	"github.com/mlcomp/mlboard/pkg/search"
	"github.com/mlcomp/mlboard/pkg/storage"
)

// maxPreferencesBody bounds the size of a preferences update.
const maxPreferencesBody = 64 << 10

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sourceInfo struct {
	Name    string `json:"name"`
	Backend string `json:"backend"`
}

type configResponse struct {
	Sources         []sourceInfo   `json:"sources"`
	Search          search.Options `json:"search"`
	StrictTree      bool           `json:"strict_tree"`
	RefreshInterval string         `json:"refresh_interval"`
	StatusKeys      []string       `json:"status_keys"`
}

// handleConfig returns the public board configuration. Source locations
// and credentials are not exposed.
func (s *server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	sources := make([]sourceInfo, 0, len(s.cfg.Sources))
	for i := range s.cfg.Sources {
		sources = append(sources, sourceInfo{
			Name:    s.cfg.Sources[i].Name,
			Backend: s.cfg.Sources[i].Backend(),
		})
	}

	writeJSON(w, http.StatusOK, configResponse{
		Sources:         sources,
		Search:          s.cfg.Search,
		StrictTree:      s.cfg.Tree.Strict,
		RefreshInterval: s.cfg.API.RefreshInterval.String(),
		StatusKeys:      filter.StatusKeys(),
	})
}

type groupsResponse struct {
	Loading  bool             `json:"loading"`
	Error    string           `json:"error,omitempty"`
	LoadedAt *time.Time       `json:"loaded_at"`
	Status   string           `json:"status"`
	Query    string           `json:"query"`
	Warnings []loader.Warning `json:"warnings"`
	Failures []loader.Failure `json:"failures"`
	Groups   []*storage.Group `json:"groups"`
}

// handleGroups returns the groups of the current view filtered by the
// status and query parameters.
func (s *server) handleGroups(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	query := r.URL.Query().Get("query")

	v := s.board.View()

	resp := groupsResponse{
		Loading:  s.board.Loading(),
		Error:    v.Error,
		Status:   filter.StatusKey(status),
		Query:    query,
		Warnings: nonNil(v.Warnings),
		Failures: nonNil(v.Failures),
		Groups:   nonNil(v.Engine.Filter(status, query)),
	}

	if !v.LoadedAt.IsZero() {
		loadedAt := v.LoadedAt.UTC()
		resp.LoadedAt = &loadedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

type reloadResponse struct {
	Token    uint64           `json:"token"`
	Stale    bool             `json:"stale"`
	Summary  string           `json:"summary"`
	Error    string           `json:"error,omitempty"`
	Groups   int              `json:"groups"`
	Warnings []loader.Warning `json:"warnings"`
	Failures []loader.Failure `json:"failures"`
}

// handleReload runs a load synchronously and reports its outcome. The
// load is not cancelled when the client goes away.
func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	v, err := s.board.Load(context.WithoutCancel(r.Context()))

	res := &loader.Result{Failures: v.Failures, Sources: v.Sources}

	resp := reloadResponse{
		Token:    v.Token,
		Stale:    errors.Is(err, board.ErrStale),
		Summary:  res.Summary(),
		Error:    v.Error,
		Groups:   len(v.Groups),
		Warnings: nonNil(v.Warnings),
		Failures: nonNil(v.Failures),
	}

	status := http.StatusOK
	if err != nil && !resp.Stale {
		status = http.StatusBadGateway
	}

	writeJSON(w, status, resp)
}

// handleGetPreferences returns the stored preferences merged over the
// defaults.
func (s *server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := preferences.Load(r.Context(), s.prefs)
	if err != nil {
		s.log.WithError(err).Error("Failed to load preferences")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handlePutPreferences updates the preferences. Keys missing from the body
// keep their current value.
func (s *server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	p, err := preferences.Load(r.Context(), s.prefs)
	if err != nil {
		s.log.WithError(err).Error("Failed to load preferences")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreferencesBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid request body"})

		return
	}

	if err := p.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	if err := preferences.Save(r.Context(), s.prefs, p); err != nil {
		s.log.WithError(err).Error("Failed to save preferences")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"internal error"})

		return
	}

	writeJSON(w, http.StatusOK, p)
}

// nonNil keeps empty lists encoded as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}

	return s
}
