// Package web serves the projection and its operations over HTTP.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"envman/internal/engine"
	"envman/internal/gateway"
	"envman/internal/model"
)

//go:embed static/*
var staticFS embed.FS

var validate = validator.New()

// Server exposes a Controller as a JSON API plus a static page.
type Server struct {
	ctrl   *engine.Controller
	logger *slog.Logger
}

func NewServer(ctrl *engine.Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, logger: logger.With("component", "web")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/projection", s.handleProjection)
		r.Get("/search", s.handleSearch)
		r.Get("/help", s.handleHelp)
		r.Post("/edit", s.handleEdit)
		r.Post("/add", s.handleAdd)
		r.Post("/delete", s.handleDelete)
		r.Post("/batch-delete", s.handleBatchDelete)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/validate", s.handleValidate)
		r.Post("/toggle", s.handleToggle)
		r.Post("/export", s.handleExport)
	})

	subFS, _ := fs.Sub(staticFS, "static")
	r.Handle("/*", http.FileServer(http.FS(subFS)))
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("web server listening", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// projectionResponse is the body of GET /api/projection.
type projectionResponse struct {
	Version    string             `json:"version"`
	Sections   []sectionView      `json:"sections"`
	Entries    []engine.EntryView `json:"entries"`
	InvalidIDs []string           `json:"invalidIds"`
	Report     string             `json:"report"`
}

type sectionView struct {
	Scope    model.Scope `json:"scope"`
	Expanded bool        `json:"expanded"`
	Count    int         `json:"count"`
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	full := s.ctrl.Projection()
	exp := s.ctrl.Expansion()

	entries := engine.Visible(full, exp)
	if r.URL.Query().Get("all") != "" {
		entries = full
	}

	counts := make(map[model.Scope]int)
	var order []model.Scope
	for _, sc := range s.ctrl.SectionOrder() {
		counts[sc] = 0
		order = append(order, sc)
	}
	for _, e := range full {
		if _, ok := counts[e.EntryScope()]; !ok {
			order = append(order, e.EntryScope())
		}
		if _, isElem := e.(model.ListElementEntry); !isElem {
			counts[e.EntryScope()]++
		}
	}
	sections := make([]sectionView, 0, len(order))
	for _, sc := range order {
		sections = append(sections, sectionView{Scope: sc, Expanded: exp.SectionExpanded(sc), Count: counts[sc]})
	}

	invalid := s.ctrl.InvalidIDs()
	if invalid == nil {
		invalid = []string{}
	}
	respondJSON(w, http.StatusOK, projectionResponse{
		Version:    model.Version,
		Sections:   sections,
		Entries:    engine.Views(entries),
		InvalidIDs: invalid,
		Report:     engine.GenerateReport(full, false),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.SearchQuery{
		NameKeyword:   q.Get("name"),
		ValueKeyword:  q.Get("value"),
		RemarkKeyword: q.Get("remark"),
	}
	if kw := q.Get("q"); kw != "" {
		query.NameKeyword, query.ValueKeyword = kw, kw
	}
	for _, raw := range q["scope"] {
		sc, ok := model.ParseScope(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown scope %q", raw))
			return
		}
		query.Scopes = append(query.Scopes, sc)
	}

	entries, err := s.ctrl.Search(r.Context(), query)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"entries": engine.Views(entries)})
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(model.Help()))
}

type editRequest struct {
	ID    string `json:"id" validate:"required"`
	Value string `json:"value"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.Edit(r.Context(), req.ID, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addRequest struct {
	Name  string  `json:"name" validate:"required"`
	Value string  `json:"value"`
	Scope string  `json:"scope" validate:"required,oneof=user system"`
	Note  *string `json:"note"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decode(w, r, &req) {
		return
	}
	scope, _ := model.ParseScope(req.Scope)
	rec, err := s.ctrl.Add(r.Context(), req.Name, req.Value, scope, req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

type deleteRequest struct {
	ID string `json:"id" validate:"required"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ctrl.Delete(r.Context(), req.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type batchDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type batchDeleteResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    []string          `json:"failed"`
	Errors    map[string]string `json:"errors"`
}

func (s *Server) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	var req batchDeleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := s.ctrl.BatchDelete(r.Context(), req.IDs)
	out := batchDeleteResponse{
		Succeeded: append([]string{}, res.Succeeded...),
		Failed:    append([]string{}, res.Failed...),
		Errors:    make(map[string]string, len(res.Errors)),
	}
	for id, err := range res.Errors {
		out.Errors[id] = err.Error()
	}
	status := http.StatusOK
	if len(out.Failed) > 0 {
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, out)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Refresh(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"records": len(s.ctrl.Records())})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.ValidateAll(r.Context())
	partial := errors.Is(err, engine.ErrValidationPartial)
	if err != nil && !partial {
		s.fail(w, r, err)
		return
	}
	invalid := s.ctrl.InvalidIDs()
	if invalid == nil {
		invalid = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"invalidIds": invalid, "partial": partial})
}

type toggleRequest struct {
	ID      string `json:"id" validate:"required_without=Section"`
	Section string `json:"section" validate:"omitempty,oneof=user system"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if !s.decode(w, r, &req) {
		return
	}
	var expanded bool
	if req.Section != "" {
		scope, _ := model.ParseScope(req.Section)
		expanded = s.ctrl.ToggleSection(scope)
	} else {
		expanded = s.ctrl.ToggleList(req.ID)
	}
	respondJSON(w, http.StatusOK, map[string]bool{"expanded": expanded})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	loc, err := s.ctrl.Export(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"location": loc})
}

// decode reads a JSON body into v and validates it. It writes a 400 and
// reports false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return false
	}
	return true
}

// fail maps an engine error to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

// StatusFor maps engine error kinds to HTTP status codes. A refused delete
// of a protected variable is a 403, not a gateway failure.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, gateway.ErrProtected):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, engine.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
