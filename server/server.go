// CLAUDE:SUMMARY HTTP API for suppression sessions: chi router, rules CRUD, generate, undo, mutations feed, stylesheet export.
// Package server exposes the suppression engine over HTTP and MCP. Each
// session wraps one parsed document; clients create a session, generate
// selectors, manage rules, and feed mutation batches into it.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/domveil/browser"
	"github.com/hazyhaar/domveil/engine"
	"github.com/hazyhaar/domveil/idgen"
	"github.com/hazyhaar/domveil/mutation"
	"github.com/hazyhaar/domveil/report"
	"github.com/hazyhaar/domveil/session"
	"github.com/hazyhaar/domveil/store"
	"github.com/hazyhaar/domveil/suggest"
)

// Config configures the HTTP server.
type Config struct {
	Addr string

	// AuthUser and AuthHash enable Basic Auth on /api routes when both
	// are set. AuthHash is a bcrypt hash of the password.
	AuthUser string
	AuthHash string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8344"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server holds live sessions plus the shared rule store.
type Server struct {
	cfg   Config
	store *store.Store
	sugg  suggest.Suggester
	rec   *report.Recorder
	newID idgen.Generator

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// Option customises a Server.
type Option func(*Server)

// WithSuggester enables the /api/suggest endpoint and suggest MCP tool.
func WithSuggester(s suggest.Suggester) Option {
	return func(srv *Server) { srv.sugg = s }
}

// WithRecorder passes an audit recorder to every session.
func WithRecorder(r *report.Recorder) Option {
	return func(srv *Server) { srv.rec = r }
}

// WithIDGenerator overrides ID generation (tests).
func WithIDGenerator(gen idgen.Generator) Option {
	return func(srv *Server) { srv.newID = gen }
}

// New creates a Server over the given rule store.
func New(cfg Config, st *store.Store, opts ...Option) *Server {
	cfg.defaults()
	s := &Server{
		cfg:      cfg,
		store:    st,
		newID:    idgen.Prefixed("sess_", idgen.Default),
		sessions: make(map[string]*session.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if s.cfg.AuthUser != "" && s.cfg.AuthHash != "" {
			r.Use(basicAuth(s.cfg.AuthUser, s.cfg.AuthHash))
		}

		r.Post("/api/sessions", s.handleCreateSession)
		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleCloseSession)
			r.Get("/render", s.handleRender)
			r.Get("/stylesheet", s.handleStylesheet)
			r.Post("/generate", s.handleGenerate)
			r.Get("/rules", s.handleListRules)
			r.Post("/rules", s.handleCreateRule)
			r.Delete("/rules/{ruleID}", s.handleDeleteRule)
			r.Post("/undo", s.handleUndo)
			r.Post("/reset", s.handleReset)
			r.Post("/mutations", s.handleMutations)
			r.Post("/tick", s.handleTick)
		})

		if s.sugg != nil {
			r.Post("/api/suggest", s.handleSuggest)
		}
	})

	return r
}

// ListenAndServe starts the HTTP server. Blocks until the listener fails.
func (s *Server) ListenAndServe() error {
	s.cfg.Logger.Info("server: listening", "addr", s.cfg.Addr)
	return http.ListenAndServe(s.cfg.Addr, s.Router())
}

func (s *Server) session(id string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// --- handlers ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HTML   string `json:"html"`
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	if req.HTML == "" || req.Origin == "" {
		writeError(w, 400, errors.New("html and origin are required"))
		return
	}

	opts := []session.Option{session.WithLogger(s.cfg.Logger)}
	if s.rec != nil {
		opts = append(opts, session.WithRecorder(s.rec))
	}
	sess, err := session.New(r.Context(), req.HTML, req.Origin, s.store, opts...)
	if err != nil {
		writeError(w, 422, err)
		return
	}

	id := s.newID()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.cfg.Logger.Info("server: session created", "session", id, "origin", req.Origin)
	writeJSON(w, 201, map[string]any{
		"id":     id,
		"origin": sess.Origin(),
		"rules":  len(sess.Engine().Rules()),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, 404, fmt.Errorf("unknown session %s", id))
		return
	}
	writeJSON(w, 200, map[string]string{"status": "closed"})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	out, err := sess.Document().Render()
	if err != nil {
		writeError(w, 500, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(200)
	w.Write([]byte(out))
}

func (s *Server) handleStylesheet(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	css := browser.Stylesheet(sess.Engine().Rules())
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.WriteHeader(200)
	w.Write([]byte(css))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	var req struct {
		Probe string `json:"probe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	res, err := sess.Generate(req.Probe)
	if err != nil {
		writeError(w, 422, err)
		return
	}
	writeJSON(w, 200, res)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	rules := sess.Engine().Rules()
	out := make([]map[string]any, 0, len(rules))
	for _, rule := range rules {
		out = append(out, map[string]any{
			"rule":     rule,
			"affected": sess.Engine().AffectedCount(rule.ID),
		})
	}
	writeJSON(w, 200, out)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	var req struct {
		Action   string          `json:"action"`
		Selector string          `json:"selector"`
		Strategy engine.Strategy `json:"strategy"`
		Notes    string          `json:"notes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	rule, affected, err := sess.CreateRule(r.Context(), engine.Action(req.Action), req.Selector, req.Strategy, suggest.SanitizeNote(req.Notes))
	if err != nil {
		writeError(w, 422, err)
		return
	}
	if rule == nil {
		writeError(w, 422, errors.New("rule rejected: no valid targets within the broadness cap"))
		return
	}
	writeJSON(w, 201, map[string]any{"rule": rule, "affected": affected})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	id := chi.URLParam(r, "ruleID")
	if !sess.RemoveRule(r.Context(), id) {
		writeError(w, 404, fmt.Errorf("unknown rule %s", id))
		return
	}
	writeJSON(w, 200, map[string]string{"status": "removed"})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	writeJSON(w, 200, map[string]bool{"undone": sess.Undo()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	sess.ResetAll()
	writeJSON(w, 200, map[string]string{"status": "reset"})
}

func (s *Server) handleMutations(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	var batch mutation.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, 400, err)
		return
	}
	sess.HandleBatch(&batch)
	writeJSON(w, 202, map[string]any{"pending": sess.Observer().PendingLen()})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sess := s.session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		writeError(w, 404, errors.New("unknown session"))
		return
	}
	writeJSON(w, 200, map[string]int{"applied": sess.Tick(r.Context())})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, err)
		return
	}
	out, err := s.sugg.Suggest(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, 502, err)
		return
	}
	writeJSON(w, 200, out)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
