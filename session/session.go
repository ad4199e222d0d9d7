// CLAUDE:SUMMARY Per-document session — wires document, engine, observer, feed, store, and audit together.
// Package session owns everything with page lifetime: one Session is
// one document context. The store outlives sessions; a new page load
// means a new Session catching up from persisted rules.
//
// Wiring:
//
//	store ──────────────┐
//	html → Document → Engine → Observer ← Feed ← mutation batches
//	                     └→ report.Recorder (audit, optional)
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domveil/dom"
	"github.com/hazyhaar/domveil/engine"
	"github.com/hazyhaar/domveil/idgen"
	"github.com/hazyhaar/domveil/mutation"
	"github.com/hazyhaar/domveil/observer"
	"github.com/hazyhaar/domveil/report"
	"github.com/hazyhaar/domveil/selector"
	"github.com/hazyhaar/domveil/store"
)

// Session binds one loaded document to its suppression machinery.
type Session struct {
	doc      *dom.Document
	eng      *engine.Engine
	obs      *observer.Observer
	feed     *mutation.Feed
	store    *store.Store
	recorder *report.Recorder
	logger   *slog.Logger
	newID    idgen.Generator
	obsCfg   *observer.Config
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder enables the suppression audit trail.
func WithRecorder(r *report.Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithIDGenerator sets the generator for rule ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Session) { s.newID = gen }
}

// WithObserverConfig overrides observer timing (tests inject a manual
// clock through here).
func WithObserverConfig(cfg observer.Config) Option {
	return func(s *Session) { s.obsCfg = &cfg }
}

// New loads a page into a fresh session and runs the initial
// reapplication pass for the origin's stored rules.
func New(ctx context.Context, rawHTML, origin string, st *store.Store, opts ...Option) (*Session, error) {
	s := &Session{
		store:  st,
		logger: slog.Default(),
		newID:  idgen.Prefixed("rule_", idgen.UUIDv7()),
	}
	for _, o := range opts {
		o(s)
	}

	doc, err := dom.ParseDocumentString(rawHTML, origin)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.doc = doc
	s.eng = engine.New(doc, engine.WithLogger(s.logger))

	obsCfg := observer.Config{Logger: s.logger}
	if s.obsCfg != nil {
		obsCfg = *s.obsCfg
		if obsCfg.Logger == nil {
			obsCfg.Logger = s.logger
		}
	}
	s.obs = observer.New(s.eng, st, obsCfg)
	s.feed = mutation.NewFeed(doc, s.obs, s.logger)

	if err := s.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("session: initial pass: %w", err)
	}
	return s, nil
}

// Origin returns the session's origin.
func (s *Session) Origin() string { return s.doc.Origin() }

// Document returns the live document.
func (s *Session) Document() *dom.Document { return s.doc }

// Engine exposes the rule engine (tests, MCP surface).
func (s *Session) Engine() *engine.Engine { return s.eng }

// Observer exposes the change-propagation observer.
func (s *Session) Observer() *observer.Observer { return s.obs }

// Generate produces a durable locator for the node a probe selector
// resolves to. The probe must match exactly one element.
func (s *Session) Generate(probe string) (*selector.Result, error) {
	nodes, err := s.doc.Query(probe)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("session: probe %q matches %d nodes, want 1", probe, len(nodes))
	}
	res, err := selector.Generate(s.doc, nodes[0])
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateRule builds, validates, applies, and persists a rule in one
// step. Returns the rule and the number of nodes affected; an
// affected count of zero means the rule was rejected by a guard and
// not recorded or persisted.
func (s *Session) CreateRule(ctx context.Context, action engine.Action, sel string, strat engine.Strategy, notes string) (*engine.Rule, int, error) {
	r := &engine.Rule{
		ID:        s.newID(),
		Host:      s.doc.Origin(),
		Action:    action,
		Selector:  sel,
		Strategy:  strat,
		Notes:     notes,
		CreatedAt: time.Now().UnixMilli(),
		Version:   1,
	}
	if err := s.eng.ValidateRule(r); err != nil {
		return nil, 0, err
	}
	n, err := s.eng.ApplyRule(r)
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, nil
	}
	s.audit(r)

	// Persistence is catch-up for the next load; a failure here never
	// unwinds the in-memory apply.
	if err := s.store.SaveRule(ctx, s.doc.Origin(), r); err != nil {
		s.logger.Warn("session: save rule", "rule", r.ID, "error", err)
	}
	return r, n, nil
}

// ApplyStored validates and applies an externally built rule (e.g. a
// suggestion) through the same guarded path, persisting on success.
func (s *Session) ApplyStored(ctx context.Context, r *engine.Rule) (int, error) {
	if err := s.eng.ValidateRule(r); err != nil {
		return 0, err
	}
	n, err := s.eng.ApplyRule(r)
	if err != nil || n == 0 {
		return n, err
	}
	s.audit(r)
	if err := s.store.SaveRule(ctx, s.doc.Origin(), r); err != nil {
		s.logger.Warn("session: save rule", "rule", r.ID, "error", err)
	}
	return n, nil
}

// RemoveRule restores the rule's nodes and deletes it from the store.
func (s *Session) RemoveRule(ctx context.Context, id string) bool {
	ok := s.eng.RemoveRule(id)
	if ok {
		if _, err := s.store.DeleteRule(ctx, s.doc.Origin(), id); err != nil {
			s.logger.Warn("session: delete rule", "rule", id, "error", err)
		}
	}
	return ok
}

// Undo reverses the most recent engine operation.
func (s *Session) Undo() bool { return s.eng.Undo() }

// ResetAll restores every decorated node and clears all engine state.
// Stored rules are untouched: reset is a page-lifetime operation.
func (s *Session) ResetAll() { s.eng.ResetAll() }

// HandleBatch feeds a mutation batch into the document.
func (s *Session) HandleBatch(b *mutation.Batch) { s.feed.HandleBatch(b) }

// Tick drives the observer's scheduler once.
func (s *Session) Tick(ctx context.Context) int { return s.obs.Tick(ctx) }

// Run drives the observer until ctx ends.
func (s *Session) Run(ctx context.Context) { s.obs.Run(ctx) }

func (s *Session) audit(r *engine.Rule) {
	if s.recorder == nil {
		return
	}
	for _, node := range s.eng.OwnedNodes(r.ID) {
		s.recorder.Record(s.doc.Origin(), r.ID, string(r.Action), r.Selector, node)
	}
}
