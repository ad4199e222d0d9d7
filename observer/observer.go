// CLAUDE:SUMMARY ChangePropagationObserver — pending-set batching, debounce, navigation settle, rule re-application.
// Package observer keeps previously accepted rules asserted as the
// document mutates and as virtual navigation happens.
//
// The observer is deliberately passive: mutation feeds push node
// signals in, and the host's scheduler calls Tick. Each Tick drains at
// most one batch, synchronously, on the caller's goroutine — there is
// no hidden background work, matching the single-threaded cooperative
// model of the whole engine. Run wraps Tick in a ticker loop for hosts
// that just want a goroutine.
//
// Deadlines (debounce, settling) come from an injectable Clock, so the
// whole batching behaviour is testable without real timers.
package observer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
	"github.com/hazyhaar/domveil/engine"
)

const (
	// DefaultDebounce is the quiet window before a pending batch is
	// processed.
	DefaultDebounce = 100 * time.Millisecond
	// DefaultSettle is the pause after a navigation signal before the
	// full reapplication pass, letting streamed content land first.
	DefaultSettle = 500 * time.Millisecond
	// descendantCap bounds the shallow descendant slice taken per
	// inserted node.
	descendantCap = 20
	// batchCap bounds the nodes processed per cycle, so insertion
	// storms cannot produce unbounded work in one tick.
	batchCap = 50
)

// attrAllowlist is the narrow set of attribute mutations worth
// re-matching on: anything else cannot change selector outcomes for
// the strategies the generator emits.
var attrAllowlist = map[string]bool{
	"class": true, "id": true, "role": true,
	"data-testid": true, "data-test-id": true, "data-test": true,
	"data-qa": true, "data-cy": true,
}

// AttrRelevant reports whether an attribute name is on the observation
// allowlist.
func AttrRelevant(name string) bool { return attrAllowlist[name] }

// RuleSource supplies the stored rules for an origin. The store
// collaborator implements this; it returns an empty slice when nothing
// is stored and never treats "not found" as an error.
type RuleSource interface {
	LoadRules(ctx context.Context, origin string) ([]*engine.Rule, error)
}

// RuleHealthSink is optionally implemented by a RuleSource that tracks
// per-rule apply health. Sink failures are ignored: health is
// bookkeeping, never control flow.
type RuleHealthSink interface {
	RecordRuleSuccess(ctx context.Context, origin, id string) error
	RecordRuleFailure(ctx context.Context, origin, id string) error
}

// Config for the Observer.
type Config struct {
	Debounce time.Duration
	Settle   time.Duration
	Clock    Clock
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.Clock == nil {
		c.Clock = SystemClock()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Observer drives rule re-application against one engine. Constructed
// once per document context and passed to whatever feeds it — never a
// package-level singleton.
type Observer struct {
	eng    *engine.Engine
	source RuleSource
	cfg    Config

	pending    []*html.Node
	pendingSet map[*html.Node]bool

	flushDue  time.Time // zero = nothing pending
	settleDue time.Time // zero = no navigation in flight
	paused    bool
}

// New creates an Observer over the given engine and rule source.
func New(eng *engine.Engine, source RuleSource, cfg Config) *Observer {
	cfg.defaults()
	return &Observer{
		eng:        eng,
		source:     source,
		cfg:        cfg,
		pendingSet: make(map[*html.Node]bool),
	}
}

// Initialize performs the initial pass: every stored rule for the
// current origin is applied once against the current tree.
func (o *Observer) Initialize(ctx context.Context) error {
	rules, err := o.source.LoadRules(ctx, o.eng.Document().Origin())
	if err != nil {
		return err
	}
	for _, r := range rules {
		if err := o.eng.ValidateRule(r); err != nil {
			o.cfg.Logger.Warn("observer: stored rule invalid, skipped",
				"rule", r.ID, "error", err)
			o.noteFailure(ctx, r.ID)
			continue
		}
		n, err := o.eng.ApplyRule(r)
		if err != nil {
			o.noteFailure(ctx, r.ID)
			continue
		}
		if n > 0 {
			o.noteSuccess(ctx, r.ID)
		}
		o.cfg.Logger.Debug("observer: initial apply", "rule", r.ID, "affected", n)
	}
	return nil
}

func (o *Observer) noteSuccess(ctx context.Context, id string) {
	if sink, ok := o.source.(RuleHealthSink); ok {
		sink.RecordRuleSuccess(ctx, o.eng.Document().Origin(), id)
	}
}

func (o *Observer) noteFailure(ctx context.Context, id string) {
	if sink, ok := o.source.(RuleHealthSink); ok {
		sink.RecordRuleFailure(ctx, o.eng.Document().Origin(), id)
	}
}

// NodesInserted enqueues newly inserted nodes plus a shallow slice of
// their descendants, capped per insertion. Self-UI subtrees are never
// enqueued — that would loop the observer back onto the engine's own
// writes.
func (o *Observer) NodesInserted(nodes ...*html.Node) {
	if o.paused {
		return
	}
	for _, n := range nodes {
		o.enqueueWithDescendants(n)
	}
	if len(o.pending) > 0 {
		o.flushDue = o.cfg.Clock.Now().Add(o.cfg.Debounce)
	}
}

// AttributeChanged enqueues a node whose allowlisted attribute mutated.
func (o *Observer) AttributeChanged(n *html.Node, attr string) {
	if o.paused || !AttrRelevant(attr) {
		return
	}
	o.enqueue(n)
	if len(o.pending) > 0 {
		o.flushDue = o.cfg.Clock.Now().Add(o.cfg.Debounce)
	}
}

// Navigated handles a virtual-navigation signal (history mutation,
// back/forward, fragment change). The pending set refers to a page
// state that no longer applies, so it is dropped — not processed — and
// a full reapplication pass is scheduled after the settling delay.
func (o *Observer) Navigated(url string) {
	o.cfg.Logger.Info("observer: navigation detected", "url", url)
	o.clearPending()
	o.flushDue = time.Time{}
	o.settleDue = o.cfg.Clock.Now().Add(o.cfg.Settle)
}

// Pause suspends observation; pending work and in-flight deadlines are
// invalidated. The engine calls this around large batched writes of
// its own.
func (o *Observer) Pause() {
	o.paused = true
	o.clearPending()
	o.flushDue = time.Time{}
	o.settleDue = time.Time{}
}

// Resume re-enables observation.
func (o *Observer) Resume() { o.paused = false }

// Paused reports the current state.
func (o *Observer) Paused() bool { return o.paused }

// PendingLen reports the current pending-set size.
func (o *Observer) PendingLen() int { return len(o.pending) }

// Tick runs at most one processing cycle if a deadline has passed.
// Returns the number of rules re-applied this cycle.
func (o *Observer) Tick(ctx context.Context) int {
	if o.paused {
		return 0
	}
	now := o.cfg.Clock.Now()

	if !o.settleDue.IsZero() && !now.Before(o.settleDue) {
		o.settleDue = time.Time{}
		return o.reapplyAll(ctx)
	}
	if !o.flushDue.IsZero() && !now.Before(o.flushDue) {
		return o.processPending(ctx)
	}
	return 0
}

// Run drives Tick on a real ticker until the context ends. Interval
// defaults to a quarter of the debounce window.
func (o *Observer) Run(ctx context.Context) {
	interval := o.cfg.Debounce / 4
	if interval <= 0 {
		interval = 25 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// processPending drains one bounded batch and re-applies any stored
// rule whose selector matches a pending node. Testing each rule
// against the batch first avoids re-resolving every selector against
// the whole tree on every mutation.
func (o *Observer) processPending(ctx context.Context) int {
	batch := o.pending
	if len(batch) > batchCap {
		batch = batch[:batchCap]
		o.pending = o.pending[batchCap:]
		// Another cycle is due for the remainder.
		o.flushDue = o.cfg.Clock.Now().Add(o.cfg.Debounce)
	} else {
		o.pending = nil
		o.flushDue = time.Time{}
	}
	for _, n := range batch {
		delete(o.pendingSet, n)
	}

	applied := 0
	rules, err := o.source.LoadRules(ctx, o.eng.Document().Origin())
	if err != nil {
		o.cfg.Logger.Warn("observer: load rules", "error", err)
		return 0
	}
	for _, r := range rules {
		sel, err := dom.Parse(r.Selector)
		if err != nil {
			continue
		}
		if !anyMatch(sel, batch) {
			continue
		}
		n, err := o.eng.ApplyRule(r)
		if err != nil {
			o.noteFailure(ctx, r.ID)
			continue
		}
		if n > 0 {
			applied++
			o.noteSuccess(ctx, r.ID)
			o.cfg.Logger.Debug("observer: rule re-applied", "rule", r.ID, "affected", n)
		}
	}
	return applied
}

// reapplyAll runs a full pass of every stored rule against the current
// tree — the post-navigation catch-up.
func (o *Observer) reapplyAll(ctx context.Context) int {
	rules, err := o.source.LoadRules(ctx, o.eng.Document().Origin())
	if err != nil {
		o.cfg.Logger.Warn("observer: load rules", "error", err)
		return 0
	}
	applied := 0
	for _, r := range rules {
		n, err := o.eng.ApplyRule(r)
		if err != nil {
			o.noteFailure(ctx, r.ID)
			continue
		}
		if n > 0 {
			applied++
			o.noteSuccess(ctx, r.ID)
		}
	}
	o.cfg.Logger.Debug("observer: full reapplication", "rules", len(rules), "applied", applied)
	return applied
}

func (o *Observer) enqueue(n *html.Node) {
	if n == nil || !dom.IsElement(n) || o.pendingSet[n] || o.eng.IsOwnUI(n) {
		return
	}
	o.pendingSet[n] = true
	o.pending = append(o.pending, n)
}

// enqueueWithDescendants adds the node and a breadth-first slice of
// its descendants, capped at descendantCap per insertion.
func (o *Observer) enqueueWithDescendants(root *html.Node) {
	if root == nil || o.eng.IsOwnUI(root) {
		return
	}
	taken := 0
	queue := []*html.Node{root}
	for len(queue) > 0 && taken < descendantCap {
		n := queue[0]
		queue = queue[1:]
		if dom.IsElement(n) {
			o.enqueue(n)
			taken++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			queue = append(queue, c)
		}
	}
}

func (o *Observer) clearPending() {
	o.pending = nil
	o.pendingSet = make(map[*html.Node]bool)
}

func anyMatch(sel *dom.Selector, nodes []*html.Node) bool {
	for _, n := range nodes {
		if sel.Match(n) {
			return true
		}
	}
	return false
}
