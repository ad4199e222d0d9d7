// CLAUDE:SUMMARY RuleEngine — owns decoration markers, the applied-rule set, and the undo stack for one document.
// Package engine applies, reverses, and accounts for suppression rules
// against one document context.
//
// State machine per node: unmarked → {hidden|blanked|replaced} →
// unmarked. Transitions happen only through ApplyRule, RemoveRule,
// Undo, and ResetAll. Decoration is monotonic: once marked, a node
// cannot be re-targeted by a different rule until explicitly restored,
// so the order in which queued rules land never changes the decorated
// set — later rules targeting a marked node are harmless no-ops.
//
// Every rejection path returns a zero count or false rather than an
// error: callers can always distinguish "nothing happened" from a
// crash. Errors surface only for input a caller can fix (an
// unparseable selector).
package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
	"github.com/hazyhaar/domveil/idgen"
)

const (
	// applyCap is the hard broadness guard inside ApplyRule. A rule
	// matching more valid targets than this is rejected outright and
	// never recorded — one rule can never degrade the whole page.
	applyCap = 50

	// undoDepth bounds the undo stack; the oldest entry is evicted.
	undoDepth = 20
)

// Engine owns all suppression state for one Document. Never share an
// Engine across documents or goroutines: it belongs to a single
// logical thread of control, like every other per-page structure here.
type Engine struct {
	doc    *dom.Document
	logger *slog.Logger
	now    func() time.Time
	newID  idgen.Generator

	// Two independent mappings instead of bidirectional links: either
	// side can be torn down without cycle-breaking logic.
	marks   map[*html.Node]string   // node → owning rule id
	applied map[string][]*html.Node // rule id → owned nodes
	rules   map[string]*Rule

	undo []undoEntry

	// ownUI holds roots of subtrees this system injected itself. The
	// observer consults this to avoid feedback loops, and the target
	// filter refuses to decorate anything underneath them.
	ownUI []*html.Node
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNow injects the clock used for marker and undo timestamps.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the generator for undo entry ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates an Engine bound to one document context.
func New(doc *dom.Document, opts ...Option) *Engine {
	e := &Engine{
		doc:     doc,
		logger:  slog.Default(),
		now:     time.Now,
		newID:   idgen.Prefixed("undo_", idgen.UUIDv7()),
		marks:   make(map[*html.Node]string),
		applied: make(map[string][]*html.Node),
		rules:   make(map[string]*Rule),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Document returns the document context this engine owns.
func (e *Engine) Document() *dom.Document { return e.doc }

// Rules returns the currently recorded rules.
func (e *Engine) Rules() []*Rule {
	out := make([]*Rule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	return out
}

// Rule returns a recorded rule by id, or nil.
func (e *Engine) Rule(id string) *Rule { return e.rules[id] }

// AffectedCount reports how many nodes a recorded rule currently owns.
func (e *Engine) AffectedCount(id string) int { return len(e.applied[id]) }

// OwnedNodes returns the nodes a recorded rule currently owns.
func (e *Engine) OwnedNodes(id string) []*html.Node {
	out := make([]*html.Node, len(e.applied[id]))
	copy(out, e.applied[id])
	return out
}

// RegisterOwnUI marks a subtree as this system's own injected UI. It
// is never a valid suppression target and the observer never feeds it
// back in.
func (e *Engine) RegisterOwnUI(n *html.Node) {
	e.ownUI = append(e.ownUI, n)
}

// IsOwnUI reports whether the node is, or sits under, injected UI or a
// replace placeholder.
func (e *Engine) IsOwnUI(n *html.Node) bool {
	for _, root := range e.ownUI {
		if dom.Contains(root, n) {
			return true
		}
	}
	for p := n; p != nil; p = p.Parent {
		if dom.IsElement(p) && dom.HasAttr(p, placeholderAttr) {
			return true
		}
	}
	return false
}

// validTarget applies the critical-node protection and the
// one-marker-per-node invariant.
func (e *Engine) validTarget(n *html.Node) bool {
	if dom.IsCritical(n) {
		return false
	}
	if _, marked := e.marks[n]; marked {
		return false
	}
	if dom.HasAttr(n, markAttr) {
		return false
	}
	return !e.IsOwnUI(n)
}

// ApplyRule resolves the rule's selector and decorates every valid
// target, recording one undo entry covering exactly this batch.
// Returns the number of nodes affected; 0 means the rule was not
// recorded (no valid targets, or the broadness guard fired). The only
// error is an unparseable selector.
func (e *Engine) ApplyRule(r *Rule) (int, error) {
	if r == nil || r.ID == "" || r.Selector == "" || !r.Action.valid() {
		return 0, fmt.Errorf("engine: incomplete rule")
	}
	matches, err := dom.Query(e.doc.Root(), r.Selector)
	if err != nil {
		return 0, fmt.Errorf("engine: rule %s: %w", r.ID, err)
	}

	var targets []*html.Node
	for _, n := range matches {
		if e.validTarget(n) {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}
	if len(targets) > applyCap {
		e.logger.Warn("engine: rule too broad, not applied",
			"rule", r.ID, "targets", len(targets), "cap", applyCap)
		return 0, nil
	}

	now := e.now()
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	refs := make([]nodeRef, 0, len(targets))
	for _, n := range targets {
		state, snap := e.decorate(n, r)
		dom.SetAttr(n, markAttr, state)
		dom.SetAttr(n, markRuleAttr, r.ID)
		dom.SetAttr(n, markTimeAttr, ts)
		e.marks[n] = r.ID
		refs = append(refs, nodeRef{node: n, prev: snap})
	}

	e.rules[r.ID] = r
	e.applied[r.ID] = append(e.applied[r.ID], targets...)
	e.pushUndo(undoEntry{
		id:    e.newID(),
		kind:  UndoApply,
		at:    now,
		rule:  r,
		nodes: refs,
	})

	e.logger.Debug("engine: rule applied",
		"rule", r.ID, "action", string(r.Action), "affected", len(targets))
	return len(targets), nil
}

// decorate snapshots then transforms one node, returning the reached
// marker state and the pre-apply snapshot.
func (e *Engine) decorate(n *html.Node, r *Rule) (string, dom.StyleSnapshot) {
	switch r.Action {
	case ActionHide:
		snap := dom.SnapshotStyle(n, trackedProps(ActionHide, r.Strategy))
		applyHide(n, r.Strategy)
		return StateHidden, snap
	case ActionBlank:
		snap := dom.SnapshotStyle(n, trackedProps(ActionBlank, r.Strategy))
		applyBlank(n, r.Strategy)
		return StateBlanked, snap
	case ActionReplace:
		var snap dom.StyleSnapshot
		if canIsolate(n) {
			snap = dom.SnapshotStyle(n, trackedProps(ActionReplace, r.Strategy))
		} else {
			snap = dom.SnapshotStyle(n, trackedProps(ActionHide, r.Strategy))
		}
		return applyReplace(n, r), snap
	}
	return "", nil
}

// RemoveRule restores every node the rule owns, forgets the rule, and
// records an undoable remove entry. Returns false for an unknown rule.
func (e *Engine) RemoveRule(id string) bool {
	r, ok := e.rules[id]
	if !ok {
		return false
	}
	for _, n := range e.applied[id] {
		restoreNode(n, r, nil)
		delete(e.marks, n)
	}
	delete(e.applied, id)
	delete(e.rules, id)

	e.pushUndo(undoEntry{
		id:   e.newID(),
		kind: UndoRemove,
		at:   e.now(),
		rule: r,
	})
	e.logger.Debug("engine: rule removed", "rule", id)
	return true
}

// Undo pops and consumes the most recent undo entry. An apply entry
// restores its batch, reasserting each node's snapshotted properties;
// a remove entry re-applies the original rule. Returns false on an
// empty stack.
func (e *Engine) Undo() bool {
	if len(e.undo) == 0 {
		return false
	}
	entry := e.undo[len(e.undo)-1]
	e.undo = e.undo[:len(e.undo)-1]

	switch entry.kind {
	case UndoApply:
		for _, ref := range entry.nodes {
			if e.marks[ref.node] != entry.rule.ID {
				continue // already restored by a later operation
			}
			restoreNode(ref.node, entry.rule, ref.prev)
			delete(e.marks, ref.node)
			e.applied[entry.rule.ID] = without(e.applied[entry.rule.ID], ref.node)
		}
		if len(e.applied[entry.rule.ID]) == 0 {
			delete(e.applied, entry.rule.ID)
			delete(e.rules, entry.rule.ID)
		}
	case UndoRemove:
		// Reapplication is not itself re-recorded on the stack: the
		// entry was consumed.
		if n := e.reapply(entry.rule); n > 0 {
			e.rules[entry.rule.ID] = entry.rule
		}
	}
	return true
}

// reapply is ApplyRule without the undo bookkeeping.
func (e *Engine) reapply(r *Rule) int {
	matches, err := dom.Query(e.doc.Root(), r.Selector)
	if err != nil {
		return 0
	}
	count := 0
	now := e.now()
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	for _, n := range matches {
		if !e.validTarget(n) {
			continue
		}
		state, _ := e.decorate(n, r)
		dom.SetAttr(n, markAttr, state)
		dom.SetAttr(n, markRuleAttr, r.ID)
		dom.SetAttr(n, markTimeAttr, ts)
		e.marks[n] = r.ID
		e.applied[r.ID] = append(e.applied[r.ID], n)
		count++
		if count == applyCap {
			break
		}
	}
	return count
}

// ResetAll restores every decorated node across all rules, then clears
// the rule map, the undo stack, and the own-UI registry.
func (e *Engine) ResetAll() {
	for id, nodes := range e.applied {
		r := e.rules[id]
		for _, n := range nodes {
			restoreNode(n, r, nil)
			delete(e.marks, n)
		}
	}
	e.applied = make(map[string][]*html.Node)
	e.rules = make(map[string]*Rule)
	e.undo = nil
	e.ownUI = nil
	e.logger.Debug("engine: reset")
}

// UndoDepth reports the current stack depth.
func (e *Engine) UndoDepth() int { return len(e.undo) }

func (e *Engine) pushUndo(entry undoEntry) {
	e.undo = append(e.undo, entry)
	if len(e.undo) > undoDepth {
		e.undo = e.undo[1:]
	}
}

func without(nodes []*html.Node, drop *html.Node) []*html.Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}
