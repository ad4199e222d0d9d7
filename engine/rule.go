// CLAUDE:SUMMARY Rule model and validation — the persisted suppression contract shared with store, server, suggest.
package engine

import (
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
	"github.com/hazyhaar/domveil/selector"
)

// Action is the suppression applied to matched nodes.
type Action string

const (
	ActionHide    Action = "hide"
	ActionBlank   Action = "blank"
	ActionReplace Action = "replace"
)

func (a Action) valid() bool {
	switch a {
	case ActionHide, ActionBlank, ActionReplace:
		return true
	}
	return false
}

// Strategy tunes how a suppression interacts with layout.
type Strategy struct {
	// PreserveLayout keeps the node's layout box (visibility instead of
	// display, no opacity collapse).
	PreserveLayout bool `json:"preserveLayout"`
	// CollapseSpace is advisory for hide: collapse the occupied space.
	CollapseSpace bool `json:"collapseSpace"`
}

// Rule is one suppression rule. This is also the persisted JSON shape:
// store/ writes it per origin, capped at 100 entries.
type Rule struct {
	ID         string            `json:"id"`
	Host       string            `json:"host"`
	Action     Action            `json:"action"`
	Selector   string            `json:"selector"`
	Strategy   Strategy          `json:"strategy"`
	Notes      string            `json:"notes,omitempty"`
	CreatedAt  int64             `json:"createdAt"`
	Version    int               `json:"version"`
	Anchors    *selector.Anchors `json:"anchors,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}

// validateCap is the broadness ceiling at validation time. ApplyRule
// re-checks with its own stricter cap.
const validateCap = 100

// ValidateRule checks a rule before apply: id, selector, and action
// must be present, the selector must parse under the dom dialect, and
// it must not already resolve to more than validateCap matches.
// Suggestions from external collaborators pass through here exactly
// like manually built rules.
func (e *Engine) ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("engine: nil rule")
	}
	if r.ID == "" {
		return fmt.Errorf("engine: rule missing id")
	}
	if r.Selector == "" {
		return fmt.Errorf("engine: rule %s missing selector", r.ID)
	}
	if !r.Action.valid() {
		return fmt.Errorf("engine: rule %s has unknown action %q", r.ID, r.Action)
	}
	nodes, err := dom.Query(e.doc.Root(), r.Selector)
	if err != nil {
		return fmt.Errorf("engine: rule %s: %w", r.ID, err)
	}
	if len(nodes) > validateCap {
		return fmt.Errorf("engine: rule %s selector matches %d nodes (cap %d)", r.ID, len(nodes), validateCap)
	}
	return nil
}

// UndoKind distinguishes undo entries.
type UndoKind string

const (
	UndoApply  UndoKind = "apply"
	UndoRemove UndoKind = "remove"
)

// undoEntry captures one reversible batch. For apply entries, prev
// holds the pre-apply snapshots of exactly the nodes in the batch; for
// remove entries, rule alone is enough to re-apply.
type undoEntry struct {
	id    string
	kind  UndoKind
	at    time.Time
	rule  *Rule
	nodes []nodeRef
}

type nodeRef struct {
	node *html.Node
	prev dom.StyleSnapshot
}
