// CLAUDE:SUMMARY Feed adapter — resolves wire records against the live tree and drives the observer.
package mutation

import (
	"log/slog"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
	"github.com/hazyhaar/domveil/observer"
)

// Feed applies incoming mutation batches to one document context:
// records mutate the tree, then the affected nodes are handed to the
// observer so stored rules get re-asserted. Sequence gaps are logged
// but tolerated — a missed batch only delays re-application until the
// next signal, it cannot corrupt engine state.
type Feed struct {
	doc     *dom.Document
	obs     *observer.Observer
	logger  *slog.Logger
	lastSeq uint64
}

// NewFeed wires a feed to a document and its observer.
func NewFeed(doc *dom.Document, obs *observer.Observer, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{doc: doc, obs: obs, logger: logger}
}

// HandleBatch mutates the tree per the batch's records and feeds the
// observer. Records whose xpath no longer resolves are skipped: the
// tree moved on, and the next batch or snapshot will catch up.
func (f *Feed) HandleBatch(b *Batch) {
	if f.lastSeq != 0 && b.Seq > f.lastSeq+1 {
		f.logger.Warn("mutation: sequence gap", "have", f.lastSeq, "got", b.Seq)
	}
	if b.Seq > f.lastSeq {
		f.lastSeq = b.Seq
	}

	for _, rec := range b.Records {
		f.handleRecord(rec)
	}
}

func (f *Feed) handleRecord(rec Record) {
	switch rec.Op {
	case OpNavigate:
		f.obs.Navigated(rec.Value)

	case OpDocReset:
		// Whole document replaced: same recovery path as navigation —
		// drop pending work, settle, reapply everything.
		f.obs.Navigated(f.doc.Origin())

	case OpInsert:
		parent := dom.ResolvePath(f.doc.Root(), rec.XPath)
		if parent == nil {
			return
		}
		nodes, err := dom.AppendChildHTML(parent, rec.HTML)
		if err != nil {
			f.logger.Warn("mutation: bad insert fragment", "xpath", rec.XPath, "error", err)
			return
		}
		f.obs.NodesInserted(nodes...)

	case OpRemove:
		n := dom.ResolvePath(f.doc.Root(), rec.XPath)
		if n == nil || n.Parent == nil {
			return
		}
		n.Parent.RemoveChild(n)

	case OpAttr:
		n := dom.ResolvePath(f.doc.Root(), rec.XPath)
		if n == nil {
			return
		}
		dom.SetAttr(n, rec.Name, rec.Value)
		f.obs.AttributeChanged(n, rec.Name)

	case OpAttrDel:
		n := dom.ResolvePath(f.doc.Root(), rec.XPath)
		if n == nil {
			return
		}
		dom.RemoveAttr(n, rec.Name)
		f.obs.AttributeChanged(n, rec.Name)

	case OpText:
		n := dom.ResolvePath(f.doc.Root(), rec.XPath)
		if n == nil {
			return
		}
		setText(n, rec.Value)
	}
}

// setText replaces the first text child, or appends one.
func setText(n *html.Node, value string) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			c.Data = value
			return
		}
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
}
