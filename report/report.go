// CLAUDE:SUMMARY Suppression audit trail — markdown rendition of suppressed regions, JSONL output.
// Package report records what each applied rule actually suppressed,
// in a form a human can review later: the matched region converted to
// markdown plus the rule metadata. Purely observational — nothing in
// the apply path depends on it.
package report

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
)

// Entry is one audit record.
type Entry struct {
	RuleID    string `json:"rule_id"`
	Origin    string `json:"origin"`
	Action    string `json:"action"`
	Selector  string `json:"selector"`
	XPath     string `json:"xpath"`
	Markdown  string `json:"markdown"`
	Timestamp int64  `json:"timestamp"`
}

// Recorder writes audit entries as JSON lines.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	conv   *converter.Converter
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing JSONL to w.
func NewRecorder(w io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		w: w,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger: logger,
	}
}

// Record captures one suppressed node. Conversion failures degrade to
// the plain text content — the audit line is still written.
func (r *Recorder) Record(origin, ruleID, action, selector string, n *html.Node) {
	md := r.markdown(n)
	e := Entry{
		RuleID:    ruleID,
		Origin:    origin,
		Action:    action,
		Selector:  selector,
		XPath:     dom.AbsolutePath(n),
		Markdown:  md,
		Timestamp: time.Now().UnixMilli(),
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		r.logger.Warn("report: write audit entry", "error", err)
	}
}

func (r *Recorder) markdown(n *html.Node) string {
	raw := dom.RenderNode(n)
	if raw == "" {
		return ""
	}
	md, err := r.conv.ConvertString(raw)
	if err != nil || strings.TrimSpace(md) == "" {
		return dom.Text(n)
	}
	return strings.TrimSpace(md)
}
