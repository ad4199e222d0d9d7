// CLAUDE:SUMMARY Stability probe — re-query a selector after a delay and compare match counts.
package selector

import (
	"context"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domveil/dom"
)

// Probe re-queries a selector after the given delay and reports
// whether it is stable: the match count is unchanged and nonzero.
// root is a function so callers can hand back the current tree after
// streamed mutations have landed. Auxiliary — generation never depends
// on it.
func Probe(ctx context.Context, root func() *html.Node, raw string, delay time.Duration) bool {
	before, err := dom.Query(root(), raw)
	if err != nil || len(before) == 0 {
		return false
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}

	after, err := dom.Query(root(), raw)
	if err != nil {
		return false
	}
	return len(after) == len(before)
}
