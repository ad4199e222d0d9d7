// CLAUDE:SUMMARY Locator-suggestion collaborator boundary — remote client plus sanitisation of untrusted output.
// Package suggest defines the boundary to natural-language or learned
// locator-suggestion services. Everything a Suggester returns is
// untrusted input: callers re-validate each suggestion through the
// engine's ValidateRule/ApplyRule path, so a suggestion service can
// never bypass the broadness guard or the critical-node protections.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Suggestion is one proposed locator.
type Suggestion struct {
	Selector    string  `json:"selector"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Suggester proposes locators for a natural-language prompt.
type Suggester interface {
	Suggest(ctx context.Context, prompt string) ([]Suggestion, error)
}

// Remote is an HTTP Suggester: POSTs {"prompt": ...} and expects a
// JSON array of suggestions back. Descriptions are sanitised before
// they reach any UI surface.
type Remote struct {
	url      string
	client   *http.Client
	sanitize *bluemonday.Policy
}

// NewRemote creates a Remote suggester. If client is nil, a default
// client with a 10s timeout is used.
func NewRemote(url string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{
		url:      url,
		client:   client,
		sanitize: bluemonday.StrictPolicy(),
	}
}

// Suggest calls the remote service. Failures belong to the
// collaborator: the core engine never calls this directly.
func (r *Remote) Suggest(ctx context.Context, prompt string) ([]Suggestion, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: status %d", resp.StatusCode)
	}

	var out []Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("suggest: decode: %w", err)
	}
	for i := range out {
		out[i].Description = r.sanitize.Sanitize(out[i].Description)
	}
	return out, nil
}

// SanitizeNote strips markup from note text destined for a replace
// placeholder. The engine inserts notes as text nodes; sanitising here
// covers any surface that later renders them as HTML.
func SanitizeNote(note string) string {
	return bluemonday.StrictPolicy().Sanitize(note)
}
