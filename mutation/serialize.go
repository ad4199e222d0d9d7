// CLAUDE:SUMMARY JSON wire helpers and content hashing for mutation batches.
package mutation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// MarshalBatch serialises a batch to its JSON wire form.
func MarshalBatch(b *Batch) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("mutation: marshal batch: %w", err)
	}
	return data, nil
}

// UnmarshalBatch parses the JSON wire form.
func UnmarshalBatch(data []byte) (*Batch, error) {
	b := &Batch{}
	if err := json.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("mutation: unmarshal batch: %w", err)
	}
	return b, nil
}

// HashHTML returns the hex SHA-256 of serialised markup, used to
// detect unchanged subtrees cheaply.
func HashHTML(html []byte) string {
	sum := sha256.Sum256(html)
	return hex.EncodeToString(sum[:])
}
