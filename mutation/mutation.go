// Package mutation defines the structured mutation feed the observer
// consumes. Any producer — a browser bridge, a streaming HTML differ,
// a test harness — emits these types; the Feed adapter resolves them
// against the live tree and drives re-application.
package mutation

// Op is the type of document mutation observed.
type Op string

const (
	OpInsert   Op = "insert"    // node inserted (includes serialised subtree HTML)
	OpRemove   Op = "remove"    // node removed
	OpText     Op = "text"      // character data modified
	OpAttr     Op = "attr"      // attribute set
	OpAttrDel  Op = "attr_del"  // attribute removed
	OpNavigate Op = "navigate"  // virtual navigation (history/fragment)
	OpDocReset Op = "doc_reset" // entire document replaced
)

// Record is a single mutation.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"`      // attribute name for attr/attr_del
	Value    string `json:"value,omitempty"`     // new value; target URL for navigate
	OldValue string `json:"old_value,omitempty"` // previous value
	HTML     string `json:"html,omitempty"`      // serialised subtree for insert
}

// Batch is the atomic feed unit: all mutations collected during one
// producer-side debounce window.
type Batch struct {
	ID        string   `json:"id"`
	PageURL   string   `json:"page_url"`
	Seq       uint64   `json:"seq"` // monotonically increasing per page, for gap detection
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds at flush
}
