// CLAUDE:SUMMARY Injectable clock — debounce and settling delays are deterministic under test.
package observer

import "time"

// Clock supplies the observer's notion of time. The production
// implementation wraps the wall clock; tests inject a manual clock and
// drive deadlines explicitly, so no test ever sleeps.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall-clock implementation.
func SystemClock() Clock { return realClock{} }
