// Package notify delivers user-visible notices. Every terminal failure
// produces exactly one human-readable line; diagnostic detail stays in the
// structured log.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Notifier receives one-line user notices.
type Notifier interface {
	Notice(msg string)
}

// Func adapts a function to the Notifier interface.
type Func func(msg string)

// Notice implements Notifier.
func (f Func) Notice(msg string) { f(msg) }

// Writer prints notices to an io.Writer, one per line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Notifier printing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Notice implements Notifier.
func (n *Writer) Notice(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, msg)
}

// Multi fans a notice out to several notifiers.
func Multi(targets ...Notifier) Notifier {
	return Func(func(msg string) {
		for _, t := range targets {
			if t != nil {
				t.Notice(msg)
			}
		}
	})
}

// Discard drops all notices. Useful in tests.
var Discard Notifier = Func(func(string) {})
