// Package driver defines the browser-automation port consumed by the
// harness. Concrete adapters live in subpackages; the harness itself
// only ever talks to the Driver interface.
package driver

import (
	"context"
	"fmt"
	"time"
)

// By identifies a selector strategy.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
)

// Selector locates an element on the current page.
type Selector struct {
	By    By     `json:"by" yaml:"by"`
	Value string `json:"value" yaml:"value"`
}

// CSS builds a CSS selector.
func CSS(value string) Selector {
	return Selector{By: ByCSS, Value: value}
}

// XPath builds an XPath selector.
func XPath(value string) Selector {
	return Selector{By: ByXPath, Value: value}
}

func (s Selector) String() string {
	return fmt.Sprintf("%s(%s)", s.By, s.Value)
}

// Driver is the port implemented by browser adapters. Every wait takes
// an explicit bound; no call blocks forever. Implementations must be
// safe to Close more than once.
type Driver interface {
	// Navigate loads url and blocks until the document is ready.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until sel is present and displayed.
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error
	// WaitGone blocks until sel is absent or no longer displayed.
	WaitGone(ctx context.Context, sel Selector, timeout time.Duration) error
	// Click waits for sel to become clickable, then clicks it.
	Click(ctx context.Context, sel Selector, timeout time.Duration) error
	// Text waits for sel and returns its trimmed text content.
	Text(ctx context.Context, sel Selector, timeout time.Duration) (string, error)
	// SendKeys waits for sel and types text into it.
	SendKeys(ctx context.Context, sel Selector, text string, timeout time.Duration) error
	// Submit waits for sel and submits its enclosing form.
	Submit(ctx context.Context, sel Selector, timeout time.Duration) error
	// Screenshot captures the current viewport as PNG to path.
	Screenshot(ctx context.Context, path string) error
	// PageSource returns the current document markup.
	PageSource(ctx context.Context) (string, error)
	// Alive reports whether the underlying browser still responds.
	Alive(ctx context.Context) bool
	// PID returns the browser process id, or 0 when the adapter does
	// not own a subprocess.
	PID() int
	Close() error
}
