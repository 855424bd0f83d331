// Package render is the page-rendering capability the source adapters run
// against: open a URL, wait for a selector, scroll, and query nodes.
package render

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSelectorTimeout is returned when a waited-for selector never appears.
	ErrSelectorTimeout = errors.New("render: selector wait timed out")
	// ErrDisallowed is returned when robots.txt forbids the page.
	ErrDisallowed = errors.New("render: disallowed by robots.txt")
)

// Renderer opens pages. Implementations may share one browsing session
// across sequential or concurrent Open calls.
type Renderer interface {
	Open(ctx context.Context, url string) (Page, error)
}

// Page is one navigated document.
type Page interface {
	// URL is the address the page was opened with.
	URL() string
	// WaitFor blocks until selector matches or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Scroll scrolls one viewport down times times, pausing settle after each.
	Scroll(ctx context.Context, times int, settle time.Duration) error
	// QueryAll returns every node matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Node, error)
	Close() error
}

// Node is one element of a rendered page.
type Node interface {
	// Find returns the first descendant matching selector, or nil when none does.
	Find(ctx context.Context, selector string) (Node, error)
	// Attr returns the attribute value, or "" when absent.
	Attr(ctx context.Context, name string) string
	// Text returns the rendered text content.
	Text(ctx context.Context) (string, error)
}
