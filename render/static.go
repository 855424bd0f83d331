package render

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// StaticRenderer fetches pages over plain HTTP and queries them with goquery.
// It runs no scripts, so it only suits sites that render listings server-side.
type StaticRenderer struct {
	client    *http.Client
	userAgent string
}

// NewStaticRenderer creates a StaticRenderer. A nil client gets a 30s default.
func NewStaticRenderer(client *http.Client, userAgent string) *StaticRenderer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &StaticRenderer{client: client, userAgent: userAgent}
}

func (r *StaticRenderer) Open(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("render: build request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render: navigate %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("render: navigate %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("render: parse %s: %w", url, err)
	}
	return &staticPage{url: url, doc: doc}, nil
}

type staticPage struct {
	url string
	doc *goquery.Document
}

func (p *staticPage) URL() string { return p.url }

// WaitFor succeeds immediately when the selector is present; a static
// document never changes, so absence is reported as a timeout at once.
func (p *staticPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %q", ErrSelectorTimeout, selector)
	}
	return nil
}

func (p *staticPage) Scroll(ctx context.Context, times int, settle time.Duration) error {
	return ctx.Err()
}

func (p *staticPage) QueryAll(ctx context.Context, selector string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var nodes []Node
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, staticNode{sel: s})
	})
	return nodes, nil
}

func (p *staticPage) Close() error { return nil }

type staticNode struct {
	sel *goquery.Selection
}

func (n staticNode) Find(ctx context.Context, selector string) (Node, error) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, nil
	}
	return staticNode{sel: found}, nil
}

func (n staticNode) Attr(ctx context.Context, name string) string {
	v, _ := n.sel.Attr(name)
	return v
}

func (n staticNode) Text(ctx context.Context) (string, error) {
	return n.sel.Text(), nil
}
