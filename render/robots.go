package render

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// Polite wraps a Renderer and refuses pages that the host's robots.txt
// disallows for the configured agent. Hosts without a readable robots.txt
// are treated as allowing everything.
type Polite struct {
	next   Renderer
	agent  string
	client *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewPolite creates a Polite renderer around next.
func NewPolite(next Renderer, agent string, client *http.Client) *Polite {
	if client == nil {
		client = http.DefaultClient
	}
	return &Polite{
		next:   next,
		agent:  agent,
		client: client,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

func (p *Polite) Open(ctx context.Context, target string) (Page, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("render: parse %s: %w", target, err)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	robots := p.robotsFor(ctx, u)
	if robots != nil && !robots.TestAgent(path, p.agent) {
		return nil, fmt.Errorf("%w: %s", ErrDisallowed, target)
	}
	return p.next.Open(ctx, target)
}

// robotsFor returns the cached rules for u's host, fetching them on first
// use. The fetch runs outside the lock so one slow host does not hold up the
// others. Transport failures are not cached.
func (p *Polite) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	p.mu.Lock()
	data, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return data
	}

	data, err := p.fetch(ctx, key+"/robots.txt")
	if err != nil || ctx.Err() != nil {
		return nil
	}

	p.mu.Lock()
	p.cache[key] = data
	p.mu.Unlock()
	return data
}

// fetch returns nil data with a nil error for an unparsable robots.txt, which
// is treated as allowing everything.
func (p *Polite) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, nil
	}
	return data, nil
}
