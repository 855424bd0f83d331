package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the shared headless browser.
type ChromeOptions struct {
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	Logf              func(string, ...any)
}

// ChromeRenderer drives one headless Chrome session. Every Open gets its own
// tab, so pages may be used sequentially or concurrently.
type ChromeRenderer struct {
	browser    context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
}

// NewChromeRenderer launches the browser and waits until it is ready.
func NewChromeRenderer(ctx context.Context, opts ChromeOptions) (*ChromeRenderer, error) {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1280, 800),
	)
	if opts.UserAgent != "" {
		execOpts = append(execOpts, chromedp.UserAgent(opts.UserAgent))
	}
	execPath := opts.ExecPath
	if execPath == "" {
		execPath = FindChromeBinary()
	}
	if execPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, execOpts...)

	logf := opts.Logf
	if logf == nil {
		// chromedp is noisy about CDP events it does not know
		logf = func(string, ...any) {}
	}
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(logf))

	// An empty Run starts the browser bound to browserCtx rather than to
	// some shorter-lived derived context.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("render: start browser: %w", err)
	}

	navTimeout := opts.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 90 * time.Second
	}

	return &ChromeRenderer{
		browser: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		navTimeout: navTimeout,
	}, nil
}

// Close shuts the browser down.
func (r *ChromeRenderer) Close() error {
	r.cancel()
	return nil
}

func (r *ChromeRenderer) Open(ctx context.Context, url string) (Page, error) {
	tab, closeTab := chromedp.NewContext(r.browser)
	// The first Run ties the tab's lifetime to its context, so it has to run
	// on tab itself; ctx can only bound it by closing the tab.
	stop := context.AfterFunc(ctx, closeTab)
	err := chromedp.Run(tab)
	stop()
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if err != nil {
		closeTab()
		return nil, fmt.Errorf("render: open tab: %w", err)
	}

	p := &chromePage{url: url, tab: tab, close: closeTab}

	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()
	if err := p.run(navCtx, chromedp.Navigate(url)); err != nil {
		closeTab()
		return nil, fmt.Errorf("render: navigate %s: %w", url, err)
	}
	return p, nil
}

type chromePage struct {
	url   string
	tab   context.Context
	close context.CancelFunc
}

// run executes actions on the tab while honouring ctx's deadline and
// cancellation. Cancelling the derived context leaves the tab open.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) URL() string { return p.url }

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %q after %v", ErrSelectorTimeout, selector, timeout)
	}
	return err
}

func (p *chromePage) Scroll(ctx context.Context, times int, settle time.Duration) error {
	for i := 0; i < times; i++ {
		err := p.run(ctx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight);`, nil),
			chromedp.Sleep(settle),
		)
		if err != nil {
			return fmt.Errorf("render: scroll: %w", err)
		}
	}
	return nil
}

func (p *chromePage) QueryAll(ctx context.Context, selector string) ([]Node, error) {
	var found []*cdp.Node
	err := p.run(ctx, chromedp.Nodes(selector, &found, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("render: query %q: %w", selector, err)
	}
	return p.wrap(found), nil
}

func (p *chromePage) Close() error {
	p.close()
	return nil
}

func (p *chromePage) wrap(found []*cdp.Node) []Node {
	nodes := make([]Node, 0, len(found))
	for _, n := range found {
		nodes = append(nodes, &chromeNode{page: p, node: n})
	}
	return nodes
}

type chromeNode struct {
	page *chromePage
	node *cdp.Node
}

func (n *chromeNode) Find(ctx context.Context, selector string) (Node, error) {
	var found []*cdp.Node
	err := n.page.run(ctx, chromedp.Nodes(selector, &found,
		chromedp.ByQueryAll, chromedp.FromNode(n.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("render: query %q: %w", selector, err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &chromeNode{page: n.page, node: found[0]}, nil
}

func (n *chromeNode) Attr(ctx context.Context, name string) string {
	return n.node.AttributeValue(name)
}

func (n *chromeNode) Text(ctx context.Context) (string, error) {
	var text string
	err := n.page.run(ctx, chromedp.Text([]cdp.NodeID{n.node.NodeID}, &text, chromedp.ByNodeID))
	if err != nil {
		return "", fmt.Errorf("render: text: %w", err)
	}
	return text, nil
}

// FindChromeBinary locates a Chrome/Chromium binary, preferring CHROME_BIN.
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
