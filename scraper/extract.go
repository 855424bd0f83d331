package scraper

import (
	"context"
	"regexp"
	"strings"

	"book-digest/render"
	"book-digest/utils"
)

// Extractor reads fields from one listing node. Every step returns its
// documented default instead of failing, so adapters compose steps without
// guarding each one.
type Extractor struct {
	ctx     context.Context
	node    render.Node
	baseURL string
	logger  *utils.Logger
	tag     string
	misses  int
}

func newExtractor(ctx context.Context, node render.Node, baseURL string, logger *utils.Logger, tag string) *Extractor {
	return &Extractor{ctx: ctx, node: node, baseURL: baseURL, logger: logger, tag: tag}
}

// Misses counts steps that fell back to their default.
func (e *Extractor) Misses() int { return e.misses }

func (e *Extractor) find(selector string) render.Node {
	if selector == "" {
		return e.node
	}
	n, err := e.node.Find(e.ctx, selector)
	if err != nil {
		e.logger.Debug("[%s] query %q: %v", e.tag, selector, err)
		return nil
	}
	return n
}

func (e *Extractor) miss(step, selector string) {
	e.misses++
	e.logger.Debug("[%s] %s %q missing, using default", e.tag, step, selector)
}

// Text returns the trimmed text of the first match of selector, or def.
// An empty selector reads the listing node itself.
func (e *Extractor) Text(selector, def string) string {
	n := e.find(selector)
	if n == nil {
		e.miss("text", selector)
		return def
	}
	text, err := n.Text(e.ctx)
	text = utils.CollapseSpace(text)
	if err != nil || text == "" {
		e.miss("text", selector)
		return def
	}
	return text
}

// Attr returns the trimmed attribute of the first match of selector, or def.
func (e *Extractor) Attr(selector, attr, def string) string {
	n := e.find(selector)
	if n == nil {
		e.miss("attr "+attr, selector)
		return def
	}
	v := strings.TrimSpace(n.Attr(e.ctx, attr))
	if v == "" {
		e.miss("attr "+attr, selector)
		return def
	}
	return v
}

// Link returns attr of the first match of selector resolved to an absolute
// URL, or def when missing.
func (e *Extractor) Link(selector, attr, def string) string {
	raw := e.Attr(selector, attr, "")
	if raw == "" {
		return def
	}
	if abs := utils.ResolveURL(e.baseURL, raw); abs != "" {
		return abs
	}
	return def
}

// Image collects the image hint attributes of the first match of selector
// and resolves the best candidate. It returns "" when there is no image.
func (e *Extractor) Image(selector string) string {
	n := e.find(selector)
	if n == nil {
		e.miss("image", selector)
		return ""
	}
	candidates := ImageCandidates{}
	for _, attr := range ImageAttrs {
		candidates[attr] = n.Attr(e.ctx, attr)
	}
	return ResolveImage(e.baseURL, candidates)
}

// Match applies re to text and returns the first capture group, trimmed, or "".
func Match(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// SelfLink resolves attr of the listing node itself, for layouts where the
// item element is the anchor or carries a permalink attribute.
func (e *Extractor) SelfLink(attr, def string) string {
	return e.Link("", attr, def)
}
