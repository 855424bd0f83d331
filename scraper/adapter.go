// Package scraper turns publisher pages into listings. Each site is described
// by a Layout; the framework owns navigation, waiting, failure isolation and
// field defaults so that site code only names selectors.
package scraper

import (
	"context"
	"fmt"
	"time"

	"book-digest/models"
	"book-digest/render"
	"book-digest/utils"
)

// Adapter produces listings for one publisher. Scrape never fails past its
// own boundary: a broken site yields an Outcome with no listings and Err set.
type Adapter interface {
	Publisher() string
	Scrape(ctx context.Context, r render.Renderer) Outcome
}

// Outcome is the result of one adapter pass.
type Outcome struct {
	Publisher string
	Listings  []models.Listing
	// Err is the absorbed failure, if any. Listings is empty when it is set.
	Err error
	// Defaulted counts extraction steps that fell back to their default.
	Defaulted int
	Elapsed   time.Duration
}

// Wait is an optional precondition checked after navigation.
type Wait struct {
	Selector string
	Timeout  time.Duration
	// Required turns a timeout into an adapter failure instead of a warning.
	Required bool
}

// Layout describes one publisher page.
type Layout struct {
	Publisher    string
	Tag          string
	URL          string
	Wait         Wait
	Scrolls      int
	ScrollSettle time.Duration
	Items        string
	Extract      func(e *Extractor) models.Listing
}

type siteAdapter struct {
	layout Layout
	logger *utils.Logger
}

// New builds an Adapter from a Layout.
func New(layout Layout, logger *utils.Logger) Adapter {
	if layout.Tag == "" {
		layout.Tag = layout.Publisher
	}
	return &siteAdapter{layout: layout, logger: logger}
}

func (a *siteAdapter) Publisher() string { return a.layout.Publisher }

func (a *siteAdapter) Scrape(ctx context.Context, r render.Renderer) (out Outcome) {
	start := time.Now()
	out.Publisher = a.layout.Publisher

	defer func() {
		if rec := recover(); rec != nil {
			out.Listings = nil
			out.Err = fmt.Errorf("scraper: %s panicked: %v", a.layout.Publisher, rec)
			a.logger.Warn("[%s] %v", a.layout.Tag, out.Err)
		}
		out.Elapsed = time.Since(start)
	}()

	listings, defaulted, err := a.scrape(ctx, r)
	if err != nil {
		a.logger.Warn("[%s] scrape failed, no listings from %s: %v", a.layout.Tag, a.layout.URL, err)
		out.Err = err
		return out
	}

	a.logger.Info("[%s] Found %d items (%d fields defaulted)", a.layout.Tag, len(listings), defaulted)
	out.Listings = listings
	out.Defaulted = defaulted
	return out
}

func (a *siteAdapter) scrape(ctx context.Context, r render.Renderer) ([]models.Listing, int, error) {
	l := a.layout

	page, err := r.Open(ctx, l.URL)
	if err != nil {
		return nil, 0, err
	}
	defer page.Close()

	if l.Wait.Selector != "" {
		if err := page.WaitFor(ctx, l.Wait.Selector, l.Wait.Timeout); err != nil {
			if l.Wait.Required {
				return nil, 0, err
			}
			a.logger.Warn("[%s] no %s within %v, continuing to look for content",
				l.Tag, l.Wait.Selector, l.Wait.Timeout)
		}
	}

	if l.Scrolls > 0 {
		if err := page.Scroll(ctx, l.Scrolls, l.ScrollSettle); err != nil {
			a.logger.Warn("[%s] %v", l.Tag, err)
		}
	}

	nodes, err := page.QueryAll(ctx, l.Items)
	if err != nil {
		return nil, 0, err
	}
	a.logger.Debug("[%s] %d %s nodes", l.Tag, len(nodes), l.Items)

	listings := make([]models.Listing, 0, len(nodes))
	defaulted := 0
	for _, n := range nodes {
		e := newExtractor(ctx, n, l.URL, a.logger, l.Tag)
		listings = append(listings, a.normalize(l.Extract(e)))
		defaulted += e.Misses()
	}

	// Steps default on error, so a deadline hit mid-page would otherwise
	// surface as a page of placeholder listings.
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return listings, defaulted, nil
}

func (a *siteAdapter) normalize(l models.Listing) models.Listing {
	l.Publisher = a.layout.Publisher
	if l.Title == "" {
		l.Title = models.NoTitle
	}
	if l.Price == "" {
		l.Price = models.NoPrice
	}
	if l.Link == "" {
		l.Link = models.NoLink
	}
	return l
}
