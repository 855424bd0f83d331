package publishers

import (
	"regexp"
	"time"

	"book-digest/models"
	"book-digest/scraper"
)

// "... reviewed the new novel by Jane Q. Author, which ..."
var byline = regexp.MustCompile(`\bby\s+([A-Z][\w.'’\-]*(?:\s+[A-Z][\w.'’\-]*)*)`)

const (
	fantasyLitExcerpt = ".excerpt.entry-summary p"
	fantasyLitAuthor  = ".post-content .post-block .author-detail a[rel='author'], .post-meta a[rel='author']"
)

// Review blog. Posts load lazily, so the page is scrolled before querying,
// and a missing article.post only earns a warning.
func fantasyLitLayout(url string) scraper.Layout {
	return scraper.Layout{
		Tag: "fantasylit",
		URL: url,
		Wait: scraper.Wait{
			Selector: "article.post",
			Timeout:  30 * time.Second,
		},
		Scrolls:      3,
		ScrollSettle: time.Second,
		Items:        "article.post",
		Extract: func(e *scraper.Extractor) models.Listing {
			excerpt := e.Text(fantasyLitExcerpt, "")

			author := e.Text(fantasyLitAuthor, "")
			if author == "" {
				author = scraper.Match(byline, excerpt)
			}

			return models.Listing{
				Title:    e.Text("h2.post-title a", models.NoTitle),
				Link:     e.Link("h2.post-title a", "href", models.NoLink),
				Author:   author,
				Price:    models.NoPrice,
				ImageURL: e.Image(".header a img, .header img"),
				DateMeta: e.Text(".post-meta .meta-info, .post-meta", ""),
				Excerpt:  excerpt,
			}
		},
	}
}
