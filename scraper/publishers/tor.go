package publishers

import (
	"book-digest/models"
	"book-digest/scraper"
)

// Tor lists no prices. Covers come from imgix, often lazy via ix-src.
func torLayout(url string) scraper.Layout {
	return scraper.Layout{
		Tag:   "tor",
		URL:   url,
		Items: "div.card-list-item",
		Extract: func(e *scraper.Extractor) models.Listing {
			return models.Listing{
				Title:    e.Text("h3.card-post-title a", models.NoTitle),
				Link:     e.Link("h3.card-post-title a", "href", models.NoLink),
				Price:    models.NoPrice,
				ImageURL: e.Image("img[ix-src], img[src]"),
			}
		},
	}
}
