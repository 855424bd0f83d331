package publishers

import (
	"book-digest/models"
	"book-digest/scraper"
)

// WooCommerce product grid.
func baazhLayout(url string) scraper.Layout {
	return scraper.Layout{
		Tag:   "baazh",
		URL:   url,
		Items: "div.product-grid-item",
		Extract: func(e *scraper.Extractor) models.Listing {
			return models.Listing{
				Title:    e.Text("h3.wd-entities-title a", models.NoTitle),
				Link:     e.Link("h3.wd-entities-title a", "href", models.NoLink),
				Price:    e.Text("span.price", models.NoPrice),
				ImageURL: e.Image("div.product-element-top img"),
			}
		},
	}
}
