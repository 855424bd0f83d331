package publishers

import (
	"book-digest/models"
	"book-digest/scraper"
)

// Slider cards where the card itself is the anchor.
func porteghaalLayout(url string) scraper.Layout {
	return scraper.Layout{
		Tag:   "porteghaal",
		URL:   url,
		Items: "a.porteghal-slider-item",
		Extract: func(e *scraper.Extractor) models.Listing {
			return models.Listing{
				Title:    e.Text("p.cart-title", models.NoTitle),
				Link:     e.SelfLink("href", models.NoLink),
				Price:    e.Text("p.sale-price span.font-semibold", models.NoPrice),
				ImageURL: e.Image("img.porteghal-card-pic"),
			}
		},
	}
}
