package publishers

import (
	"book-digest/models"
	"book-digest/scraper"
)

func tandisLayout(url string) scraper.Layout {
	return scraper.Layout{
		Tag:   "tandis",
		URL:   url,
		Items: "div.sc-item-content",
		Extract: func(e *scraper.Extractor) models.Listing {
			return models.Listing{
				Title: e.Text("h3", models.NoTitle),
				// the card links to several pages; only the book page is wanted
				Link:     e.Link("a[href*='/book/']", "href", models.NoLink),
				Price:    e.Text("p.price", models.NoPrice),
				ImageURL: e.Image("a.fimage img"),
			}
		},
	}
}
