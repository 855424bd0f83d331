package publishers

import (
	"time"

	"book-digest/models"
	"book-digest/scraper"
)

// The portfolio grid is injected by script after load.
func dawLayout(url string) scraper.Layout {
	return scraper.Layout{
		Tag: "daw",
		URL: url,
		Wait: scraper.Wait{
			Selector: "div.portfolio-item-wrap",
			Timeout:  15 * time.Second,
			Required: true,
		},
		Items: "div.portfolio-item-wrap",
		Extract: func(e *scraper.Extractor) models.Listing {
			return models.Listing{
				Title:    e.Text("h3", models.NoTitle),
				Author:   e.Text("span", ""),
				Link:     e.SelfLink("data-permalink", models.NoLink),
				Price:    models.NoPrice,
				ImageURL: e.Image("div.portfolio-image img"),
			}
		},
	}
}
