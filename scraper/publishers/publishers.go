// Package publishers holds the page layouts of the supported publisher sites.
package publishers

import (
	"book-digest/scraper"
	"book-digest/utils"
)

// Display names, as requested by callers and shown in digests.
const (
	Baazh      = "Baazh Book"
	Porteghaal = "Porteghaal"
	Tandis     = "Tandis Pub"
	Tor        = "Tor Books"
	DAW        = "DAW Books"
	FantasyLit = "Fantasy Literature"
)

type layoutFunc func(url string) scraper.Layout

var all = []struct {
	name   string
	url    string
	layout layoutFunc
}{
	{Baazh, "https://baazhbook.com/", baazhLayout},
	{Porteghaal, "https://porteghaal.com/", porteghaalLayout},
	{Tandis, "https://tandispub.com/", tandisLayout},
	{Tor, "https://torpublishinggroup.com/", torLayout},
	{DAW, "https://astrapublishinghouse.com/", dawLayout},
	{FantasyLit, "https://fantasyliterature.com/", fantasyLitLayout},
}

// Default registers every publisher. overrides maps a display name to a
// replacement page URL, for mirrors and tests.
func Default(logger *utils.Logger, overrides map[string]string) *scraper.Registry {
	reg := scraper.NewRegistry()
	for _, p := range all {
		url := p.url
		if o, ok := overrides[p.name]; ok && o != "" {
			url = o
		}
		layout := p.layout(url)
		layout.Publisher = p.name
		reg.Register(scraper.New(layout, logger))
	}
	return reg
}
