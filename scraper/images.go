package scraper

import (
	"strconv"
	"strings"

	"book-digest/utils"
)

// Image hint attributes understood by ResolveImage.
const (
	AttrSrcset     = "srcset"
	AttrDataSrcset = "data-srcset"
	AttrDataSrc    = "data-src"
	AttrSrc        = "src"
	AttrIxSrc      = "ix-src"
)

var (
	// responsive lists, primary attribute before its lazy-load variant
	responsiveAttrs = []string{AttrSrcset, AttrDataSrcset}
	// single URLs: lazy-load source, plain source, then imgix's lazy attribute
	singleAttrs = []string{AttrDataSrc, AttrSrc, AttrIxSrc}

	// ImageAttrs is every attribute an Extractor reads from an image node.
	ImageAttrs = append(append([]string{}, responsiveAttrs...), singleAttrs...)
)

// ImageCandidates maps hint-attribute name to raw attribute text.
type ImageCandidates map[string]string

// SrcsetEntry is one parsed "url [descriptor]" pair.
type SrcsetEntry struct {
	URL   string
	Width int
}

// ParseSrcset splits a responsive source list. Entries without a numeric
// "w" descriptor get width 0.
func ParseSrcset(srcset string) []SrcsetEntry {
	var entries []SrcsetEntry
	for _, part := range strings.Split(srcset, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		url, descriptor := part, ""
		if i := strings.LastIndexAny(part, " \t\n"); i >= 0 {
			url, descriptor = strings.TrimSpace(part[:i]), part[i+1:]
		}

		width := 0
		if strings.HasSuffix(descriptor, "w") {
			if n, err := strconv.Atoi(strings.TrimSuffix(descriptor, "w")); err == nil && n > 0 {
				width = n
			}
		}
		entries = append(entries, SrcsetEntry{URL: url, Width: width})
	}
	return entries
}

// ResolveImage picks the best absolute image URL from candidates, or "".
// A non-empty responsive list always wins: its widest entry is chosen, the
// first one on ties. Otherwise the first non-empty single-URL attribute is used.
func ResolveImage(baseURL string, candidates ImageCandidates) string {
	for _, attr := range responsiveAttrs {
		entries := ParseSrcset(candidates[attr])
		if len(entries) == 0 {
			continue
		}
		best := entries[0]
		for _, e := range entries[1:] {
			if e.Width > best.Width {
				best = e
			}
		}
		return utils.ResolveURL(baseURL, best.URL)
	}

	for _, attr := range singleAttrs {
		if v := strings.TrimSpace(candidates[attr]); v != "" {
			return utils.ResolveURL(baseURL, v)
		}
	}
	return ""
}
