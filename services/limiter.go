package services

import "book-digest/models"

// DefaultPerPublisherCap is used when a caller passes a cap below one.
const DefaultPerPublisherCap = 3

// LimitPerPublisher keeps the first perPublisher listings of each publisher,
// preserving the input order of everything it keeps. Listings without a
// publisher share the "Unknown Publisher" bucket.
func LimitPerPublisher(listings []models.Listing, perPublisher int) []models.Listing {
	if perPublisher < 1 {
		perPublisher = DefaultPerPublisherCap
	}

	counts := make(map[string]int)
	kept := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		key := l.PublisherKey()
		if counts[key] >= perPublisher {
			continue
		}
		counts[key]++
		kept = append(kept, l)
	}
	return kept
}
