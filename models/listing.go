package models

// Placeholder values used when a field cannot be extracted.
const (
	NoTitle          = "No Title"
	NoPrice          = "N/A"
	NoLink           = "#"
	UnknownPublisher = "Unknown Publisher"
)

// Listing is one book discovered on a publisher page. Every adapter produces
// the same shape; fields a site does not expose stay empty.
//
// LocalImage and ContentID are the asset binding, set once by the asset
// fetcher and only when the image was actually stored.
type Listing struct {
	Publisher string `json:"publisher"`
	Title     string `json:"title"`
	Author    string `json:"author,omitempty"`
	Price     string `json:"price"`
	ImageURL  string `json:"image"`
	Link      string `json:"link"`
	Excerpt   string `json:"excerpt,omitempty"`
	DateMeta  string `json:"date_meta,omitempty"`

	LocalImage string `json:"local_image,omitempty"`
	ContentID  string `json:"cid,omitempty"`
}

// PublisherKey returns the grouping key used for per-publisher limits.
func (l Listing) PublisherKey() string {
	if l.Publisher == "" {
		return UnknownPublisher
	}
	return l.Publisher
}

// HasAsset reports whether a stored image is bound to the listing.
func (l Listing) HasAsset() bool {
	return l.LocalImage != "" && l.ContentID != ""
}

// AssetStatus is the outcome of one image fetch attempt.
type AssetStatus string

const (
	AssetFetched      AssetStatus = "fetched"
	AssetSkippedNoURL AssetStatus = "skipped_no_url"
	AssetFailed       AssetStatus = "failed"
)

// AssetRecord describes what happened to one listing's image. There is
// exactly one record per listing per run; records are never persisted.
type AssetRecord struct {
	SourceURL string
	LocalPath string
	ContentID string
	Status    AssetStatus
	Err       error
}
