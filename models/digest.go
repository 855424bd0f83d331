package models

// DigestEntry is one listing as it appears in the digest body. An empty
// ContentID means the entry renders a placeholder slot instead of an image.
type DigestEntry struct {
	Title     string
	Publisher string
	Author    string
	Price     string
	Link      string
	ContentID string
}

// Attachment is an inline image bound to exactly one entry by ContentID.
type Attachment struct {
	ContentID   string
	Filename    string
	ContentType string
	Data        []byte
}

// Digest is the composed report handed to the mail collaborator.
type Digest struct {
	Subject     string
	Summary     string
	PlainText   string
	HTML        string
	Entries     []DigestEntry
	Attachments []Attachment
}

// ReferencedContentIDs lists the content-ids referenced by entries, in order.
func (d *Digest) ReferencedContentIDs() []string {
	ids := make([]string, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.ContentID != "" {
			ids = append(ids, e.ContentID)
		}
	}
	return ids
}
