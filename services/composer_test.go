package services

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"book-digest/models"
)

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("img:"+name), 0o644))
	return path
}

func attachedIDs(d *models.Digest) []string {
	ids := make([]string, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		ids = append(ids, a.ContentID)
	}
	sort.Strings(ids)
	return ids
}

func referencedIDs(d *models.Digest) []string {
	ids := d.ReferencedContentIDs()
	sort.Strings(ids)
	return ids
}

func TestComposeBindsAttachments(t *testing.T) {
	dir := t.TempDir()
	p1 := writeImage(t, dir, "a.png")
	p2 := writeImage(t, dir, "b.webp")

	listings := []models.Listing{
		{Publisher: "Tor Books", Title: "Dune", Author: "Frank Herbert", Price: "N/A", Link: "https://tor.example/dune", LocalImage: p1, ContentID: ContentIDFor(p1)},
		{Publisher: "Tor Books", Title: "No Image", Price: "N/A", Link: "#"},
		{Publisher: "Baazh Book", Title: "<script>alert(1)</script>", Price: "10", Link: "https://baazh.example/x", LocalImage: p2, ContentID: ContentIDFor(p2)},
	}

	d, err := NewComposer(quietLogger()).Compose(listings)
	require.NoError(t, err)

	require.Equal(t, DigestSubject, d.Subject)
	require.Len(t, d.Entries, 3)
	require.Equal(t, referencedIDs(d), attachedIDs(d))
	require.Len(t, d.Attachments, 2)

	require.Equal(t, "image/png", d.Attachments[0].ContentType)
	require.Equal(t, "a.png", d.Attachments[0].Filename)
	require.Equal(t, []byte("img:a.png"), d.Attachments[0].Data)
	require.Equal(t, "image/webp", d.Attachments[1].ContentType)

	require.Equal(t, "N/A", d.Entries[1].Author)
	require.Empty(t, d.Entries[1].ContentID)

	require.Contains(t, d.HTML, `src="cid:`+ContentIDFor(p1)+`"`)
	require.Contains(t, d.HTML, `class="placeholder"`)
	require.NotContains(t, d.HTML, "<script>")
	require.Equal(t, 2, strings.Count(d.HTML, "cid:"))

	require.Contains(t, d.Summary, "3 titles from 2 publishers")
	require.True(t, strings.HasPrefix(d.PlainText, d.Summary))
	require.Contains(t, d.PlainText, "1. Dune (Tor Books)")
}

func TestComposeUnreadableImageGetsPlaceholder(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.jpg")
	listings := []models.Listing{
		{Publisher: "DAW Books", Title: "Lost", LocalImage: missing, ContentID: ContentIDFor(missing)},
	}

	d, err := NewComposer(quietLogger()).Compose(listings)
	require.NoError(t, err)
	require.Empty(t, d.Attachments)
	require.Empty(t, d.ReferencedContentIDs())
	require.NotContains(t, d.HTML, "cid:")
}

func TestComposeDuplicateContentIDAttachedOnce(t *testing.T) {
	p := writeImage(t, t.TempDir(), "same.jpg")
	cid := ContentIDFor(p)
	listings := []models.Listing{
		{Publisher: "A", Title: "one", LocalImage: p, ContentID: cid},
		{Publisher: "A", Title: "two", LocalImage: p, ContentID: cid},
	}

	d, err := NewComposer(quietLogger()).Compose(listings)
	require.NoError(t, err)
	require.Len(t, d.Attachments, 1)
	require.Equal(t, []string{cid}, d.ReferencedContentIDs())
}

func TestComposeEmpty(t *testing.T) {
	d, err := NewComposer(quietLogger()).Compose(nil)
	require.NoError(t, err)
	require.Empty(t, d.Entries)
	require.Contains(t, d.Summary, "0 titles")
}
