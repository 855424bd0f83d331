package services

import (
	"bytes"
	"fmt"
	"html/template"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"book-digest/models"
	"book-digest/utils"
)

// DigestSubject is the subject line of every digest.
const DigestSubject = "📚 Latest Books from Publishers"

// html/template rejects the cid: scheme unless it is marked safe.
var digestFuncs = template.FuncMap{
	"cid": func(id string) template.URL { return template.URL("cid:" + id) },
}

var digestTemplate = template.Must(template.New("digest").Funcs(digestFuncs).Parse(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; background:#f4f4f4; color:#333; margin:0; padding:0; }
.container { width:90%; max-width:700px; margin:20px auto; background:#fff; border-radius:10px; box-shadow:0 4px 8px rgba(0,0,0,0.1); padding:20px; }
h1 { text-align:center; color:#2c3e50; }
.book { border-bottom:1px solid #ddd; padding:15px 0; display:flex; align-items:flex-start; }
.book img { width:120px; max-width:130px; height:auto; margin-right:15px; border-radius:5px; }
.book h2 { margin:0; color:#2980b9; font-size:16px; }
.book p { margin:5px 0; font-size:14px; }
.book a { text-decoration:none; color:#e74c3c; font-weight:bold; }
.placeholder { width:120px; height:180px; background:#eee; display:inline-block; margin-right:15px; border-radius:5px; }
</style>
</head>
<body>
<div class="container">
<h1>Latest Books</h1>
<p>{{.Summary}}</p>
{{range .Entries}}<div class="book">
	{{if .ContentID}}<img src="{{cid .ContentID}}" alt="{{.Title}}" />{{else}}<div class="placeholder"></div>{{end}}
	<div>
		<h2>{{.Title}} ({{.Publisher}})</h2>
		<p>Author: {{.Author}}</p>
		<p>Price: {{.Price}}</p>
		<p><a href="{{.Link}}">View Book / Article</a></p>
	</div>
</div>
{{end}}</div>
</body>
</html>
`))

// Composer builds digests from enriched listings.
type Composer struct {
	logger   *utils.Logger
	readFile func(string) ([]byte, error)
}

// NewComposer creates a Composer reading attachments from disk.
func NewComposer(logger *utils.Logger) *Composer {
	return &Composer{logger: logger, readFile: os.ReadFile}
}

// Compose renders listings into a Digest. A listing gets an inline image
// only when its stored file can be attached; every other listing gets a
// placeholder slot, so referenced and attached content-ids always match.
func (c *Composer) Compose(listings []models.Listing) (*models.Digest, error) {
	d := &models.Digest{
		Subject: DigestSubject,
		Entries: make([]models.DigestEntry, 0, len(listings)),
	}

	attached := make(map[string]bool)
	publishers := make(map[string]bool)
	for _, l := range listings {
		publishers[l.PublisherKey()] = true

		entry := models.DigestEntry{
			Title:     l.Title,
			Publisher: l.PublisherKey(),
			Author:    l.Author,
			Price:     l.Price,
			Link:      l.Link,
		}
		if entry.Author == "" {
			entry.Author = "N/A"
		}

		if a, ok := c.attachment(l); ok && !attached[a.ContentID] {
			attached[a.ContentID] = true
			entry.ContentID = a.ContentID
			d.Attachments = append(d.Attachments, a)
		}
		d.Entries = append(d.Entries, entry)
	}

	d.Summary = fmt.Sprintf("Latest books available: %d titles from %d publishers.", len(d.Entries), len(publishers))
	d.PlainText = plainText(d)

	var html bytes.Buffer
	if err := digestTemplate.Execute(&html, d); err != nil {
		return nil, fmt.Errorf("services: render digest: %w", err)
	}
	d.HTML = html.String()

	c.logger.Info("[composer] %d entries, %d inline images", len(d.Entries), len(d.Attachments))
	return d, nil
}

func (c *Composer) attachment(l models.Listing) (models.Attachment, bool) {
	if !l.HasAsset() {
		return models.Attachment{}, false
	}
	data, err := c.readFile(l.LocalImage)
	if err != nil || len(data) == 0 {
		c.logger.Warn("[composer] image %s unreadable, using placeholder: %v", l.LocalImage, err)
		return models.Attachment{}, false
	}

	contentType := mime.TypeByExtension(filepath.Ext(l.LocalImage))
	if !strings.HasPrefix(contentType, "image/") {
		contentType = "image/jpeg"
	}
	return models.Attachment{
		ContentID:   l.ContentID,
		Filename:    filepath.Base(l.LocalImage),
		ContentType: contentType,
		Data:        data,
	}, true
}

func plainText(d *models.Digest) string {
	var b strings.Builder
	b.WriteString(d.Summary)
	b.WriteString("\n")
	for i, e := range d.Entries {
		fmt.Fprintf(&b, "\n%d. %s (%s)\n   Author: %s\n   Price: %s\n   %s\n",
			i+1, e.Title, e.Publisher, e.Author, e.Price, e.Link)
	}
	return b.String()
}
