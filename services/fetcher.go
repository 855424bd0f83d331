package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"book-digest/models"
	"book-digest/utils"
)

const (
	maxImageBytes = 20 << 20
	cidDomain     = "book-digest"
)

// Download is a fetched response. Non-2xx statuses are returned as a
// Download, not an error.
type Download struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Downloader fetches one URL.
type Downloader interface {
	Get(ctx context.Context, url string) (*Download, error)
}

// HTTPDownloader is a Downloader over net/http with retries on transport
// errors and 5xx/429 responses, pacing requests per host.
type HTTPDownloader struct {
	client    *http.Client
	userAgent string
	retry     *utils.RetryConfig
	interval  time.Duration
	maxBytes  int64

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHTTPDownloader creates an HTTPDownloader. A perHost interval of zero
// disables pacing.
func NewHTTPDownloader(client *http.Client, userAgent string, retry *utils.RetryConfig, perHost time.Duration) *HTTPDownloader {
	if client == nil {
		client = &http.Client{}
	}
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}
	return &HTTPDownloader{
		client:    client,
		userAgent: userAgent,
		retry:     retry,
		interval:  perHost,
		maxBytes:  maxImageBytes,
		hosts:     make(map[string]*rate.Limiter),
	}
}

func (d *HTTPDownloader) limiter(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.hosts[host]
	if !ok {
		limit := rate.Inf
		if d.interval > 0 {
			limit = rate.Every(d.interval)
		}
		l = rate.NewLimiter(limit, 1)
		d.hosts[host] = l
	}
	return l
}

func (d *HTTPDownloader) Get(ctx context.Context, rawURL string) (*Download, error) {
	var out *Download
	err := d.retry.Do(ctx, "GET "+rawURL, func(ctx context.Context) error {
		if err := d.limiter(rawURL).Wait(ctx); err != nil {
			return utils.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return utils.Permanent(err)
		}
		if d.userAgent != "" {
			req.Header.Set("User-Agent", d.userAgent)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return utils.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
		if err != nil {
			return err
		}
		if int64(len(body)) > d.maxBytes {
			return utils.Permanent(fmt.Errorf("image exceeds %d bytes", d.maxBytes))
		}
		out = &Download{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOptions tune an AssetFetcher.
type FetchOptions struct {
	Workers  int
	Interval time.Duration
	Timeout  time.Duration
}

// AssetFetcher downloads listing images into a flat directory. It always
// fetches: a name already taken on disk gets a numeric suffix, it is never
// treated as a cached copy.
type AssetFetcher struct {
	dl     Downloader
	dir    string
	opts   FetchOptions
	logger *utils.Logger
}

// NewAssetFetcher creates an AssetFetcher writing into dir.
func NewAssetFetcher(dl Downloader, dir string, opts FetchOptions, logger *utils.Logger) *AssetFetcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &AssetFetcher{dl: dl, dir: dir, opts: opts, logger: logger}
}

// ContentIDFor derives the content-id bound to an image stored at path.
func ContentIDFor(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String() + "@" + cidDomain
}

// Fetch retrieves every listing's image and binds stored files to their
// listing in place. It returns one record per listing, in listing order, and
// only returns once every fetch has finished.
func (f *AssetFetcher) Fetch(ctx context.Context, listings []models.Listing) []models.AssetRecord {
	records := make([]models.AssetRecord, len(listings))

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		f.logger.Error("[fetcher] cannot create %s: %v", f.dir, err)
		for i, l := range listings {
			records[i] = models.AssetRecord{Status: models.AssetSkippedNoURL}
			if l.ImageURL != "" {
				records[i] = models.AssetRecord{SourceURL: l.ImageURL, Status: models.AssetFailed, Err: err}
			}
		}
		return records
	}

	pool := utils.NewWorkerPool(f.opts.Workers, f.opts.Interval)
	for i := range listings {
		if listings[i].ImageURL == "" {
			f.logger.Info("[fetcher] No image URL for '%s', skipping", listings[i].Title)
			records[i] = models.AssetRecord{Status: models.AssetSkippedNoURL}
			continue
		}
		pool.Submit(func() {
			records[i] = f.fetchOne(ctx, &listings[i])
		})
	}
	pool.Wait()

	return records
}

func (f *AssetFetcher) fetchOne(ctx context.Context, l *models.Listing) models.AssetRecord {
	rec := models.AssetRecord{SourceURL: l.ImageURL, Status: models.AssetFailed}

	path, err := f.download(ctx, l)
	if err != nil {
		f.logger.Warn("[fetcher] %s: %v", l.ImageURL, err)
		rec.Err = err
		return rec
	}

	l.LocalImage = path
	l.ContentID = ContentIDFor(path)

	rec.Status = models.AssetFetched
	rec.LocalPath = l.LocalImage
	rec.ContentID = l.ContentID
	return rec
}

func (f *AssetFetcher) download(ctx context.Context, l *models.Listing) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	d, err := f.dl.Get(ctx, l.ImageURL)
	if err != nil {
		return "", err
	}
	if d.StatusCode < 200 || d.StatusCode > 299 {
		return "", fmt.Errorf("status %d", d.StatusCode)
	}
	if len(d.Body) == 0 {
		return "", errors.New("empty body")
	}

	file, path, err := ClaimPath(f.dir, ImageBaseName(*l), ExtensionForContentType(d.ContentType))
	if err != nil {
		return "", err
	}
	_, werr := file.Write(d.Body)
	cerr := file.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, werr)
	}

	f.logger.Info("[fetcher] saved %s (content-type: %s)", path, d.ContentType)
	return path, nil
}
