// Package pipeline sequences one digest run: scrape the requested
// publishers, cap each publisher's share, snapshot, fetch images, compose
// and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"book-digest/models"
	"book-digest/render"
	"book-digest/scraper"
	"book-digest/services"
	"book-digest/storage"
	"book-digest/utils"
)

// State is a step of the run state machine. States only move forward.
type State string

const (
	StateIdle         State = "idle"
	StateScraping     State = "scraping"
	StateLimiting     State = "limiting"
	StateSnapshotting State = "snapshotting"
	StateFetching     State = "fetching"
	StateComposing    State = "composing"
	StatePublishing   State = "publishing"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

var (
	// ErrInvalidRunConfig is returned for a malformed publisher list or a
	// missing recipient.
	ErrInvalidRunConfig = errors.New("pipeline: invalid run config")
	// ErrAlreadyRun is returned when Run is called a second time.
	ErrAlreadyRun = errors.New("pipeline: orchestrator already ran")
)

// Fetcher binds images to listings.
type Fetcher interface {
	Fetch(ctx context.Context, listings []models.Listing) []models.AssetRecord
}

// Composer renders the digest.
type Composer interface {
	Compose(listings []models.Listing) (*models.Digest, error)
}

// Publisher hands a digest to its recipient.
type Publisher interface {
	Publish(ctx context.Context, recipient string, d *models.Digest) error
}

// Deps are the collaborators of a run. Publisher and Archive are optional:
// without a Publisher the digest is composed but not sent.
type Deps struct {
	Registry  *scraper.Registry
	Renderer  render.Renderer
	Snapshot  storage.SnapshotStore
	Fetcher   Fetcher
	Composer  Composer
	Publisher Publisher
	Archive   storage.Archive
	Logger    *utils.Logger

	// AdapterTimeout bounds each publisher's scrape. Zero means no bound.
	AdapterTimeout time.Duration
}

// RunConfig holds everything that varies between runs.
type RunConfig struct {
	Publishers      []string
	Recipient       string
	PerPublisherCap int
	// Concurrent scrapes all publishers at once instead of one by one.
	Concurrent bool
}

// Orchestrator drives exactly one run.
type Orchestrator struct {
	deps    Deps
	started atomic.Bool

	mu    sync.Mutex
	state State
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps, state: StateIdle}
}

// State returns the current step.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) enter(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.deps.Logger.Debug("[pipeline] → %s", s)
}

type run struct {
	o      *Orchestrator
	report *models.RunReport
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.report.Warnings = append(r.report.Warnings, msg)
	r.o.deps.Logger.Warn("[pipeline] %s", msg)
}

func (r *run) fail(err error) (*models.RunReport, error) {
	r.o.enter(StateFailed)
	r.report.Status = models.RunFailed
	r.report.FinishedAt = time.Now()
	r.o.deps.Logger.Error("[pipeline] run %s failed: %v", r.report.RunID, err)
	return r.report, err
}

// Run executes the pipeline once. The returned report is non-nil whenever
// the run started; err is set only for failed runs.
func (o *Orchestrator) Run(ctx context.Context, rc RunConfig) (*models.RunReport, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}

	r := &run{o: o, report: &models.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}}

	names, err := r.validate(rc)
	if err != nil {
		return r.fail(err)
	}
	o.deps.Logger.Info("[pipeline] Run %s: %d publishers, cap %d",
		r.report.RunID, len(names), rc.PerPublisherCap)

	o.enter(StateScraping)
	adapters, unknown := o.deps.Registry.Select(names)
	for _, name := range unknown {
		r.warn("unknown publisher requested: %s", name)
	}
	all := r.collect(o.scrape(ctx, adapters, rc.Concurrent))

	o.enter(StateLimiting)
	kept := services.LimitPerPublisher(all, rc.PerPublisherCap)
	r.countKept(kept)

	o.enter(StateSnapshotting)
	if err := o.deps.Snapshot.Write(kept); err != nil {
		return r.fail(fmt.Errorf("pipeline: snapshot: %w", err))
	}
	r.report.SnapshotPath = o.deps.Snapshot.Path()
	o.deps.Logger.Info("[pipeline] Saved %s (%d entries)", r.report.SnapshotPath, len(kept))

	o.enter(StateFetching)
	r.countAssets(o.deps.Fetcher.Fetch(ctx, kept))
	r.report.Listings = kept

	o.enter(StateComposing)
	digest, err := o.deps.Composer.Compose(kept)
	if err != nil {
		return r.fail(fmt.Errorf("pipeline: compose: %w", err))
	}

	o.enter(StatePublishing)
	if o.deps.Publisher == nil {
		o.deps.Logger.Info("[pipeline] No publisher configured, digest not sent")
	} else if err := o.deps.Publisher.Publish(ctx, rc.Recipient, digest); err != nil {
		return r.fail(fmt.Errorf("pipeline: publish: %w", err))
	}

	if o.deps.Archive != nil {
		if err := o.deps.Archive.Archive(ctx, r.report.RunID, kept); err != nil {
			r.warn("archive: %v", err)
		}
	}

	o.enter(StateDone)
	r.report.Status = models.RunSuccess
	if len(r.report.Warnings) > 0 {
		r.report.Status = models.RunPartial
	}
	r.report.FinishedAt = time.Now()
	o.deps.Logger.Info("[pipeline] Run %s %s: %d listings", r.report.RunID, r.report.Status, len(kept))
	return r.report, nil
}

// validate trims names and drops repeats, keeping first-request order.
func (r *run) validate(rc RunConfig) ([]string, error) {
	if len(rc.Publishers) == 0 {
		return nil, fmt.Errorf("%w: no publishers requested", ErrInvalidRunConfig)
	}
	if r.o.deps.Publisher != nil && strings.TrimSpace(rc.Recipient) == "" {
		return nil, fmt.Errorf("%w: recipient required", ErrInvalidRunConfig)
	}

	seen := make(map[string]bool)
	names := make([]string, 0, len(rc.Publishers))
	for _, name := range rc.Publishers {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: blank publisher name", ErrInvalidRunConfig)
		}
		key := strings.ToLower(name)
		if seen[key] {
			r.warn("publisher %s requested more than once, running it once", name)
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names, nil
}

// scrape runs adapters sequentially or fanned out, each under its own
// timeout. Outcomes keep the order of adapters either way, and one adapter's
// timeout never cancels another.
func (o *Orchestrator) scrape(ctx context.Context, adapters []scraper.Adapter, concurrent bool) []scraper.Outcome {
	outcomes := make([]scraper.Outcome, len(adapters))
	one := func(i int) {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if o.deps.AdapterTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, o.deps.AdapterTimeout)
		}
		defer cancel()
		outcomes[i] = adapters[i].Scrape(actx, o.deps.Renderer)
	}

	if !concurrent {
		for i := range adapters {
			one(i)
		}
		return outcomes
	}

	var g errgroup.Group
	for i := range adapters {
		g.Go(func() error {
			one(i)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

func (r *run) collect(outcomes []scraper.Outcome) []models.Listing {
	var all []models.Listing
	for _, out := range outcomes {
		r.report.Publishers = append(r.report.Publishers, models.PublisherCount{
			Publisher: out.Publisher,
			Scraped:   len(out.Listings),
			Defaulted: out.Defaulted,
			Failed:    out.Err != nil,
		})
		if out.Err != nil {
			r.warn("%s: no listings: %v", out.Publisher, out.Err)
			continue
		}
		r.o.deps.Logger.Info("[pipeline] %s: %d listings in %s",
			out.Publisher, len(out.Listings), out.Elapsed.Round(time.Millisecond))
		all = append(all, out.Listings...)
	}
	return all
}

func (r *run) countKept(kept []models.Listing) {
	perPublisher := make(map[string]int)
	for _, l := range kept {
		perPublisher[l.PublisherKey()]++
	}
	for i := range r.report.Publishers {
		r.report.Publishers[i].Kept = perPublisher[r.report.Publishers[i].Publisher]
	}
}

func (r *run) countAssets(records []models.AssetRecord) {
	for _, rec := range records {
		switch rec.Status {
		case models.AssetFetched:
			r.report.Fetched++
		case models.AssetSkippedNoURL:
			r.report.Skipped++
		case models.AssetFailed:
			r.report.FailedAssets++
		}
	}
	if r.report.FailedAssets > 0 {
		r.warn("%d of %d images could not be fetched", r.report.FailedAssets, len(records))
	}
}
