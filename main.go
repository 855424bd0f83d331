package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"book-digest/api"
	"book-digest/config"
	"book-digest/mailer"
	"book-digest/models"
	"book-digest/pipeline"
	"book-digest/render"
	"book-digest/scraper"
	"book-digest/scraper/publishers"
	"book-digest/services"
	"book-digest/storage"
	"book-digest/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	serve := flag.Bool("serve", false, "run the HTTP trigger API instead of a single run")
	pubs := flag.String("publishers", "", "comma-separated publishers (default: PUBLISHERS or all)")
	to := flag.String("to", "", "digest recipient (default: RECIPIENT)")
	perPublisher := flag.Int("cap", 0, "listings kept per publisher (default: PER_PUBLISHER_CAP)")
	showRun := flag.String("show-run", "", "print the archived listings of a run id and exit (needs ARCHIVE_DSN)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logger := utils.NewLoggerTo(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if *showRun != "" {
		if cfg.ArchiveDSN == "" {
			logger.Error("-show-run needs ARCHIVE_DSN")
			return 2
		}
		pg, err := storage.NewPostgresWriter(ctx, cfg.ArchiveDSN)
		if err != nil {
			logger.Error("Archive unavailable: %v", err)
			return 1
		}
		defer pg.Close()
		if err := printArchivedRun(ctx, pg, *showRun, os.Stdout); err != nil {
			logger.Error("%v", err)
			return 1
		}
		return 0
	}

	logger.Info("=== Book digest starting ===")
	logger.Info("Config | render: %s | concurrency: %d | rate: %v | cap: %d",
		cfg.RenderMode, cfg.MaxConcurrency, cfg.RateLimit, cfg.PerPublisherCap)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Startup failed: %v", err)
		return 1
	}
	defer app.Close()

	if *serve {
		if err := app.serve(ctx); err != nil {
			logger.Error("Server stopped: %v", err)
			return 1
		}
		return 0
	}

	rc := app.defaults
	rc.Publishers = cfg.Publishers
	if *pubs != "" {
		rc.Publishers = strings.Split(*pubs, ",")
	}
	if len(rc.Publishers) == 0 {
		rc.Publishers = app.registry.Names()
	}
	rc.Recipient = cfg.Recipient
	if *to != "" {
		rc.Recipient = *to
	}
	if *perPublisher > 0 {
		rc.PerPublisherCap = *perPublisher
	}

	report, err := app.runOnce(ctx, rc)
	if report != nil {
		services.NewSummaryService(logger, os.Stdout).Print(report)
	}
	if err != nil {
		return 1
	}
	return 0
}

type runLookup interface {
	FetchRun(ctx context.Context, runID string) ([]models.Listing, error)
}

// printArchivedRun writes the archived listings of runID as indented JSON,
// the same shape as the snapshot file.
func printArchivedRun(ctx context.Context, archive runLookup, runID string, w io.Writer) error {
	listings, err := archive.FetchRun(ctx, runID)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		return fmt.Errorf("no archived listings for run %s", runID)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(listings)
}

// app holds the long-lived collaborators shared by every run.
type app struct {
	cfg      *config.Config
	logger   *utils.Logger
	registry *scraper.Registry
	renderer render.Renderer
	deps     pipeline.Deps
	defaults pipeline.RunConfig
	closers  []func() error

	wg sync.WaitGroup
}

func newApp(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: publishers.Default(logger, nil),
		defaults: pipeline.RunConfig{
			PerPublisherCap: cfg.PerPublisherCap,
			Concurrent:      cfg.ConcurrentSources,
		},
	}

	httpClient := &http.Client{Timeout: cfg.FetchTimeout}

	switch cfg.RenderMode {
	case config.RenderStatic:
		a.renderer = render.NewStaticRenderer(httpClient, cfg.UserAgent)
	default:
		chrome, err := render.NewChromeRenderer(ctx, render.ChromeOptions{
			ExecPath:          cfg.ChromeBin,
			UserAgent:         cfg.UserAgent,
			NavigationTimeout: cfg.NavigationTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, chrome.Close)
		a.renderer = chrome
	}
	if cfg.RespectRobots {
		a.renderer = render.NewPolite(a.renderer, cfg.UserAgent, httpClient)
	}

	retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
	downloader := services.NewHTTPDownloader(httpClient, cfg.UserAgent, retry, cfg.RateLimit)

	a.deps = pipeline.Deps{
		Registry: a.registry,
		Renderer: a.renderer,
		Snapshot: storage.NewSnapshotWriter(cfg.SnapshotPath),
		Fetcher: services.NewAssetFetcher(downloader, cfg.ImageDir, services.FetchOptions{
			Workers:  cfg.MaxConcurrency,
			Interval: cfg.RateLimit,
			Timeout:  cfg.FetchTimeout,
		}, logger),
		Composer:       services.NewComposer(logger),
		Logger:         logger,
		AdapterTimeout: cfg.AdapterTimeout,
	}

	if cfg.MailConfigured() {
		a.deps.Publisher = mailer.New(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Sender:   cfg.SMTPSender,
		}, logger)
	} else {
		logger.Warn("SMTP_SENDER/SMTP_USERNAME not set: digests will be composed but not sent")
	}

	if cfg.ArchiveDSN != "" {
		pg, err := storage.NewPostgresWriter(ctx, cfg.ArchiveDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		a.deps.Archive = pg
		logger.Info("Archiving runs to PostgreSQL (table: digest_listings)")
	}

	return a, nil
}

// runOnce performs one pipeline run with a fresh Orchestrator.
func (a *app) runOnce(ctx context.Context, rc pipeline.RunConfig) (*models.RunReport, error) {
	return pipeline.New(a.deps).Run(ctx, rc)
}

// startBackground launches a run detached from the triggering request.
func (a *app) startBackground(ctx context.Context) api.StartFunc {
	return func(rc pipeline.RunConfig) {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.logger.Info("[worker] Starting run for %s -> %v", rc.Recipient, rc.Publishers)
			report, err := a.runOnce(ctx, rc)
			if err != nil {
				a.logger.Error("[worker] run for %s failed: %v", rc.Recipient, err)
				return
			}
			a.logger.Info("[worker] run %s for %s finished: %s, %d listings",
				report.RunID, rc.Recipient, report.Status, report.Total())
		}()
	}
}

func (a *app) serve(ctx context.Context) error {
	srv := api.NewServer(a.registry.Names, a.startBackground(ctx), a.defaults, a.logger)
	httpServer := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           srv.Router(a.cfg.CORSOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("API listening on %s", a.cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.wg.Wait()
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close: %v", err)
		}
	}
}
