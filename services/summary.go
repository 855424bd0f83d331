package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"book-digest/models"
	"book-digest/utils"
)

// SummaryService prints the end-of-run report to a terminal.
type SummaryService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewSummaryService(logger *utils.Logger, out io.Writer) *SummaryService {
	return &SummaryService{logger: logger, out: out}
}

// Print writes the report to the terminal and logs a one-line digest of it.
func (s *SummaryService) Print(r *models.RunReport) {
	s.logger.Info("[summary] run %s %s: %d listings, %d images, %d warnings",
		r.RunID, r.Status, r.Total(), r.Fetched, len(r.Warnings))

	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📚 BOOK DIGEST RUN %s\033[0m\n", r.RunID)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Status          : \033[1m%s\033[0m\n", r.Status)
	fmt.Fprintf(w, "  Listings kept   : \033[1m%d\033[0m\n", r.Total())
	fmt.Fprintf(w, "  Images          : %d fetched, %d skipped, %d failed\n", r.Fetched, r.Skipped, r.FailedAssets)
	if r.SnapshotPath != "" {
		fmt.Fprintf(w, "  Snapshot        : %s\n", r.SnapshotPath)
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  Duration        : %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	// Publishers
	fmt.Fprintf(w, "\033[1;33m  Publishers\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, p := range r.Publishers {
		state := ""
		if p.Defaulted > 0 {
			state = fmt.Sprintf("  %d defaulted", p.Defaulted)
		}
		if p.Failed {
			state = " \033[1;31mfailed\033[0m"
		}
		fmt.Fprintf(w, "  %s scraped %3d  kept %d%s\n", pad(p.Publisher, 24), p.Scraped, p.Kept, state)
	}
	fmt.Fprintln(w)

	// Listings
	fmt.Fprintf(w, "\033[1;33m  Digest\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Listings) == 0 {
		fmt.Fprintf(w, "  No listings\n")
	}
	for i, l := range r.Listings {
		img := " "
		if l.HasAsset() {
			img = "🖼"
		}
		fmt.Fprintf(w, "  \033[1m%2d.\033[0m %s %s %s\n", i+1, img, pad(l.Title, 36), truncate(l.Publisher, 20))
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Warnings\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, msg := range r.Warnings {
			fmt.Fprintf(w, "  • %s\n", msg)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// truncate shortens s to at most max terminal cells.
func truncate(s string, max int) string {
	return runewidth.Truncate(s, max, "...")
}

// pad truncates and right-pads s to exactly width cells. Persian and CJK
// titles are wider or narrower per rune than Latin ones.
func pad(s string, width int) string {
	return runewidth.FillRight(truncate(s, width), width)
}
