package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"book-digest/models"
)

type fakeArchive map[string][]models.Listing

func (f fakeArchive) FetchRun(ctx context.Context, runID string) ([]models.Listing, error) {
	if runID == "broken" {
		return nil, errors.New("postgres: fetch run: connection refused")
	}
	return f[runID], nil
}

func TestPrintArchivedRun(t *testing.T) {
	archive := fakeArchive{
		"run-1": {
			{Publisher: "Tor Books", Title: "Dune & Sons", Price: models.NoPrice, Link: "https://example.org/dune"},
			{Publisher: "Baazh Book", Title: "کتاب", Price: "120,000", Link: models.NoLink},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printArchivedRun(context.Background(), archive, "run-1", &buf))
	require.Contains(t, buf.String(), "Dune & Sons")
	require.Contains(t, buf.String(), "\n  {")

	var got []models.Listing
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, archive["run-1"], got)
}

func TestPrintArchivedRunErrors(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorContains(t, printArchivedRun(context.Background(), fakeArchive{}, "missing", &buf), "no archived listings")
	require.ErrorContains(t, printArchivedRun(context.Background(), fakeArchive{}, "broken", &buf), "connection refused")
	require.Empty(t, buf.String())
}
