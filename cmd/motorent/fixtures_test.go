package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"motorent/internal/domain/assets"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadAssetFixturesSkipsInvalidEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "a1", "owner_id": "o1", "title": "One", "rate_per_day": "100.50", "available": true},
		{"id": "a2", "owner_id": "", "title": "No owner", "rate_per_day": "10", "available": true},
		{"id": "a3", "owner_id": "o1", "title": "Free", "rate_per_day": "0", "available": true}
	]`), 0o600))

	items, err := loadAssetFixtures(path, discardLogger())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, assets.AssetID("a1"), items[0].ID)
	require.Equal(t, "100.5", items[0].RatePerDay.String())
}

func TestLoadAssetFixturesFallsBackToDemo(t *testing.T) {
	items, err := loadAssetFixtures(filepath.Join(t.TempDir(), "missing.json"), discardLogger())
	require.NoError(t, err)
	require.NotEmpty(t, items)

	items, err = loadAssetFixtures("", discardLogger())
	require.NoError(t, err)
	require.NotEmpty(t, items)
}

func TestLoadAssetFixturesRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":`), 0o600))
	_, err := loadAssetFixtures(path, discardLogger())
	require.Error(t, err)
}
