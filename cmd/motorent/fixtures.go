package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"motorent/internal/domain/assets"
	"motorent/internal/infra/catalog"
	"motorent/internal/infra/storage/memory"
)

// loadAssetFixtures reads the local catalog from a JSON array of catalog
// documents. An empty path or missing file falls back to the demo assets.
func loadAssetFixtures(path string, logger *slog.Logger) ([]assets.Asset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return memory.DemoAssets(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("asset fixtures file not found, using demo assets", "path", path)
			return memory.DemoAssets(), nil
		}
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var docs []catalog.AssetDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	items := make([]assets.Asset, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" || doc.OwnerID == "" {
			logger.Warn("fixture skipped: id and owner_id required", "id", doc.ID)
			continue
		}
		if !doc.RatePerDay.IsPositive() {
			logger.Warn("fixture skipped: rate_per_day must be positive", "id", doc.ID)
			continue
		}
		items = append(items, doc.ToAsset())
	}
	logger.Info("asset fixtures loaded", "count", len(items), "path", path)
	return items, nil
}
