package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"motorent/internal/app/policies"
	"motorent/internal/domain/assets"
)

// Catalog is a fixture-backed asset catalog for local runs and tests.
type Catalog struct {
	mu    sync.RWMutex
	items map[assets.AssetID]assets.Asset
}

func NewCatalog(items ...assets.Asset) *Catalog {
	c := &Catalog{items: make(map[assets.AssetID]assets.Asset, len(items))}
	for _, a := range items {
		c.items[a.ID] = a
	}
	return c
}

func (c *Catalog) Asset(ctx context.Context, id assets.AssetID) (assets.Asset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.items[id]
	if !ok {
		return assets.Asset{}, assets.ErrAssetNotFound
	}
	return a, nil
}

func (c *Catalog) Put(a assets.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[a.ID] = a
}

// DemoAssets seeds the local catalog.
func DemoAssets() []assets.Asset {
	return []assets.Asset{
		{ID: "bike-classic-350", OwnerID: "lister-demo", Title: "Classic 350", RatePerDay: decimal.RequireFromString("1500.00"), Available: true},
		{ID: "scooter-activa", OwnerID: "lister-demo", Title: "Activa 6G", RatePerDay: decimal.RequireFromString("450.00"), Available: true},
		{ID: "bike-himalayan", OwnerID: "lister-hills", Title: "Himalayan 450", RatePerDay: decimal.RequireFromString("2200.00"), Available: true},
		{ID: "bike-retired", OwnerID: "lister-demo", Title: "Bullet 500", RatePerDay: decimal.RequireFromString("1200.00"), Available: false},
	}
}

var _ policies.CatalogPort = (*Catalog)(nil)
