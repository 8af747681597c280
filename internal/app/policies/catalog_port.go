package policies

import (
	"context"

	domainassets "motorent/internal/domain/assets"
)

// CatalogPort reads assets owned by the catalog service.
type CatalogPort interface {
	Asset(ctx context.Context, id domainassets.AssetID) (domainassets.Asset, error)
}
