package assets

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrAssetNotFound = errors.New("assets: asset not found")

type AssetID string

// Asset is the catalog's view of a rentable vehicle. The booking engine never writes it.
type Asset struct {
	ID         AssetID
	OwnerID    string
	Title      string
	RatePerDay decimal.Decimal
	Available  bool
}

// DisplayName is the label revenue is grouped under.
func (a Asset) DisplayName() string {
	if a.Title != "" {
		return a.Title
	}
	return string(a.ID)
}
