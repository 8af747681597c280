package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"motorent/internal/app/policies"
	"motorent/internal/domain/assets"
)

// Client reads assets from the catalog service over HTTP.
type Client struct {
	HTTP     *http.Client
	Endpoint string
	Logger   *slog.Logger
}

// AssetDocument is the catalog's wire shape for an asset.
type AssetDocument struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	Title      string          `json:"title"`
	RatePerDay decimal.Decimal `json:"rate_per_day"`
	Available  bool            `json:"available"`
}

func (d AssetDocument) ToAsset() assets.Asset {
	return assets.Asset{
		ID:         assets.AssetID(d.ID),
		OwnerID:    d.OwnerID,
		Title:      d.Title,
		RatePerDay: d.RatePerDay,
		Available:  d.Available,
	}
}

func FromAsset(a assets.Asset) AssetDocument {
	return AssetDocument{ID: string(a.ID), OwnerID: a.OwnerID, Title: a.Title, RatePerDay: a.RatePerDay, Available: a.Available}
}

func (c *Client) Asset(ctx context.Context, id assets.AssetID) (assets.Asset, error) {
	if c == nil || c.HTTP == nil {
		return assets.Asset{}, errors.New("catalog: http client not configured")
	}
	if c.Endpoint == "" {
		return assets.Asset{}, errors.New("catalog: endpoint not configured")
	}
	endpoint := strings.TrimRight(c.Endpoint, "/") + "/assets/" + url.PathEscape(string(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return assets.Asset{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.logError("catalog request failed", id, err)
		return assets.Asset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return assets.Asset{}, assets.ErrAssetNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.logError("catalog returned error", id, err)
		return assets.Asset{}, err
	}
	var doc AssetDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		c.logError("catalog decode failed", id, err)
		return assets.Asset{}, err
	}
	if doc.ID == "" {
		doc.ID = string(id)
	}
	return doc.ToAsset(), nil
}

func (c *Client) logError(msg string, id assets.AssetID, err error) {
	if c.Logger != nil {
		c.Logger.Error(msg, "asset_id", id, "error", err)
	}
}

var _ policies.CatalogPort = (*Client)(nil)
