package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"motorent/internal/domain/assets"
)

func TestClientFetchesAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets/bike-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"bike-1","owner_id":"owner-1","title":"Classic 350","rate_per_day":"1500.50","available":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := &Client{HTTP: srv.Client(), Endpoint: srv.URL}
	a, err := c.Asset(context.Background(), "bike-1")
	require.NoError(t, err)
	require.Equal(t, "owner-1", a.OwnerID)
	require.Equal(t, "1500.5", a.RatePerDay.String())
	require.True(t, a.Available)

	_, err = c.Asset(context.Background(), "ghost")
	require.ErrorIs(t, err, assets.ErrAssetNotFound)
}
