package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/transac/go-offline-cache/config"
	"github.com/transac/go-offline-cache/internal/entitystore"
)

func TestTierFor(t *testing.T) {
	cases := []struct {
		endpoint string
		tier     string
	}{
		{"/products", config.TierData},
		{"/products/p-17", config.TierData},
		{"https://api.example.com/stores?page=2", config.TierData},
		{"/api/v1/products", config.TierAPI},
		{"https://api.example.com/api/orders", config.TierAPI},
		{"/assets/app.js", config.TierStatic},
		{"/index.html", config.TierStatic},
		{"/fonts/inter.woff2", config.TierStatic},
		{"/media/products/42", config.TierImages},
		{"/upload/cover", config.TierImages},
		{"https://cdn.example.com/catalog/p1.jpg", config.TierImages},
		{"/api/v1/images/logo.png", config.TierImages}, // image beats /api/
		{"/photo.JPEG?w=200", config.TierImages},
		{"", config.TierData},
	}
	for _, tc := range cases {
		require.Equal(t, tc.tier, TierFor(tc.endpoint), "endpoint %q", tc.endpoint)
	}
}

func TestEntityRefFor(t *testing.T) {
	cases := []struct {
		endpoint   string
		listable   bool
		collection string
		id         string
	}{
		{"/products", true, entitystore.Products, ""},
		{"/products/", true, entitystore.Products, ""},
		{"/products/p-17", true, entitystore.Products, "p-17"},
		{"https://api.example.com/api/v1/products/p-17?full=1", true, entitystore.Products, "p-17"},
		{"/stores", true, entitystore.Stores, ""},
		{"/stores/s-3", true, entitystore.Stores, "s-3"},
		{"/user", true, entitystore.UserData, entitystore.ProfileID},
		{"/user/settings", true, entitystore.UserData, entitystore.ProfileID},
		{"/orders", false, "", ""},
		{"/assets/app.js", false, "", ""},
	}
	for _, tc := range cases {
		ref, listable := entityRefFor(tc.endpoint)
		require.Equal(t, tc.listable, listable, "endpoint %q", tc.endpoint)
		require.Equal(t, tc.collection, ref.collection, "endpoint %q", tc.endpoint)
		require.Equal(t, tc.id, ref.id, "endpoint %q", tc.endpoint)
	}
}

func TestPathOnly(t *testing.T) {
	require.Equal(t, "/products", pathOnly("https://api.example.com/products?page=2#top"))
	require.Equal(t, "/", pathOnly("https://api.example.com"))
	require.Equal(t, "/products", pathOnly("/products"))
}
