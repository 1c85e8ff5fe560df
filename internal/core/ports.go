package core

import (
	"context"

	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// Store is the persistence the service needs. *store.Store implements it.
type Store interface {
	Setting(ctx context.Context, shop string) (*store.ShopSetting, error)
	UpsertSetting(ctx context.Context, s *store.ShopSetting) error

	Mappings(ctx context.Context, shop string) ([]store.ProductCsvMapping, error)
	Mapping(ctx context.Context, shop, productID string) (*store.ProductCsvMapping, error)
	UpsertMapping(ctx context.Context, m *store.ProductCsvMapping) (*store.ProductCsvMapping, error)
	DeleteMapping(ctx context.Context, shop, productID string) (bool, error)

	InsertPendingIfAbsent(ctx context.Context, r *store.PendingReview) (bool, error)
	PendingReviews(ctx context.Context, shop string) ([]store.PendingReview, error)
	PendingReview(ctx context.Context, shop, id string) (*store.PendingReview, error)
	DeletePending(ctx context.Context, shop, id string) (bool, error)
	CountPending(ctx context.Context, shop string) (int, error)

	Ping(ctx context.Context) error
}

// CSVSource downloads and parses a review CSV. *csvfeed.Fetcher implements it.
type CSVSource interface {
	Rows(ctx context.Context, url string) ([]csvfeed.DataRow, error)
}

// Mirror copies saved state to the platform. *shopify.Mirror implements it.
type Mirror interface {
	SaveSettings(ctx context.Context, s *store.ShopSetting) error
	SaveProduct(ctx context.Context, m *store.ProductCsvMapping) error
	DeleteProduct(ctx context.Context, shop, productID string) error
	Products(ctx context.Context, shop string) ([]shopify.Product, error)
}

// ScriptClient calls a merchant's Apps Script. *sheetscript.Client
// implements it.
type ScriptClient interface {
	Triage(ctx context.Context, endpoint, action string, rowIndex int) error
	Submit(ctx context.Context, endpoint string, s sheetscript.Submission) error
}

// NoopMirror is used when no Admin API token is configured. Writes succeed
// locally only; product listing reports ErrMirrorDisabled.
type NoopMirror struct{}

func (NoopMirror) SaveSettings(context.Context, *store.ShopSetting) error { return nil }
func (NoopMirror) SaveProduct(context.Context, *store.ProductCsvMapping) error { return nil }
func (NoopMirror) DeleteProduct(context.Context, string, string) error { return nil }
func (NoopMirror) Products(context.Context, string) ([]shopify.Product, error) { return nil, ErrMirrorDisabled }
