package core

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// PendingItem is a queued review with the endpoint its triage would use.
type PendingItem struct {
	store.PendingReview
	SubmitURL string `json:"submitUrl"`
	CanTriage bool   `json:"canTriage"`
}

// PendingPage is everything the pending reviews screen shows.
type PendingPage struct {
	Reviews         []PendingItem             `json:"pendingReviews"`
	Mappings        []store.ProductCsvMapping `json:"productCsvRows"`
	GlobalSubmitURL string                    `json:"globalSubmitUrl"`
}

// PendingPage loads the queue, the mappings and the settings concurrently.
func (s *Service) PendingPage(ctx context.Context, shop string) (*PendingPage, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}

	var (
		reviews  []store.PendingReview
		mappings []store.ProductCsvMapping
		setting  *store.ShopSetting
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		reviews, err = s.store.PendingReviews(gctx, shop)
		return err
	})
	g.Go(func() (err error) {
		mappings, err = s.store.Mappings(gctx, shop)
		return err
	})
	g.Go(func() (err error) {
		setting, err = s.store.Setting(gctx, shop)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &PendingPage{Mappings: mappings, Reviews: make([]PendingItem, 0, len(reviews))}
	if setting != nil {
		page.GlobalSubmitURL = setting.FormSubmitURL
	}

	endpoints := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.SubmitURL != "" {
			endpoints[m.ProductID] = m.SubmitURL
		}
	}
	for _, r := range reviews {
		url := endpoints[r.ProductID]
		if url == "" {
			url = page.GlobalSubmitURL
		}
		page.Reviews = append(page.Reviews, PendingItem{PendingReview: r, SubmitURL: url, CanTriage: url != ""})
	}
	return page, nil
}

// PendingCount returns the size of the queue for the navigation badge.
func (s *Service) PendingCount(ctx context.Context, shop string) (int, error) {
	if shop == "" {
		return 0, ErrMissingShop
	}
	return s.store.CountPending(ctx, shop)
}

// ProductsPage is everything the product CSV screen shows. A failure to
// list platform products is reported in ProductsError, not returned.
type ProductsPage struct {
	Products      []shopify.Product         `json:"products"`
	Mappings      []store.ProductCsvMapping `json:"productCsvRows"`
	ProductsError string                    `json:"graphqlError,omitempty"`
	Shop          string                    `json:"shopDomain"`
}

// ProductsPage loads the mappings and the first platform products.
func (s *Service) ProductsPage(ctx context.Context, shop string) (*ProductsPage, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}

	mappings, err := s.store.Mappings(ctx, shop)
	if err != nil {
		return nil, err
	}
	page := &ProductsPage{Mappings: mappings, Shop: shop, Products: []shopify.Product{}}

	products, err := s.mirror.Products(ctx, shop)
	switch {
	case err == nil:
		page.Products = products
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		page.ProductsError = productsErrorText(err)
		logging.FromContext(ctx).Warn("list products failed", "error", err)
	}
	return page, nil
}

// productsErrorText keeps the platform's own GraphQL message, which tells
// the merchant which scope is missing.
func productsErrorText(err error) string {
	var gqlErr *shopify.GraphQLError
	if errors.As(err, &gqlErr) && len(gqlErr.Messages) > 0 {
		return gqlErr.Messages[0]
	}
	return MapError(err).Message
}

// Ping reports whether storage is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
