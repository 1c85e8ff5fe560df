package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// Gallery defaults applied when a shop has no saved settings or a form
// field is left empty.
const (
	DefaultHeading   = "Customer Reviews"
	DefaultStarColor = "#FFC107"
	DefaultLayout    = store.LayoutMasonry
)

// Toasts returned by successful actions.
const (
	ToastSettingsSaved   = "Global settings saved!"
	ToastProductSaved    = "Product CSV & rating saved!"
	ToastProductRemoved  = "Product CSV removed."
	ToastReviewVerified  = "Review verified! ✅"
	ToastReviewDeleted   = "Review deleted! 🗑"
	ToastReviewDismissed = "Review dismissed."
	ToastReviewSubmitted = "Thanks! Your review was submitted."
)

// Service provides the business logic behind the admin actions.
type Service struct {
	store  Store
	csv    CSVSource
	mirror Mirror
	script ScriptClient
	syncs  *SyncLimiter
	now    func() time.Time
}

// NewService wires the service. A nil mirror disables metafield sync.
func NewService(st Store, csv CSVSource, mirror Mirror, script ScriptClient) *Service {
	if mirror == nil {
		mirror = NoopMirror{}
	}
	return &Service{
		store:  st,
		csv:    csv,
		mirror: mirror,
		script: script,
		syncs:  NewSyncLimiter(DefaultMaxConcurrentSyncs, DefaultSyncMaxWait),
		now:    time.Now,
	}
}

// LimitSyncs replaces the sync limiter. Call it before serving requests.
func (s *Service) LimitSyncs(maxConcurrent int, maxWait time.Duration) {
	s.syncs = NewSyncLimiter(maxConcurrent, maxWait)
}

// WaitForSyncs blocks until running syncs finish or ctx is done.
func (s *Service) WaitForSyncs(ctx context.Context) error {
	return s.syncs.WaitForDrain(ctx)
}

// SyncStatus reports the sync limiter state.
func (s *Service) SyncStatus() SyncLimiterStatus {
	return s.syncs.Status()
}

// DefaultSettings returns the settings of a shop that never saved any.
func DefaultSettings(shop string) store.ShopSetting {
	return store.ShopSetting{
		Shop:              shop,
		Heading:           DefaultHeading,
		StarColor:         DefaultStarColor,
		LayoutStyle:       DefaultLayout,
		ShowVerifiedBadge: true,
		RatingSource:      store.RatingManual,
	}
}

// Settings returns the stored settings of shop, or the defaults.
func (s *Service) Settings(ctx context.Context, shop string) (store.ShopSetting, error) {
	if shop == "" {
		return store.ShopSetting{}, ErrMissingShop
	}
	saved, err := s.store.Setting(ctx, shop)
	if err != nil {
		return store.ShopSetting{}, err
	}
	if saved == nil {
		return DefaultSettings(shop), nil
	}
	return *saved, nil
}

// SettingsInput is the global settings form.
type SettingsInput struct {
	CsvURL            string
	Heading           string
	StarColor         string
	LayoutStyle       string
	ShowVerifiedBadge bool
	RatingSource      store.RatingSource
	Rating            float64
	ReviewCount       int
	FormSubmitURL     string
}

// SaveSettings validates in, computes the shop rating when it comes from
// the CSV, stores the result and mirrors it to the shop metafield.
func (s *Service) SaveSettings(ctx context.Context, shop string, in SettingsInput) (*store.ShopSetting, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}

	setting := &store.ShopSetting{
		Shop:              shop,
		CsvURL:            strings.TrimSpace(in.CsvURL),
		Heading:           orDefault(in.Heading, DefaultHeading),
		StarColor:         orDefault(in.StarColor, DefaultStarColor), // any CSS color
		LayoutStyle:       strings.ToLower(orDefault(in.LayoutStyle, DefaultLayout)),
		ShowVerifiedBadge: in.ShowVerifiedBadge,
		RatingSource:      in.RatingSource,
		Rating:            in.Rating,
		ReviewCount:       in.ReviewCount,
		FormSubmitURL:     strings.TrimSpace(in.FormSubmitURL),
	}
	if setting.RatingSource != store.RatingAuto {
		setting.RatingSource = store.RatingManual
	}

	if setting.LayoutStyle != store.LayoutGrid {
		setting.LayoutStyle = store.LayoutMasonry
	}

	if err := s.applyRating(ctx, setting.RatingSource, setting.CsvURL, &setting.Rating, &setting.ReviewCount); err != nil {
		return nil, err
	}

	if err := s.store.UpsertSetting(ctx, setting); err != nil {
		return nil, err
	}
	if err := s.mirror.SaveSettings(ctx, setting); err != nil {
		return nil, fmt.Errorf("sync shop metafield: %w", err)
	}

	logging.FromContext(ctx).Info("settings saved",
		"layout", setting.LayoutStyle,
		"rating_source", setting.RatingSource,
		"rating", setting.Rating,
		"review_count", setting.ReviewCount,
	)
	return setting, nil
}

// ProductCSVInput is the product mapping form.
type ProductCSVInput struct {
	ProductID    string
	ProductTitle string
	ProductImage string
	CsvURL       string
	RatingSource store.RatingSource
	Rating       float64
	ReviewCount  int
	SubmitURL    string
}

// SaveProductCSV attaches a CSV to a product, computing its rating when it
// comes from the CSV, and mirrors it to the product metafields.
func (s *Service) SaveProductCSV(ctx context.Context, shop string, in ProductCSVInput) (*store.ProductCsvMapping, error) {
	if shop == "" {
		return nil, ErrMissingShop
	}
	productID := strings.TrimSpace(in.ProductID)
	csvURL := strings.TrimSpace(in.CsvURL)
	if productID == "" || csvURL == "" {
		return nil, ErrMissingProductCSV
	}

	m := &store.ProductCsvMapping{
		Shop:         shop,
		ProductID:    productID,
		ProductTitle: strings.TrimSpace(in.ProductTitle),
		ProductImage: strings.TrimSpace(in.ProductImage),
		CsvURL:       csvURL,
		RatingSource: in.RatingSource,
		Rating:       in.Rating,
		ReviewCount:  in.ReviewCount,
		SubmitURL:    strings.TrimSpace(in.SubmitURL),
	}
	if m.RatingSource != store.RatingAuto {
		m.RatingSource = store.RatingManual
	}

	if err := s.applyRating(ctx, m.RatingSource, m.CsvURL, &m.Rating, &m.ReviewCount); err != nil {
		return nil, err
	}

	saved, err := s.store.UpsertMapping(ctx, m)
	if err != nil {
		return nil, err
	}
	if err := s.mirror.SaveProduct(ctx, saved); err != nil {
		return nil, fmt.Errorf("sync product metafields: %w", err)
	}

	logging.FromContext(ctx).Info("product csv saved",
		"product_id", saved.ProductID,
		"rating_source", saved.RatingSource,
		"rating", saved.Rating,
		"review_count", saved.ReviewCount,
	)
	return saved, nil
}

// DeleteProductCSV removes a product's mapping and its metafields. Pending
// reviews already synced from the CSV stay in the queue.
func (s *Service) DeleteProductCSV(ctx context.Context, shop, productID string) error {
	if shop == "" {
		return ErrMissingShop
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrMissingProductCSV
	}

	removed, err := s.store.DeleteMapping(ctx, shop, productID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrMappingNotFound, productID)
	}
	if err := s.mirror.DeleteProduct(ctx, shop, productID); err != nil {
		return fmt.Errorf("delete product metafields: %w", err)
	}

	logging.FromContext(ctx).Info("product csv removed", "product_id", productID)
	return nil
}

// applyRating validates a manual rating, or replaces it with the aggregate
// of the CSV at csvURL in auto mode.
func (s *Service) applyRating(ctx context.Context, source store.RatingSource, csvURL string, rating *float64, count *int) error {
	if source != store.RatingAuto {
		if *rating < 0 || *rating > 5 || *count < 0 {
			return ErrInvalidRating
		}
		return nil
	}
	if csvURL == "" {
		return ErrMissingCSVURL
	}

	agg, err := s.Rating(ctx, csvURL)
	if err != nil {
		return err
	}
	*rating = agg.Value()
	*count = agg.Count
	return nil
}

// Rating downloads the CSV at url and aggregates its ratings.
func (s *Service) Rating(ctx context.Context, url string) (csvfeed.Rating, error) {
	rows, err := s.csv.Rows(ctx, url)
	if err != nil {
		return csvfeed.Rating{}, fmt.Errorf("compute rating: %w", err)
	}
	return csvfeed.Aggregate(rows), nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
