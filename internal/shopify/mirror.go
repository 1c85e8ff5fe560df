package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// Metafield keys read by the storefront theme block.
const (
	KeySettings     = "settings"
	KeyCsvURL       = "csv_url"
	KeyRating       = "rating"
	KeyReviewCount  = "review_count"
	KeyRatingSource = "rating_source"
	KeySubmitURL    = "submit_url"
)

// Mirror copies saved settings and mappings into metafields so the
// storefront can read them without calling this service.
type Mirror struct {
	client    *Client
	namespace string
}

// NewMirror returns a Mirror writing under namespace.
func NewMirror(client *Client, namespace string) *Mirror {
	return &Mirror{client: client, namespace: namespace}
}

// settingsValue is the JSON stored in the shop "settings" metafield.
type settingsValue struct {
	CsvURL            string  `json:"csvUrl"`
	Heading           string  `json:"heading"`
	StarColor         string  `json:"starColor"`
	LayoutStyle       string  `json:"layoutStyle"`
	ShowVerifiedBadge bool    `json:"showVerifiedBadge"`
	Rating            float64 `json:"rating"`
	ReviewCount       int     `json:"reviewCount"`
	RatingSource      string  `json:"ratingSource"`
	FormSubmitURL     string  `json:"formSubmitUrl,omitempty"`
}

// SaveSettings writes the shop-level settings metafield.
func (m *Mirror) SaveSettings(ctx context.Context, s *store.ShopSetting) error {
	shopID, err := m.client.ShopID(ctx, s.Shop)
	if err != nil {
		return fmt.Errorf("resolve shop id: %w", err)
	}

	value, err := json.Marshal(settingsValue{
		CsvURL:            s.CsvURL,
		Heading:           s.Heading,
		StarColor:         s.StarColor,
		LayoutStyle:       s.LayoutStyle,
		ShowVerifiedBadge: s.ShowVerifiedBadge,
		Rating:            s.Rating,
		ReviewCount:       s.ReviewCount,
		RatingSource:      string(s.RatingSource),
		FormSubmitURL:     s.FormSubmitURL,
	})
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	return m.client.SetMetafields(ctx, s.Shop, []Metafield{{
		OwnerID:   shopID,
		Namespace: m.namespace,
		Key:       KeySettings,
		Type:      "json",
		Value:     string(value),
	}})
}

// ProductMetafields builds the metafields written for one mapping.
// submit_url is only included when the mapping overrides it.
func (m *Mirror) ProductMetafields(p *store.ProductCsvMapping) []Metafield {
	field := func(key, typ, value string) Metafield {
		return Metafield{OwnerID: p.ProductID, Namespace: m.namespace, Key: key, Type: typ, Value: value}
	}
	fields := []Metafield{
		field(KeyCsvURL, "single_line_text_field", p.CsvURL),
		field(KeyRating, "number_decimal", strconv.FormatFloat(p.Rating, 'f', -1, 64)),
		field(KeyReviewCount, "number_integer", strconv.Itoa(p.ReviewCount)),
		field(KeyRatingSource, "single_line_text_field", string(p.RatingSource)),
	}
	if p.SubmitURL != "" {
		fields = append(fields, field(KeySubmitURL, "single_line_text_field", p.SubmitURL))
	}
	return fields
}

// SaveProduct writes the product metafields of p. A cleared submit URL
// override is removed.
func (m *Mirror) SaveProduct(ctx context.Context, p *store.ProductCsvMapping) error {
	if err := m.client.SetMetafields(ctx, p.Shop, m.ProductMetafields(p)); err != nil {
		return err
	}
	if p.SubmitURL == "" {
		return m.client.DeleteMetafields(ctx, p.Shop, []MetafieldIdentifier{
			{OwnerID: p.ProductID, Namespace: m.namespace, Key: KeySubmitURL},
		})
	}
	return nil
}

// DeleteProduct removes every metafield this service writes on a product.
func (m *Mirror) DeleteProduct(ctx context.Context, shop, productID string) error {
	keys := []string{KeyCsvURL, KeyRating, KeyReviewCount, KeyRatingSource, KeySubmitURL}
	ids := make([]MetafieldIdentifier, len(keys))
	for i, k := range keys {
		ids[i] = MetafieldIdentifier{OwnerID: productID, Namespace: m.namespace, Key: k}
	}
	return m.client.DeleteMetafields(ctx, shop, ids)
}

// Products lists the first 100 products for the mapping picker.
func (m *Mirror) Products(ctx context.Context, shop string) ([]Product, error) {
	return m.client.Products(ctx, shop, 100)
}
