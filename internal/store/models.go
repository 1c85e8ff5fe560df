package store

import (
	"strings"
	"time"
)

// RatingSource selects where a rating summary comes from.
type RatingSource string

const (
	// RatingManual means the merchant typed the rating and count.
	RatingManual RatingSource = "manual"
	// RatingAuto means the rating is computed from the CSV on save.
	RatingAuto RatingSource = "auto"
)

// ParseRatingSource maps form input to a RatingSource, defaulting to manual.
func ParseRatingSource(s string) RatingSource {
	if RatingSource(strings.ToLower(strings.TrimSpace(s))) == RatingAuto {
		return RatingAuto
	}
	return RatingManual
}

// Layout styles accepted for the storefront gallery.
const (
	LayoutMasonry = "masonry"
	LayoutGrid    = "grid"
)

// ShopSetting holds the global gallery settings of one shop.
type ShopSetting struct {
	Shop              string       `gorm:"primaryKey;size:255" json:"shop"`
	CsvURL            string       `gorm:"type:text" json:"csvUrl"`
	Heading           string       `gorm:"size:255" json:"heading"`
	StarColor         string       `gorm:"size:16" json:"starColor"`
	LayoutStyle       string       `gorm:"size:16" json:"layoutStyle"`
	ShowVerifiedBadge bool         `json:"showVerifiedBadge"`
	Rating            float64      `json:"rating"`
	ReviewCount       int          `json:"reviewCount"`
	RatingSource      RatingSource `gorm:"size:8" json:"ratingSource"`
	FormSubmitURL     string       `gorm:"type:text" json:"formSubmitUrl"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// TableName keeps the table name stable across model renames.
func (ShopSetting) TableName() string { return "settings" }

// ProductCsvMapping attaches a review CSV to one product of a shop.
type ProductCsvMapping struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	Shop         string       `gorm:"size:255;not null;uniqueIndex:idx_product_csv_shop_product,priority:1" json:"shop"`
	ProductID    string       `gorm:"size:255;not null;uniqueIndex:idx_product_csv_shop_product,priority:2" json:"productId"`
	ProductTitle string       `gorm:"size:255" json:"productTitle"`
	ProductImage string       `gorm:"type:text" json:"productImage"`
	CsvURL       string       `gorm:"type:text" json:"csvUrl"`
	Rating       float64      `json:"rating"`
	ReviewCount  int          `json:"reviewCount"`
	RatingSource RatingSource `gorm:"size:8" json:"ratingSource"`
	SubmitURL    string       `gorm:"type:text" json:"submitUrl"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"index" json:"updatedAt"`
}

func (ProductCsvMapping) TableName() string { return "product_csvs" }

// PendingReview is an unverified CSV row waiting for merchant triage.
// ID is shop + "_" + productID + "_" + rowIndex.
type PendingReview struct {
	ID           string    `gorm:"primaryKey;size:600" json:"id"`
	Shop         string    `gorm:"size:255;not null;uniqueIndex:idx_pending_identity,priority:1" json:"shop"`
	ProductID    string    `gorm:"size:255;not null;uniqueIndex:idx_pending_identity,priority:2" json:"productId"`
	RowIndex     int       `gorm:"not null;uniqueIndex:idx_pending_identity,priority:3" json:"rowIndex"`
	ProductTitle string    `gorm:"size:255" json:"productTitle"`
	Author       string    `gorm:"size:255" json:"author"`
	Rating       int       `json:"rating"`
	Body         string    `gorm:"type:text" json:"body"`
	Date         string    `gorm:"size:64" json:"date"`
	PhotoURL     string    `gorm:"type:text" json:"photoUrl"`
	Variant      string    `gorm:"size:255" json:"variant"`
	SeenAt       time.Time `gorm:"autoCreateTime;index" json:"seenAt"`
}

func (PendingReview) TableName() string { return "pending_reviews" }
