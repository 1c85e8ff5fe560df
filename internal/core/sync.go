package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

// SourceResult is the outcome of syncing one product's CSV.
type SourceResult struct {
	ProductID    string         `json:"productId"`
	ProductTitle string         `json:"productTitle"`
	Found        int            `json:"found"`
	Created      int            `json:"created"`
	Rating       csvfeed.Rating `json:"rating"`
	Err          error          `json:"-"`
	Error        string         `json:"error,omitempty"`
}

// SyncResult summarizes a sync run.
type SyncResult struct {
	SyncID   string         `json:"syncId"`
	Found    int            `json:"found"`
	Created  int            `json:"created"`
	Failed   int            `json:"failed"`
	Sources  []SourceResult `json:"sources"`
	Duration time.Duration  `json:"duration"`
}

// Toast is the message shown to the merchant after a sync.
func (r SyncResult) Toast() string {
	return fmt.Sprintf("Sync complete — %d pending review(s) found.", r.Found)
}

// PendingID is the id of the pending review for a sheet row.
func PendingID(shop, productID string, rowIndex int) string {
	return shop + "_" + productID + "_" + strconv.Itoa(rowIndex)
}

// SyncPending reads every product CSV of shop and queues each unverified
// row that is not queued yet. Queued rows are never updated or removed.
//
// Sources run one after another. A source that fails to download or store
// is recorded in the result and the rest still run; rows stored before the
// failure are kept. Found counts every unverified row seen, Created only the
// rows newly queued.
//
// A shop runs one sync at a time; see SyncLimiter.
func (s *Service) SyncPending(ctx context.Context, shop string) (SyncResult, error) {
	if shop == "" {
		return SyncResult{}, ErrMissingShop
	}
	release, err := s.syncs.Acquire(ctx, shop)
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	start := s.now()
	result := SyncResult{SyncID: uuid.NewString()}
	ctx = logging.ContextWithFields(ctx, "sync_id", result.SyncID)
	log := logging.FromContext(ctx)

	mappings, err := s.store.Mappings(ctx, shop)
	if err != nil {
		return result, fmt.Errorf("list product csvs: %w", err)
	}
	log.Info("sync started", "sources", len(mappings))

	for i := range mappings {
		m := &mappings[i]
		if m.CsvURL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		src := s.syncSource(ctx, shop, m)
		result.Found += src.Found
		result.Created += src.Created
		if src.Err != nil {
			result.Failed++
			src.Error = MapError(src.Err).Message
			log.Warn("sync source failed",
				"product_id", m.ProductID,
				"found", src.Found,
				"created", src.Created,
				"error", src.Err,
			)
		} else {
			log.Debug("sync source done",
				"product_id", m.ProductID,
				"found", src.Found,
				"created", src.Created,
			)
		}
		result.Sources = append(result.Sources, src)
	}

	result.Duration = s.now().Sub(start)
	log.Info("sync complete",
		"found", result.Found,
		"created", result.Created,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (s *Service) syncSource(ctx context.Context, shop string, m *store.ProductCsvMapping) SourceResult {
	src := SourceResult{ProductID: m.ProductID, ProductTitle: m.ProductTitle}

	rows, err := s.csv.Rows(ctx, m.CsvURL)
	if err != nil {
		src.Err = err
		return src
	}
	src.Rating = csvfeed.Aggregate(rows)

	for _, dr := range rows {
		if dr.Row.Verified() {
			continue
		}
		review := pendingFromRow(shop, m, dr)
		created, err := s.store.InsertPendingIfAbsent(ctx, review)
		if err != nil {
			src.Err = err
			return src
		}
		src.Found++
		if created {
			src.Created++
		}
	}
	return src
}

func pendingFromRow(shop string, m *store.ProductCsvMapping, dr csvfeed.DataRow) *store.PendingReview {
	return &store.PendingReview{
		ID:           PendingID(shop, m.ProductID, dr.SheetRow),
		Shop:         shop,
		ProductID:    m.ProductID,
		RowIndex:     dr.SheetRow,
		ProductTitle: m.ProductTitle,
		Author:       dr.Row.Author(),
		Rating:       dr.Row.Stars(),
		Body:         dr.Row.Body(),
		Date:         dr.Row.Date(),
		PhotoURL:     dr.Row.PhotoURL(),
		Variant:      dr.Row.Variant(),
	}
}
