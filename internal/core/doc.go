// Package core provides the business logic of the review gallery admin.
//
// It holds the domain rules independent of any transport: web handlers and
// the reviewctl CLI both drive the same [Service].
//
// # Sources of truth
//
// Review content lives in the merchant's Google Sheet. This service only
// keeps:
//
//   - per-shop gallery settings ([store.ShopSetting])
//   - which published CSV belongs to which product ([store.ProductCsvMapping])
//   - a queue of unverified sheet rows awaiting triage ([store.PendingReview])
//
// Saved settings and mappings are mirrored to metafields so the storefront
// theme can render without calling back here.
//
// # Sync
//
// [Service.SyncPending] downloads every mapped CSV in turn and queues each
// row whose verified column is not TRUE, 1, YES or Y. A row is identified
// by (shop, product, sheet row number); re-running a sync never duplicates
// or edits queued rows. A shop runs one sync at a time; see [SyncLimiter].
//
// # Triage
//
// Verify and delete post {action, rowIndex} to the Apps Script endpoint of
// the review's product, falling back to the shop endpoint. The queue entry
// is removed only after the script answers {success:true}. Dismiss removes
// the entry locally.
//
// # Error Handling
//
// Technical errors are mapped to merchant-facing messages using [MapError].
// Validation failures wrap sentinel errors such as [ErrMissingProductCSV];
// see error_messages.go for the code table.
package core
