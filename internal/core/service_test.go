package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/reviewgallery/internal/csvfeed"
	"github.com/JonMunkholm/reviewgallery/internal/sheetscript"
	"github.com/JonMunkholm/reviewgallery/internal/shopify"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

const testShop = "demo.myshopify.com"

const sampleCSV = "product,rating,author,email,body,date,photo_url,verified,variant\n" +
	"A,5,Sarah,,Great,2024-01-15,,TRUE,\n" +
	"A,3,Bob,,Ok,2024-01-16,,FALSE,"

// fakeCSV serves documents by URL.
type fakeCSV struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeCSV) Rows(_ context.Context, url string) ([]csvfeed.DataRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return csvfeed.Parse(f.docs[url]), nil
}

type triageCall struct {
	Endpoint string
	Action   string
	RowIndex int
}

type fakeScript struct {
	mu          sync.Mutex
	err         error
	triages     []triageCall
	submissions []sheetscript.Submission
	endpoints   []string
}

func (f *fakeScript) Triage(_ context.Context, endpoint, action string, rowIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triages = append(f.triages, triageCall{endpoint, action, rowIndex})
	return f.err
}

func (f *fakeScript) Submit(_ context.Context, endpoint string, s sheetscript.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, endpoint)
	f.submissions = append(f.submissions, s)
	return f.err
}

type fakeMirror struct {
	settings []*store.ShopSetting
	products []*store.ProductCsvMapping
	deleted  []string
	list     []shopify.Product
	err      error
}

func (f *fakeMirror) SaveSettings(_ context.Context, s *store.ShopSetting) error {
	f.settings = append(f.settings, s)
	return f.err
}

func (f *fakeMirror) SaveProduct(_ context.Context, m *store.ProductCsvMapping) error {
	f.products = append(f.products, m)
	return f.err
}

func (f *fakeMirror) DeleteProduct(_ context.Context, _, productID string) error {
	f.deleted = append(f.deleted, productID)
	return f.err
}

func (f *fakeMirror) Products(context.Context, string) ([]shopify.Product, error) {
	return f.list, f.err
}

type fixture struct {
	svc    *Service
	store  *store.Store
	csv    *fakeCSV
	script *fakeScript
	mirror *fakeMirror
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.OpenSQLite(":memory:", store.RetryPolicy{Attempts: 1})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{
		store:  st,
		csv:    &fakeCSV{docs: map[string]string{}, errs: map[string]error{}},
		script: &fakeScript{},
		mirror: &fakeMirror{},
	}
	f.svc = NewService(st, f.csv, f.mirror, f.script)
	f.svc.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) mapProduct(t *testing.T, productID, url, submitURL string) {
	t.Helper()
	_, err := f.store.UpsertMapping(context.Background(), &store.ProductCsvMapping{
		Shop: testShop, ProductID: productID, ProductTitle: "Title " + productID,
		CsvURL: url, SubmitURL: submitURL, RatingSource: store.RatingManual,
	})
	require.NoError(t, err)
}

func TestSettings_Defaults(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Settings(context.Background(), testShop)
	require.NoError(t, err)
	assert.Equal(t, "Customer Reviews", got.Heading)
	assert.Equal(t, "#FFC107", got.StarColor)
	assert.Equal(t, store.LayoutMasonry, got.LayoutStyle)
	assert.True(t, got.ShowVerifiedBadge)
	assert.Equal(t, store.RatingManual, got.RatingSource)
}

func TestSaveSettings_FillsDefaultsAndMirrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.svc.SaveSettings(ctx, testShop, SettingsInput{
		CsvURL:        " https://docs.google.com/pub?output=csv ",
		LayoutStyle:   "Grid",
		FormSubmitURL: "https://script.google.com/macros/s/x/exec",
	})
	require.NoError(t, err)
	assert.Equal(t, "Customer Reviews", saved.Heading)
	assert.Equal(t, "#FFC107", saved.StarColor)
	assert.Equal(t, store.LayoutGrid, saved.LayoutStyle)
	assert.False(t, saved.ShowVerifiedBadge)
	assert.Equal(t, "https://docs.google.com/pub?output=csv", saved.CsvURL)
	require.Len(t, f.mirror.settings, 1)

	got, err := f.svc.Settings(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, store.LayoutGrid, got.LayoutStyle)
	assert.Equal(t, "https://script.google.com/macros/s/x/exec", got.FormSubmitURL)
}

func TestSaveSettings_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   SettingsInput
		want error
	}{
		{"rating above five", SettingsInput{Rating: 6}, ErrInvalidRating},
		{"auto without csv", SettingsInput{RatingSource: store.RatingAuto}, ErrMissingCSVURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.SaveSettings(context.Background(), testShop, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
			assert.Empty(t, f.mirror.settings)
		})
	}
}

func TestSaveSettings_FreeFormAppearance(t *testing.T) {
	tests := []struct {
		name       string
		in         SettingsInput
		wantColor  string
		wantLayout string
	}{
		{"named color", SettingsInput{StarColor: "gold"}, "gold", store.LayoutMasonry},
		{"hex with alpha", SettingsInput{StarColor: "#FFC107FF"}, "#FFC107FF", store.LayoutMasonry},
		{"rgb function", SettingsInput{StarColor: " rgb(255,193,7) "}, "rgb(255,193,7)", store.LayoutMasonry},
		{"unknown layout", SettingsInput{LayoutStyle: "carousel"}, "#FFC107", store.LayoutMasonry},
		{"grid any case", SettingsInput{LayoutStyle: "GRID"}, "#FFC107", store.LayoutGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			saved, err := f.svc.SaveSettings(context.Background(), testShop, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantColor, saved.StarColor)
			assert.Equal(t, tt.wantLayout, saved.LayoutStyle)
			require.Len(t, f.mirror.settings, 1)
		})
	}
}

func TestSaveSettings_AutoRating(t *testing.T) {
	f := newFixture(t)
	f.csv.docs["https://sheet/all.csv"] = sampleCSV

	saved, err := f.svc.SaveSettings(context.Background(), testShop, SettingsInput{
		CsvURL:       "https://sheet/all.csv",
		RatingSource: store.RatingAuto,
		Rating:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, saved.Rating)
	assert.Equal(t, 2, saved.ReviewCount)
}

func TestSaveProductCSV_RequiresProductAndURL(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SaveProductCSV(context.Background(), testShop, ProductCSVInput{ProductID: "p1"})
	assert.ErrorIs(t, err, ErrMissingProductCSV)
	assert.Equal(t, "Product and CSV URL are required.", MapError(err).Message)

	_, err = f.svc.SaveProductCSV(context.Background(), testShop, ProductCSVInput{CsvURL: "https://x"})
	assert.ErrorIs(t, err, ErrMissingProductCSV)
}

func TestSaveProductCSV_AutoRatingAndMirror(t *testing.T) {
	f := newFixture(t)
	f.csv.docs["https://sheet/p1.csv"] = sampleCSV

	saved, err := f.svc.SaveProductCSV(context.Background(), testShop, ProductCSVInput{
		ProductID:    "gid://shopify/Product/1",
		ProductTitle: "Mug",
		CsvURL:       "https://sheet/p1.csv",
		RatingSource: store.RatingAuto,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 4.0, saved.Rating)
	assert.Equal(t, 2, saved.ReviewCount)
	require.Len(t, f.mirror.products, 1)
	assert.Equal(t, "gid://shopify/Product/1", f.mirror.products[0].ProductID)
}

func TestSaveProductCSV_MirrorFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.mirror.err = shopify.UserErrors{{Message: "Owner does not exist"}}

	_, err := f.svc.SaveProductCSV(context.Background(), testShop, ProductCSVInput{
		ProductID: "p1", CsvURL: "https://x", Rating: 4, ReviewCount: 3,
	})
	require.Error(t, err)
	assert.Equal(t, "Owner does not exist", MapError(err).Message)
}

func TestSyncPending_QueuesUnverifiedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.csv.docs["https://sheet/a.csv"] = sampleCSV
	f.mapProduct(t, "A", "https://sheet/a.csv", "")

	res, err := f.svc.SyncPending(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Failed)
	assert.NotEmpty(t, res.SyncID)
	assert.Equal(t, "Sync complete — 1 pending review(s) found.", res.Toast())

	pending, err := f.store.PendingReviews(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	bob := pending[0]
	assert.Equal(t, "demo.myshopify.com_A_3", bob.ID)
	assert.Equal(t, "Bob", bob.Author)
	assert.Equal(t, 3, bob.Rating)
	assert.Equal(t, 3, bob.RowIndex)
	assert.Equal(t, "Ok", bob.Body)
	assert.Equal(t, "2024-01-16", bob.Date)
	assert.Equal(t, "Title A", bob.ProductTitle)
}

func TestSyncPending_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.csv.docs["https://sheet/a.csv"] = sampleCSV
	f.mapProduct(t, "A", "https://sheet/a.csv", "")

	_, err := f.svc.SyncPending(ctx, testShop)
	require.NoError(t, err)

	// The sheet row is edited but keeps its position; the queued copy stays.
	f.csv.docs["https://sheet/a.csv"] = "h\nA,5,Sarah,,Great,,,TRUE,\nA,1,Robert,,Changed,,,FALSE,"
	res, err := f.svc.SyncPending(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 0, res.Created)

	pending, err := f.store.PendingReviews(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Bob", pending[0].Author)
}

func TestSyncPending_SourceFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.csv.errs["https://sheet/broken.csv"] = &csvfeed.StatusError{URL: "https://sheet/broken.csv", Code: 404}
	f.csv.docs["https://sheet/ok.csv"] = sampleCSV
	f.mapProduct(t, "broken", "https://sheet/broken.csv", "")
	f.mapProduct(t, "ok", "https://sheet/ok.csv", "")

	res, err := f.svc.SyncPending(context.Background(), testShop)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Created)
	require.Len(t, res.Sources, 2)

	var failed *SourceResult
	for i := range res.Sources {
		if res.Sources[i].ProductID == "broken" {
			failed = &res.Sources[i]
		}
	}
	require.NotNil(t, failed)
	assert.Error(t, failed.Err)
	assert.Contains(t, failed.Error, "404")
}

func TestSyncPending_RowNumbersCountBlankLines(t *testing.T) {
	f := newFixture(t)
	f.csv.docs["https://sheet/a.csv"] = "h\n\nA,4,Ann,,Nice,,,no,\n"
	f.mapProduct(t, "A", "https://sheet/a.csv", "")

	_, err := f.svc.SyncPending(context.Background(), testShop)
	require.NoError(t, err)

	got, err := f.store.PendingReview(context.Background(), testShop, PendingID(testShop, "A", 3))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.Author)
}

func TestDeleteProductCSV_DoesNotCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.csv.docs["https://sheet/a.csv"] = sampleCSV
	f.mapProduct(t, "A", "https://sheet/a.csv", "")

	_, err := f.svc.SyncPending(ctx, testShop)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteProductCSV(ctx, testShop, "A"))
	assert.Equal(t, []string{"A"}, f.mirror.deleted)

	n, err := f.svc.PendingCount(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.csv.calls = nil
	res, err := f.svc.SyncPending(ctx, testShop)
	require.NoError(t, err)
	assert.Empty(t, res.Sources)
	assert.Empty(t, f.csv.calls)

	err = f.svc.DeleteProductCSV(ctx, testShop, "A")
	assert.ErrorIs(t, err, ErrMappingNotFound)
}

func seedPending(t *testing.T, f *fixture, productID string, rowIndex int) string {
	t.Helper()
	id := PendingID(testShop, productID, rowIndex)
	_, err := f.store.InsertPendingIfAbsent(context.Background(), &store.PendingReview{
		ID: id, Shop: testShop, ProductID: productID, RowIndex: rowIndex, Author: "Bob", Rating: 3,
	})
	require.NoError(t, err)
	return id
}

func TestVerifyReview_UsesProductEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mapProduct(t, "A", "https://sheet/a.csv", "https://script/product")
	_, err := f.svc.SaveSettings(ctx, testShop, SettingsInput{FormSubmitURL: "https://script/global"})
	require.NoError(t, err)
	id := seedPending(t, f, "A", 3)

	require.NoError(t, f.svc.VerifyReview(ctx, testShop, id))
	assert.Equal(t, []triageCall{{"https://script/product", "verify", 3}}, f.script.triages)

	got, err := f.store.PendingReview(ctx, testShop, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteReview_FallsBackToGlobalEndpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SaveSettings(ctx, testShop, SettingsInput{FormSubmitURL: "https://script/global"})
	require.NoError(t, err)
	id := seedPending(t, f, "unmapped", 7)

	require.NoError(t, f.svc.DeleteReview(ctx, testShop, id))
	assert.Equal(t, []triageCall{{"https://script/global", "delete", 7}}, f.script.triages)
}

func TestTriage_ScriptFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mapProduct(t, "A", "https://sheet/a.csv", "https://script/product")
	id := seedPending(t, f, "A", 3)
	f.script.err = &sheetscript.RemoteError{Message: "Row not found"}

	err := f.svc.VerifyReview(ctx, testShop, id)
	require.Error(t, err)
	assert.Equal(t, "Row not found", MapError(err).Message)

	got, err := f.store.PendingReview(ctx, testShop, id)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestTriage_NoEndpointRejectedBeforeNetwork(t *testing.T) {
	f := newFixture(t)
	id := seedPending(t, f, "A", 3)

	err := f.svc.VerifyReview(context.Background(), testShop, id)
	assert.ErrorIs(t, err, ErrNoSubmitEndpoint)
	assert.Equal(t, "No Apps Script URL configured for this product.", MapError(err).Message)
	assert.Empty(t, f.script.triages)
}

func TestTriage_UnknownReview(t *testing.T) {
	f := newFixture(t)
	err := f.svc.DeleteReview(context.Background(), testShop, "nope")
	assert.ErrorIs(t, err, ErrReviewNotFound)
}

func TestDismissReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := seedPending(t, f, "A", 3)

	require.NoError(t, f.svc.DismissReview(ctx, testShop, id))
	require.NoError(t, f.svc.DismissReview(ctx, testShop, id))
	assert.Empty(t, f.script.triages)

	n, err := f.svc.PendingCount(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPendingPage_ResolvesEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mapProduct(t, "A", "https://sheet/a.csv", "https://script/product")
	f.mapProduct(t, "B", "https://sheet/b.csv", "")
	seedPending(t, f, "A", 2)
	seedPending(t, f, "B", 2)

	page, err := f.svc.PendingPage(ctx, testShop)
	require.NoError(t, err)
	require.Len(t, page.Reviews, 2)
	assert.Len(t, page.Mappings, 2)
	assert.Equal(t, "", page.GlobalSubmitURL)

	byProduct := map[string]PendingItem{}
	for _, r := range page.Reviews {
		byProduct[r.ProductID] = r
	}
	assert.True(t, byProduct["A"].CanTriage)
	assert.Equal(t, "https://script/product", byProduct["A"].SubmitURL)
	assert.False(t, byProduct["B"].CanTriage)
}

func TestProductsPage_SoftPlatformError(t *testing.T) {
	f := newFixture(t)
	f.mirror.err = &shopify.GraphQLError{Messages: []string{"Access denied for products field."}}
	f.mapProduct(t, "A", "https://sheet/a.csv", "")

	page, err := f.svc.ProductsPage(context.Background(), testShop)
	require.NoError(t, err)
	assert.Equal(t, "Access denied for products field.", page.ProductsError)
	assert.Empty(t, page.Products)
	assert.Len(t, page.Mappings, 1)
}

func TestProductsPage_NoopMirror(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, f.csv, nil, f.script)

	page, err := svc.ProductsPage(context.Background(), testShop)
	require.NoError(t, err)
	assert.Equal(t, "The Shopify Admin API is not configured.", page.ProductsError)
}

func TestSubmitReview_Validation(t *testing.T) {
	f := newFixture(t)

	err := f.svc.SubmitReview(context.Background(), testShop, ReviewSubmission{Email: "not-an-email"})
	var se *SubmissionError
	require.True(t, errors.As(err, &se), "error = %v", err)
	assert.Equal(t, FieldErrors{
		"author": "Name is required.",
		"body":   "Review text is required.",
		"rating": "Please select a rating.",
		"email":  "Enter a valid email.",
	}, se.Fields)
	assert.ErrorIs(t, err, ErrInvalidSubmission)
	assert.Empty(t, f.script.submissions)
}

func TestSubmitReview_Forwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mapProduct(t, "gid://shopify/Product/1", "https://sheet/a.csv", "https://script/product")

	err := f.svc.SubmitReview(ctx, testShop, ReviewSubmission{
		ProductID:     "gid://shopify/Product/1",
		ProductHandle: "mug",
		Rating:        5,
		Author:        "  Sarah ",
		Email:         "sarah@example.com",
		Body:          "Great",
	})
	require.NoError(t, err)
	require.Len(t, f.script.submissions, 1)
	assert.Equal(t, []string{"https://script/product"}, f.script.endpoints)
	assert.Equal(t, sheetscript.Submission{
		Rating: 5, Author: "Sarah", Email: "sarah@example.com", Body: "Great",
		Date: "2026-03-04", Product: "mug", Verified: false,
	}, f.script.submissions[0])
}

func TestMissingShop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SyncPending(ctx, "")
	assert.ErrorIs(t, err, ErrMissingShop)
	assert.ErrorIs(t, f.svc.DismissReview(ctx, "", "x"), ErrMissingShop)
	_, err = f.svc.PendingPage(ctx, "")
	assert.ErrorIs(t, err, ErrMissingShop)
}

func TestSyncPending_OnePerShop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release, err := f.svc.syncs.Acquire(ctx, testShop)
	require.NoError(t, err)

	_, err = f.svc.SyncPending(ctx, testShop)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.Equal(t, "RATE002", MapError(err).Code)

	_, err = f.svc.SyncPending(ctx, "other.myshopify.com")
	assert.NoError(t, err)

	release()
	_, err = f.svc.SyncPending(ctx, testShop)
	assert.NoError(t, err)
	assert.NoError(t, f.svc.WaitForSyncs(ctx))
}

// failingInsertStore fails InsertPendingIfAbsent for one pending id.
type failingInsertStore struct {
	Store
	failID string
}

func (s *failingInsertStore) InsertPendingIfAbsent(ctx context.Context, r *store.PendingReview) (bool, error) {
	if r.ID == s.failID {
		return false, errors.New("disk I/O error")
	}
	return s.Store.InsertPendingIfAbsent(ctx, r)
}

func TestSyncPending_StorageFailureKeepsEarlierRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.csv.docs["https://sheet/flaky.csv"] = "h\n" +
		"flaky,4,Ann,,First,,,no,\n" +
		"flaky,3,Ben,,Second,,,no,\n" +
		"flaky,5,Cat,,Third,,,no,"
	f.csv.docs["https://sheet/ok.csv"] = sampleCSV
	f.mapProduct(t, "flaky", "https://sheet/flaky.csv", "")
	f.mapProduct(t, "ok", "https://sheet/ok.csv", "")

	f.svc.store = &failingInsertStore{Store: f.store, failID: PendingID(testShop, "flaky", 3)}

	res, err := f.svc.SyncPending(ctx, testShop)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 2, res.Created)

	for _, src := range res.Sources {
		switch src.ProductID {
		case "flaky":
			assert.Error(t, src.Err)
			assert.Equal(t, 1, src.Created)
		case "ok":
			assert.NoError(t, src.Err)
			assert.Equal(t, 1, src.Created)
		}
	}

	stored, err := f.store.PendingReview(ctx, testShop, PendingID(testShop, "flaky", 2))
	require.NoError(t, err)
	require.NotNil(t, stored, "row before the failure should be kept")
	assert.Equal(t, "Ann", stored.Author)

	for _, row := range []int{3, 4} {
		got, err := f.store.PendingReview(ctx, testShop, PendingID(testShop, "flaky", row))
		require.NoError(t, err)
		assert.Nil(t, got, "row %d should not be stored", row)
	}

	bob, err := f.store.PendingReview(ctx, testShop, PendingID(testShop, "ok", 3))
	require.NoError(t, err)
	require.NotNil(t, bob, "later source should still run")
	assert.Equal(t, "Bob", bob.Author)
}
