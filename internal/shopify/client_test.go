package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/reviewgallery/internal/config"
	"github.com/JonMunkholm/reviewgallery/internal/store"
)

type recordedCall struct {
	Path      string
	Token     string
	Query     string
	Variables map[string]any
}

// fakeAdmin answers GraphQL calls by matching a substring of the query.
type fakeAdmin struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string]string
}

func (f *fakeAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		Path:      r.URL.Path,
		Token:     r.Header.Get("X-Shopify-Access-Token"),
		Query:     req.Query,
		Variables: req.Variables,
	})
	f.mu.Unlock()

	for match, body := range f.responses {
		if strings.Contains(req.Query, match) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
			return
		}
	}
	http.Error(w, "unexpected query", http.StatusBadRequest)
}

func newTestClient(t *testing.T, f http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(config.ShopifyConfig{
		AdminToken: "shpat_test",
		APIVersion: "2024-10",
		Timeout:    5 * time.Second,
	}, WithBaseURL(srv.URL))
}

func TestShopID(t *testing.T) {
	fake := &fakeAdmin{responses: map[string]string{
		"shop { id }": `{"data":{"shop":{"id":"gid://shopify/Shop/7"}}}`,
	}}
	c := newTestClient(t, fake)

	id, err := c.ShopID(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Shop/7", id)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "/admin/api/2024-10/graphql.json", fake.calls[0].Path)
	assert.Equal(t, "shpat_test", fake.calls[0].Token)
}

func TestSetMetafields_UserErrors(t *testing.T) {
	fake := &fakeAdmin{responses: map[string]string{
		"metafieldsSet": `{"data":{"metafieldsSet":{"userErrors":[{"field":["metafields","0","value"],"message":"Value is invalid"}]}}}`,
	}}
	c := newTestClient(t, fake)

	err := c.SetMetafields(context.Background(), "demo.myshopify.com", []Metafield{{OwnerID: "gid://shopify/Product/1", Key: "rating"}})
	var ue UserErrors
	require.True(t, errors.As(err, &ue), "error = %v", err)
	assert.Equal(t, "Value is invalid", err.Error())
}

func TestDo_GraphQLErrors(t *testing.T) {
	fake := &fakeAdmin{responses: map[string]string{
		"products": `{"errors":[{"message":"Access denied for products field."}]}`,
	}}
	c := newTestClient(t, fake)

	_, err := c.Products(context.Background(), "demo.myshopify.com", 100)
	var ge *GraphQLError
	require.True(t, errors.As(err, &ge), "error = %v", err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestDo_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.ShopID(context.Background(), "demo.myshopify.com")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProducts(t *testing.T) {
	fake := &fakeAdmin{responses: map[string]string{
		"products": `{"data":{"products":{"edges":[
			{"node":{"id":"gid://shopify/Product/1","title":"Mug","handle":"mug","featuredImage":{"url":"https://cdn/mug.png"}}},
			{"node":{"id":"gid://shopify/Product/2","title":"Cap","handle":"cap","featuredImage":null}}
		]}}}`,
	}}
	c := newTestClient(t, fake)

	products, err := c.Products(context.Background(), "demo.myshopify.com", 100)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "https://cdn/mug.png", products[0].ImageURL)
	assert.Equal(t, "", products[1].ImageURL)
	assert.EqualValues(t, 100, fake.calls[0].Variables["first"])
}

func TestMirror_SaveSettings(t *testing.T) {
	fake := &fakeAdmin{responses: map[string]string{
		"shop { id }":   `{"data":{"shop":{"id":"gid://shopify/Shop/7"}}}`,
		"metafieldsSet": `{"data":{"metafieldsSet":{"userErrors":[]}}}`,
	}}
	m := NewMirror(newTestClient(t, fake), "review_gallery")

	err := m.SaveSettings(context.Background(), &store.ShopSetting{
		Shop:              "demo.myshopify.com",
		Heading:           "Customer Reviews",
		StarColor:         "#FFC107",
		LayoutStyle:       store.LayoutMasonry,
		ShowVerifiedBadge: true,
		RatingSource:      store.RatingManual,
	})
	require.NoError(t, err)
	require.Len(t, fake.calls, 2)

	fields := fake.calls[1].Variables["metafields"].([]any)
	require.Len(t, fields, 1)
	mf := fields[0].(map[string]any)
	assert.Equal(t, "gid://shopify/Shop/7", mf["ownerId"])
	assert.Equal(t, "review_gallery", mf["namespace"])
	assert.Equal(t, "settings", mf["key"])
	assert.Equal(t, "json", mf["type"])

	var value map[string]any
	require.NoError(t, json.Unmarshal([]byte(mf["value"].(string)), &value))
	assert.Equal(t, "Customer Reviews", value["heading"])
	assert.Equal(t, true, value["showVerifiedBadge"])
}

func TestMirror_ProductMetafields(t *testing.T) {
	m := NewMirror(nil, "review_gallery")
	p := &store.ProductCsvMapping{
		Shop:         "demo.myshopify.com",
		ProductID:    "gid://shopify/Product/1",
		CsvURL:       "https://example.com/a.csv",
		Rating:       4.5,
		ReviewCount:  12,
		RatingSource: store.RatingAuto,
	}

	fields := m.ProductMetafields(p)
	require.Len(t, fields, 4)
	assert.Equal(t, Metafield{OwnerID: p.ProductID, Namespace: "review_gallery", Key: KeyRating, Type: "number_decimal", Value: "4.5"}, fields[1])
	assert.Equal(t, "12", fields[2].Value)
	assert.Equal(t, "auto", fields[3].Value)

	p.SubmitURL = "https://script.google.com/macros/s/x/exec"
	fields = m.ProductMetafields(p)
	require.Len(t, fields, 5)
	assert.Equal(t, KeySubmitURL, fields[4].Key)
}

func TestMirror_DeleteProduct(t *testing.T) {
	fake := &fakeAdmin{responses: map[string]string{
		"metafieldsDelete": `{"data":{"metafieldsDelete":{"deletedMetafields":[],"userErrors":[]}}}`,
	}}
	m := NewMirror(newTestClient(t, fake), "review_gallery")

	require.NoError(t, m.DeleteProduct(context.Background(), "demo.myshopify.com", "gid://shopify/Product/1"))
	require.Len(t, fake.calls, 1)
	ids := fake.calls[0].Variables["metafields"].([]any)
	assert.Len(t, ids, 5)
}
