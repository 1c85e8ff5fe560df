package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/JonMunkholm/reviewgallery/internal/core"
	"github.com/JonMunkholm/reviewgallery/internal/logging"
)

// ShopHeader is set by the Shopify admin and the app proxy.
const ShopHeader = "X-Shopify-Shop-Domain"

var shopDomain = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*\.myshopify\.com$`)

// ShopDomain resolves the shop from the ShopHeader header or the shop query
// parameter and stores it in the request context. Requests with a missing or
// malformed shop are passed to reject with core.ErrMissingShop.
func ShopDomain(reject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			shop := NormalizeShop(r.Header.Get(ShopHeader))
			if shop == "" {
				shop = NormalizeShop(r.URL.Query().Get("shop"))
			}
			if shop == "" {
				reject(w, r, core.ErrMissingShop)
				return
			}
			next.ServeHTTP(w, r.WithContext(logging.ContextWithShop(r.Context(), shop)))
		})
	}
}

// NormalizeShop lowercases s and returns it if it is a myshopify.com domain,
// else "".
func NormalizeShop(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !shopDomain.MatchString(s) {
		return ""
	}
	return s
}
