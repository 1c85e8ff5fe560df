package csvfeed

import (
	"regexp"
	"strconv"
	"strings"
)

// Column positions of a review row.
const (
	ColProduct = iota
	ColRating
	ColAuthor
	ColEmail
	ColBody
	ColDate
	ColPhotoURL
	ColVerified
	ColVariant
)

// Row is one parsed CSV line. Missing trailing columns read as "".
type Row []string

// Col returns column i or "" when the row is shorter.
func (r Row) Col(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

func (r Row) Product() string  { return r.Col(ColProduct) }
func (r Row) Author() string   { return r.Col(ColAuthor) }
func (r Row) Email() string    { return r.Col(ColEmail) }
func (r Row) Body() string     { return r.Col(ColBody) }
func (r Row) Date() string     { return r.Col(ColDate) }
func (r Row) PhotoURL() string { return r.Col(ColPhotoURL) }
func (r Row) Variant() string  { return r.Col(ColVariant) }

// Verified reports whether the verified column holds a truthy token.
func (r Row) Verified() bool { return IsVerified(r.Col(ColVerified)) }

var verifiedTokens = map[string]bool{"TRUE": true, "1": true, "YES": true, "Y": true}

// IsVerified reports whether flag, uppercased, is TRUE, 1, YES or Y.
func IsVerified(flag string) bool {
	return verifiedTokens[strings.ToUpper(strings.TrimSpace(flag))]
}

var (
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
)

// Rating parses the rating column the way the storefront does: the longest
// leading decimal number, ignoring trailing text ("4.5 stars" is 4.5).
func (r Row) Rating() (float64, bool) {
	m := leadingFloat.FindString(strings.TrimSpace(r.Col(ColRating)))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Stars is the integer rating stored on a pending review. An unparsable or
// zero rating becomes 5; the result is clamped to 1..5.
func (r Row) Stars() int {
	m := leadingInt.FindString(strings.TrimSpace(r.Col(ColRating)))
	n, err := strconv.Atoi(m)
	if err != nil || n == 0 {
		return 5
	}
	return min(max(n, 1), 5)
}
