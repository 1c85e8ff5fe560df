package csvfeed

import "strconv"

// Rating is the summary shown next to a product: mean of positive ratings
// with one decimal, and how many rows contributed.
type Rating struct {
	Average string `json:"average"`
	Count   int    `json:"count"`
}

// Value returns Average as a number.
func (r Rating) Value() float64 {
	v, _ := strconv.ParseFloat(r.Average, 64)
	return v
}

// Aggregate averages the rating column of rows. Ratings that do not parse
// or are <= 0 are left out of both sum and count.
func Aggregate(rows []DataRow) Rating {
	var (
		sum   float64
		count int
	)
	for _, dr := range rows {
		v, ok := dr.Row.Rating()
		if !ok || v <= 0 {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return Rating{Average: "0.0"}
	}
	return Rating{Average: strconv.FormatFloat(sum/float64(count), 'f', 1, 64), Count: count}
}

// AggregateText parses text and aggregates it.
func AggregateText(text string) Rating {
	return Aggregate(Parse(text))
}
