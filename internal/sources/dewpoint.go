package sources

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// NewDewPoint builds the dew-point adapter: the mean of the last
// hour's worth of dew-point observations from the FMI WFS observation
// feed (spec §4.3). FMI's `td` parameter is the dew point in Celsius.
func NewDewPoint(location, apiKey string) TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		q := url.Values{}
		q.Set("storedquery_id", "fmi::observations::weather::timevaluepair")
		q.Set("place", location)
		q.Set("parameters", "td")
		if apiKey != "" {
			q.Set("apikey", apiKey)
		}
		points, ok := withRetry(ctx, "dew_point", NetworkRetry, func() ([]bsWfsPoint, error) {
			return fetchFMIWFS(ctx, q)
		})
		if !ok {
			return nil, nil
		}

		now := time.Now().UTC()
		var sum float64
		var n int
		var latest time.Time
		for _, p := range points {
			if !p.Valid {
				continue
			}
			if now.Sub(p.Time) > time.Hour {
				continue
			}
			sum += p.Value
			n++
			if p.Time.After(latest) {
				latest = p.Time
			}
		}
		if n == 0 {
			return nil, nil
		}
		avg := decimal.NewFromFloat(sum / float64(n))
		return &avg, &latest
	}
}
