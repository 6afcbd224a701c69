package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/kimmoahola/ilp-commander/internal/model"
)

// yrPeriod is one `<time from="" to=""><temperature value=""/></time>`
// period from a classic api.yr.no XML forecast document.
type yrPeriod struct {
	From, To time.Time
	Value    float64
}

func fetchYrXML(ctx context.Context, url string) ([]yrPeriod, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building Yr request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Yr request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Yr unexpected status %d", resp.StatusCode)
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("Yr XML parse failed: %w", err)
	}

	var periods []yrPeriod
	for _, el := range doc.FindElements("//time") {
		fromAttr := el.SelectAttrValue("from", "")
		toAttr := el.SelectAttrValue("to", "")
		if fromAttr == "" || toAttr == "" {
			continue
		}
		tempEl := el.FindElement("temperature")
		if tempEl == nil {
			continue
		}
		valAttr := tempEl.SelectAttrValue("value", "")
		v, err := strconv.ParseFloat(strings.TrimSpace(valAttr), 64)
		if err != nil {
			continue
		}
		from, err1 := time.Parse("2006-01-02T15:04:05", fromAttr)
		to, err2 := time.Parse("2006-01-02T15:04:05", toAttr)
		if err1 != nil || err2 != nil {
			continue
		}
		periods = append(periods, yrPeriod{From: from.UTC(), To: to.UTC(), Value: v})
	}
	return periods, nil
}

// mergeYrForecasts merges the short hour-by-hour series with the
// wider, coarser-grained series: the hourly series is kept verbatim,
// then extended forward at 1h spacing by repeating each wide period's
// value until that period's @to is reached (spec §4.3).
func mergeYrForecasts(hourly, wide []yrPeriod) []model.Sample {
	var samples []model.Sample
	for _, p := range hourly {
		samples = append(samples, model.Sample{Temp: decimal.NewFromFloat(p.Value), TS: p.From})
	}

	var cursor time.Time
	if len(samples) > 0 {
		cursor = samples[len(samples)-1].TS
	} else if len(wide) > 0 {
		cursor = wide[0].From
	}

	for _, p := range wide {
		if !p.To.After(cursor) {
			continue
		}
		t := cursor.Add(time.Hour)
		if t.Before(p.From) {
			t = p.From
		}
		for !t.After(p.To) {
			samples = append(samples, model.Sample{Temp: decimal.NewFromFloat(p.Value), TS: t})
			cursor = t
			t = t.Add(time.Hour)
		}
	}
	return samples
}

// NewYrForecast builds the combined Yr forecast adapter: the
// locationtrail.no/no.no style hour-by-hour feed merged with the
// wider multi-day forecast feed, keyed by the configured location
// path (spec §6 YR_NO_LOCATION).
func NewYrForecast(locationPath string) ForecastFunc {
	return func(ctx context.Context) (*model.Forecast, *time.Time) {
		hourlyURL := fmt.Sprintf("https://www.yr.no/place/%s/forecast_hour_by_hour.xml", locationPath)
		wideURL := fmt.Sprintf("https://www.yr.no/place/%s/forecast.xml", locationPath)

		hourly, hOK := withRetry(ctx, "yr_hourly", NetworkRetry, func() ([]yrPeriod, error) {
			return fetchYrXML(ctx, hourlyURL)
		})
		wide, wOK := withRetry(ctx, "yr_wide", NetworkRetry, func() ([]yrPeriod, error) {
			return fetchYrXML(ctx, wideURL)
		})
		if !hOK && !wOK {
			return nil, nil
		}

		samples := mergeYrForecasts(hourly, wide)
		if len(samples) == 0 {
			return nil, nil
		}
		f := &model.Forecast{Temps: samples, TS: time.Now().UTC()}
		return f, &f.TS
	}
}
