package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

type owmResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	DT int64 `json:"dt"`
}

// NewOpenWeatherMap builds the OpenWeatherMap current-weather adapter
// (spec §4.3, §6: OPEN_WEATHER_MAP_KEY / _LOCATION). OWM returns
// Kelvin by default; we request metric units directly so `main.temp`
// is already Celsius.
func NewOpenWeatherMap(apiKey, location string) TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		u := fmt.Sprintf(
			"https://api.openweathermap.org/data/2.5/weather?q=%s&appid=%s&units=metric",
			url.QueryEscape(location), url.QueryEscape(apiKey),
		)
		v, ok := withRetry(ctx, "owm", NetworkRetry, func() (owmResponse, error) {
			var p owmResponse
			err := fetchJSON(ctx, u, &p)
			return p, err
		})
		if !ok {
			return nil, nil
		}
		temp := decimal.NewFromFloat(v.Main.Temp)
		ts := time.Unix(v.DT, 0).UTC()
		return &temp, &ts
	}
}
