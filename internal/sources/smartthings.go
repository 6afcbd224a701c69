package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type smartThingsStatusResponse struct {
	Components struct {
		Main struct {
			TemperatureMeasurement struct {
				Temperature struct {
					Value float64   `json:"value"`
					Unit  string    `json:"unit"`
				} `json:"temperature"`
			} `json:"temperatureMeasurement"`
		} `json:"main"`
	} `json:"components"`
}

// NewSmartThings builds an alternate inside-temperature adapter
// reading a SmartThings device's temperature capability (spec §6
// SMARTTHINGS_*, supplemented from original_source/poller_helpers.py
// per SPEC_FULL.md §4.3.2).
func NewSmartThings(apiEndpoint, token, deviceID string) TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		url := fmt.Sprintf("%s/devices/%s/status", apiEndpoint, deviceID)
		v, ok := withRetry(ctx, "smartthings", NetworkRetry, func() (smartThingsStatusResponse, error) {
			var p smartThingsStatusResponse
			err := fetchJSONWithAuth(ctx, url, token, &p)
			return p, err
		})
		if !ok {
			return nil, nil
		}
		temp := decimal.NewFromFloat(v.Components.Main.TemperatureMeasurement.Temperature.Value)
		if v.Components.Main.TemperatureMeasurement.Temperature.Unit == "F" {
			temp = temp.Sub(decimal.NewFromInt(32)).Mul(decimal.NewFromInt(5)).Div(decimal.NewFromInt(9))
		}
		now := time.Now().UTC()
		return &temp, &now
	}
}

func fetchJSONWithAuth(ctx context.Context, url, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}
