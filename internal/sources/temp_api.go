package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// latestPayload is the `GET http://{host}/latest?table={name}` shape:
// `{"ts":..., "temperature":...}` (spec §6).
type latestPayload struct {
	TS          json.Number `json:"ts"`
	Temperature json.Number `json:"temperature"`
}

// lambdaPayload is the generic inside-temp lambda endpoint shape:
// `{"latestItem":{"ts":..., "temperature":...}}` (spec §6).
type lambdaPayload struct {
	LatestItem latestPayload `json:"latestItem"`
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

func fetchJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
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

func parseLatest(p latestPayload) (*decimal.Decimal, *time.Time, error) {
	temp, err := decimal.NewFromString(p.Temperature.String())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing temperature: %w", err)
	}
	ts, err := parseFlexibleTimestamp(p.TS.String())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing ts: %w", err)
	}
	return &temp, &ts, nil
}

// parseFlexibleTimestamp accepts either a unix-seconds number or an
// ISO-8601 string, matching the variety of `ts` encodings the
// original's sensor endpoints used.
func parseFlexibleTimestamp(raw string) (time.Time, error) {
	if sec, err := decimal.NewFromString(raw); err == nil {
		f, _ := sec.Float64()
		if f > 1e12 {
			return time.UnixMilli(int64(f)).UTC(), nil
		}
		return time.Unix(int64(f), 0).UTC(), nil
	}
	formats := []string{time.RFC3339, time.RFC3339Nano, "2006-01-02 15:04:05"}
	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, raw); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// NewOutsideTempAPI builds the outside-temperature adapter over a
// generic `latest?table=` endpoint (spec §6 TEMP_API_OUTSIDE).
func NewOutsideTempAPI(hostAndPort, tableName string) TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		url := fmt.Sprintf("http://%s/latest?table=%s", hostAndPort, tableName)
		v, ok := withRetry(ctx, "outside_temp_api", NetworkRetry, func() (latestPayload, error) {
			var p latestPayload
			err := fetchJSON(ctx, url, &p)
			return p, err
		})
		if !ok {
			return nil, nil
		}
		temp, ts, err := parseLatest(v)
		if err != nil {
			return nil, nil
		}
		return temp, ts
	}
}

// NewInsideTempAPI builds the inside-temperature adapter over the
// generic lambda endpoint (spec §6 INSIDE_TEMP_ENDPOINT).
func NewInsideTempAPI(endpoint string) TempFunc {
	return func(ctx context.Context) (*decimal.Decimal, *time.Time) {
		v, ok := withRetry(ctx, "inside_temp_api", NetworkRetry, func() (lambdaPayload, error) {
			var p lambdaPayload
			err := fetchJSON(ctx, endpoint, &p)
			return p, err
		})
		if !ok {
			return nil, nil
		}
		temp, ts, err := parseLatest(v.LatestItem)
		if err != nil {
			return nil, nil
		}
		return temp, ts
	}
}
