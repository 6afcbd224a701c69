// Package healthcheck pings the two external heartbeat URLs the
// controller is expected to call each loop and after each operator
// message read (spec §6).
package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Pinger fires the cron and message heartbeats. Either URL may be
// empty, in which case that ping is a no-op.
type Pinger struct {
	cronURL    string
	messageURL string
}

// New builds a Pinger from the two configured heartbeat URLs.
func New(cronURL, messageURL string) *Pinger {
	return &Pinger{cronURL: cronURL, messageURL: messageURL}
}

// PingCron pings HEALTHCHECK_URL_CRON, called once per loop iteration.
func (p *Pinger) PingCron(ctx context.Context) error {
	return ping(ctx, p.cronURL)
}

// PingMessage pings HEALTHCHECK_URL_MESSAGE, called after each
// successful operator message read.
func (p *Pinger) PingMessage(ctx context.Context) error {
	return ping(ctx, p.messageURL)
}

func ping(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building healthcheck request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinging %s: %w", url, err)
	}
	defer resp.Body.Close()
	return nil
}
