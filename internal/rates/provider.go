package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/sethvargo/go-retry"

	"github.com/ycchuang/sheetbook/internal/logging"
)

// fallbackTable is substituted when the rate service cannot be reached, so a
// rate outage never fails the request path. Approximate TWD values; a human
// reviews auto-converted amounts anyway.
var fallbackTable = Table{
	"TWD": 1,
	"USD": 32.5,
	"JPY": 0.21,
	"EUR": 35.2,
	"CNY": 4.5,
	"HKD": 4.15,
	"GBP": 41.0,
	"KRW": 0.024,
	"AUD": 21.5,
	"SGD": 24.2,
}

// Config carries the rate-service settings.
type Config struct {
	// Endpoint returns the latest quotes relative to Base, as JSON with the
	// mapping under $.rates (open.er-api.com style). The Base placeholder
	// "{base}" in the endpoint is substituted before the request.
	Endpoint string
	// Base is the reference currency of the table. Quotes from the service
	// are base→currency and get inverted so the table stores value-in-base.
	Base string
	// TTL bounds how long a fetched table is reused. Zero means one hour.
	TTL time.Duration
	// HTTPClient is optional; http.DefaultClient when nil.
	HTTPClient *http.Client
}

// Provider is the process-wide rate table with a refresh lifecycle: populate
// on first use or on expiry. It is never invalidated by ledger writes.
type Provider struct {
	cfg  Config
	http *http.Client
	log  logging.Logger
	now  func() time.Time

	// mu is held across the refresh I/O so concurrent callers wait for one
	// fetch instead of racing the service.
	mu      sync.Mutex
	table   Table
	fetched time.Time
}

func NewProvider(cfg Config, log logging.Logger) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Base == "" {
		cfg.Base = "TWD"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Provider{cfg: cfg, http: hc, log: log, now: time.Now}
}

// Rates returns the current table, refreshing it when stale. On fetch
// failure the hard-coded fallback table is cached for the TTL and returned;
// this path degrades, it never errors.
func (p *Provider) Rates(ctx context.Context) Table {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.table != nil && p.now().Sub(p.fetched) < p.cfg.TTL {
		return p.table
	}

	table, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn(ctx, "rate fetch failed, using fallback table", "err", err)
		table = fallbackTable
	}
	p.table = table
	p.fetched = p.now()
	return p.table
}

func (p *Provider) fetch(ctx context.Context) (Table, error) {
	if p.cfg.Endpoint == "" {
		return nil, fmt.Errorf("no rate endpoint configured")
	}
	url := expandBase(p.cfg.Endpoint, p.cfg.Base)

	var body []byte
	backoff := retry.WithMaxRetries(2, retry.NewExponential(300*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return retry.RetryableError(fmt.Errorf("rate service: http %d", resp.StatusCode))
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("rate service: decode: %w", err)
	}
	raw, err := jsonpath.Get("$.rates", doc)
	if err != nil {
		return nil, fmt.Errorf("rate service: no rates object: %w", err)
	}
	quotes, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("rate service: unexpected rates shape %T", raw)
	}

	table := Table{p.cfg.Base: 1}
	for code, v := range quotes {
		q, ok := v.(float64)
		if !ok || q == 0 {
			continue
		}
		// Quote is base→code; the table stores value of one unit in base.
		table[code] = 1 / q
	}
	table[p.cfg.Base] = 1
	return table, nil
}

func expandBase(endpoint, base string) string {
	return strings.ReplaceAll(endpoint, "{base}", base)
}
