package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

// US is an HTTP client for a daily-prices JSON API covering US equities.
// Authentication is a per-request API key header.
type US struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

type usPricesResponse struct {
	Prices []usPrice `json:"prices"`
}

type usPrice struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewUS builds the US adapter. timeout bounds every request.
func NewUS(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *US {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &US{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (u *US) Name() string { return "us-http" }

// Fetch requests day-interval prices for the ticker and normalizes them.
func (u *US) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.Series, error) {
	if u.apiKey == "" {
		return nil, fmt.Errorf("us provider: api key not configured")
	}

	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("interval", "day")
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/prices/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-KEY", u.apiKey)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload usPricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make(series.Series, 0, len(payload.Prices))
	for _, p := range payload.Prices {
		date, err := time.Parse("2006-01-02", p.Time)
		if err != nil {
			// Some vendors return full timestamps for the daily interval.
			if ts, tsErr := time.Parse(time.RFC3339, p.Time); tsErr == nil {
				date = ts
			} else {
				continue
			}
		}
		out = append(out, series.Bar{
			Date: date, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume,
		})
	}
	u.log.Debug().Str("ticker", ticker).Int("rows", len(out)).Msg("us provider fetch")
	return out, nil
}
