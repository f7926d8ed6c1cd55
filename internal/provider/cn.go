package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

// CN is an HTTP client for a tushare-style A-share quote API: a single POST
// endpoint taking an api name plus token, answering columnar fields/items.
type CN struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

type cnRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
}

type cnResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string        `json:"fields"`
		Items  [][]json.Number `json:"items"`
	} `json:"data"`
}

// NewCN builds the CN adapter.
func NewCN(baseURL, token string, timeout time.Duration, log zerolog.Logger) *CN {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &CN{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (c *CN) Name() string { return "cn-http" }

// Fetch requests daily bars and decodes the columnar payload.
func (c *CN) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.Series, error) {
	if c.token == "" {
		return nil, fmt.Errorf("cn provider: token not configured")
	}

	body, err := json.Marshal(cnRequest{
		APIName: "daily",
		Token:   c.token,
		Params: map[string]string{
			"ts_code":    ticker,
			"start_date": start.Format("20060102"),
			"end_date":   end.Format("20060102"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload cnResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Code != 0 {
		return nil, fmt.Errorf("api error %d: %s", payload.Code, payload.Msg)
	}

	col := make(map[string]int, len(payload.Data.Fields))
	for i, name := range payload.Data.Fields {
		col[name] = i
	}
	for _, required := range []string{"trade_date", "open", "high", "low", "close", "vol"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("response missing field %q", required)
		}
	}

	out := make(series.Series, 0, len(payload.Data.Items))
	for _, item := range payload.Data.Items {
		if len(item) < len(payload.Data.Fields) {
			continue
		}
		date, err := time.Parse("20060102", item[col["trade_date"]].String())
		if err != nil {
			continue
		}
		bar := series.Bar{Date: date}
		bar.Open, _ = item[col["open"]].Float64()
		bar.High, _ = item[col["high"]].Float64()
		bar.Low, _ = item[col["low"]].Float64()
		bar.Close, _ = item[col["close"]].Float64()
		bar.Volume, _ = item[col["vol"]].Float64()
		out = append(out, bar)
	}
	c.log.Debug().Str("ticker", ticker).Int("rows", len(out)).Msg("cn provider fetch")
	return out, nil
}
