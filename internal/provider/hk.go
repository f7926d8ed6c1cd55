package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codeAPmind/tradingsystem/internal/series"
)

// HK speaks JSON over a websocket to a local HK gateway process. Each call
// opens one connection, sends a single request, and waits for the matching
// response; the gateway handles the venue session on our behalf.
type HK struct {
	gatewayURL string
	timeout    time.Duration
	log        zerolog.Logger
}

type hkRequest struct {
	Op     string `json:"op"`
	Ticker string `json:"ticker"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

type hkResponse struct {
	OK    bool    `json:"ok"`
	Error string  `json:"error,omitempty"`
	Price float64 `json:"price,omitempty"`
	Bars  []hkBar `json:"bars,omitempty"`
}

type hkBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewHK builds the HK gateway adapter.
func NewHK(gatewayURL string, timeout time.Duration, log zerolog.Logger) *HK {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HK{gatewayURL: gatewayURL, timeout: timeout, log: log}
}

func (h *HK) Name() string { return "hk-gateway" }

// Fetch requests historical daily bars from the gateway.
func (h *HK) Fetch(ctx context.Context, ticker string, start, end time.Time) (series.Series, error) {
	resp, err := h.roundTrip(ctx, hkRequest{
		Op:     "history_kline",
		Ticker: ticker,
		Start:  start.Format("2006-01-02"),
		End:    end.Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	out := make(series.Series, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		date, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue
		}
		out = append(out, series.Bar{
			Date: date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
		})
	}
	h.log.Debug().Str("ticker", ticker).Int("rows", len(out)).Msg("hk gateway fetch")
	return out, nil
}

// Quote asks the gateway for the current traded price.
func (h *HK) Quote(ctx context.Context, ticker string) (float64, error) {
	resp, err := h.roundTrip(ctx, hkRequest{Op: "realtime_quote", Ticker: ticker})
	if err != nil {
		return 0, err
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("gateway returned no price for %s", ticker)
	}
	return resp.Price, nil
}

func (h *HK) roundTrip(ctx context.Context, req hkRequest) (*hkResponse, error) {
	dialer := websocket.Dialer{HandshakeTimeout: h.timeout}
	conn, _, err := dialer.DialContext(ctx, h.gatewayURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(h.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	var resp hkResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("gateway error: %s", resp.Error)
	}
	return &resp, nil
}
