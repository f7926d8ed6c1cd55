package execution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/codeAPmind/tradingsystem/internal/metrics"
)

// brokerOrder is the wire form of an order. Price and quantity go out as
// decimal strings so the venue never sees float rounding artifacts.
type brokerOrder struct {
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Qty           string `json:"qty"`
	Price         string `json:"price"`
}

type brokerResponse struct {
	Accepted bool   `json:"accepted"`
	OrderID  string `json:"order_id"`
	Error    string `json:"error"`
}

// BrokerClient submits orders over HTTP to a broker order endpoint.
type BrokerClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewBrokerClient builds a broker executor. timeout bounds each submission.
func NewBrokerClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *BrokerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrokerClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (b *BrokerClient) Submit(order Order) error {
	payload := brokerOrder{
		ClientOrderID: order.ID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Qty:           decimal.NewFromFloat(order.Qty).String(),
		Price:         decimal.NewFromFloat(order.Price).StringFixed(4),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	req, err := http.NewRequest(http.MethodPost, b.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("X-API-KEY", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit order %s: %w", order.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit order %s: broker returned %s", order.ID, resp.Status)
	}
	var br brokerResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode broker response for %s: %w", order.ID, err)
	}
	if !br.Accepted {
		return fmt.Errorf("order %s rejected by broker: %s", order.ID, br.Error)
	}

	b.log.Info().
		Str("order_id", order.ID).
		Str("broker_order_id", br.OrderID).
		Str("symbol", order.Symbol).
		Msg("order accepted by broker")
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	return nil
}
