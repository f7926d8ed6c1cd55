package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestStubIsDeterministic(t *testing.T) {
	a, _ := NewStub().Fetch(context.Background(), "TSLA", day("2025-01-06"), day("2025-01-10"))
	b, _ := NewStub().Fetch(context.Background(), "TSLA", day("2025-01-06"), day("2025-01-10"))
	if len(a) != 5 || len(b) != 5 {
		t.Fatalf("expected 5 weekday bars, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("stub not deterministic at bar %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestStubSkipsWeekends(t *testing.T) {
	// 2025-01-11 and 2025-01-12 are a weekend.
	bars, err := NewStub().Fetch(context.Background(), "TSLA", day("2025-01-10"), day("2025-01-13"))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 weekday bars, got %d", len(bars))
	}
}

func TestUSFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("ticker") != "TSLA" || q.Get("interval") != "day" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(usPricesResponse{Prices: []usPrice{
			{Time: "2025-01-02", Open: 100, High: 102, Low: 99, Close: 101, Volume: 5000},
			{Time: "2025-01-03", Open: 101, High: 103, Low: 100, Close: 102, Volume: 6000},
		}})
	}))
	defer srv.Close()

	adapter := NewUS(srv.URL, "test-key", time.Second, zerolog.Nop())
	bars, err := adapter.Fetch(context.Background(), "TSLA", day("2025-01-02"), day("2025-01-03"))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(bars) != 2 || bars[1].Close != 102 {
		t.Fatalf("unexpected bars: %+v", bars)
	}
}

func TestUSFetchRequiresKey(t *testing.T) {
	adapter := NewUS("http://unused", "", time.Second, zerolog.Nop())
	if _, err := adapter.Fetch(context.Background(), "TSLA", day("2025-01-02"), day("2025-01-03")); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

func TestCNFetchDecodesColumnarPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token != "tok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{
			"code": 0,
			"data": {
				"fields": ["ts_code","trade_date","open","high","low","close","vol"],
				"items": [
					["600519","20250103",1800,1820,1790,1810,42000],
					["600519","20250102",1790,1805,1780,1800,39000]
				]
			}
		}`))
	}))
	defer srv.Close()

	adapter := NewCN(srv.URL, "tok", time.Second, zerolog.Nop())
	bars, err := adapter.Fetch(context.Background(), "600519", day("2025-01-02"), day("2025-01-03"))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
}

func TestCNFetchSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 2002, "msg": "token invalid"}`))
	}))
	defer srv.Close()

	adapter := NewCN(srv.URL, "tok", time.Second, zerolog.Nop())
	_, err := adapter.Fetch(context.Background(), "600519", day("2025-01-02"), day("2025-01-03"))
	if err == nil || !strings.Contains(err.Error(), "token invalid") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestHKFetchOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req hkRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		switch req.Op {
		case "history_kline":
			_ = conn.WriteJSON(hkResponse{OK: true, Bars: []hkBar{
				{Date: "2025-01-02", Open: 20, High: 21, Low: 19, Close: 20.5, Volume: 1000},
			}})
		case "realtime_quote":
			_ = conn.WriteJSON(hkResponse{OK: true, Price: 21.4})
		default:
			_ = conn.WriteJSON(hkResponse{OK: false, Error: "unknown op"})
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	adapter := NewHK(url, time.Second, zerolog.Nop())

	bars, err := adapter.Fetch(context.Background(), "HK.01797", day("2025-01-02"), day("2025-01-02"))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 20.5 {
		t.Fatalf("unexpected bars: %+v", bars)
	}

	price, err := adapter.Quote(context.Background(), "HK.01797")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if price != 21.4 {
		t.Fatalf("unexpected quote %.2f", price)
	}
}
