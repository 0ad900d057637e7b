package bybit

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sugawarayuuta/sonnet"

	"pairs-core/pkg/exchanges/common"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "key", APISecret: "secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestLastPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" {
			t.Errorf("path=%s, expected /v5/market/tickers", r.URL.Path)
		}
		if got := r.URL.Query().Get("category"); got != "linear" {
			t.Errorf("category=%s, expected linear", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "WIFUSDT" {
			t.Errorf("symbol=%s, expected WIFUSDT", got)
		}
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[{"symbol":"WIFUSDT","lastPrice":"2.4567"}]},"time":1700000000000}`)
	})

	price, err := c.LastPrice(context.Background(), "WIFUSDT")
	if err != nil {
		t.Fatalf("LastPrice: %v", err)
	}
	if price != 2.4567 {
		t.Fatalf("price=%v, expected 2.4567", price)
	}
}

func TestLastPriceRetCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":10001,"retMsg":"params error","result":{},"time":1}`)
	})

	_, err := c.LastPrice(context.Background(), "NOPE")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.RetCode != 10001 {
		t.Fatalf("err=%v, expected APIError 10001", err)
	}
}

func TestAvailableBalanceSigned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get("X-BAPI-TIMESTAMP")
		recv := r.Header.Get("X-BAPI-RECV-WINDOW")
		want := sign(ts+"key"+recv+r.URL.RawQuery, "secret")
		if got := r.Header.Get("X-BAPI-SIGN"); got != want {
			t.Errorf("sign=%s, expected %s", got, want)
		}
		if r.Header.Get("X-BAPI-API-KEY") != "key" {
			t.Errorf("missing api key header")
		}
		if r.URL.Query().Get("accountType") != "UNIFIED" {
			t.Errorf("accountType=%s, expected UNIFIED", r.URL.Query().Get("accountType"))
		}
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"accountType":"UNIFIED","totalAvailableBalance":"1234.5"}]},"time":1}`)
	})

	bal, err := c.AvailableBalance(context.Background())
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if bal != 1234.5 {
		t.Fatalf("balance=%v, expected 1234.5", bal)
	}
}

func TestSubmitOrder(t *testing.T) {
	tests := []struct {
		name     string
		response string
		success  bool
	}{
		{"accepted", `{"retCode":0,"retMsg":"OK","result":{"orderId":"abc","orderLinkId":"link-1"},"time":1}`, true},
		{"rejected", `{"retCode":110007,"retMsg":"ab not enough for new order","result":{},"time":1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/v5/order/create" {
					t.Errorf("%s %s, expected POST /v5/order/create", r.Method, r.URL.Path)
				}
				body, _ := io.ReadAll(r.Body)
				ts := r.Header.Get("X-BAPI-TIMESTAMP")
				recv := r.Header.Get("X-BAPI-RECV-WINDOW")
				if got, want := r.Header.Get("X-BAPI-SIGN"), sign(ts+"key"+recv+string(body), "secret"); got != want {
					t.Errorf("sign=%s, expected %s", got, want)
				}
				var req orderRequest
				if err := sonnet.Unmarshal(body, &req); err != nil {
					t.Errorf("decode body: %v", err)
				}
				want := orderRequest{Category: "linear", Symbol: "DOGEUSDT", Side: "Sell", OrderType: "Market", Qty: "120", OrderLinkID: "link-1"}
				if req != want {
					t.Errorf("body=%+v, expected %+v", req, want)
				}
				io.WriteString(w, tt.response)
			})

			res, err := c.SubmitOrder(context.Background(), common.OrderRequest{
				Symbol: "DOGEUSDT", Side: common.SideSell, Qty: 120, ClientID: "link-1",
			})
			if err != nil {
				t.Fatalf("SubmitOrder: %v", err)
			}
			if res.Success() != tt.success {
				t.Fatalf("success=%v, expected %v (%+v)", res.Success(), tt.success, res)
			}
			if res.ClientID != "link-1" {
				t.Fatalf("clientID=%s, expected link-1", res.ClientID)
			}
		})
	}
}

func TestSubmitOrderHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	if _, err := c.SubmitOrder(context.Background(), common.OrderRequest{Symbol: "X", Side: common.SideBuy, Qty: 1}); err == nil {
		t.Fatalf("expected error on 502")
	}
}

func TestMissingCredentials(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.AvailableBalance(context.Background()); !errors.Is(err, ErrCredentials) {
		t.Fatalf("err=%v, expected ErrCredentials", err)
	}
	if _, err := c.SubmitOrder(context.Background(), common.OrderRequest{}); !errors.Is(err, ErrCredentials) {
		t.Fatalf("err=%v, expected ErrCredentials", err)
	}
}

func TestGetServerTime(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"timeSecond":"1700000000","timeNano":"1700000000000000000"},"time":1700000000123}`)
	})
	ms, err := c.GetServerTime(context.Background())
	if err != nil {
		t.Fatalf("GetServerTime: %v", err)
	}
	if ms != 1700000000123 {
		t.Fatalf("time=%d, expected 1700000000123", ms)
	}
}

func TestBaseURL(t *testing.T) {
	tests := map[Env]string{
		EnvMainnet: "https://api.bybit.com",
		EnvTestnet: "https://api-testnet.bybit.com",
		EnvDemo:    "https://api-demo.bybit.com",
	}
	for env, want := range tests {
		got, err := BaseURL(env)
		if err != nil || got != want {
			t.Fatalf("BaseURL(%s)=%s,%v expected %s", env, got, err, want)
		}
	}
	if _, err := BaseURL("moon"); err == nil {
		t.Fatalf("expected error for unknown env")
	}
}

func TestPositionsNetsSidesAcrossPages(t *testing.T) {
	pages := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/position/list" {
			t.Errorf("path=%s, expected /v5/position/list", r.URL.Path)
		}
		if r.Header.Get("X-BAPI-SIGN") == "" {
			t.Errorf("expected signed request")
		}
		pages++
		switch r.URL.Query().Get("cursor") {
		case "":
			io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"ADAUSDT","side":"Sell","size":"97"},{"symbol":"XRPUSDT","side":"","size":"0"}],"nextPageCursor":"p2"},"time":1}`)
		case "p2":
			io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"list":[{"symbol":"DOGEUSDT","side":"Buy","size":"116"}],"nextPageCursor":""},"time":1}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})

	got, err := c.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if pages != 2 {
		t.Fatalf("pages=%d, expected 2", pages)
	}
	want := map[string]float64{"ADAUSDT": -97, "DOGEUSDT": 116}
	if len(got) != len(want) {
		t.Fatalf("positions=%v, expected %v", got, want)
	}
	for sym, qty := range want {
		if got[sym] != qty {
			t.Fatalf("%s=%v, expected %v", sym, got[sym], qty)
		}
	}
}
