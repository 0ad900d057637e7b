package bybit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"pairs-core/pkg/exchanges/common"
)

// Env selects the Bybit host.
type Env string

const (
	EnvMainnet Env = "mainnet"
	EnvTestnet Env = "testnet"
	EnvDemo    Env = "demo"
)

var ErrCredentials = errors.New("bybit: API key/secret required")

// BaseURL returns the REST host for env.
func BaseURL(env Env) (string, error) {
	switch env {
	case EnvMainnet:
		return "https://api.bybit.com", nil
	case EnvTestnet:
		return "https://api-testnet.bybit.com", nil
	case EnvDemo, "":
		return "https://api-demo.bybit.com", nil
	default:
		return "", fmt.Errorf("bybit: unknown env %q", env)
	}
}

// Config holds Bybit v5 credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Env        Env
	RecvWindow int64  // ms
	BaseURL    string // overrides Env when set
}

// Client talks to the Bybit v5 unified REST API for linear perpetuals.
type Client struct {
	cfg         Config
	baseURL     string
	httpClient  *http.Client
	timeSync    *common.TimeSync
	rateLimiter *common.RateLimiter
}

// NewClient creates a v5 client.
func NewClient(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		var err error
		if base, err = BaseURL(cfg.Env); err != nil {
			return nil, err
		}
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	c.timeSync = common.NewTimeSync(c.GetServerTime)
	c.rateLimiter = common.NewRateLimiter(10, 5)
	return c, nil
}

// StartTimeSync keeps the signing clock aligned with the server until ctx is done.
func (c *Client) StartTimeSync(ctx context.Context) {
	c.timeSync.Start(ctx)
}

func (c *Client) now() int64 {
	if c.timeSync != nil && c.timeSync.Offset() != 0 {
		return c.timeSync.Now()
	}
	return time.Now().UnixMilli()
}

// LastPrice returns the last traded price of a linear symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("category", string(common.CategoryLinear))
	q.Set("symbol", symbol)

	var res envelope[tickersResult]
	if err := c.get(ctx, "/v5/market/tickers", q, false, &res); err != nil {
		return 0, err
	}
	if res.RetCode != 0 {
		return 0, &APIError{Path: "/v5/market/tickers", RetCode: res.RetCode, RetMsg: res.RetMsg}
	}
	if len(res.Result.List) == 0 {
		return 0, fmt.Errorf("bybit tickers %s: empty list", symbol)
	}
	price, err := parseFloat(res.Result.List[0].LastPrice)
	if err != nil {
		return 0, fmt.Errorf("bybit tickers %s: lastPrice %q: %w", symbol, res.Result.List[0].LastPrice, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("bybit tickers %s: non-positive lastPrice %v", symbol, price)
	}
	return price, nil
}

// AvailableBalance returns totalAvailableBalance of the unified account.
func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return 0, ErrCredentials
	}
	q := url.Values{}
	q.Set("accountType", "UNIFIED")

	var res envelope[walletResult]
	if err := c.get(ctx, "/v5/account/wallet-balance", q, true, &res); err != nil {
		return 0, err
	}
	if res.RetCode != 0 {
		return 0, &APIError{Path: "/v5/account/wallet-balance", RetCode: res.RetCode, RetMsg: res.RetMsg}
	}
	if len(res.Result.List) == 0 {
		return 0, errors.New("bybit wallet-balance: empty list")
	}
	bal, err := parseFloat(res.Result.List[0].TotalAvailableBalance)
	if err != nil {
		return 0, fmt.Errorf("bybit wallet-balance: totalAvailableBalance %q: %w", res.Result.List[0].TotalAvailableBalance, err)
	}
	return bal, nil
}

// Positions returns the net size per symbol of open USDT linear positions.
// Shorts are negative.
func (c *Client) Positions(ctx context.Context) (map[string]float64, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, ErrCredentials
	}
	out := make(map[string]float64)
	cursor := ""
	for {
		q := url.Values{}
		q.Set("category", string(common.CategoryLinear))
		q.Set("settleCoin", "USDT")
		q.Set("limit", "200")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var res envelope[positionResult]
		if err := c.get(ctx, "/v5/position/list", q, true, &res); err != nil {
			return nil, err
		}
		if res.RetCode != 0 {
			return nil, &APIError{Path: "/v5/position/list", RetCode: res.RetCode, RetMsg: res.RetMsg}
		}
		for _, p := range res.Result.List {
			size, err := parseFloat(p.Size)
			if err != nil {
				return nil, fmt.Errorf("bybit position %s: size %q: %w", p.Symbol, p.Size, err)
			}
			if size == 0 {
				continue
			}
			if p.Side == string(common.SideSell) {
				size = -size
			}
			out[p.Symbol] += size
		}
		if res.Result.NextPageCursor == "" || len(res.Result.List) == 0 {
			return out, nil
		}
		cursor = res.Result.NextPageCursor
	}
}

// SubmitOrder places an order. A venue rejection comes back as a result with a
// non-zero RetCode and a nil error; transport and decode failures are errors.
func (c *Client) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return common.OrderResult{}, ErrCredentials
	}
	category := req.Category
	if category == "" {
		category = common.CategoryLinear
	}
	orderType := req.Type
	if orderType == "" {
		orderType = common.OrderTypeMarket
	}
	body, err := sonnet.Marshal(orderRequest{
		Category:    string(category),
		Symbol:      req.Symbol,
		Side:        string(req.Side),
		OrderType:   string(orderType),
		Qty:         formatFloat(req.Qty),
		OrderLinkID: req.ClientID,
		ReduceOnly:  req.ReduceOnly,
	})
	if err != nil {
		return common.OrderResult{}, fmt.Errorf("encode order: %w", err)
	}

	raw, err := c.doSigned(ctx, http.MethodPost, "/v5/order/create", "", body)
	if err != nil {
		return common.OrderResult{}, err
	}
	var res envelope[orderResult]
	if err := sonnet.Unmarshal(raw, &res); err != nil {
		return common.OrderResult{}, fmt.Errorf("decode order: %w", err)
	}
	clientID := res.Result.OrderLinkID
	if clientID == "" {
		clientID = req.ClientID
	}
	return common.OrderResult{
		ExchangeOrderID: res.Result.OrderID,
		ClientID:        clientID,
		RetCode:         res.RetCode,
		RetMsg:          res.RetMsg,
	}, nil
}

// GetServerTime returns the server time in ms.
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	var res envelope[struct {
		TimeSecond string `json:"timeSecond"`
	}]
	if err := c.get(ctx, "/v5/market/time", nil, false, &res); err != nil {
		return 0, err
	}
	if res.RetCode != 0 {
		return 0, &APIError{Path: "/v5/market/time", RetCode: res.RetCode, RetMsg: res.RetMsg}
	}
	if res.Time > 0 {
		return res.Time, nil
	}
	sec, err := strconv.ParseInt(res.Result.TimeSecond, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bybit server time %q: %w", res.Result.TimeSecond, err)
	}
	return sec * 1000, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, signed bool, out any) error {
	query := q.Encode()
	var (
		raw []byte
		err error
	)
	if signed {
		raw, err = c.doSigned(ctx, http.MethodGet, path, query, nil)
	} else {
		raw, err = c.do(ctx, http.MethodGet, path, query, nil, nil)
	}
	if err != nil {
		return err
	}
	if err := sonnet.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// doSigned adds the v5 auth headers. GET requests sign the query string,
// POST requests sign the JSON body.
func (c *Client) doSigned(ctx context.Context, method, path, query string, body []byte) ([]byte, error) {
	ts := strconv.FormatInt(c.now(), 10)
	recv := strconv.FormatInt(c.cfg.RecvWindow, 10)
	payload := query
	if method != http.MethodGet {
		payload = string(body)
	}
	headers := http.Header{}
	headers.Set("X-BAPI-API-KEY", c.cfg.APIKey)
	headers.Set("X-BAPI-TIMESTAMP", ts)
	headers.Set("X-BAPI-RECV-WINDOW", recv)
	headers.Set("X-BAPI-SIGN-TYPE", "2")
	headers.Set("X-BAPI-SIGN", sign(ts+c.cfg.APIKey+recv+payload, c.cfg.APISecret))
	return c.do(ctx, method, path, query, body, headers)
}

func (c *Client) do(ctx context.Context, method, path, query string, body []byte, headers http.Header) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	c.rateLimiter.UpdateFromHeaders(res.Header.Get("X-Bapi-Limit-Status"), res.Header.Get("X-Bapi-Limit"))

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("bybit %s %s status %d: %s", method, path, res.StatusCode, string(raw))
	}
	return raw, nil
}
