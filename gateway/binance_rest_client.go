package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"drag-trade-go/balance"
	"drag-trade-go/order"
	"drag-trade-go/precision"
)

// Binance 现货默认入口。
const (
	BinanceSpotRESTEndpoint = "https://api.binance.com"
	BinanceSpotWSEndpoint   = "wss://stream.binance.com:9443"
)

// BinanceRESTClient 现货/保证金下单客户端。HTTPClient 可注入 httptest，
// 默认不发起真实网络调用。实现 order.Transport 与 balance.Fetcher。
type BinanceRESTClient struct {
	BaseURL      string
	APIKey       string
	Secret       string
	HTTPClient   *http.Client
	RecvWindowMs int64
	Limiter      RateLimiter
	ErrorHook    func(path string) // REST 请求失败时回调，接监控计数

	mu        sync.Mutex
	rules     map[string]precision.SymbolRule
	lastPrice map[string]tickerEntry
}

type tickerEntry struct {
	price float64
	at    time.Time
}

// tickerTTL 最新成交价的短缓存，避免拖拽预览期间打爆 REST。
const tickerTTL = 2 * time.Second

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

// APIError Binance 错误响应体。
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error %d: %s", e.Code, e.Msg)
}

type placedResp struct {
	OrderID          int64  `json:"orderId"`
	Symbol           string `json:"symbol"`
	Status           string `json:"status"`
	Price            string `json:"price"`
	StopPrice        string `json:"stopPrice"`
	OrigQty          string `json:"origQty"`
	ExecutedQty      string `json:"executedQty"`
	Side             string `json:"side"`
	Type             string `json:"type"`
	TransactTime     int64  `json:"transactTime"`
	Time             int64  `json:"time"`
	UpdateTime       int64  `json:"updateTime"`
	IsIsolated       bool   `json:"isIsolated"`
	MarginBuyBorrow  string `json:"marginBuyBorrowAmount"`
	MarginBuyAsset   string `json:"marginBuyBorrowAsset"`
	ClientOrderID    string `json:"clientOrderId"`
	CumulativeQuote  string `json:"cummulativeQuoteQty"`
	OrigClientOrdeID string `json:"origClientOrderId"`
}

// SubmitOrder 提交订单：现货走 /api/v3/order，保证金走 /sapi/v1/margin/order。
func (c *BinanceRESTClient) SubmitOrder(ctx context.Context, req order.Request) (order.PlacedOrder, error) {
	if err := req.Validate(); err != nil {
		return order.PlacedOrder{}, err
	}
	params := map[string]string{
		"symbol": strings.ToUpper(req.Symbol),
		"side":   strings.ToUpper(string(req.Side)),
		"type":   categoryToBinance(req.Category),
	}
	params["quantity"] = trimFloat(req.Quantity)
	if req.Category.RequiresPrice() {
		params["price"] = trimFloat(req.Price)
		params["timeInForce"] = "GTC"
	}
	if req.Category.RequiresStopPrice() {
		params["stopPrice"] = trimFloat(req.StopPrice)
	}

	path := "/api/v3/order"
	if req.IsMargin {
		path = "/sapi/v1/margin/order"
	}
	var pr placedResp
	if err := c.signedCall(ctx, http.MethodPost, path, params, &pr); err != nil {
		return order.PlacedOrder{}, err
	}
	if pr.OrderID == 0 {
		return order.PlacedOrder{}, fmt.Errorf("empty orderId in response")
	}
	placed := placedToOrder(pr, req.IsMargin)
	// 响应缺省的字段以请求为准
	if placed.Quantity == 0 {
		placed.Quantity = req.Quantity
	}
	if placed.Price == 0 {
		placed.Price = req.Price
	}
	if placed.StopPrice == 0 {
		placed.StopPrice = req.StopPrice
	}
	if placed.Side == "" {
		placed.Side = req.Side
	}
	if placed.Category == "" {
		placed.Category = req.Category
	}
	return placed, nil
}

// FetchOpenOrders 拉取开放订单；保证金账户的开放订单一并合并，
// 冷启动对账需要完整视图。
func (c *BinanceRESTClient) FetchOpenOrders(ctx context.Context, symbol string) ([]order.PlacedOrder, error) {
	spot, err := c.fetchOpenOrders(ctx, "/api/v3/openOrders", symbol, false)
	if err != nil {
		return nil, err
	}
	margin, err := c.fetchOpenOrders(ctx, "/sapi/v1/margin/openOrders", symbol, true)
	if err != nil {
		// 未开通保证金账户的 key 会在这里报错，降级为只看现货
		return spot, nil
	}
	return append(spot, margin...), nil
}

func (c *BinanceRESTClient) fetchOpenOrders(ctx context.Context, path, symbol string, isMargin bool) ([]order.PlacedOrder, error) {
	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = strings.ToUpper(symbol)
	}
	var rows []placedResp
	if err := c.signedCall(ctx, http.MethodGet, path, params, &rows); err != nil {
		return nil, err
	}
	out := make([]order.PlacedOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, placedToOrder(row, isMargin))
	}
	return out, nil
}

// CancelOrder 交易所侧撤单。
func (c *BinanceRESTClient) CancelOrder(ctx context.Context, symbol, id string, isMargin bool) error {
	path := "/api/v3/order"
	if isMargin {
		path = "/sapi/v1/margin/order"
	}
	params := map[string]string{
		"symbol":  strings.ToUpper(symbol),
		"orderId": id,
	}
	return c.signedCall(ctx, http.MethodDelete, path, params, nil)
}

type accountResp struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
	UserAssets []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"userAssets"`
}

// FetchBalances 拉取账户余额快照；balance.CachedSource 负责缓存。
func (c *BinanceRESTClient) FetchBalances(ctx context.Context, mode balance.AccountMode) (map[string]balance.Snapshot, error) {
	path := "/api/v3/account"
	if mode == balance.ModeMargin {
		path = "/sapi/v1/margin/account"
	}
	var resp accountResp
	if err := c.signedCall(ctx, http.MethodGet, path, map[string]string{}, &resp); err != nil {
		return nil, err
	}
	rows := resp.Balances
	if mode == balance.ModeMargin {
		rows = resp.UserAssets
	}
	out := make(map[string]balance.Snapshot, len(rows))
	for _, row := range rows {
		out[row.Asset] = balance.Snapshot{
			Free:   parseFloat(row.Free),
			Locked: parseFloat(row.Locked),
		}
	}
	return out, nil
}

// FetchMaxBorrowable 查询保证金账户对某资产的最大可借额度。
func (c *BinanceRESTClient) FetchMaxBorrowable(ctx context.Context, asset string) (float64, error) {
	var resp struct {
		Amount string `json:"amount"`
	}
	params := map[string]string{"asset": strings.ToUpper(asset)}
	if err := c.signedCall(ctx, http.MethodGet, "/sapi/v1/margin/maxBorrowable", params, &resp); err != nil {
		return 0, err
	}
	return parseFloat(resp.Amount), nil
}

// CurrentPrice 最新成交价，带 2 秒缓存。
func (c *BinanceRESTClient) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	sym := strings.ToUpper(symbol)
	c.mu.Lock()
	if e, ok := c.lastPrice[sym]; ok && time.Since(e.at) < tickerTTL {
		c.mu.Unlock()
		return e.price, nil
	}
	c.mu.Unlock()

	var resp struct {
		Price string `json:"price"`
	}
	q := url.Values{}
	q.Set("symbol", sym)
	if err := c.publicCall(ctx, "/api/v3/ticker/price?"+q.Encode(), &resp); err != nil {
		return 0, err
	}
	price := parseFloat(resp.Price)
	c.mu.Lock()
	if c.lastPrice == nil {
		c.lastPrice = make(map[string]tickerEntry)
	}
	c.lastPrice[sym] = tickerEntry{price: price, at: time.Now()}
	c.mu.Unlock()
	return price, nil
}

// Rule 返回已缓存的交易对精度规则；未加载时返回零值，调用方退回启发式。
// 规则在会话内不失效（交易所极少变更，重启即刷新）。
func (c *BinanceRESTClient) Rule(symbol string) precision.SymbolRule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rules[strings.ToUpper(symbol)]
}

// WarmRule 同步拉取 exchangeInfo 并缓存 tick/step 规则。
func (c *BinanceRESTClient) WarmRule(ctx context.Context, symbol string) (precision.SymbolRule, error) {
	sym := strings.ToUpper(symbol)
	c.mu.Lock()
	if r, ok := c.rules[sym]; ok {
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	var resp struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	q := url.Values{}
	q.Set("symbol", sym)
	if err := c.publicCall(ctx, "/api/v3/exchangeInfo?"+q.Encode(), &resp); err != nil {
		return precision.SymbolRule{}, err
	}
	if len(resp.Symbols) == 0 {
		return precision.SymbolRule{}, fmt.Errorf("symbol %s not in exchangeInfo", sym)
	}
	rule := precision.SymbolRule{Symbol: sym}
	for _, f := range resp.Symbols[0].Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			rule.TickSize = parseFloat(f.TickSize)
		case "LOT_SIZE":
			rule.StepSize = parseFloat(f.StepSize)
		}
	}
	c.mu.Lock()
	if c.rules == nil {
		c.rules = make(map[string]precision.SymbolRule)
	}
	c.rules[sym] = rule
	c.mu.Unlock()
	return rule, nil
}

// signedCall 发起签名请求并解码响应；out 为 nil 时只检查状态。
func (c *BinanceRESTClient) signedCall(ctx context.Context, method, path string, params map[string]string, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	query, sig := SignParams(params, c.Secret, c.RecvWindowMs)
	endpoint := c.BaseURL + path + "?" + query + "&signature=" + url.QueryEscape(sig)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.APIKey)
	return c.do(req, out)
}

func (c *BinanceRESTClient) publicCall(ctx context.Context, pathAndQuery string, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+pathAndQuery, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *BinanceRESTClient) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.reportError(req.URL.Path)
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.reportError(req.URL.Path)
		return err
	}
	if resp.StatusCode >= 300 {
		c.reportError(req.URL.Path)
		var apiErr APIError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return &apiErr
		}
		return fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func (c *BinanceRESTClient) reportError(path string) {
	if c.ErrorHook != nil {
		c.ErrorHook(path)
	}
}

func placedToOrder(pr placedResp, isMargin bool) order.PlacedOrder {
	created := pr.Time
	if created == 0 {
		created = pr.TransactTime
	}
	updated := pr.UpdateTime
	if updated == 0 {
		updated = created
	}
	return order.PlacedOrder{
		ID:        strconv.FormatInt(pr.OrderID, 10),
		Symbol:    pr.Symbol,
		Side:      order.Side(strings.ToLower(pr.Side)),
		Category:  binanceToCategory(pr.Type),
		Price:     parseFloat(pr.Price),
		StopPrice: parseFloat(pr.StopPrice),
		Quantity:  parseFloat(pr.OrigQty),
		FilledQty: parseFloat(pr.ExecutedQty),
		Status:    binanceToStatus(pr.Status),
		IsMargin:  isMargin,
		CreatedAt: time.UnixMilli(created).UTC(),
		UpdatedAt: time.UnixMilli(updated).UTC(),
	}
}

func categoryToBinance(c order.Category) string {
	return strings.ToUpper(string(c))
}

func binanceToCategory(t string) order.Category {
	return order.Category(strings.ToLower(t))
}

// binanceToStatus 映射交易所状态到本地状态。EXPIRED 在本地语义里
// 等同撤销：订单不再活跃且没有成交出来。
func binanceToStatus(s string) order.Status {
	switch s {
	case "NEW":
		return order.StatusPending
	case "PARTIALLY_FILLED":
		return order.StatusPartiallyFilled
	case "FILLED":
		return order.StatusFilled
	case "CANCELED", "EXPIRED":
		return order.StatusCancelled
	case "REJECTED":
		return order.StatusRejected
	default:
		return order.StatusPending
	}
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
