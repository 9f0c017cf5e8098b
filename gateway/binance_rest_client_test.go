package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drag-trade-go/balance"
	"drag-trade-go/order"
)

func fixedClock(t *testing.T) {
	t.Helper()
	timeNowMillis = func() int64 { return 1234567890000 } // deterministic
	t.Cleanup(func() { timeNowMillis = func() int64 { return time.Now().UnixMilli() } })
}

func newTestClient(ts *httptest.Server) *BinanceRESTClient {
	return &BinanceRESTClient{
		BaseURL:      ts.URL,
		APIKey:       "key",
		Secret:       "secret",
		HTTPClient:   ts.Client(),
		RecvWindowMs: 5000,
	}
}

func TestSubmitLimitOrder(t *testing.T) {
	fixedClock(t)
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v3/order", r.URL.Path)
		require.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"orderId":1001,"symbol":"BTCUSDC","status":"NEW","price":"50000.13","origQty":"0.009","executedQty":"0","side":"BUY","type":"LIMIT","transactTime":1234567890000}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	placed, err := cli.SubmitOrder(context.Background(), order.Request{
		Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryLimit,
		Quantity: 0.009, Price: 50000.13,
	})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "signature=")
	assert.Contains(t, gotQuery, "type=LIMIT")
	assert.Contains(t, gotQuery, "timeInForce=GTC")
	assert.Contains(t, gotQuery, "price=50000.13")
	assert.Contains(t, gotQuery, "recvWindow=5000")

	assert.Equal(t, "1001", placed.ID)
	assert.Equal(t, order.StatusPending, placed.Status)
	assert.Equal(t, order.CategoryLimit, placed.Category)
	assert.InDelta(t, 0.009, placed.Quantity, 1e-12)
}

func TestSubmitStopLossLimitCarriesStopPrice(t *testing.T) {
	fixedClock(t)
	var gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		io.WriteString(w, `{"orderId":1002,"symbol":"BTCUSDC","status":"NEW"}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	placed, err := cli.SubmitOrder(context.Background(), order.Request{
		Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryStopLossLimit,
		Quantity: 0.009, Price: 50050.13, StopPrice: 50000.13,
	})
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "type=STOP_LOSS_LIMIT")
	assert.Contains(t, gotQuery, "stopPrice=50000.13")
	assert.Contains(t, gotQuery, "price=50050.13")
	// fields absent from the response fall back to the request
	assert.InDelta(t, 50000.13, placed.StopPrice, 1e-9)
	assert.Equal(t, order.CategoryStopLossLimit, placed.Category)
}

func TestSubmitMarginOrderUsesMarginEndpoint(t *testing.T) {
	fixedClock(t)
	var gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		io.WriteString(w, `{"orderId":7,"symbol":"BTCUSDC","status":"NEW"}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	placed, err := cli.SubmitOrder(context.Background(), order.Request{
		Symbol: "BTCUSDC", Side: order.SideSell, Category: order.CategoryLimit,
		Quantity: 0.01, Price: 48000, IsMargin: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/sapi/v1/margin/order", gotPath)
	assert.True(t, placed.IsMargin)
}

func TestSubmitSurfacesExchangeError(t *testing.T) {
	fixedClock(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		io.WriteString(w, `{"code":-2010,"msg":"Account has insufficient balance for requested action."}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	_, err := cli.SubmitOrder(context.Background(), order.Request{
		Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryLimit,
		Quantity: 1, Price: 50000,
	})
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok, "exchange message must survive")
	assert.Equal(t, -2010, apiErr.Code)
	assert.Contains(t, apiErr.Msg, "insufficient balance")
}

func TestErrorHookFiresOnFailedRequests(t *testing.T) {
	fixedClock(t)
	fail := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(500)
			io.WriteString(w, `{"code":-1000,"msg":"internal error"}`)
			return
		}
		io.WriteString(w, `{"orderId":1,"symbol":"BTCUSDC","status":"NEW"}`)
	}))
	defer ts.Close()

	var failedPaths []string
	cli := newTestClient(ts)
	cli.ErrorHook = func(path string) { failedPaths = append(failedPaths, path) }

	req := order.Request{Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryLimit, Quantity: 1, Price: 50000}
	_, err := cli.SubmitOrder(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, []string{"/api/v3/order"}, failedPaths)

	fail = false
	_, err = cli.SubmitOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, failedPaths, 1, "successful calls do not report")
}

func TestSubmitRejectsInvalidRequestLocally(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer ts.Close()

	cli := newTestClient(ts)
	_, err := cli.SubmitOrder(context.Background(), order.Request{
		Symbol: "BTCUSDC", Side: order.SideBuy, Category: order.CategoryStopLoss, Quantity: 1,
	})
	assert.ErrorIs(t, err, order.ErrMissingStopPrice)
	assert.Zero(t, calls)
}

func TestFetchOpenOrdersMergesSpotAndMargin(t *testing.T) {
	fixedClock(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/openOrders":
			io.WriteString(w, `[{"orderId":1,"symbol":"BTCUSDC","status":"NEW","origQty":"1","type":"LIMIT","side":"BUY"}]`)
		case "/sapi/v1/margin/openOrders":
			io.WriteString(w, `[{"orderId":2,"symbol":"BTCUSDC","status":"PARTIALLY_FILLED","origQty":"2","executedQty":"0.5","type":"LIMIT","side":"SELL"}]`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	open, err := cli.FetchOpenOrders(context.Background(), "BTCUSDC")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.False(t, open[0].IsMargin)
	assert.True(t, open[1].IsMargin)
	assert.Equal(t, order.StatusPartiallyFilled, open[1].Status)
}

func TestFetchOpenOrdersToleratesMissingMarginAccount(t *testing.T) {
	fixedClock(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/openOrders" {
			io.WriteString(w, `[]`)
			return
		}
		w.WriteHeader(400)
		io.WriteString(w, `{"code":-3003,"msg":"Margin account does not exist."}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	open, err := cli.FetchOpenOrders(context.Background(), "BTCUSDC")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCancelOrder(t *testing.T) {
	fixedClock(t)
	var gotMethod, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(200)
		io.WriteString(w, `{}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	require.NoError(t, cli.CancelOrder(context.Background(), "BTCUSDC", "1001", false))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/v3/order", gotPath)

	require.NoError(t, cli.CancelOrder(context.Background(), "BTCUSDC", "1002", true))
	assert.Equal(t, "/sapi/v1/margin/order", gotPath)
}

func TestFetchBalances(t *testing.T) {
	fixedClock(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/account":
			io.WriteString(w, `{"balances":[{"asset":"BTC","free":"0.5","locked":"0.1"},{"asset":"USDC","free":"1000","locked":"0"}]}`)
		case "/sapi/v1/margin/account":
			io.WriteString(w, `{"userAssets":[{"asset":"BTC","free":"0.2","locked":"0"}]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	spot, err := cli.FetchBalances(context.Background(), balance.ModeSpot)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, spot["BTC"].Free, 1e-9)
	assert.InDelta(t, 0.1, spot["BTC"].Locked, 1e-9)

	margin, err := cli.FetchBalances(context.Background(), balance.ModeMargin)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, margin["BTC"].Free, 1e-9)
}

func TestFetchMaxBorrowable(t *testing.T) {
	fixedClock(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sapi/v1/margin/maxBorrowable", r.URL.Path)
		io.WriteString(w, `{"amount":"1.6","borrowLimit":"60"}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	amt, err := cli.FetchMaxBorrowable(context.Background(), "BTC")
	require.NoError(t, err)
	assert.InDelta(t, 1.6, amt, 1e-9)
}

func TestWarmRuleCachesForSession(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"symbols":[{"symbol":"BTCUSDC","filters":[{"filterType":"PRICE_FILTER","tickSize":"0.01"},{"filterType":"LOT_SIZE","stepSize":"0.00001"}]}]}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	assert.Zero(t, cli.Rule("BTCUSDC").TickSize, "rule empty before warm")

	rule, err := cli.WarmRule(context.Background(), "BTCUSDC")
	require.NoError(t, err)
	assert.InDelta(t, 0.01, rule.TickSize, 1e-9)
	assert.InDelta(t, 0.00001, rule.StepSize, 1e-9)

	_, err = cli.WarmRule(context.Background(), "btcusdc")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "rules never invalidated within a session")
	assert.InDelta(t, 0.01, cli.Rule("btcusdc").TickSize, 1e-9)
}

func TestCurrentPriceCached(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, `{"symbol":"BTCUSDC","price":"49000.00"}`)
	}))
	defer ts.Close()

	cli := newTestClient(ts)
	p1, err := cli.CurrentPrice(context.Background(), "BTCUSDC")
	require.NoError(t, err)
	p2, err := cli.CurrentPrice(context.Background(), "BTCUSDC")
	require.NoError(t, err)
	assert.InDelta(t, 49000, p1, 1e-9)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestSignParamsDeterministic(t *testing.T) {
	fixedClock(t)
	q1, s1 := SignParams(map[string]string{"symbol": "BTCUSDC", "side": "BUY"}, "secret", 0)
	q2, s2 := SignParams(map[string]string{"side": "BUY", "symbol": "BTCUSDC"}, "secret", 0)
	assert.Equal(t, q1, q2, "param order must not change the signature")
	assert.Equal(t, s1, s2)
	assert.True(t, strings.Contains(q1, "timestamp=1234567890000"))
}

func TestSignParamsLeavesInputUntouched(t *testing.T) {
	fixedClock(t)
	params := map[string]string{"symbol": "BTCUSDC", "side": "BUY"}
	_, _ = SignParams(params, "secret", 5000)
	assert.Equal(t, map[string]string{"symbol": "BTCUSDC", "side": "BUY"}, params,
		"signing must not leak timestamp/recvWindow into the caller's map")
}
