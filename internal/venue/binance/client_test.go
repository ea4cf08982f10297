package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assist-by/venuelink/internal/config"
	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/logger"
	"github.com/assist-by/venuelink/internal/venue"
)

const (
	testKey    = "test-api-key"
	testSecret = "test-secret"
)

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(
		domain.Credentials{APIKey: testKey, APISecret: testSecret},
		WithBaseURL(srv.URL),
		WithTimeout(2*time.Second),
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.Discard()),
	)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestSign(t *testing.T) {
	// 바이낸스 문서의 서명 예제
	c := NewClient(domain.Credentials{APISecret: "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"})
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", c.sign(payload))
}

func TestDoRequest_SignedQuery(t *testing.T) {
	var seen atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(true)
		assert.Equal(t, testKey, r.Header.Get(apiKeyHeader))
		assert.NotContains(t, r.URL.RawQuery, testKey, "API 키는 헤더로만 전송")

		payload, sig, ok := strings.Cut(r.URL.RawQuery, "&signature=")
		assert.True(t, ok, "signature는 마지막 파라미터")
		assert.Equal(t, expectedSignature(payload), sig)
		assert.Equal(t, fmt.Sprint(fixedNow.UnixMilli()), r.URL.Query().Get("timestamp"))
		assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))

		writeJSON(w, http.StatusOK, `{"assets":[]}`)
	})

	balances, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, balances)
	assert.True(t, seen.Load())
}

func expectedSignature(payload string) string {
	return NewClient(domain.Credentials{APISecret: testSecret}).sign(payload)
}

func TestCreateOrder_LimitFixture(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fapi/v1/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "BUY", q.Get("side"))
		assert.Equal(t, "LIMIT", q.Get("type"))
		assert.Equal(t, "0.1", q.Get("quantity"))
		assert.Equal(t, "50000", q.Get("price"))
		assert.Equal(t, "GTC", q.Get("timeInForce"))
		assert.NotEmpty(t, q.Get("newClientOrderId"), "빈 client id는 생성해서 보냄")

		writeJSON(w, http.StatusOK, `{"orderId":123,"symbol":"BTCUSDT","status":"NEW","clientOrderId":"`+q.Get("newClientOrderId")+`",
			"price":"50000","origQty":"0.1","executedQty":"0","type":"LIMIT","side":"BUY","updateTime":1704067200000}`)
	})

	price := decimal.RequireFromString("50000")
	order, err := c.CreateOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT",
		Type:   domain.Limit,
		Side:   domain.Buy,
		Amount: decimal.RequireFromString("0.1"),
		Price:  &price,
	})
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT:123", order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.Limit, order.Type)
	assert.Equal(t, domain.Buy, order.Side)
	require.NotNil(t, order.Price)
	assert.True(t, order.Price.Equal(price))
	assert.Equal(t, "0.1", order.Amount.String())
	assert.True(t, order.Filled.IsZero())
	assert.True(t, fixedNow.Equal(order.CreatedAt))
}

func TestCreateOrder_InvalidRequestNotSent(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.CreateOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTCUSDT",
		Type:   domain.Limit,
		Side:   domain.Buy,
		Amount: decimal.RequireFromString("1"),
	})
	assert.ErrorIs(t, err, venue.ErrInvalidRequest)
	assert.Zero(t, calls.Load())
}

func TestGetBalance_FlagsInconsistent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"assets":[
			{"asset":"USDT","walletBalance":"100","marginBalance":"100","availableBalance":"60","initialMargin":"30"},
			{"asset":"BNB","walletBalance":"0","marginBalance":"0","availableBalance":"0","initialMargin":"0"},
			{"asset":"BUSD","walletBalance":"50","marginBalance":"50.5","availableBalance":"40.5","initialMargin":"10"}
		]}`)
	})

	balances, err := c.GetBalance(context.Background())
	require.NoError(t, err, "불변식 위반은 호출 실패가 아님")
	require.Len(t, balances, 2)

	assert.Equal(t, "USDT", balances[0].Currency)
	assert.True(t, balances[0].Inconsistent)
	assert.Equal(t, "BUSD", balances[1].Currency)
	assert.False(t, balances[1].Inconsistent)
	assert.Equal(t, "50.5", balances[1].Total.String())
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		header  map[string]string
		body    string
		want    *venue.Error
		retryIn time.Duration
	}{
		{
			name:    "429는 RateLimit",
			status:  http.StatusTooManyRequests,
			header:  map[string]string{"Retry-After": "7"},
			body:    `{"code":-1003,"msg":"Too many requests"}`,
			want:    venue.ErrRateLimit,
			retryIn: 7 * time.Second,
		},
		{
			name:   "418 밴도 RateLimit",
			status: http.StatusTeapot,
			body:   `{"code":-1003,"msg":"banned"}`,
			want:   venue.ErrRateLimit,
		},
		{
			name:   "잘못된 서명은 인증 에러",
			status: http.StatusBadRequest,
			body:   `{"code":-1022,"msg":"Signature for this request is not valid."}`,
			want:   venue.ErrAuthentication,
		},
		{
			name:   "401은 인증 에러",
			status: http.StatusUnauthorized,
			body:   `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`,
			want:   venue.ErrAuthentication,
		},
		{
			name:   "5xx는 연결 에러",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			want:   venue.ErrConnection,
		},
		{
			name:   "구조화된 업무 에러",
			status: http.StatusBadRequest,
			body:   `{"code":-2019,"msg":"Margin is insufficient."}`,
			want:   &venue.Error{Kind: venue.KindVenue, Code: -2019},
		},
		{
			name:   "구조 없는 본문은 프로토콜 에러",
			status: http.StatusBadRequest,
			body:   `oops`,
			want:   venue.ErrProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.GetBalance(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var verr *venue.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "GetBalance", verr.Op)
			assert.Equal(t, tt.retryIn, verr.RetryAfter)
		})
	}
}

func TestCancelOrder_Twice(t *testing.T) {
	var cancelled atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "42", r.URL.Query().Get("orderId"))

		if cancelled.Swap(true) {
			writeJSON(w, http.StatusBadRequest, `{"code":-2011,"msg":"Unknown order sent."}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"orderId":42,"symbol":"ETHUSDT","status":"CANCELED","price":"0","origQty":"2",
			"executedQty":"0.5","type":"MARKET","side":"SELL","updateTime":1704067200000}`)
	})

	order, err := c.CancelOrder(context.Background(), "ETHUSDT:42")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Nil(t, order.Price, "시장가 주문은 가격이 없음")
	assert.Equal(t, "0.5", order.Filled.String())

	_, err = c.CancelOrder(context.Background(), "ETHUSDT:42")
	require.Error(t, err)
	assert.ErrorIs(t, err, &venue.Error{Kind: venue.KindVenue, Code: -2011})
	assert.False(t, venue.IsRetryable(err))
}

func TestOrderID_Invalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("요청이 전송되면 안 됨")
	})

	for _, id := range []string{"", "42", "BTCUSDT:", ":42", "BTCUSDT:abc"} {
		_, err := c.GetOrder(context.Background(), id)
		assert.ErrorIs(t, err, venue.ErrInvalidRequest, id)
	}

	_, err := c.GetTrades(context.Background(), domain.TradeQuery{})
	assert.ErrorIs(t, err, venue.ErrInvalidRequest)
}

func TestGetPositions_MalformedNumber(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"symbol":"BTCUSDT","positionAmt":"abc","entryPrice":"1"}]`)
	})

	_, err := c.GetPositions(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, venue.ErrProtocol)
	assert.Contains(t, err.Error(), "positionAmt")
}

func TestGetPositions_SideFromSign(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[
			{"symbol":"BTCUSDT","positionAmt":"-0.25","entryPrice":"40000","unRealizedProfit":"12.5","liquidationPrice":"60000",
			 "leverage":"10","marginType":"cross","isolatedMargin":"0","notional":"-10000"},
			{"symbol":"ETHUSDT","positionAmt":"0","entryPrice":"0","leverage":"5","notional":"0"},
			{"symbol":"SOLUSDT","positionAmt":"3","entryPrice":"100","leverage":"5","marginType":"isolated",
			 "isolatedMargin":"60.1","notional":"300"}
		]`)
	})

	positions, err := c.GetPositions(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, positions, 2, "수량 0인 포지션 제외")

	btc := positions[0]
	assert.Equal(t, domain.ShortPosition, btc.Side)
	assert.Equal(t, "0.25", btc.Amount.String())
	assert.Equal(t, "1000", btc.Margin.String())

	sol := positions[1]
	assert.Equal(t, domain.LongPosition, sol.Side)
	assert.Equal(t, "60.1", sol.Margin.String())
}

func TestGetMarketData_CrossedQuoteReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/ticker/bookTicker":
			writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","bidPrice":"101.5","askPrice":"100.5","time":1704067200000}`)
		case "/fapi/v1/ticker/24hr":
			writeJSON(w, http.StatusOK, `{"symbol":"BTCUSDT","lastPrice":"101","volume":"12345.678","closeTime":1704067200000}`)
		default:
			http.NotFound(w, r)
		}
	})

	md, err := c.GetMarketData(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, md.Crossed())
	assert.Equal(t, "12345.678", md.Volume.String())
	assert.True(t, fixedNow.Equal(md.Timestamp))
}

func TestGetMarketDataList_KeepsRequestOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("symbol"))
		switch r.URL.Path {
		case "/fapi/v1/ticker/bookTicker":
			writeJSON(w, http.StatusOK, `[{"symbol":"BTCUSDT","bidPrice":"1","askPrice":"2"},{"symbol":"ETHUSDT","bidPrice":"3","askPrice":"4"}]`)
		case "/fapi/v1/ticker/24hr":
			writeJSON(w, http.StatusOK, `[{"symbol":"ETHUSDT","lastPrice":"3.5","volume":"1"},{"symbol":"BTCUSDT","lastPrice":"1.5","volume":"2"}]`)
		}
	})

	list, err := c.GetMarketDataList(context.Background(), []string{"ETHUSDT", "BTCUSDT"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ETHUSDT", list[0].Symbol)
	assert.Equal(t, "3.5", list[0].Last.String())
	assert.Equal(t, "BTCUSDT", list[1].Symbol)

	_, err = c.GetMarketDataList(context.Background(), []string{"XRPUSDT"})
	assert.ErrorIs(t, err, venue.ErrVenue)
}

func TestCancelOrders_AllSymbols(t *testing.T) {
	var (
		mu        sync.Mutex
		cancelled []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/fapi/v1/openOrders":
			writeJSON(w, http.StatusOK, `[
				{"orderId":1,"symbol":"ETHUSDT","status":"NEW","price":"10","origQty":"1","executedQty":"0","type":"LIMIT","side":"BUY"},
				{"orderId":2,"symbol":"BTCUSDT","status":"PARTIALLY_FILLED","price":"20","origQty":"1","executedQty":"0.5","type":"LIMIT","side":"SELL"},
				{"orderId":3,"symbol":"ETHUSDT","status":"NEW","price":"11","origQty":"1","executedQty":"0","type":"LIMIT","side":"BUY"}
			]`)
		case r.Method == http.MethodDelete && r.URL.Path == "/fapi/v1/allOpenOrders":
			mu.Lock()
			cancelled = append(cancelled, r.URL.Query().Get("symbol"))
			mu.Unlock()
			writeJSON(w, http.StatusOK, `{"code":200,"msg":"The operation of cancel all open order is done."}`)
		default:
			http.NotFound(w, r)
		}
	})

	require.NoError(t, c.CancelOrders(context.Background(), ""))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cancelled)
}

func TestContextDeadline_IsTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetBalance(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, venue.ErrTimeout)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.OrderStatus
	}{
		{"NEW", domain.StatusPending},
		{"PARTIALLY_FILLED", domain.StatusOpen},
		{"FILLED", domain.StatusFilled},
		{"CANCELED", domain.StatusCancelled},
		{"EXPIRED", domain.StatusCancelled},
		{"REJECTED", domain.StatusRejected},
	}
	for _, tt := range tests {
		got, err := normalizeStatus(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := normalizeStatus("PENDING_NEW")
	assert.Error(t, err)
}

func TestSyncTime(t *testing.T) {
	serverNow := fixedNow.Add(1500 * time.Millisecond)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"serverTime":%d}`, serverNow.UnixMilli()))
	})

	require.NoError(t, c.SyncTime(context.Background()))
	assert.Equal(t, serverNow.UnixMilli(), c.getServerTime())
}

func TestRegister(t *testing.T) {
	reg := venue.NewRegistry()
	Register(reg)

	adapter, err := reg.Build(venue.VenueSpec{
		Name:        "binance-main",
		Kind:        config.KindBinance,
		Endpoint:    "http://127.0.0.1:1",
		Credentials: domain.Credentials{APIKey: "k", APISecret: "s"},
	}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, "binance-main", adapter.Name())
	require.NoError(t, adapter.Close())

	_, err = reg.Build(venue.VenueSpec{Name: "nokey", Kind: config.KindBinance}, logger.Discard())
	assert.Error(t, err)
}

func TestGetTrades(t *testing.T) {
	start := fixedNow.Add(-time.Hour)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/userTrades", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, fmt.Sprint(start.UnixMilli()), r.URL.Query().Get("startTime"))
		assert.Empty(t, r.URL.Query().Get("endTime"))

		writeJSON(w, http.StatusOK, `[{"id":9,"orderId":123,"symbol":"BTCUSDT","side":"SELL","price":"50100.5",
			"qty":"0.01","commission":"0.2","commissionAsset":"USDT","time":1704067200000}]`)
	})

	trades, err := c.GetTrades(context.Background(), domain.TradeQuery{Symbol: "BTCUSDT", Start: start})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "BTCUSDT:9", tr.ID)
	assert.Equal(t, "BTCUSDT:123", tr.OrderID)
	assert.Equal(t, domain.Sell, tr.Side)
	assert.Equal(t, "50100.5", tr.Price.String())
	assert.Equal(t, "USDT", tr.FeeCurrency)
	assert.True(t, fixedNow.Equal(tr.Timestamp))
}

func TestGetTrades_SymbolRequired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("요청이 전송되면 안 됨")
	})

	_, err := c.GetTrades(context.Background(), domain.TradeQuery{})
	assert.ErrorIs(t, err, venue.ErrInvalidRequest)
}
