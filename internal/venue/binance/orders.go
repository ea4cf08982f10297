package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

func (c *Client) invalid(op string, err error) error {
	return &venue.Error{Kind: venue.KindInvalidRequest, Venue: c.name, Op: op, Err: err}
}

// GetOrders는 미체결 주문을 조회합니다. symbol이 비어 있으면 전체입니다.
func (c *Client) GetOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	const op = "GetOrders"
	params := url.Values{}
	if symbol != "" {
		params.Add("symbol", symbol)
	}

	resp, err := c.doRequest(ctx, op, http.MethodGet, "/fapi/v1/openOrders", params, true)
	if err != nil {
		return nil, err
	}

	var raws []rawOrder
	if err := json.Unmarshal(resp, &raws); err != nil {
		return nil, venue.ProtocolError(c.name, op, "주문 데이터 파싱 실패: %w", err)
	}
	return c.normalizeOrders(op, raws)
}

// GetOrder는 "SYMBOL:orderId" 형식의 ID로 주문 하나를 조회합니다
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return c.orderByID(ctx, "GetOrder", http.MethodGet, id)
}

// CancelOrder는 주문을 취소합니다.
// 이미 취소/체결된 주문이면 코드 -2011의 VenueError를 반환합니다.
func (c *Client) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	return c.orderByID(ctx, "CancelOrder", http.MethodDelete, id)
}

func (c *Client) orderByID(ctx context.Context, op, method, id string) (*domain.Order, error) {
	symbol, orderID, err := splitOrderID(id)
	if err != nil {
		return nil, c.invalid(op, err)
	}

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("orderId", strconv.FormatInt(orderID, 10))

	resp, err := c.doRequest(ctx, op, method, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}
	return c.decodeOrder(op, resp)
}

// CreateOrder는 새로운 주문을 생성합니다
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	const op = "CreateOrder"
	if err := req.Validate(); err != nil {
		return nil, c.invalid(op, err)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	params := url.Values{}
	params.Add("symbol", req.Symbol)
	params.Add("side", strings.ToUpper(string(req.Side)))
	params.Add("type", strings.ToUpper(string(req.Type)))
	params.Add("quantity", req.Amount.String())
	params.Add("newClientOrderId", clientID)
	if req.Type == domain.Limit {
		params.Add("price", req.Price.String())
		params.Add("timeInForce", "GTC")
	}

	resp, err := c.doRequest(ctx, op, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		return nil, err
	}

	order, err := c.decodeOrder(op, resp)
	if err != nil {
		return nil, err
	}

	c.log.WithField("order_id", order.ID).Info("주문 생성됨")
	return order, nil
}

// CancelOrders는 미체결 주문을 모두 취소합니다.
// symbol이 비어 있으면 미체결 주문이 있는 심볼마다 일괄 취소합니다.
func (c *Client) CancelOrders(ctx context.Context, symbol string) error {
	const op = "CancelOrders"
	symbols := []string{symbol}
	if symbol == "" {
		open, err := c.GetOrders(ctx, "")
		if err != nil {
			return err
		}
		symbols = distinctSymbols(open)
	}

	for _, s := range symbols {
		params := url.Values{}
		params.Add("symbol", s)
		if _, err := c.doRequest(ctx, op, http.MethodDelete, "/fapi/v1/allOpenOrders", params, true); err != nil {
			return err
		}
		c.log.WithField("symbol", s).Info("미체결 주문 전체 취소")
	}
	return nil
}

func (c *Client) decodeOrder(op string, resp []byte) (*domain.Order, error) {
	var raw rawOrder
	if err := json.Unmarshal(resp, &raw); err != nil {
		return nil, venue.ProtocolError(c.name, op, "주문 응답 파싱 실패: %w", err)
	}
	order, err := c.normalizeOrder(op, raw)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func distinctSymbols(orders []domain.Order) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, o := range orders {
		if !seen[o.Symbol] {
			seen[o.Symbol] = true
			symbols = append(symbols, o.Symbol)
		}
	}
	sort.Strings(symbols)
	return symbols
}
