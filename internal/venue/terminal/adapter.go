package terminal

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

var (
	errSymbolRequired  = errors.New("symbol is required")
	errOrderIDRequired = errors.New("order id is required")
)

func (c *Client) invalid(op string, err error) error {
	return &venue.Error{Kind: venue.KindInvalidRequest, Venue: c.name, Op: op, Err: err}
}

// decode는 응답 페이로드를 풀고 실패하면 ProtocolError를 반환합니다
func (c *Client) decode(op string, msg Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return venue.ProtocolError(c.name, op, "%s 응답 파싱 실패: %w", msg.Type, err)
	}
	return nil
}

// GetBalance는 계정 잔고를 조회합니다. 터미널 계정은 통화가 하나입니다.
func (c *Client) GetBalance(ctx context.Context) ([]domain.Balance, error) {
	const op = "GetBalance"
	msg, err := c.query(ctx, op, request{Type: TypeGetBalance}, TypeBalance)
	if err != nil {
		return nil, err
	}

	var p balancePayload
	if err := c.decode(op, msg, &p); err != nil {
		return nil, err
	}
	b, err := c.normalizeBalance(op, p)
	if err != nil {
		return nil, err
	}
	return []domain.Balance{b}, nil
}

// GetPositions는 열린 포지션을 조회합니다. symbol이 비어 있으면 전체입니다.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]domain.Position, error) {
	const op = "GetPositions"
	msg, err := c.query(ctx, op, request{Type: TypeGetPositions, Symbol: symbol}, TypePositions)
	if err != nil {
		return nil, err
	}

	var p positionsPayload
	if err := c.decode(op, msg, &p); err != nil {
		return nil, err
	}
	positions, err := c.normalizePositions(op, p.Positions)
	if err != nil {
		return nil, err
	}
	if symbol == "" {
		return positions, nil
	}

	filtered := positions[:0]
	for _, pos := range positions {
		if pos.Symbol == symbol {
			filtered = append(filtered, pos)
		}
	}
	return filtered, nil
}

// GetTrades는 기간 내 체결 내역을 조회합니다
func (c *Client) GetTrades(ctx context.Context, q domain.TradeQuery) ([]domain.Trade, error) {
	const op = "GetTrades"
	req := request{Type: TypeGetTrades, Symbol: q.Symbol}
	if !q.Start.IsZero() {
		req.From = q.Start.UnixMilli()
	}
	if !q.End.IsZero() {
		req.To = q.End.UnixMilli()
	}

	msg, err := c.query(ctx, op, req, TypeTrades)
	if err != nil {
		return nil, err
	}

	var p tradesPayload
	if err := c.decode(op, msg, &p); err != nil {
		return nil, err
	}
	return c.normalizeTrades(op, p.Trades)
}

// GetOrders는 미체결 주문을 조회합니다
func (c *Client) GetOrders(ctx context.Context, symbol string) ([]domain.Order, error) {
	const op = "GetOrders"
	msg, err := c.query(ctx, op, request{Type: TypeGetOrders, Symbol: symbol}, TypeOrders)
	if err != nil {
		return nil, err
	}

	var p ordersPayload
	if err := c.decode(op, msg, &p); err != nil {
		return nil, err
	}
	return c.normalizeOrders(op, p.Orders)
}

// GetOrder는 주문 하나를 조회합니다
func (c *Client) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	const op = "GetOrder"
	if id == "" {
		return nil, c.invalid(op, errOrderIDRequired)
	}
	return c.orderQuery(ctx, op, request{Type: TypeGetOrder, OrderID: id})
}

// CreateOrder는 주문을 생성합니다
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	const op = "CreateOrder"
	if err := req.Validate(); err != nil {
		return nil, c.invalid(op, err)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	r := request{
		Type:          TypeCreateOrder,
		Symbol:        req.Symbol,
		OrderType:     string(req.Type),
		Side:          string(req.Side),
		Volume:        req.Amount.String(),
		ClientOrderID: clientID,
	}
	if req.Price != nil {
		r.Price = req.Price.String()
	}

	order, err := c.orderQuery(ctx, op, r)
	if err != nil {
		return nil, err
	}
	c.log.WithField("order_id", order.ID).Info("주문 생성됨")
	return order, nil
}

// CancelOrder는 주문을 취소합니다
func (c *Client) CancelOrder(ctx context.Context, id string) (*domain.Order, error) {
	const op = "CancelOrder"
	if id == "" {
		return nil, c.invalid(op, errOrderIDRequired)
	}
	return c.orderQuery(ctx, op, request{Type: TypeCancelOrder, OrderID: id})
}

// CancelOrders는 미체결 주문을 모두 취소합니다. symbol이 비어 있으면 전체입니다.
func (c *Client) CancelOrders(ctx context.Context, symbol string) error {
	const op = "CancelOrders"
	msg, err := c.query(ctx, op, request{Type: TypeCancelOrders, Symbol: symbol}, TypeOrders)
	if err != nil {
		return err
	}

	var p ordersPayload
	if err := c.decode(op, msg, &p); err != nil {
		return err
	}
	c.log.WithField("count", len(p.Orders)).Info("미체결 주문 전체 취소")
	return nil
}

func (c *Client) orderQuery(ctx context.Context, op string, req request) (*domain.Order, error) {
	msg, err := c.query(ctx, op, req, TypeOrder)
	if err != nil {
		return nil, err
	}

	var p orderPayload
	if err := c.decode(op, msg, &p); err != nil {
		return nil, err
	}
	order, err := c.normalizeOrder(op, p.Order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetMarketData는 심볼 시세를 조회합니다
func (c *Client) GetMarketData(ctx context.Context, symbol string) (*domain.MarketData, error) {
	const op = "GetMarketData"
	if symbol == "" {
		return nil, c.invalid(op, errSymbolRequired)
	}

	msg, err := c.query(ctx, op, request{Type: TypeGetMarketData, Symbol: symbol}, TypeMarketData)
	if err != nil {
		return nil, err
	}

	var p marketDataPayload
	if err := c.decode(op, msg, &p); err != nil {
		return nil, err
	}
	if p.Symbol != symbol {
		return nil, venue.ProtocolError(c.name, op, "requested %s, got %s", symbol, p.Symbol)
	}
	md, err := c.normalizeMarketData(op, p)
	if err != nil {
		return nil, err
	}
	return &md, nil
}

// GetMarketDataList는 심볼마다 별도 ID로 동시에 조회합니다. 요청 순서대로 반환합니다.
func (c *Client) GetMarketDataList(ctx context.Context, symbols []string) ([]domain.MarketData, error) {
	result := make([]domain.MarketData, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			md, err := c.GetMarketData(gctx, symbol)
			if err != nil {
				return err
			}
			result[i] = *md
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
