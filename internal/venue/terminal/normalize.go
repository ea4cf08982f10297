package terminal

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// 터미널 주문 상태 → 정규화 상태
var statusMap = map[string]domain.OrderStatus{
	"started":          domain.StatusPending,
	"placed":           domain.StatusPending,
	"pending":          domain.StatusPending,
	"partial":          domain.StatusOpen,
	"partially_filled": domain.StatusOpen,
	"open":             domain.StatusOpen,
	"filled":           domain.StatusFilled,
	"canceled":         domain.StatusCancelled,
	"cancelled":        domain.StatusCancelled,
	"expired":          domain.StatusCancelled,
	"rejected":         domain.StatusRejected,
}

func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (c *Client) normalizeBalance(op string, p balancePayload) (domain.Balance, error) {
	var dp venue.DecimalParser
	total := dp.Required("equity", p.Equity.String())
	available := dp.Required("freeMargin", p.FreeMargin.String())
	frozen := dp.Required("margin", p.Margin.String())
	if err := dp.Err(); err != nil {
		return domain.Balance{}, venue.ProtocolError(c.name, op, "balance: %w", err)
	}
	if p.Currency == "" {
		return domain.Balance{}, venue.ProtocolError(c.name, op, "balance: missing currency")
	}

	b, ierr := domain.NewBalance(p.Currency, available, frozen, total)
	if ierr != nil {
		c.log.WithFields(logrus.Fields{
			"currency": p.Currency,
			"expected": ierr.Expected.String(),
			"actual":   ierr.Actual.String(),
		}).Warn("잔고 불변식 위반")
	}
	return b, nil
}

// normalizePositions는 부호 있는 volume으로 방향을 정합니다
func (c *Client) normalizePositions(op string, raws []rawPosition) ([]domain.Position, error) {
	positions := make([]domain.Position, 0, len(raws))
	for _, r := range raws {
		if r.Symbol == "" {
			return nil, venue.ProtocolError(c.name, op, "position: missing symbol")
		}
		var dp venue.DecimalParser
		volume := dp.Required("volume", r.Volume.String())
		entry := dp.Number("entryPrice", r.EntryPrice)
		lev := dp.Number("leverage", r.Leverage)
		liq := dp.Number("liquidationPrice", r.LiquidationPrice)
		margin := dp.Number("margin", r.Margin)
		upnl := dp.Number("unrealizedPnl", r.UnrealizedPnL)
		rpnl := dp.Number("realizedPnl", r.RealizedPnL)
		if err := dp.Err(); err != nil {
			return nil, venue.ProtocolError(c.name, op, "position %s: %w", r.Symbol, err)
		}

		pos := domain.NewPosition(r.Symbol, volume)
		pos.EntryPrice = entry
		pos.Leverage = lev
		pos.LiquidationPrice = liq
		pos.Margin = margin
		pos.UnrealizedPnL = upnl
		pos.RealizedPnL = rpnl
		positions = append(positions, pos)
	}
	return positions, nil
}

func (c *Client) normalizeOrder(op string, r rawOrder) (domain.Order, error) {
	status, ok := statusMap[strings.ToLower(r.Status)]
	if !ok {
		return domain.Order{}, venue.ProtocolError(c.name, op, "order %s: unknown status %q", r.OrderID, r.Status)
	}
	typ := domain.OrderType(strings.ToLower(r.OrderType))
	side := domain.OrderSide(strings.ToLower(r.Side))

	var dp venue.DecimalParser
	amount := dp.Required("volume", r.Volume.String())
	filled := dp.Number("filled", r.Filled)
	price := dp.Number("price", r.Price)
	if err := dp.Err(); err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "order %s: %w", r.OrderID, err)
	}

	created := r.Time
	if created == 0 {
		created = r.UpdateTime
	}
	o := domain.Order{
		ID:            r.OrderID,
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Type:          typ,
		Side:          side,
		Price:         domain.PriceOf(typ, price),
		Amount:        amount,
		Filled:        filled,
		Status:        status,
		CreatedAt:     msTime(created),
		UpdatedAt:     msTime(r.UpdateTime),
	}
	if err := o.Validate(); err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "order %s: %w", r.OrderID, err)
	}
	return o, nil
}

func (c *Client) normalizeOrders(op string, raws []rawOrder) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(raws))
	for _, r := range raws {
		o, err := c.normalizeOrder(op, r)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *Client) normalizeTrades(op string, raws []rawTrade) ([]domain.Trade, error) {
	trades := make([]domain.Trade, 0, len(raws))
	for _, r := range raws {
		side := domain.OrderSide(strings.ToLower(r.Side))
		if !side.Valid() {
			return nil, venue.ProtocolError(c.name, op, "trade %s: unknown side %q", r.TradeID, r.Side)
		}
		if r.TradeID == "" {
			return nil, venue.ProtocolError(c.name, op, "trade: missing tradeId")
		}
		var dp venue.DecimalParser
		price := dp.Required("price", r.Price.String())
		amount := dp.Required("volume", r.Volume.String())
		fee := dp.Number("fee", r.Fee)
		if err := dp.Err(); err != nil {
			return nil, venue.ProtocolError(c.name, op, "trade %s: %w", r.TradeID, err)
		}
		trades = append(trades, domain.Trade{
			ID:          r.TradeID,
			OrderID:     r.OrderID,
			Symbol:      r.Symbol,
			Side:        side,
			Price:       price,
			Amount:      amount,
			Fee:         fee,
			FeeCurrency: r.FeeCurrency,
			Timestamp:   msTime(r.Time),
		})
	}
	return trades, nil
}

func (c *Client) normalizeMarketData(op string, p marketDataPayload) (domain.MarketData, error) {
	var dp venue.DecimalParser
	bid := dp.Required("bid", p.Bid.String())
	ask := dp.Required("ask", p.Ask.String())
	last := dp.Number("last", p.Last)
	vol := dp.Number("volume", p.Volume)
	if err := dp.Err(); err != nil {
		return domain.MarketData{}, venue.ProtocolError(c.name, op, "market data %s: %w", p.Symbol, err)
	}

	md := domain.MarketData{
		Symbol:    p.Symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume:    vol,
		Timestamp: msTime(p.Time),
	}
	if md.Crossed() {
		c.log.WithFields(logrus.Fields{
			"symbol": md.Symbol,
			"bid":    md.Bid.String(),
			"ask":    md.Ask.String(),
		}).Warn("역전된 호가 수신")
	}
	return md, nil
}
