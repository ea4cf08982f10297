package binance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// 바이낸스 원본 응답 구조체들. 숫자는 문자열로 옵니다.

type rawOrder struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

type rawAsset struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	MarginBalance    string `json:"marginBalance"`
	AvailableBalance string `json:"availableBalance"`
	InitialMargin    string `json:"initialMargin"`
}

type rawAccount struct {
	Assets []rawAsset `json:"assets"`
}

type rawPosition struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	UnrealizedProfit string `json:"unRealizedProfit"`
	LiquidationPrice string `json:"liquidationPrice"`
	Leverage         string `json:"leverage"`
	MarginType       string `json:"marginType"`
	IsolatedMargin   string `json:"isolatedMargin"`
	Notional         string `json:"notional"`
}

type rawTrade struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"orderId"`
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
}

type rawBookTicker struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
	Time     int64  `json:"time"`
}

type rawTicker24h struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"closeTime"`
}

var statusMap = map[string]domain.OrderStatus{
	"new":              domain.StatusPending,
	"partially_filled": domain.StatusOpen,
	"filled":           domain.StatusFilled,
	"canceled":         domain.StatusCancelled,
	"expired":          domain.StatusCancelled,
	"rejected":         domain.StatusRejected,
}

// 조건부 주문은 실행 방식(지정가/시장가) 기준으로 접습니다
var typeMap = map[string]domain.OrderType{
	"limit":                domain.Limit,
	"stop":                 domain.Limit,
	"take_profit":          domain.Limit,
	"market":               domain.Market,
	"stop_market":          domain.Market,
	"take_profit_market":   domain.Market,
	"trailing_stop_market": domain.Market,
}

func normalizeStatus(raw string) (domain.OrderStatus, error) {
	s, ok := statusMap[strings.ToLower(raw)]
	if !ok {
		return "", fmt.Errorf("unknown order status %q", raw)
	}
	return s, nil
}

func normalizeType(raw string) (domain.OrderType, error) {
	t, ok := typeMap[strings.ToLower(raw)]
	if !ok {
		return "", fmt.Errorf("unknown order type %q", raw)
	}
	return t, nil
}

func normalizeSide(raw string) (domain.OrderSide, error) {
	s := domain.OrderSide(strings.ToLower(raw))
	if !s.Valid() {
		return "", fmt.Errorf("unknown side %q", raw)
	}
	return s, nil
}

// qualifyOrderID는 심볼 단위로만 유일한 바이낸스 주문 ID를 전역 ID로 만듭니다
func qualifyOrderID(symbol string, id int64) string {
	return symbol + ":" + strconv.FormatInt(id, 10)
}

// splitOrderID는 "SYMBOL:orderId" 형식을 분해합니다
func splitOrderID(id string) (string, int64, error) {
	symbol, raw, ok := strings.Cut(id, ":")
	if !ok || symbol == "" {
		return "", 0, fmt.Errorf("order id %q: expected SYMBOL:orderId", id)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("order id %q: %w", id, err)
	}
	return symbol, n, nil
}

func msTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (c *Client) normalizeOrder(op string, r rawOrder) (domain.Order, error) {
	status, err := normalizeStatus(r.Status)
	if err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "%w", err)
	}
	typ, err := normalizeType(r.Type)
	if err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "%w", err)
	}
	side, err := normalizeSide(r.Side)
	if err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "%w", err)
	}

	var p venue.DecimalParser
	amount := p.Required("origQty", r.OrigQty)
	filled := p.Required("executedQty", r.ExecutedQty)
	var price *decimal.Decimal
	if typ == domain.Limit {
		price = domain.PriceOf(typ, p.Required("price", r.Price))
	}
	if err := p.Err(); err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "order %d: %w", r.OrderID, err)
	}

	created := r.Time
	if created == 0 {
		created = r.UpdateTime
	}
	o := domain.Order{
		ID:            qualifyOrderID(r.Symbol, r.OrderID),
		ClientOrderID: r.ClientOrderID,
		Symbol:        r.Symbol,
		Type:          typ,
		Side:          side,
		Price:         price,
		Amount:        amount,
		Filled:        filled,
		Status:        status,
		CreatedAt:     msTime(created),
		UpdatedAt:     msTime(r.UpdateTime),
	}
	if err := o.Validate(); err != nil {
		return domain.Order{}, venue.ProtocolError(c.name, op, "order %d: %w", r.OrderID, err)
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

// normalizeBalances는 잔고가 있는 자산만 변환합니다.
// 불변식 위반은 호출 실패가 아니라 Inconsistent 표시와 경고 로그로 처리합니다.
func (c *Client) normalizeBalances(op string, acc rawAccount) ([]domain.Balance, error) {
	balances := make([]domain.Balance, 0, len(acc.Assets))
	for _, a := range acc.Assets {
		var p venue.DecimalParser
		wallet := p.Optional("walletBalance", a.WalletBalance)
		total := p.Required("marginBalance", a.MarginBalance)
		available := p.Required("availableBalance", a.AvailableBalance)
		frozen := p.Required("initialMargin", a.InitialMargin)
		if err := p.Err(); err != nil {
			return nil, venue.ProtocolError(c.name, op, "asset %s: %w", a.Asset, err)
		}
		if wallet.IsZero() && total.IsZero() {
			continue
		}

		b, ierr := domain.NewBalance(a.Asset, available, frozen, total)
		if ierr != nil {
			c.log.WithFields(logrus.Fields{
				"currency": a.Asset,
				"expected": ierr.Expected.String(),
				"actual":   ierr.Actual.String(),
			}).Warn("잔고 불변식 위반")
		}
		balances = append(balances, b)
	}
	return balances, nil
}

// normalizePositions는 수량이 0인 포지션을 제외하고 변환합니다
func (c *Client) normalizePositions(op string, raws []rawPosition) ([]domain.Position, error) {
	positions := make([]domain.Position, 0, len(raws))
	for _, r := range raws {
		var p venue.DecimalParser
		amt := p.Required("positionAmt", r.PositionAmt)
		entry := p.Required("entryPrice", r.EntryPrice)
		upnl := p.Optional("unRealizedProfit", r.UnrealizedProfit)
		liq := p.Optional("liquidationPrice", r.LiquidationPrice)
		lev := p.Optional("leverage", r.Leverage)
		isolated := p.Optional("isolatedMargin", r.IsolatedMargin)
		notional := p.Optional("notional", r.Notional)
		if err := p.Err(); err != nil {
			return nil, venue.ProtocolError(c.name, op, "position %s: %w", r.Symbol, err)
		}
		if amt.IsZero() {
			continue
		}

		pos := domain.NewPosition(r.Symbol, amt)
		pos.EntryPrice = entry
		pos.UnrealizedPnL = upnl
		pos.LiquidationPrice = liq
		pos.Leverage = lev
		switch {
		case strings.EqualFold(r.MarginType, "isolated"):
			pos.Margin = isolated
		case lev.IsPositive():
			pos.Margin = notional.Abs().Div(lev)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (c *Client) normalizeTrades(op string, raws []rawTrade) ([]domain.Trade, error) {
	trades := make([]domain.Trade, 0, len(raws))
	for _, r := range raws {
		side, err := normalizeSide(r.Side)
		if err != nil {
			return nil, venue.ProtocolError(c.name, op, "trade %d: %w", r.ID, err)
		}
		var p venue.DecimalParser
		price := p.Required("price", r.Price)
		qty := p.Required("qty", r.Qty)
		fee := p.Optional("commission", r.Commission)
		if err := p.Err(); err != nil {
			return nil, venue.ProtocolError(c.name, op, "trade %d: %w", r.ID, err)
		}
		trades = append(trades, domain.Trade{
			ID:          qualifyOrderID(r.Symbol, r.ID),
			OrderID:     qualifyOrderID(r.Symbol, r.OrderID),
			Symbol:      r.Symbol,
			Side:        side,
			Price:       price,
			Amount:      qty,
			Fee:         fee,
			FeeCurrency: r.CommissionAsset,
			Timestamp:   msTime(r.Time),
		})
	}
	return trades, nil
}

// normalizeMarketData는 호가와 24시간 통계를 합칩니다.
// bid > ask 인 역전 호가도 돌려주되 경고를 남깁니다.
func (c *Client) normalizeMarketData(op string, book rawBookTicker, day rawTicker24h) (domain.MarketData, error) {
	var p venue.DecimalParser
	bid := p.Required("bidPrice", book.BidPrice)
	ask := p.Required("askPrice", book.AskPrice)
	last := p.Required("lastPrice", day.LastPrice)
	vol := p.Required("volume", day.Volume)
	if err := p.Err(); err != nil {
		return domain.MarketData{}, venue.ProtocolError(c.name, op, "ticker %s: %w", book.Symbol, err)
	}

	ts := book.Time
	if ts == 0 {
		ts = day.CloseTime
	}
	md := domain.MarketData{
		Symbol:    book.Symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume:    vol,
		Timestamp: msTime(ts),
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
