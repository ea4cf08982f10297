package terminal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// 송신 메시지 종류
const (
	TypeLogin         = "login"
	TypeGetBalance    = "get_balance"
	TypeGetPositions  = "get_positions"
	TypeGetOrders     = "get_orders"
	TypeGetOrder      = "get_order"
	TypeGetTrades     = "get_trades"
	TypeGetMarketData = "get_market_data"
	TypeCreateOrder   = "create_order"
	TypeCancelOrder   = "cancel_order"
	TypeCancelOrders  = "cancel_orders"
)

// 수신 메시지 종류
const (
	TypeLoginAck   = "login_ack"
	TypeBalance    = "balance"
	TypePositions  = "positions"
	TypeOrders     = "orders"
	TypeOrder      = "order"
	TypeTrades     = "trades"
	TypeMarketData = "market_data"
	TypeError      = "error"
)

// maxLineSize는 한 줄(메시지 하나)의 최대 크기입니다
const maxLineSize = 1 << 20

var errMissingType = errors.New("missing type field")

// Message는 터미널에서 받은 메시지 하나입니다.
// Raw에는 줄 전체가 들어 있고 Decode로 종류별 구조체에 풀어냅니다.
type Message struct {
	Type string
	ID   string
	Raw  json.RawMessage
}

// Decode는 숫자를 json.Number로 보존하면서 메시지를 디코딩합니다
func (m Message) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(m.Raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// parseMessage는 한 줄을 메시지로 해석합니다. type이 없으면 형식 오류입니다.
// line을 그대로 Raw로 보관하므로 호출 측은 line을 재사용하면 안 됩니다.
func parseMessage(line []byte) (Message, error) {
	var env struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(line, &env); err != nil {
		return Message{}, fmt.Errorf("invalid json: %w", err)
	}
	if env.Type == "" {
		return Message{}, errMissingType
	}
	return Message{Type: env.Type, ID: env.ID, Raw: line}, nil
}

// request는 송신 메시지입니다. 종류에 따라 필요한 필드만 채웁니다.
type request struct {
	Type          string `json:"type"`
	ID            string `json:"id,omitempty"`
	Login         string `json:"login,omitempty"`
	Password      string `json:"password,omitempty"`
	Server        string `json:"server,omitempty"`
	Symbol        string `json:"symbol,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	ClientOrderID string `json:"clientOrderId,omitempty"`
	OrderType     string `json:"orderType,omitempty"`
	Side          string `json:"side,omitempty"`
	Volume        string `json:"volume,omitempty"`
	Price         string `json:"price,omitempty"`
	From          int64  `json:"from,omitempty"`
	To            int64  `json:"to,omitempty"`
}

// encode는 요청을 줄바꿈으로 끝나는 한 줄로 만듭니다
func (r request) encode() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// 수신 페이로드

type loginAckPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type balancePayload struct {
	Currency   string      `json:"currency"`
	Equity     json.Number `json:"equity"`
	FreeMargin json.Number `json:"freeMargin"`
	Margin     json.Number `json:"margin"`
}

type rawPosition struct {
	Symbol           string      `json:"symbol"`
	Volume           json.Number `json:"volume"` // 부호 있는 수량 (음수는 숏)
	EntryPrice       json.Number `json:"entryPrice"`
	Leverage         json.Number `json:"leverage"`
	LiquidationPrice json.Number `json:"liquidationPrice"`
	Margin           json.Number `json:"margin"`
	UnrealizedPnL    json.Number `json:"unrealizedPnl"`
	RealizedPnL      json.Number `json:"realizedPnl"`
}

type positionsPayload struct {
	Positions []rawPosition `json:"positions"`
}

type rawOrder struct {
	OrderID       string      `json:"orderId"`
	ClientOrderID string      `json:"clientOrderId"`
	Symbol        string      `json:"symbol"`
	OrderType     string      `json:"orderType"`
	Side          string      `json:"side"`
	Price         json.Number `json:"price"`
	Volume        json.Number `json:"volume"`
	Filled        json.Number `json:"filled"`
	Status        string      `json:"status"`
	Time          int64       `json:"time"`
	UpdateTime    int64       `json:"updateTime"`
}

type orderPayload struct {
	Order rawOrder `json:"order"`
}

type ordersPayload struct {
	Orders []rawOrder `json:"orders"`
}

type rawTrade struct {
	TradeID     string      `json:"tradeId"`
	OrderID     string      `json:"orderId"`
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	Price       json.Number `json:"price"`
	Volume      json.Number `json:"volume"`
	Fee         json.Number `json:"fee"`
	FeeCurrency string      `json:"feeCurrency"`
	Time        int64       `json:"time"`
}

type tradesPayload struct {
	Trades []rawTrade `json:"trades"`
}

type marketDataPayload struct {
	Symbol string      `json:"symbol"`
	Bid    json.Number `json:"bid"`
	Ask    json.Number `json:"ask"`
	Last   json.Number `json:"last"`
	Volume json.Number `json:"volume"`
	Time   int64       `json:"time"`
}
