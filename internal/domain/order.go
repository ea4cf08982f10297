package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest는 주문 생성 요청을 표현합니다
type OrderRequest struct {
	Symbol        string           // 심볼 (예: BTCUSDT)
	Type          OrderType        // 시장가/지정가
	Side          OrderSide        // 매수/매도
	Amount        decimal.Decimal  // 수량
	Price         *decimal.Decimal // 지정가 (Limit 주문에서만 설정)
	ClientOrderID string           // 클라이언트 측 주문 ID (비어있으면 어댑터가 생성)
}

// Validate는 주문 요청이 거래소로 전송 가능한지 확인합니다
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return errors.New("symbol is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid order type %q", r.Type)
	}
	if !r.Side.Valid() {
		return fmt.Errorf("invalid order side %q", r.Side)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", r.Amount)
	}
	return checkPrice(r.Type, r.Price)
}

// Order는 거래소에서 받은 주문 스냅샷입니다
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Type          OrderType
	Side          OrderSide
	Price         *decimal.Decimal // Limit 주문일 때만 존재
	Amount        decimal.Decimal
	Filled        decimal.Decimal
	Status        OrderStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate는 price가 limit 주문에만 존재하는지 등 주문 불변식을 확인합니다
func (o Order) Validate() error {
	if o.ID == "" {
		return errors.New("order id is empty")
	}
	if o.Symbol == "" {
		return errors.New("order symbol is empty")
	}
	if !o.Type.Valid() {
		return fmt.Errorf("invalid order type %q", o.Type)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("invalid order side %q", o.Side)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("invalid order status %q", o.Status)
	}
	if o.Amount.IsNegative() {
		return fmt.Errorf("negative order amount %s", o.Amount)
	}
	return checkPrice(o.Type, o.Price)
}

func checkPrice(t OrderType, price *decimal.Decimal) error {
	switch {
	case t == Limit && price == nil:
		return errors.New("limit order requires a price")
	case t == Limit && !price.IsPositive():
		return fmt.Errorf("limit price must be positive, got %s", price)
	case t == Market && price != nil:
		return errors.New("market order must not carry a price")
	}
	return nil
}

// PriceOf는 limit 주문에만 가격 포인터를 넘겨주는 헬퍼입니다
func PriceOf(t OrderType, price decimal.Decimal) *decimal.Decimal {
	if t != Limit {
		return nil
	}
	return &price
}
