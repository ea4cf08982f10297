package domain

// OrderSide는 주문 방향을 정의합니다
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Valid는 정의된 주문 방향인지 확인합니다
func (s OrderSide) Valid() bool {
	return s == Buy || s == Sell
}

// OrderType은 주문 유형을 정의합니다
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// Valid는 정의된 주문 유형인지 확인합니다
func (t OrderType) Valid() bool {
	return t == Market || t == Limit
}

// OrderStatus는 주문 상태를 정의합니다
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

// Valid는 정의된 주문 상태인지 확인합니다
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusOpen, StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Final은 더 이상 변하지 않는 상태인지 반환합니다
func (s OrderStatus) Final() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

// PositionSide는 포지션 방향을 정의합니다
type PositionSide string

const (
	LongPosition  PositionSide = "long"
	ShortPosition PositionSide = "short"
)

// Valid는 정의된 포지션 방향인지 확인합니다
func (s PositionSide) Valid() bool {
	return s == LongPosition || s == ShortPosition
}
