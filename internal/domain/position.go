package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position은 포지션 스냅샷입니다
type Position struct {
	Symbol           string
	Side             PositionSide    // 거래소의 부호 있는 수량에서 파생
	Amount           decimal.Decimal // 항상 절댓값
	EntryPrice       decimal.Decimal
	Leverage         decimal.Decimal
	LiquidationPrice decimal.Decimal
	Margin           decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	RealizedPnL      decimal.Decimal
}

// NewPosition은 부호 있는 수량으로부터 방향과 절댓값을 계산합니다.
// 음수면 숏, 그 외에는 롱입니다.
func NewPosition(symbol string, signedAmount decimal.Decimal) Position {
	side := LongPosition
	if signedAmount.IsNegative() {
		side = ShortPosition
	}
	return Position{
		Symbol: symbol,
		Side:   side,
		Amount: signedAmount.Abs(),
	}
}

// Trade는 체결 내역입니다. 한 번 수신되면 변경하지 않습니다.
type Trade struct {
	ID          string
	OrderID     string
	Symbol      string
	Side        OrderSide
	Price       decimal.Decimal
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	FeeCurrency string
	Timestamp   time.Time
}

// TradeQuery는 체결 내역 조회 조건입니다. 0 값은 제한 없음을 뜻합니다.
type TradeQuery struct {
	Symbol string
	Start  time.Time
	End    time.Time
}
