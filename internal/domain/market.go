package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData는 심볼 시세 스냅샷입니다
type MarketData struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Volume    decimal.Decimal
	Timestamp time.Time
}

// Crossed는 bid, ask가 모두 0이 아닌데 bid > ask 인지 반환합니다.
// 순간적으로 발생할 수 있으므로 호출 측은 경고만 남깁니다.
func (m MarketData) Crossed() bool {
	if m.Bid.IsZero() || m.Ask.IsZero() {
		return false
	}
	return m.Bid.GreaterThan(m.Ask)
}
