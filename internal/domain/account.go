package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultBalanceTolerance는 total == available + frozen 검사 허용 오차입니다
var DefaultBalanceTolerance = decimal.New(1, -8)

// Balance는 통화별 잔고를 표현합니다
type Balance struct {
	Currency     string          // 통화 (예: USDT, USD)
	Available    decimal.Decimal // 사용 가능 잔고
	Frozen       decimal.Decimal // 주문/증거금에 묶인 잔고
	Total        decimal.Decimal // 총 잔고
	Inconsistent bool            // total != available + frozen 이면 true
}

// NewBalance는 불변식을 검사한 Balance를 생성합니다.
// 위반된 값도 버리지 않고 Inconsistent로 표시해서 돌려줍니다.
func NewBalance(currency string, available, frozen, total decimal.Decimal) (Balance, *IntegrityError) {
	b := Balance{
		Currency:  currency,
		Available: available,
		Frozen:    frozen,
		Total:     total,
	}
	ierr := b.Check(DefaultBalanceTolerance)
	b.Inconsistent = ierr != nil
	return b, ierr
}

// Check는 |total - (available + frozen)| < eps 인지 확인합니다
func (b Balance) Check(eps decimal.Decimal) *IntegrityError {
	diff := b.Total.Sub(b.Available.Add(b.Frozen)).Abs()
	if diff.LessThan(eps) {
		return nil
	}
	return &IntegrityError{
		Entity:   "balance",
		Key:      b.Currency,
		Expected: b.Available.Add(b.Frozen),
		Actual:   b.Total,
	}
}

// IntegrityError는 거래소가 보낸 값들이 서로 맞지 않을 때의 경고입니다.
// 호출 실패로 취급하지 않습니다.
type IntegrityError struct {
	Entity   string
	Key      string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

// Error는 error 인터페이스를 구현합니다
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s %s integrity violation: expected %s, got %s",
		e.Entity, e.Key, e.Expected, e.Actual)
}

// Credentials는 어댑터 생성 시 주입되는 인증 정보입니다. 생성 후 변경하지 않습니다.
type Credentials struct {
	APIKey    string
	APISecret string
	LoginID   string
	Password  string
	Server    string
}

// Redacted는 비밀값을 가린 출력용 문자열을 반환합니다
func (c Credentials) Redacted() string {
	return fmt.Sprintf("Credentials{APIKey:%s LoginID:%s Server:%s APISecret:%s Password:%s}",
		maskKey(c.APIKey), c.LoginID, c.Server, mask(c.APISecret), mask(c.Password))
}

// String은 fmt 출력 시 비밀값이 노출되지 않도록 합니다
func (c Credentials) String() string { return c.Redacted() }

// GoString은 %#v 출력에서도 비밀값을 가립니다
func (c Credentials) GoString() string { return c.Redacted() }

// Format은 %+v 등 모든 verb에서 Redacted를 사용하게 합니다
func (c Credentials) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(c.Redacted()))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// API 키는 앞 4자리만 남깁니다
func maskKey(s string) string {
	if len(s) <= 4 {
		return mask(s)
	}
	return s[:4] + "***"
}
