package venue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal은 거래소가 문자열로 보낸 가격/수량을 손실 없이 변환합니다.
// 빈 문자열이나 숫자가 아닌 값은 형식 오류입니다.
func ParseDecimal(field, raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("field %s: empty number", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %s: invalid number %q: %w", field, raw, err)
	}
	return d, nil
}

// ParseOptionalDecimal은 빈 문자열을 0으로 취급합니다
func ParseOptionalDecimal(field, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	return ParseDecimal(field, raw)
}

// DecimalFromNumber는 UseNumber로 디코딩한 JSON 숫자를 변환합니다
func DecimalFromNumber(field string, n json.Number) (decimal.Decimal, error) {
	return ParseDecimal(field, n.String())
}

// DecimalParser는 여러 필드를 연달아 변환하면서 첫 번째 에러만 기억합니다
type DecimalParser struct {
	err error
}

// Required는 필수 필드를 변환합니다
func (p *DecimalParser) Required(field, raw string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	d, err := ParseDecimal(field, raw)
	if err != nil {
		p.err = err
	}
	return d
}

// Optional은 비어 있을 수 있는 필드를 변환합니다
func (p *DecimalParser) Optional(field, raw string) decimal.Decimal {
	if p.err != nil {
		return decimal.Zero
	}
	d, err := ParseOptionalDecimal(field, raw)
	if err != nil {
		p.err = err
	}
	return d
}

// Number는 json.Number 필드를 변환합니다. 빈 값은 0입니다.
func (p *DecimalParser) Number(field string, n json.Number) decimal.Decimal {
	return p.Optional(field, n.String())
}

// Err는 처음 발생한 변환 에러를 반환합니다
func (p *DecimalParser) Err() error {
	return p.err
}
