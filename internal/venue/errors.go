package venue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind는 어댑터 에러 분류입니다
type Kind int

const (
	KindConnection     Kind = iota + 1 // 전송 계층을 열거나 유지할 수 없음
	KindAuthentication                 // 로그인/서명 거부
	KindTimeout                        // 제한 시간 내 응답 없음
	KindProtocol                       // 잘못된 형식의 메시지
	KindVenue                          // 거래 장소가 돌려준 업무 에러
	KindRateLimit                      // 요청 한도 초과
	KindInvalidRequest                 // 전송 전 호출 인자 검증 실패
)

// String은 Kind의 문자열 표현을 반환합니다
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuthentication:
		return "authentication"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindVenue:
		return "venue"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidRequest:
		return "invalid_request"
	default:
		return "unknown"
	}
}

// errors.Is 비교용 센티넬 값들
var (
	ErrConnection     = &Error{Kind: KindConnection}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrTimeout        = &Error{Kind: KindTimeout}
	ErrProtocol       = &Error{Kind: KindProtocol}
	ErrVenue          = &Error{Kind: KindVenue}
	ErrRateLimit      = &Error{Kind: KindRateLimit}
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest}

	ErrNotConnected = errors.New("not connected")
	ErrMaxReconnect = errors.New("max reconnection attempts reached")
)

// Error는 어댑터가 호출 측에 돌려주는 유일한 에러 형태입니다
type Error struct {
	Kind       Kind
	Venue      string
	Op         string
	Code       int           // 거래 장소 에러 코드 (없으면 0)
	Message    string        // 거래 장소 에러 메시지
	RetryAfter time.Duration // RateLimit일 때 거래 장소가 알려준 대기 시간
	Err        error
}

// Error는 error 인터페이스를 구현합니다
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Venue != "" || e.Op != "" {
		msg = fmt.Sprintf("%s [%s, 작업: %s]", msg, e.Venue, e.Op)
	}
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (코드: %d)", msg, e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap은 내부 에러를 반환합니다 (errors.Is/As 지원을 위함)
func (e *Error) Unwrap() error {
	return e.Err
}

// Is는 같은 Kind의 센티넬과 일치하는지 확인합니다
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != 0 && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// NewError는 새로운 Error를 생성합니다
func NewError(kind Kind, venueName, op string, err error) *Error {
	return &Error{Kind: kind, Venue: venueName, Op: op, Err: err}
}

// ProtocolError는 형식 오류를 감싼 Error를 생성합니다
func ProtocolError(venueName, op string, format string, args ...any) *Error {
	return NewError(KindProtocol, venueName, op, fmt.Errorf(format, args...))
}

// KindOf는 에러 체인에서 Kind를 찾아 반환합니다
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRetryable은 호출 측이 재시도를 고려해도 되는 에러인지 반환합니다.
// 재연결 한도 초과는 인스턴스를 새로 만들어야 하므로 제외합니다.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrMaxReconnect) {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == KindRateLimit || kind == KindTimeout || kind == KindConnection
}

// FromContext는 컨텍스트 종료를 Timeout Error로 변환합니다
func FromContext(venueName, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(KindTimeout, venueName, op, err)
	}
	return NewError(KindConnection, venueName, op, err)
}
