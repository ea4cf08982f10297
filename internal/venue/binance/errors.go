package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/assist-by/venuelink/internal/venue"
)

// 바이낸스 에러 코드
const (
	codeTooManyRequests = -1003
	codeInvalidSig      = -1022
	codeUnknownOrder    = -2011 // 이미 취소/체결된 주문 취소 시
	codeBadAPIKeyFormat = -2014
	codeRejectedAPIKey  = -2015
)

var errSymbolRequired = errors.New("symbol is required")

// classify는 200이 아닌 응답을 에러 종류로 분류합니다
func classify(venueName, op string, status int, header http.Header, body []byte) *venue.Error {
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"msg"`
	}
	structured := json.Unmarshal(body, &apiErr) == nil && (apiErr.Code != 0 || apiErr.Message != "")

	e := &venue.Error{
		Venue:   venueName,
		Op:      op,
		Code:    apiErr.Code,
		Message: apiErr.Message,
	}

	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot || apiErr.Code == codeTooManyRequests:
		e.Kind = venue.KindRateLimit
		e.RetryAfter = parseRetryAfter(header.Get("Retry-After"))
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		apiErr.Code == codeInvalidSig || apiErr.Code == codeBadAPIKeyFormat || apiErr.Code == codeRejectedAPIKey:
		e.Kind = venue.KindAuthentication
	case status >= http.StatusInternalServerError:
		e.Kind = venue.KindConnection
		if e.Message == "" {
			e.Message = fmt.Sprintf("HTTP %d", status)
		}
	case structured:
		e.Kind = venue.KindVenue
	default:
		e.Kind = venue.KindProtocol
		e.Message = fmt.Sprintf("HTTP %d: %s", status, truncate(string(body), 200))
	}
	return e
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
