// Package binance는 서명된 REST 호출로 바이낸스 선물 API를 사용하는 어댑터입니다.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/logger"
	"github.com/assist-by/venuelink/internal/venue"
)

const (
	mainnetURL = "https://fapi.binance.com"
	testnetURL = "https://testnet.binancefuture.com"

	apiKeyHeader = "X-MBX-APIKEY"
)

// Client는 바이낸스 API 클라이언트를 구현합니다.
// 서버 시간 오프셋 외에는 호출 간 상태가 없으므로 동시 호출에 안전합니다.
type Client struct {
	name       string
	apiKey     string
	secretKey  string
	baseURL    string
	timeout    time.Duration
	recvWindow time.Duration
	http       *resty.Client
	limiter    *rate.Limiter
	log        *logrus.Entry
	now        func() time.Time

	serverTimeOffset int64 // 서버 시간과의 차이를 저장 (ms)
	mu               sync.RWMutex
}

// ClientOption은 클라이언트 생성 옵션을 정의합니다
type ClientOption func(*Client)

// WithName은 로그와 에러에 쓰일 거래 장소 이름을 설정합니다
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

// WithTimeout은 HTTP 클라이언트의 타임아웃을 설정합니다
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithBaseURL은 기본 URL을 설정합니다
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTestnet은 테스트넷 사용 여부를 설정합니다
func WithTestnet(useTestnet bool) ClientOption {
	return func(c *Client) {
		if useTestnet {
			c.baseURL = testnetURL
		} else {
			c.baseURL = mainnetURL
		}
	}
}

// WithRecvWindow는 서명 요청의 유효 시간을 설정합니다
func WithRecvWindow(window time.Duration) ClientOption {
	return func(c *Client) {
		c.recvWindow = window
	}
}

// WithRateLimit은 호출 전에 기다리는 클라이언트 측 요청 제한을 설정합니다.
// 재시도가 아니라 호출 간격 조절입니다.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger는 로거를 설정합니다
func WithLogger(log *logrus.Entry) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithClock은 타임스탬프에 사용할 시계를 설정합니다
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient는 새로운 바이낸스 API 클라이언트를 생성합니다
func NewClient(creds domain.Credentials, opts ...ClientOption) *Client {
	c := &Client{
		name:       "binance",
		apiKey:     creds.APIKey,
		secretKey:  creds.APISecret,
		baseURL:    mainnetURL, // 기본값은 선물 거래소
		timeout:    10 * time.Second,
		recvWindow: 5 * time.Second,
		log:        logger.Discard(),
		now:        time.Now,
	}

	// 옵션 적용
	for _, opt := range opts {
		opt(c)
	}

	// 재시도는 호출 측 책임이므로 resty 재시도는 끕니다
	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")

	return c
}

// Name은 거래 장소 이름을 반환합니다
func (c *Client) Name() string {
	return c.name
}

// Close는 유휴 연결을 정리합니다
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// doRequest는 HTTP 요청을 실행하고 결과를 반환합니다
func (c *Client) doRequest(ctx context.Context, op, method, endpoint string, params url.Values, needSign bool) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, venue.FromContext(c.name, op, err)
		}
	}

	if params == nil {
		params = url.Values{}
	}

	// 타임스탬프 추가 후 정렬된 파라미터 문자열에 서명
	query := params.Encode()
	if needSign {
		params.Set("timestamp", strconv.FormatInt(c.getServerTime(), 10))
		params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
		query = params.Encode()
		query += "&signature=" + c.sign(query)
	}

	reqURL := endpoint
	if query != "" {
		reqURL += "?" + query
	}

	req := c.http.R().SetContext(ctx)
	if needSign {
		req.SetHeader(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := req.Execute(method, reqURL)
	if err != nil {
		return nil, c.transportError(ctx, op, err)
	}

	// 서명과 키는 로그에 남기지 않습니다
	c.log.WithFields(logrus.Fields{
		"op":      op,
		"method":  method,
		"path":    endpoint,
		"status":  resp.StatusCode(),
		"elapsed": time.Since(start).Round(time.Millisecond),
	}).Debug("binance request")

	if resp.StatusCode() != http.StatusOK {
		return nil, classify(c.name, op, resp.StatusCode(), resp.Header(), resp.Body())
	}

	return resp.Body(), nil
}

func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return venue.FromContext(c.name, op, ctxErr)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return venue.NewError(venue.KindTimeout, c.name, op, err)
	}
	return venue.NewError(venue.KindConnection, c.name, op, err)
}

// sign은 요청에 대한 서명을 생성합니다
func (c *Client) sign(payload string) string {
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// getServerTime은 현재 서버 시간을 반환합니다
func (c *Client) getServerTime() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().UnixMilli() + c.serverTimeOffset
}

// GetServerTime은 서버 시간을 조회합니다
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	resp, err := c.doRequest(ctx, "GetServerTime", http.MethodGet, "/fapi/v1/time", nil, false)
	if err != nil {
		return time.Time{}, err
	}

	var result struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return time.Time{}, venue.ProtocolError(c.name, "GetServerTime", "서버 시간 파싱 실패: %w", err)
	}

	return time.UnixMilli(result.ServerTime), nil
}

// SyncTime은 바이낸스 서버와 시간을 동기화합니다
func (c *Client) SyncTime(ctx context.Context) error {
	serverTime, err := c.GetServerTime(ctx)
	if err != nil {
		return fmt.Errorf("서버 시간 조회 실패: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverTimeOffset = serverTime.UnixMilli() - c.now().UnixMilli()
	return nil
}
