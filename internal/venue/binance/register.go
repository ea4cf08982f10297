package binance

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/config"
	"github.com/assist-by/venuelink/internal/venue"
)

var _ venue.Adapter = (*Client)(nil)

// Register는 바이낸스 팩토리를 레지스트리에 등록합니다
func Register(reg *venue.Registry) {
	reg.Register(config.KindBinance, New)
}

// New는 설정으로부터 클라이언트를 생성합니다
func New(spec venue.VenueSpec, log *logrus.Entry) (venue.Adapter, error) {
	if spec.Credentials.APIKey == "" || spec.Credentials.APISecret == "" {
		return nil, fmt.Errorf("%s: API 키와 시크릿이 필요합니다", spec.Name)
	}

	opts := []ClientOption{
		WithName(spec.Name),
		WithLogger(log),
		WithTestnet(spec.Testnet),
	}
	if spec.Endpoint != "" {
		opts = append(opts, WithBaseURL(spec.Endpoint))
	}
	if spec.Timeout > 0 {
		opts = append(opts, WithTimeout(spec.Timeout))
	}
	if spec.RecvWindow > 0 {
		opts = append(opts, WithRecvWindow(spec.RecvWindow))
	}
	if spec.RateLimitRPS > 0 {
		opts = append(opts, WithRateLimit(spec.RateLimitRPS, spec.RateLimitBurst))
	}

	return NewClient(spec.Credentials, opts...), nil
}
