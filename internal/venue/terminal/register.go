package terminal

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/config"
	"github.com/assist-by/venuelink/internal/venue"
)

var _ venue.Adapter = (*Client)(nil)

// Register는 터미널 팩토리를 레지스트리에 등록합니다
func Register(reg *venue.Registry) {
	reg.Register(config.KindTerminal, New)
}

// New는 설정으로부터 클라이언트를 만들고 연결 루프를 시작합니다.
// 루프는 Close로만 멈춥니다.
func New(spec venue.VenueSpec, log *logrus.Entry) (venue.Adapter, error) {
	if spec.Endpoint == "" {
		return nil, fmt.Errorf("%s: 터미널 주소가 필요합니다", spec.Name)
	}

	opts := []ClientOption{
		WithName(spec.Name),
		WithAddr(spec.Endpoint),
		WithLogger(log),
		WithSerializedQueries(spec.SerializeQueries),
	}
	if spec.ReconnectInterval > 0 && spec.MaxReconnectAttempts > 0 {
		opts = append(opts, WithReconnect(spec.ReconnectInterval, spec.MaxReconnectAttempts))
	}
	if spec.QueryTimeout > 0 {
		opts = append(opts, WithQueryTimeout(spec.QueryTimeout))
	}

	c := NewClient(spec.Credentials, opts...)
	if err := c.Start(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}
