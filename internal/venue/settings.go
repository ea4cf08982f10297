package venue

import (
	"time"

	"github.com/assist-by/venuelink/internal/domain"
)

// VenueSpec은 어댑터 하나를 만들기 위한 설정입니다
type VenueSpec struct {
	Name        string
	Kind        string
	Endpoint    string // REST는 base URL, 소켓은 host:port
	Credentials domain.Credentials

	// REST 설정
	Testnet        bool
	Timeout        time.Duration
	RecvWindow     time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// 소켓 설정
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	QueryTimeout         time.Duration
	SerializeQueries     bool
}
