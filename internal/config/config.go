package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// 거래 장소 종류
const (
	KindBinance  = "binance"
	KindTerminal = "terminal"
)

type Config struct {
	// 로그 설정
	Log struct {
		Level      string `envconfig:"LOG_LEVEL" default:"info"`
		Format     string `envconfig:"LOG_FORMAT" default:"text"`
		File       string `envconfig:"LOG_FILE"`
		MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
		MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
		MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"30"`
	}

	// 바이낸스 API 설정 (API 키가 없으면 비활성)
	Binance struct {
		APIKey         string        `envconfig:"BINANCE_API_KEY"`
		SecretKey      string        `envconfig:"BINANCE_SECRET_KEY"`
		BaseURL        string        `envconfig:"BINANCE_BASE_URL"`
		UseTestnet     bool          `envconfig:"BINANCE_USE_TESTNET" default:"false"`
		Timeout        time.Duration `envconfig:"BINANCE_TIMEOUT" default:"10s"`
		RecvWindow     time.Duration `envconfig:"BINANCE_RECV_WINDOW" default:"5s"`
		RateLimitRPS   float64       `envconfig:"BINANCE_RATE_LIMIT_RPS" default:"10"`
		RateLimitBurst int           `envconfig:"BINANCE_RATE_LIMIT_BURST" default:"20"`
	}

	// 브로커 터미널 소켓 설정 (주소가 없으면 비활성)
	Terminal struct {
		Addr                 string        `envconfig:"TERMINAL_ADDR"`
		Login                string        `envconfig:"TERMINAL_LOGIN"`
		Password             string        `envconfig:"TERMINAL_PASSWORD"`
		Server               string        `envconfig:"TERMINAL_SERVER"`
		ReconnectInterval    time.Duration `envconfig:"TERMINAL_RECONNECT_INTERVAL" default:"5s"`
		MaxReconnectAttempts int           `envconfig:"TERMINAL_MAX_RECONNECT_ATTEMPTS" default:"10"`
		QueryTimeout         time.Duration `envconfig:"TERMINAL_QUERY_TIMEOUT" default:"1s"`
		SerializeQueries     bool          `envconfig:"TERMINAL_SERIALIZE_QUERIES" default:"false"`
	}

	// 애플리케이션 설정
	App struct {
		VenuesFile   string        `envconfig:"VENUES_FILE"`
		PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"1m"`
	}
}

// ValidateConfig는 설정이 유효한지 확인합니다.
func ValidateConfig(cfg *Config) error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL이 올바르지 않습니다: %w", err)
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT은 text 또는 json이어야 합니다")
	}

	if cfg.Binance.APIKey != "" && cfg.Binance.SecretKey == "" {
		return fmt.Errorf("BINANCE_SECRET_KEY가 필요합니다")
	}

	if cfg.Binance.RateLimitRPS < 0 || cfg.Binance.RateLimitBurst < 0 {
		return fmt.Errorf("BINANCE_RATE_LIMIT 값은 0 이상이어야 합니다")
	}

	if cfg.Terminal.MaxReconnectAttempts < 1 {
		return fmt.Errorf("TERMINAL_MAX_RECONNECT_ATTEMPTS는 1 이상이어야 합니다")
	}

	if cfg.Terminal.QueryTimeout <= 0 {
		return fmt.Errorf("TERMINAL_QUERY_TIMEOUT은 0보다 커야 합니다")
	}

	if cfg.App.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL은 1초 이상이어야 합니다")
	}

	return nil
}

// LoadConfig는 환경변수에서 설정을 로드합니다.
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (없으면 환경변수만 사용)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env 파일 로드 실패: %w", err)
	}

	var cfg Config
	// 환경변수를 구조체로 파싱
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("환경변수 처리 실패: %w", err)
	}

	// 설정값 검증
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("설정값 검증 실패: %w", err)
	}

	return &cfg, nil
}

// VenueSpecs는 사용할 거래 장소 목록을 반환합니다.
// VENUES_FILE이 있으면 파일을, 없으면 환경변수로 정의된 거래 장소를 사용합니다.
func (c *Config) VenueSpecs() ([]venue.VenueSpec, error) {
	if c.App.VenuesFile != "" {
		return LoadVenues(c.App.VenuesFile)
	}

	var specs []venue.VenueSpec
	if c.Binance.APIKey != "" {
		specs = append(specs, venue.VenueSpec{
			Name:     KindBinance,
			Kind:     KindBinance,
			Endpoint: c.Binance.BaseURL,
			Credentials: domain.Credentials{
				APIKey:    c.Binance.APIKey,
				APISecret: c.Binance.SecretKey,
			},
			Testnet:        c.Binance.UseTestnet,
			Timeout:        c.Binance.Timeout,
			RecvWindow:     c.Binance.RecvWindow,
			RateLimitRPS:   c.Binance.RateLimitRPS,
			RateLimitBurst: c.Binance.RateLimitBurst,
		})
	}
	if c.Terminal.Addr != "" {
		specs = append(specs, venue.VenueSpec{
			Name:     KindTerminal,
			Kind:     KindTerminal,
			Endpoint: c.Terminal.Addr,
			Credentials: domain.Credentials{
				LoginID:  c.Terminal.Login,
				Password: c.Terminal.Password,
				Server:   c.Terminal.Server,
			},
			ReconnectInterval:    c.Terminal.ReconnectInterval,
			MaxReconnectAttempts: c.Terminal.MaxReconnectAttempts,
			QueryTimeout:         c.Terminal.QueryTimeout,
			SerializeQueries:     c.Terminal.SerializeQueries,
		})
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("설정된 거래 장소가 없습니다 (BINANCE_API_KEY, TERMINAL_ADDR 또는 VENUES_FILE 필요)")
	}
	return specs, nil
}
