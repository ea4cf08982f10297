package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/assist-by/venuelink/internal/domain"
	"github.com/assist-by/venuelink/internal/venue"
)

// VenuesFile은 여러 거래 장소를 정의하는 YAML 파일 형식입니다.
// 비밀값은 파일에 두지 않고 환경변수 이름만 적습니다.
type VenuesFile struct {
	Venues []VenueEntry `yaml:"venues"`
}

type VenueEntry struct {
	Name         string           `yaml:"name"`
	Kind         string           `yaml:"kind"`
	Endpoint     string           `yaml:"endpoint"`
	Testnet      bool             `yaml:"testnet"`
	Timeout      time.Duration    `yaml:"timeout"`
	RecvWindow   time.Duration    `yaml:"recv_window"`
	QueryTimeout time.Duration    `yaml:"query_timeout"`
	Serialize    bool             `yaml:"serialize_queries"`
	RateLimit    RateLimitEntry   `yaml:"rate_limit"`
	Reconnect    ReconnectEntry   `yaml:"reconnect"`
	Credentials  CredentialsEntry `yaml:"credentials"`
}

type RateLimitEntry struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ReconnectEntry struct {
	Interval    time.Duration `yaml:"interval"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type CredentialsEntry struct {
	APIKeyEnv    string `yaml:"api_key_env"`
	APISecretEnv string `yaml:"api_secret_env"`
	LoginEnv     string `yaml:"login_env"`
	PasswordEnv  string `yaml:"password_env"`
	Server       string `yaml:"server"`
}

// LoadVenues는 YAML 파일에서 거래 장소 목록을 읽습니다
func LoadVenues(path string) ([]venue.VenueSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("거래 장소 파일 읽기 실패: %w", err)
	}
	return ParseVenues(data)
}

// ParseVenues는 YAML 내용을 VenueSpec 목록으로 변환하고 검증합니다
func ParseVenues(data []byte) ([]venue.VenueSpec, error) {
	var file VenuesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("거래 장소 파일 파싱 실패: %w", err)
	}
	if len(file.Venues) == 0 {
		return nil, fmt.Errorf("거래 장소 파일에 venues 항목이 없습니다")
	}

	seen := make(map[string]bool)
	specs := make([]venue.VenueSpec, 0, len(file.Venues))
	for i, v := range file.Venues {
		if v.Name == "" {
			return nil, fmt.Errorf("venues[%d]: name이 필요합니다", i)
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("venues[%d]: 중복된 이름 %q", i, v.Name)
		}
		seen[v.Name] = true

		spec, err := v.toSpec()
		if err != nil {
			return nil, fmt.Errorf("venues[%d] %s: %w", i, v.Name, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (v VenueEntry) toSpec() (venue.VenueSpec, error) {
	spec := venue.VenueSpec{
		Name:     v.Name,
		Kind:     v.Kind,
		Endpoint: v.Endpoint,
		Credentials: domain.Credentials{
			APIKey:    os.Getenv(v.Credentials.APIKeyEnv),
			APISecret: os.Getenv(v.Credentials.APISecretEnv),
			LoginID:   os.Getenv(v.Credentials.LoginEnv),
			Password:  os.Getenv(v.Credentials.PasswordEnv),
			Server:    v.Credentials.Server,
		},
		Testnet:              v.Testnet,
		Timeout:              v.Timeout,
		RecvWindow:           v.RecvWindow,
		RateLimitRPS:         v.RateLimit.RPS,
		RateLimitBurst:       v.RateLimit.Burst,
		ReconnectInterval:    v.Reconnect.Interval,
		MaxReconnectAttempts: v.Reconnect.MaxAttempts,
		QueryTimeout:         v.QueryTimeout,
		SerializeQueries:     v.Serialize,
	}

	switch v.Kind {
	case KindBinance:
		if spec.Credentials.APIKey == "" || spec.Credentials.APISecret == "" {
			return spec, fmt.Errorf("api_key_env/api_secret_env 환경변수가 비어 있습니다")
		}
	case KindTerminal:
		if v.Endpoint == "" {
			return spec, fmt.Errorf("endpoint(host:port)가 필요합니다")
		}
		if spec.Credentials.LoginID == "" {
			return spec, fmt.Errorf("login_env 환경변수가 비어 있습니다")
		}
	default:
		return spec, fmt.Errorf("알 수 없는 kind %q", v.Kind)
	}
	return spec, nil
}
