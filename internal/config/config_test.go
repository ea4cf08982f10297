package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromEnv(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	require.NoError(t, envconfig.Process("", &cfg))
	return &cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadFromEnv(t)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10*time.Second, cfg.Binance.Timeout)
	assert.Equal(t, 10, cfg.Terminal.MaxReconnectAttempts)
	assert.Equal(t, time.Second, cfg.Terminal.QueryTimeout)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"잘못된 로그 레벨", func(c *Config) { c.Log.Level = "loud" }},
		{"잘못된 로그 포맷", func(c *Config) { c.Log.Format = "xml" }},
		{"시크릿 없는 API 키", func(c *Config) { c.Binance.APIKey = "key" }},
		{"재연결 횟수 0", func(c *Config) { c.Terminal.MaxReconnectAttempts = 0 }},
		{"쿼리 타임아웃 0", func(c *Config) { c.Terminal.QueryTimeout = 0 }},
		{"짧은 폴링 주기", func(c *Config) { c.App.PollInterval = time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadFromEnv(t)
			tt.mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}

func TestVenueSpecs_FromEnv(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_SECRET_KEY", "secret")
	t.Setenv("TERMINAL_ADDR", "127.0.0.1:7788")
	t.Setenv("TERMINAL_LOGIN", "1001")
	t.Setenv("TERMINAL_PASSWORD", "pw")

	cfg := loadFromEnv(t)
	specs, err := cfg.VenueSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, KindBinance, specs[0].Kind)
	assert.Equal(t, "secret", specs[0].Credentials.APISecret)
	assert.Equal(t, KindTerminal, specs[1].Kind)
	assert.Equal(t, "1001", specs[1].Credentials.LoginID)
	assert.Equal(t, 10, specs[1].MaxReconnectAttempts)
}

func TestVenueSpecs_NoneConfigured(t *testing.T) {
	cfg := loadFromEnv(t)
	_, err := cfg.VenueSpecs()
	assert.Error(t, err)
}

const venuesYAML = `
venues:
  - name: binance-main
    kind: binance
    endpoint: https://testnet.binancefuture.com
    timeout: 5s
    rate_limit: {rps: 5, burst: 10}
    credentials:
      api_key_env: TEST_BN_KEY
      api_secret_env: TEST_BN_SECRET
  - name: terminal-demo
    kind: terminal
    endpoint: 127.0.0.1:7788
    query_timeout: 2s
    reconnect: {interval: 3s, max_attempts: 4}
    credentials:
      login_env: TEST_TERM_LOGIN
      password_env: TEST_TERM_PASSWORD
      server: Demo-Server
`

func TestLoadVenues(t *testing.T) {
	t.Setenv("TEST_BN_KEY", "bn-key")
	t.Setenv("TEST_BN_SECRET", "bn-secret")
	t.Setenv("TEST_TERM_LOGIN", "777")
	t.Setenv("TEST_TERM_PASSWORD", "pw")

	path := filepath.Join(t.TempDir(), "venues.yaml")
	require.NoError(t, os.WriteFile(path, []byte(venuesYAML), 0o600))

	specs, err := LoadVenues(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)

	bn := specs[0]
	assert.Equal(t, "binance-main", bn.Name)
	assert.Equal(t, 5*time.Second, bn.Timeout)
	assert.Equal(t, 5.0, bn.RateLimitRPS)
	assert.Equal(t, "bn-secret", bn.Credentials.APISecret)

	term := specs[1]
	assert.Equal(t, "127.0.0.1:7788", term.Endpoint)
	assert.Equal(t, 3*time.Second, term.ReconnectInterval)
	assert.Equal(t, 4, term.MaxReconnectAttempts)
	assert.Equal(t, 2*time.Second, term.QueryTimeout)
	assert.Equal(t, "Demo-Server", term.Credentials.Server)
}

func TestParseVenues_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"빈 목록", "venues: []"},
		{"알 수 없는 kind", "venues:\n  - {name: x, kind: ftx}"},
		{"중복 이름", "venues:\n  - {name: a, kind: terminal, endpoint: 'h:1'}\n  - {name: a, kind: terminal, endpoint: 'h:1'}"},
		{"키 환경변수 없음", "venues:\n  - {name: b, kind: binance}"},
	}

	t.Setenv("UNUSED", "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVenues([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
