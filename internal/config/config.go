package config

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeTestnet Mode = "testnet"
	ModeLive    Mode = "live"
)

type Config struct {
	Mode          Mode                `yaml:"mode"`
	Symbol        string              `yaml:"symbol"`
	Exchange      ExchangeConfig      `yaml:"exchange"`
	Vault         VaultConfig         `yaml:"vault"`
	Journal       JournalConfig       `yaml:"journal"`
	Logging       LoggingConfig       `yaml:"logging"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ExchangeConfig struct {
	SpotBaseURL         string  `yaml:"spot_base_url"`
	FuturesBaseURL      string  `yaml:"futures_base_url"`
	RecvWindowMs        int64   `yaml:"recv_window_ms"`
	OrderTimeoutSec     int64   `yaml:"order_timeout_sec"`
	ReadTimeoutSec      int64   `yaml:"read_timeout_sec"`
	SellRetryAttempts   int     `yaml:"sell_retry_attempts"`
	SellRetryBackoffSec int64   `yaml:"sell_retry_backoff_sec"`
	MaxOrderNotional    Decimal `yaml:"max_order_notional"`
}

type VaultConfig struct {
	EnvFile         string `yaml:"env_file"`
	SessionTTLHours int64  `yaml:"session_ttl_hours"`
}

type JournalConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}

type ObservabilityConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := dec.Decode(&yaml.Node{}); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	c.Exchange.SpotBaseURL = strings.TrimSpace(c.Exchange.SpotBaseURL)
	c.Exchange.FuturesBaseURL = strings.TrimSpace(c.Exchange.FuturesBaseURL)
	c.Vault.EnvFile = strings.TrimSpace(c.Vault.EnvFile)
	c.Journal.Dir = strings.TrimSpace(c.Journal.Dir)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.File = strings.TrimSpace(c.Logging.File)
	c.Observability.Telegram.BotToken = strings.TrimSpace(c.Observability.Telegram.BotToken)
	c.Observability.Telegram.ChatID = strings.TrimSpace(c.Observability.Telegram.ChatID)
	c.Observability.Telegram.APIBaseURL = strings.TrimSpace(c.Observability.Telegram.APIBaseURL)
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeTestnet
	}
	if c.Symbol == "" {
		c.Symbol = "BTCUSDT"
	}
	if c.Exchange.RecvWindowMs == 0 {
		c.Exchange.RecvWindowMs = 5000
	}
	if c.Exchange.OrderTimeoutSec == 0 {
		c.Exchange.OrderTimeoutSec = 15
	}
	if c.Exchange.ReadTimeoutSec == 0 {
		c.Exchange.ReadTimeoutSec = 30
	}
	if c.Exchange.SellRetryAttempts == 0 {
		c.Exchange.SellRetryAttempts = 2
	}
	if c.Exchange.SellRetryBackoffSec == 0 {
		c.Exchange.SellRetryBackoffSec = 2
	}
	if c.Exchange.SpotBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.SpotBaseURL = "https://testnet.binance.vision"
		case ModeLive:
			c.Exchange.SpotBaseURL = "https://api.binance.com"
		}
	}
	if c.Exchange.FuturesBaseURL == "" {
		switch c.Mode {
		case ModeTestnet:
			c.Exchange.FuturesBaseURL = "https://testnet.binancefuture.com"
		case ModeLive:
			c.Exchange.FuturesBaseURL = "https://fapi.binance.com"
		}
	}
	if c.Vault.SessionTTLHours == 0 {
		c.Vault.SessionTTLHours = 24
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "state"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.File == "" {
		c.Logging.File = "logs/trader.log"
	}
	if c.Observability.Telegram.APIBaseURL == "" {
		c.Observability.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Observability.Telegram.TimeoutSec == 0 {
		c.Observability.Telegram.TimeoutSec = 10
	}
}

func (c Config) Validate() error {
	switch c.Mode {
	case ModeTestnet, ModeLive:
	default:
		return fmt.Errorf("mode must be testnet or live")
	}
	if !isValidSymbol(c.Symbol) {
		return fmt.Errorf("symbol must match [A-Z0-9], length 6..20")
	}
	if c.Exchange.RecvWindowMs < 1 || c.Exchange.RecvWindowMs > 60000 {
		return fmt.Errorf("exchange recv_window_ms must be between 1 and 60000")
	}
	if c.Exchange.OrderTimeoutSec < 1 || c.Exchange.OrderTimeoutSec > 120 {
		return fmt.Errorf("exchange order_timeout_sec must be between 1 and 120")
	}
	if c.Exchange.ReadTimeoutSec < 1 || c.Exchange.ReadTimeoutSec > 120 {
		return fmt.Errorf("exchange read_timeout_sec must be between 1 and 120")
	}
	if c.Exchange.SellRetryAttempts < 1 || c.Exchange.SellRetryAttempts > 5 {
		return fmt.Errorf("exchange sell_retry_attempts must be between 1 and 5")
	}
	if c.Exchange.SellRetryBackoffSec < 0 || c.Exchange.SellRetryBackoffSec > 60 {
		return fmt.Errorf("exchange sell_retry_backoff_sec must be between 0 and 60")
	}
	if c.Exchange.MaxOrderNotional.IsNegative() {
		return fmt.Errorf("exchange max_order_notional must not be negative")
	}
	if err := validateURL(c.Exchange.SpotBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange spot_base_url %v", err)
	}
	if err := validateURL(c.Exchange.FuturesBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("exchange futures_base_url %v", err)
	}
	if c.Vault.SessionTTLHours < 1 || c.Vault.SessionTTLHours > 168 {
		return fmt.Errorf("vault session_ttl_hours must be between 1 and 168")
	}
	if c.Observability.Telegram.Enabled {
		if c.Observability.Telegram.BotToken == "" {
			return fmt.Errorf("observability.telegram.bot_token is required when telegram enabled")
		}
		if c.Observability.Telegram.ChatID == "" {
			return fmt.Errorf("observability.telegram.chat_id is required when telegram enabled")
		}
		if c.Observability.Telegram.TimeoutSec < 1 || c.Observability.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("observability.telegram.timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Observability.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("observability.telegram.api_base_url %v", err)
		}
	}
	return nil
}

func isValidSymbol(v string) bool {
	if len(v) < 6 || len(v) > 20 {
		return false
	}
	for _, r := range v {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
