package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"ferrybook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App            AppConfig             `yaml:"app"`
	Database       DatabaseConfig        `yaml:"database"`
	Redis          RedisConfig           `yaml:"redis"`
	Backup         BackupConfig          `yaml:"backup"`
	Monitoring     MonitoringConfig      `yaml:"monitoring"`
	Logging        LoggingConfig         `yaml:"logging"`
	API            APIConfig             `yaml:"api"`
	Booking        BookingConfig         `yaml:"booking"`
	Sweeps         SweepConfig           `yaml:"sweeps"`
	Payment        PaymentConfig         `yaml:"payment"`
	Telegram       TelegramConfig        `yaml:"telegram"`
	RefundPolicies []models.RefundPolicy `yaml:"refund_policies"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderUserID string         `yaml:"header_user_id"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey binds an API key to the actor that requests made with it act as.
// User keys take the passenger id from HeaderUserID instead of ActorID.
type APIClientKey struct {
	Key       string `yaml:"key"`
	Name      string `yaml:"name"`
	ActorType string `yaml:"actor_type"`
	ActorID   int64  `yaml:"actor_id"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type BookingConfig struct {
	MaxBookingDays int           `yaml:"max_booking_days"`
	PaymentExpiry  time.Duration `yaml:"payment_expiry"`
}

type SweepConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type PaymentConfig struct {
	ServerKey  string `yaml:"server_key"`
	ClientKey  string `yaml:"client_key"`
	Production bool   `yaml:"production"`
	FinishURL  string `yaml:"finish_url"`
}

// Enabled reports whether a gateway can be constructed.
func (p PaymentConfig) Enabled() bool {
	return p.ServerKey != ""
}

type TelegramConfig struct {
	BotToken       string          `yaml:"bot_token"`
	OperatorChatID int64           `yaml:"operator_chat_id"`
	Debug          bool            `yaml:"debug"`
	Commands       bool            `yaml:"commands"`
	Staff          []TelegramStaff `yaml:"staff"`
}

// TelegramStaff maps a Telegram account onto the actor its bot commands run as.
type TelegramStaff struct {
	TelegramID int64  `yaml:"telegram_id"`
	Name       string `yaml:"name"`
	ActorType  string `yaml:"actor_type"`
	ActorID    int64  `yaml:"actor_id"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.OperatorChatID != 0
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Booking.MaxBookingDays < 1 {
		return errors.New("booking.max_booking_days must be positive")
	}
	if c.Sweeps.Enabled && c.Sweeps.Interval < time.Minute {
		return errors.New("sweeps.interval must be at least 1m")
	}

	if err := ValidateAPIKeys(c.API.Auth.APIKeys); err != nil {
		return err
	}
	if err := ValidateTelegramStaff(c.Telegram.Staff); err != nil {
		return err
	}
	return ValidateRefundPolicies(c.RefundPolicies)
}

// ValidateTelegramStaff rejects duplicate accounts and passenger actors; the
// bot is for harbour staff only.
func ValidateTelegramStaff(staff []TelegramStaff) error {
	seen := make(map[int64]bool)
	for _, s := range staff {
		if s.TelegramID == 0 {
			return fmt.Errorf("telegram staff '%s' has no telegram_id", s.Name)
		}
		if seen[s.TelegramID] {
			return fmt.Errorf("duplicate telegram staff id %d", s.TelegramID)
		}
		seen[s.TelegramID] = true
		actorType, err := models.ParseActorType(s.ActorType)
		if err != nil {
			return fmt.Errorf("telegram staff '%s': %w", s.Name, err)
		}
		if actorType == models.ActorUser {
			return fmt.Errorf("telegram staff '%s': user actors cannot use the bot", s.Name)
		}
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for '%s'", k.Name)
		}
		seen[k.Key] = true
		if _, err := models.ParseActorType(k.ActorType); err != nil {
			return fmt.Errorf("api key '%s': %w", k.Name, err)
		}
	}
	return nil
}

func ValidateRefundPolicies(policies []models.RefundPolicy) error {
	thresholds := make(map[int]bool)
	for _, p := range policies {
		if p.DaysBeforeDeparture < 0 {
			return fmt.Errorf("refund policy has negative days_before_departure %d", p.DaysBeforeDeparture)
		}
		if p.RefundPercentage < 0 || p.RefundPercentage > 100 {
			return fmt.Errorf("refund policy for %d days has percentage %d outside 0..100", p.DaysBeforeDeparture, p.RefundPercentage)
		}
		if p.MinFee < 0 || p.MaxFee < 0 || (p.MaxFee > 0 && p.MinFee > p.MaxFee) {
			return fmt.Errorf("refund policy for %d days has invalid fee bounds", p.DaysBeforeDeparture)
		}
		if p.IsActive && thresholds[p.DaysBeforeDeparture] {
			return fmt.Errorf("duplicate active refund policy for %d days", p.DaysBeforeDeparture)
		}
		if p.IsActive {
			thresholds[p.DaysBeforeDeparture] = true
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ferrybook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadTimeout == 0 {
		c.API.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.API.HTTP.WriteTimeout == 0 {
		c.API.HTTP.WriteTimeout = 15 * time.Second
	}
	if c.API.HTTP.ShutdownTimeout == 0 {
		c.API.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderUserID == "" {
		c.API.Auth.HeaderUserID = "x-user-id"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}

	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if c.Booking.PaymentExpiry == 0 {
		c.Booking.PaymentExpiry = models.DefaultPaymentExpiry
	}
	if c.Sweeps.Interval == 0 {
		c.Sweeps.Interval = models.DefaultSweepInterval
	}
	if c.Sweeps.LockTTL == 0 {
		c.Sweeps.LockTTL = models.DefaultSweepLockTTL
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "./backups"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
}
