package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env                string        `mapstructure:"APP_ENV"`
	HTTPAddr           string        `mapstructure:"HTTP_ADDR"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	JWTExpiresIn       time.Duration `mapstructure:"JWT_EXPIRES_IN"`
	CookieExpiresDays  int           `mapstructure:"JWT_COOKIE_EXPIRES_IN"`
	BcryptCost         int           `mapstructure:"BCRYPT_COST"`
	HashWorkers        int           `mapstructure:"HASH_WORKERS"`
	OTPExpiryMinutes   int           `mapstructure:"OTP_EXPIRY_MINUTES"`
	OTPCleanupCron     string        `mapstructure:"OTP_CLEANUP_CRON"`
	RateLimitWindow    time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitMax       int           `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitCapacity  int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	DependencyTimeout  time.Duration `mapstructure:"DEPENDENCY_TIMEOUT"`
	CORSOrigins        string        `mapstructure:"CORS_ORIGINS"`
	MetricsEnabled     bool          `mapstructure:"METRICS_ENABLED"`
	Mail               MailConfig    `mapstructure:",squash"`
	Log                LogConfig     `mapstructure:",squash"`
}

type MailConfig struct {
	Host     string `mapstructure:"SMTP_HOST"`
	Port     int    `mapstructure:"SMTP_PORT"`
	Username string `mapstructure:"SMTP_USERNAME"`
	Password string `mapstructure:"SMTP_PASSWORD"`
	From     string `mapstructure:"MAIL_FROM"`
}

// Enabled reports whether enough is set to talk to an SMTP relay.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.Port != 0 && strings.TrimSpace(m.From) != ""
}

type LogConfig struct {
	File      string `mapstructure:"LOG_FILE"`
	Level     string `mapstructure:"LOG_LEVEL"`
	FileCount int    `mapstructure:"LOG_FILE_COUNT"`
	FileSize  int    `mapstructure:"LOG_FILE_SIZE"`
	KeepDays  int    `mapstructure:"LOG_KEEP_DAYS"`
	Console   bool   `mapstructure:"LOG_CONSOLE"`
}

var envKeys = []string{
	"APP_ENV", "HTTP_ADDR", "DATABASE_URL", "JWT_SECRET", "JWT_EXPIRES_IN",
	"JWT_COOKIE_EXPIRES_IN", "BCRYPT_COST", "HASH_WORKERS", "OTP_EXPIRY_MINUTES",
	"OTP_CLEANUP_CRON", "RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX", "RATE_LIMIT_CAPACITY",
	"DEPENDENCY_TIMEOUT", "CORS_ORIGINS", "METRICS_ENABLED",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "MAIL_FROM",
	"LOG_FILE", "LOG_LEVEL", "LOG_FILE_COUNT", "LOG_FILE_SIZE", "LOG_KEEP_DAYS", "LOG_CONSOLE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":4000")
	v.SetDefault("JWT_EXPIRES_IN", "24h")
	v.SetDefault("JWT_COOKIE_EXPIRES_IN", 3)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASH_WORKERS", runtime.GOMAXPROCS(0))
	v.SetDefault("OTP_EXPIRY_MINUTES", 10)
	v.SetDefault("OTP_CLEANUP_CRON", "*/10 * * * *")
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_MAX", 5)
	v.SetDefault("RATE_LIMIT_CAPACITY", 10000)
	v.SetDefault("DEPENDENCY_TIMEOUT", "5s")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_CONSOLE", true)
}

// Load reads the optional config file at path (any format viper knows), then
// lets environment variables override it. An empty path means env only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows; bind the rest so
	// Unmarshal sees them.
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.JWTExpiresIn <= 0 {
		return errors.New("config: JWT_EXPIRES_IN must be positive")
	}
	if c.CookieExpiresDays <= 0 {
		return errors.New("config: JWT_COOKIE_EXPIRES_IN must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.OTPExpiryMinutes <= 0 {
		return errors.New("config: OTP_EXPIRY_MINUTES must be positive")
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMax <= 0 {
		return errors.New("config: RATE_LIMIT_WINDOW and RATE_LIMIT_MAX must be positive")
	}
	if c.DependencyTimeout <= 0 {
		return errors.New("config: DEPENDENCY_TIMEOUT must be positive")
	}
	if c.IsProduction() && !c.Mail.Enabled() {
		return errors.New("config: SMTP_HOST, SMTP_PORT and MAIL_FROM are required when APP_ENV=production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) OTPExpiry() time.Duration {
	return time.Duration(c.OTPExpiryMinutes) * time.Minute
}

func (c *Config) CookieTTL() time.Duration {
	return time.Duration(c.CookieExpiresDays) * 24 * time.Hour
}

func (c *Config) CORSOriginList() []string {
	if c.CORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
