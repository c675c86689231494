package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port            string        `yaml:"port" env:"SERVER_PORT"`
		Mode            string        `yaml:"mode" env:"SERVER_MODE"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	Database struct {
		Driver          string `yaml:"driver" env:"DB_DRIVER"`
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
		MigrationsDir   string `yaml:"migrations_dir" env:"DB_MIGRATIONS_DIR"`
	} `yaml:"database"`

	// JWT signs operator access tokens.
	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	// Ticket controls issuance and the signed payload carried by each QR code.
	Ticket struct {
		TokenSecret  string        `yaml:"token_secret" env:"TICKET_TOKEN_SECRET"`
		TokenTTL     time.Duration `yaml:"token_ttl" env:"TICKET_TOKEN_TTL"`
		Issuer       string        `yaml:"issuer" env:"TICKET_ISSUER"`
		DefaultEvent string        `yaml:"default_event" env:"TICKET_DEFAULT_EVENT"`
		DefaultType  string        `yaml:"default_type" env:"TICKET_DEFAULT_TYPE"`
	} `yaml:"ticket"`

	Mail struct {
		Driver             string        `yaml:"driver" env:"MAIL_DRIVER"` // smtp | log
		Host               string        `yaml:"host" env:"MAIL_HOST"`
		Port               int           `yaml:"port" env:"MAIL_PORT"`
		Username           string        `yaml:"username" env:"MAIL_USERNAME"`
		Password           string        `yaml:"password" env:"MAIL_PASSWORD"`
		FromName           string        `yaml:"from_name" env:"MAIL_FROM_NAME"`
		FromEmail          string        `yaml:"from_email" env:"MAIL_FROM_EMAIL"`
		ReplyTo            string        `yaml:"reply_to" env:"MAIL_REPLY_TO"`
		UseTLS             bool          `yaml:"use_tls" env:"MAIL_USE_TLS"`
		SendTimeout        time.Duration `yaml:"send_timeout" env:"MAIL_SEND_TIMEOUT"`
		SendInterval       time.Duration `yaml:"send_interval" env:"MAIL_SEND_INTERVAL"`
		MaxMessagesPerConn int           `yaml:"max_messages_per_conn" env:"MAIL_MAX_MESSAGES_PER_CONN"`
		CheckMX            bool          `yaml:"check_mx" env:"MAIL_CHECK_MX"`
		StudentDomain      string        `yaml:"student_domain" env:"MAIL_STUDENT_DOMAIN"`
		BreakerThreshold   int           `yaml:"breaker_threshold" env:"MAIL_BREAKER_THRESHOLD"`
		BreakerCooldown    time.Duration `yaml:"breaker_cooldown" env:"MAIL_BREAKER_COOLDOWN"`
	} `yaml:"mail"`

	QR struct {
		Size   int `yaml:"size" env:"QR_SIZE"`
		Margin int `yaml:"margin" env:"QR_MARGIN"`
	} `yaml:"qr"`

	// Redis backs the batch run locks. With an empty URL they are Postgres
	// advisory locks instead.
	Redis struct {
		URL       string        `yaml:"url" env:"REDIS_URL"`
		KeyPrefix string        `yaml:"key_prefix" env:"REDIS_KEY_PREFIX"`
		LockTTL   time.Duration `yaml:"lock_ttl" env:"REDIS_LOCK_TTL"`
	} `yaml:"redis"`

	Locks struct {
		// Heartbeat is how often a Postgres advisory lock checks its session
		Heartbeat time.Duration `yaml:"heartbeat" env:"LOCK_HEARTBEAT"`
	} `yaml:"locks"`

	// RateLimit caps requests per client IP; zero disables a limit.
	RateLimit struct {
		LoginPerMinute int `yaml:"login_per_minute" env:"RATE_LIMIT_LOGIN_PER_MINUTE"`
		APIPerMinute   int `yaml:"api_per_minute" env:"RATE_LIMIT_API_PER_MINUTE"`
	} `yaml:"rate_limit"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
		Path    string `yaml:"path" env:"METRICS_PATH"`
	} `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Seed struct {
		AdminEmail    string `yaml:"admin_email" env:"SEED_ADMIN_EMAIL"`
		AdminPassword string `yaml:"admin_password" env:"SEED_ADMIN_PASSWORD"`
	} `yaml:"seed"`
}

// LoadDotEnv loads variables from an env file into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.ReadTimeout = 10 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.ShutdownTimeout = 15 * time.Second

	config.Database.Driver = "postgres"
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "campuspass"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"
	config.Database.MigrationsDir = "migrations"

	config.JWT.AccessTokenExpiration = "12h"
	config.JWT.Issuer = "campuspass"

	config.Ticket.TokenTTL = 365 * 24 * time.Hour
	config.Ticket.Issuer = "campuspass-tickets"
	config.Ticket.DefaultEvent = "RECPTNOV2025"
	config.Ticket.DefaultType = "payant"

	config.Mail.Driver = "smtp"
	config.Mail.Port = 587
	config.Mail.FromName = "Billetterie"
	config.Mail.SendTimeout = 45 * time.Second
	config.Mail.SendInterval = 2 * time.Second
	config.Mail.MaxMessagesPerConn = 100
	config.Mail.CheckMX = true
	config.Mail.StudentDomain = "univ-tol.mg"
	config.Mail.BreakerThreshold = 5
	config.Mail.BreakerCooldown = time.Minute

	config.QR.Size = 300
	config.QR.Margin = 1

	config.Redis.KeyPrefix = "campuspass:"
	config.Redis.LockTTL = time.Minute

	config.Locks.Heartbeat = 15 * time.Second

	config.RateLimit.LoginPerMinute = 5
	config.RateLimit.APIPerMinute = 300

	config.Metrics.Enabled = true
	config.Metrics.Path = "/metrics"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	if config.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if _, err := time.ParseDuration(config.JWT.AccessTokenExpiration); err != nil {
		return fmt.Errorf("invalid JWT access token expiration format: %w", err)
	}

	if config.Ticket.TokenTTL <= 0 {
		return fmt.Errorf("ticket token ttl must be positive")
	}

	switch config.Ticket.DefaultType {
	case "gratuit", "payant", "VIP":
	default:
		return fmt.Errorf("unknown default ticket type %q", config.Ticket.DefaultType)
	}

	switch strings.ToLower(config.Mail.Driver) {
	case "log":
	case "smtp":
		if config.Mail.Host == "" {
			return fmt.Errorf("mail host is required for the smtp driver")
		}
		if config.Mail.FromEmail == "" {
			return fmt.Errorf("mail from address is required for the smtp driver")
		}
	default:
		return fmt.Errorf("unknown mail driver %q", config.Mail.Driver)
	}

	if config.Mail.SendTimeout <= 0 {
		return fmt.Errorf("mail send timeout must be positive")
	}

	if config.Mail.SendInterval < 0 {
		return fmt.Errorf("mail send interval cannot be negative")
	}

	if config.QR.Size < 21 {
		return fmt.Errorf("qr size must be at least 21 pixels")
	}

	return nil
}

// TicketTokenSecret returns the key used to sign ticket tokens.
// It falls back to the operator JWT secret when no dedicated key is set.
func (c *Config) TicketTokenSecret() string {
	if c.Ticket.TokenSecret != "" {
		return c.Ticket.TokenSecret
	}
	return c.JWT.Secret
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Server.Mode) == "production"
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}
