package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. LEDGER_DATABASE_PASSWORD
const EnvPrefix = "LEDGER"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Ledger    LedgerConfig
	Queue     QueueConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// LedgerConfig tunes the recovery ledger
type LedgerConfig struct {
	LockBackend        string        // memory or redis
	LockTTL            time.Duration // redis lock expiry
	LockWait           time.Duration // max time to wait for a sale lock
	MaxRetries         int           // optimistic lock retries before a conflict is reported
	PriceHistoryMode   string        // inline or queue
	IdempotencyTTL     time.Duration
	MigrationBatchSize int
	SaleNumberPrefix   string
	NodeID             int64  // snowflake node for receipt numbers, unique per instance
	OverdueRefreshAt   string // daily HH:MM (UTC) for the in-process overdue refresh, "off" disables
}

// OverdueRefreshTime parses OverdueRefreshAt. ok is false when the refresh is disabled.
func (l LedgerConfig) OverdueRefreshTime() (hour, minute int, ok bool) {
	if l.OverdueRefreshAt == "" || l.OverdueRefreshAt == "off" {
		return 0, 0, false
	}
	t, err := time.Parse("15:04", l.OverdueRefreshAt)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// QueueConfig holds background queue settings
type QueueConfig struct {
	Concurrency        int
	Queue              string
	MaxRetry           int
	OverdueRefreshCron string // cron spec registered by the worker, empty disables
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration

	// ProfilingServer is the Pyroscope address; profiling is off when empty
	ProfilingServer string
}

// Load loads configuration from a .env file, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (a .env file only fills unset ones)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			RequestTimeout:    v.GetDuration("http.request_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Ledger: LedgerConfig{
			LockBackend:        v.GetString("ledger.lock_backend"),
			LockTTL:            v.GetDuration("ledger.lock_ttl"),
			LockWait:           v.GetDuration("ledger.lock_wait"),
			MaxRetries:         v.GetInt("ledger.max_retries"),
			PriceHistoryMode:   v.GetString("ledger.price_history_mode"),
			IdempotencyTTL:     v.GetDuration("ledger.idempotency_ttl"),
			MigrationBatchSize: v.GetInt("ledger.migration_batch_size"),
			SaleNumberPrefix:   v.GetString("ledger.sale_number_prefix"),
			NodeID:             v.GetInt64("ledger.node_id"),
			OverdueRefreshAt:   v.GetString("ledger.overdue_refresh_at"),
		},
		Queue: QueueConfig{
			Concurrency:        v.GetInt("queue.concurrency"),
			Queue:              v.GetString("queue.queue"),
			MaxRetry:           v.GetInt("queue.max_retry"),
			OverdueRefreshCron: v.GetString("queue.overdue_refresh_cron"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "shopledger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "shopledger"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "shopledger.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// An empty origin list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID", "Idempotency-Key"}
	}
	if cfg.Ledger.LockBackend == "" {
		cfg.Ledger.LockBackend = "memory"
	}
	if cfg.Ledger.LockTTL == 0 {
		cfg.Ledger.LockTTL = 10 * time.Second
	}
	if cfg.Ledger.LockWait == 0 {
		cfg.Ledger.LockWait = 5 * time.Second
	}
	if cfg.Ledger.MaxRetries == 0 {
		cfg.Ledger.MaxRetries = 3
	}
	if cfg.Ledger.PriceHistoryMode == "" {
		cfg.Ledger.PriceHistoryMode = "inline"
	}
	if cfg.Ledger.IdempotencyTTL == 0 {
		cfg.Ledger.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Ledger.MigrationBatchSize == 0 {
		cfg.Ledger.MigrationBatchSize = 200
	}
	if cfg.Ledger.SaleNumberPrefix == "" {
		cfg.Ledger.SaleNumberPrefix = "SL"
	}
	if cfg.Ledger.OverdueRefreshAt == "" {
		cfg.Ledger.OverdueRefreshAt = "01:30"
	}
	if cfg.Queue.Concurrency == 0 {
		cfg.Queue.Concurrency = 5
	}
	if cfg.Queue.Queue == "" {
		cfg.Queue.Queue = "ledger"
	}
	if cfg.Queue.MaxRetry == 0 {
		cfg.Queue.MaxRetry = 5
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Ledger.LockBackend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("ledger.lock_backend=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("ledger.lock_backend must be memory or redis, got %q", c.Ledger.LockBackend)
	}
	switch c.Ledger.PriceHistoryMode {
	case "inline":
	case "queue":
		if !c.Redis.Enabled {
			return fmt.Errorf("ledger.price_history_mode=queue requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("ledger.price_history_mode must be inline or queue, got %q", c.Ledger.PriceHistoryMode)
	}
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("ledger.max_retries must be at least 1")
	}
	if c.Ledger.OverdueRefreshAt != "off" {
		if _, err := time.Parse("15:04", c.Ledger.OverdueRefreshAt); err != nil {
			return fmt.Errorf("ledger.overdue_refresh_at must be HH:MM or off, got %q", c.Ledger.OverdueRefreshAt)
		}
	}
	if c.Ledger.NodeID < 0 || c.Ledger.NodeID > 1023 {
		return fmt.Errorf("ledger.node_id must be between 0 and 1023, got %d", c.Ledger.NodeID)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
