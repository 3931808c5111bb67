package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	xstrings "nietos/pkg/platform/strings"
)

// Server captures process level configuration. Each concern has its own
// section so packages only depend on the slice they need.
type Server struct {
	Addr            string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	TrustedProxies  []netip.Prefix
	BcryptCost      int

	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
}

// DatabaseConfig configures the PostgreSQL record store. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL              string
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	MaxOpenConns     int
	ConnMaxIdleTime  time.Duration
}

// RedisConfig configures the shared rate limit store. An empty URL keeps
// rate limiting in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig sets per-client request budgets for a one minute window.
type RateLimitConfig struct {
	Disabled       bool
	WritePerMinute int
	ReadPerMinute  int
	Window         time.Duration
}

// KafkaConfig enables audit publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// Defaults.
const (
	DefaultAddr             = ":8080"
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultConnectTimeout   = 5 * time.Second
	DefaultStatementTimeout = 5 * time.Second
	DefaultMaxOpenConns     = 10
	DefaultConnMaxIdleTime  = 5 * time.Minute
	DefaultWritePerMinute   = 30
	DefaultReadPerMinute    = 300
	DefaultAuditTopic       = "nietos.audit"
)

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment win.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}
	return Load(os.Getenv)
}

// Load builds the config from an arbitrary lookup so tests can avoid the process environment.
func Load(getenv func(string) string) (Server, error) {
	p := parser{getenv: getenv}

	cfg := Server{
		Addr:            p.str("ADDR", DefaultAddr),
		LogLevel:        p.level("LOG_LEVEL", slog.LevelInfo),
		ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		CORSOrigins:     p.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:  p.prefixes("TRUSTED_PROXIES"),
		BcryptCost:      p.int("BCRYPT_COST", bcrypt.DefaultCost),
		Database: DatabaseConfig{
			URL:              p.str("DATABASE_URL", ""),
			ConnectTimeout:   p.duration("DB_CONNECT_TIMEOUT", DefaultConnectTimeout),
			StatementTimeout: p.duration("DB_STATEMENT_TIMEOUT", DefaultStatementTimeout),
			MaxOpenConns:     p.int("DB_MAX_OPEN_CONNS", DefaultMaxOpenConns),
			ConnMaxIdleTime:  p.duration("DB_CONN_MAX_IDLE_TIME", DefaultConnMaxIdleTime),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Disabled:       p.bool("RATE_LIMIT_DISABLED", false),
			WritePerMinute: p.int("RATE_LIMIT_WRITE_PER_MINUTE", DefaultWritePerMinute),
			ReadPerMinute:  p.int("RATE_LIMIT_READ_PER_MINUTE", DefaultReadPerMinute),
			Window:         time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:    p.list("KAFKA_BROKERS", nil),
			AuditTopic: p.str("KAFKA_AUDIT_TOPIC", DefaultAuditTopic),
		},
	}

	if len(p.errs) > 0 {
		return Server{}, errors.Join(p.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Server) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR must not be empty"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.Database.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("DB_CONNECT_TIMEOUT must be positive"))
	}
	if c.Database.StatementTimeout < 0 {
		errs = append(errs, errors.New("DB_STATEMENT_TIMEOUT must not be negative"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	if !c.RateLimit.Disabled {
		if c.RateLimit.WritePerMinute <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_WRITE_PER_MINUTE must be positive"))
		}
		if c.RateLimit.ReadPerMinute <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_READ_PER_MINUTE must be positive"))
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC must be set when KAFKA_BROKERS is"))
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether the PostgreSQL store is configured.
func (c Server) UsesPostgres() bool { return c.Database.URL != "" }

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return v
}

func (p *parser) level(key string, def slog.Level) slog.Level {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid level %q", key, raw))
		return def
	}
	return lvl
}

func (p *parser) list(key string, def []string) []string {
	out := xstrings.SplitList(p.getenv(key))
	if len(out) == 0 {
		return def
	}
	return out
}

// prefixes parses a list of CIDRs. A bare address is read as a single host.
func (p *parser) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range p.list(key, nil) {
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				p.errs = append(p.errs, fmt.Errorf("%s: invalid address %q", key, raw))
				continue
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: invalid CIDR %q", key, raw))
			continue
		}
		out = append(out, prefix.Masked())
	}
	return out
}
