package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	StoreDriver string // postgres|memory
	DBURL       string

	JWTSecret      string
	AccessTokenTTL time.Duration
	EncryptionKey  string

	RecoveryStore         string // memory|redis
	RecoverySweepInterval time.Duration
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	Mailer           string // log|smtp|mailersend
	MailFrom         string
	MailFromName     string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPass         string
	MailerSendAPIKey string

	NATSURL      string
	OTLPEndpoint string

	CORSAllowedOrigins []string
	AuthRateLimit      int // requests per minute per IP on /auth

	// proxies whose X-Forwarded-For is believed; empty means the socket
	// address is the client
	TrustedProxies []string

	AdminEmail     string
	AdminPassword  string
	AdminName      string
	AdminBirthDate string
}

// Load reads the environment, after loading .env when one exists.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: could not load .env", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DBURL:       buildDBURL(),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: time.Duration(getEnvInt("JWT_ACCESS_TTL_MINUTES", 60)) * time.Minute,
		EncryptionKey:  os.Getenv("ENCRYPTION_KEY"),

		RecoveryStore:         strings.ToLower(getEnv("RECOVERY_STORE", "memory")),
		RecoverySweepInterval: getEnvDuration("RECOVERY_SWEEP_INTERVAL", 5*time.Minute),
		RedisAddr:             getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),

		Mailer:           strings.ToLower(getEnv("MAILER", "log")),
		MailFrom:         getEnv("MAIL_FROM", "no-reply@lifeplus.local"),
		MailFromName:     getEnv("MAIL_FROM_NAME", "Life+"),
		SMTPHost:         getEnv("SMTP_HOST", "127.0.0.1"),
		SMTPPort:         getEnvInt("SMTP_PORT", 1025),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPass:         os.Getenv("SMTP_PASS"),
		MailerSendAPIKey: os.Getenv("MAILERSEND_API_KEY"),

		NATSURL:      os.Getenv("NATS_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		AuthRateLimit:      getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 20),
		TrustedProxies:     splitList(os.Getenv("TRUSTED_PROXIES")),

		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		AdminName:      getEnv("ADMIN_NAME", "Administrator"),
		AdminBirthDate: getEnv("ADMIN_BIRTH_DATE", "1970-01-01"),
	}
}

// Validate rejects configurations the API must not start with. There is no
// fallback signing or encryption key in any environment.
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required"))
	}

	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want postgres or memory", c.StoreDriver))
	}

	switch c.RecoveryStore {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("RECOVERY_STORE %q: want memory or redis", c.RecoveryStore))
	}

	switch c.Mailer {
	case "log", "smtp":
	case "mailersend":
		if c.MailerSendAPIKey == "" {
			errs = append(errs, errors.New("MAILERSEND_API_KEY is required when MAILER=mailersend"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAILER %q: want log, smtp or mailersend", c.Mailer))
	}

	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Errorf("TRUSTED_PROXIES %q: want an IP or CIDR", p))
			}
		}
	}

	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_TTL_MINUTES must be positive"))
	}

	return errors.Join(errs...)
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "lifeplus")
	pass := getEnv("DB_PASSWORD", "lifeplus")
	name := getEnv("DB_NAME", "lifeplus")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("config: not an integer, using default", "key", key, "value", v)
			return fallback
		}
		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("config: not a duration, using default", "key", key, "value", v)
			return fallback
		}
		return d
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
