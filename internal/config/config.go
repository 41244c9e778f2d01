package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	HTTP     HTTPConfig     `toml:"http"`
	App      AppConfig      `toml:"app"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Mail     MailConfig     `toml:"mail"`
	Store    StoreConfig    `toml:"store"`
	Worker   WorkerConfig   `toml:"worker"`
	Log      LogConfig      `toml:"log"`
}

type HTTPConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type AppConfig struct {
	// Origin is the front-end base URL used in emailed links.
	Origin string `toml:"origin"`
}

type AuthConfig struct {
	AccessSecret            string `toml:"access_secret"`
	RefreshSecret           string `toml:"refresh_secret"`
	AccessTTL               string `toml:"access_ttl"`
	SessionTTL              string `toml:"session_ttl"`
	SessionRefreshThreshold string `toml:"session_refresh_threshold"`
	PasswordHasher          string `toml:"password_hasher"`
	BcryptCost              string `toml:"bcrypt_cost"`
	CookieSecure            string `toml:"cookie_secure"`
	CookieDomain            string `toml:"cookie_domain"`
	CookieSameSite          string `toml:"cookie_samesite"`
}

type PostgresConfig struct {
	DatabaseURL string `toml:"database_url"`
	Host        string `toml:"host"`
	Port        string `toml:"port"`
	User        string `toml:"user"`
	Password    string `toml:"password"`
	Database    string `toml:"database"`
	SSLMode     string `toml:"sslmode"`
}

// RedisConfig is optional. An empty URL disables the session blocklist.
type RedisConfig struct {
	URL      string `toml:"url"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
}

type MailConfig struct {
	Provider      string `toml:"provider"`
	From          string `toml:"from"`
	ResendAPIKey  string `toml:"resend_api_key"`
	ResendBaseURL string `toml:"resend_base_url"`
	SMTPHost      string `toml:"smtp_host"`
	SMTPPort      string `toml:"smtp_port"`
	SMTPUsername  string `toml:"smtp_username"`
	SMTPPassword  string `toml:"smtp_password"`
}

type StoreConfig struct {
	Driver string `toml:"driver"`
}

type WorkerConfig struct {
	CleanupInterval string `toml:"cleanup_interval"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

func defaults() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		App:  AppConfig{Origin: "http://localhost:5173"},
		Auth: AuthConfig{
			AccessTTL:               "15m",
			SessionTTL:              "720h",
			SessionRefreshThreshold: "24h",
			PasswordHasher:          "bcrypt",
			CookieSecure:            "true",
			CookieSameSite:          "strict",
		},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    "5432",
			SSLMode: "disable",
		},
		Mail: MailConfig{
			Provider:      "log",
			From:          "Auth <noreply@localhost>",
			ResendBaseURL: "https://api.resend.com",
			SMTPPort:      "587",
		},
		Store:  StoreConfig{Driver: "postgres"},
		Worker: WorkerConfig{CleanupInterval: "1h"},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// CONFIG_FILE, and environment variables, in that order of precedence.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	override(&cfg.HTTP.Addr, "ADDR")
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.HTTP.AllowedOrigins = splitCSV(origins)
	}
	override(&cfg.App.Origin, "APP_ORIGIN")

	override(&cfg.Auth.AccessSecret, "JWT_ACCESS_SECRET")
	override(&cfg.Auth.RefreshSecret, "JWT_REFRESH_SECRET")
	override(&cfg.Auth.AccessTTL, "JWT_ACCESS_TTL")
	override(&cfg.Auth.SessionTTL, "SESSION_TTL")
	override(&cfg.Auth.SessionRefreshThreshold, "SESSION_REFRESH_THRESHOLD")
	override(&cfg.Auth.PasswordHasher, "PASSWORD_HASHER")
	override(&cfg.Auth.BcryptCost, "BCRYPT_COST")
	override(&cfg.Auth.CookieSecure, "COOKIE_SECURE")
	override(&cfg.Auth.CookieDomain, "COOKIE_DOMAIN")
	override(&cfg.Auth.CookieSameSite, "COOKIE_SAMESITE")

	override(&cfg.Postgres.DatabaseURL, "DATABASE_URL")
	override(&cfg.Postgres.Host, "PGHOST")
	override(&cfg.Postgres.Port, "PGPORT")
	override(&cfg.Postgres.User, "PGUSER")
	override(&cfg.Postgres.Password, "PGPASSWORD")
	override(&cfg.Postgres.Database, "PGDATABASE")
	override(&cfg.Postgres.SSLMode, "PGSSLMODE")

	override(&cfg.Redis.URL, "REDIS_URL")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Redis.DB, "REDIS_DB")

	override(&cfg.Mail.Provider, "MAIL_PROVIDER")
	override(&cfg.Mail.From, "MAIL_FROM")
	override(&cfg.Mail.ResendAPIKey, "RESEND_API_KEY")
	override(&cfg.Mail.ResendBaseURL, "RESEND_BASE_URL")
	override(&cfg.Mail.SMTPHost, "SMTP_HOST")
	override(&cfg.Mail.SMTPPort, "SMTP_PORT")
	override(&cfg.Mail.SMTPUsername, "SMTP_USERNAME")
	override(&cfg.Mail.SMTPPassword, "SMTP_PASSWORD")

	override(&cfg.Store.Driver, "STORE")
	override(&cfg.Worker.CleanupInterval, "CLEANUP_INTERVAL")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")

	switch cfg.Store.Driver {
	case "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("unknown STORE %q", cfg.Store.Driver)
	}
	switch cfg.Mail.Provider {
	case "log", "resend", "smtp":
	default:
		return Config{}, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.Mail.Provider)
	}

	return cfg, nil
}

func override(dst *string, key string) {
	*dst = getenv(key, *dst)
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
