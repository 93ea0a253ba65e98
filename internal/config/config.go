package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppName string
	Env     string
	Host    string
	Port    int

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	PaidCacheTTL  time.Duration
	NATSURL       string

	UploadDir      string
	MaxUploadBytes int64
	FileTTL        time.Duration
	DownloadGrace  time.Duration
	SweepInterval  time.Duration

	CORSOrigins []string
	Debug       bool
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment variables win over the file.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_name", "relaychat")
	v.SetDefault("app_env", "development")
	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", 8000)
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "postgres")
	v.SetDefault("postgres_db", "relaychat")
	v.SetDefault("sqlite_path", "relaychat.db")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("paid_cache_ttl", time.Minute)
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("max_upload_bytes", int64(25<<20))
	v.SetDefault("file_ttl", 24*time.Hour)
	v.SetDefault("download_grace", 30*time.Second)
	v.SetDefault("sweep_interval", 10*time.Minute)
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("debug", true)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(v.GetString("postgres_user"), v.GetString("postgres_password")),
		Host:     fmt.Sprintf("%s:%s", v.GetString("postgres_host"), v.GetString("postgres_port")),
		Path:     v.GetString("postgres_db"),
		RawQuery: "sslmode=disable",
	}

	cfg := &Config{
		AppName: v.GetString("app_name"),
		Env:     v.GetString("app_env"),
		Host:    v.GetString("http_host"),
		Port:    v.GetInt("http_port"),

		DBDriver:    strings.ToLower(v.GetString("db_driver")),
		DatabaseURL: u.String(),
		SQLitePath:  v.GetString("sqlite_path"),

		JWTSecret: v.GetString("jwt_secret"),
		TokenTTL:  v.GetDuration("token_ttl"),

		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		PaidCacheTTL:  v.GetDuration("paid_cache_ttl"),
		NATSURL:       v.GetString("nats_url"),

		UploadDir:      v.GetString("upload_dir"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		FileTTL:        v.GetDuration("file_ttl"),
		DownloadGrace:  v.GetDuration("download_grace"),
		SweepInterval:  v.GetDuration("sweep_interval"),

		CORSOrigins: splitList(v.GetString("cors_origins")),
		Debug:       v.GetBool("debug"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	switch cfg.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.FileTTL <= 0 || cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("FILE_TTL and SWEEP_INTERVAL must be positive")
	}

	return cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
