package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ログ出力形式
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// 空の場合はメモリ上のモックカタログを取得元にする。
	DatabaseURL string
	// 0はdatabase.DefaultPoolConfigの値を使う
	DBMaxOpenConns int
	DBMaxIdleConns int
	// 0の場合は起動時の疎通確認を再試行しない
	DBConnectRetryInterval time.Duration

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogFormat string
	LogLevel  slog.Level

	// Rate Limit（req/min）
	RateLimitGeneral  int
	RateLimitItemPost int

	// Listing
	SessionIdleTTL       time.Duration
	QueryTimeout         time.Duration
	VerifyImageRefs      bool
	ImageProbeTimeout    time.Duration
	ListingRetentionDays int
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既に設定済みの環境変数は上書きしない）。
// 値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 0)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 0)
	cfg.DBConnectRetryInterval = getEnvDuration("DB_CONNECT_RETRY_INTERVAL", 0)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	var invalid []string

	cfg.LogFormat = strings.ToLower(getEnvString("LOG_FORMAT", LogFormatJSON))
	if cfg.LogFormat != LogFormatJSON && cfg.LogFormat != LogFormatText {
		invalid = append(invalid, "LOG_FORMAT")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvString("LOG_LEVEL", "INFO"))); err != nil {
		invalid = append(invalid, "LOG_LEVEL")
	}

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitItemPost = getEnvInt("RATE_LIMIT_ITEM_POST", 10)
	cfg.SessionIdleTTL = getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute)
	cfg.QueryTimeout = getEnvDuration("QUERY_TIMEOUT", 5*time.Second)
	cfg.VerifyImageRefs = getEnvBool("VERIFY_IMAGE_REFS", false)
	cfg.ImageProbeTimeout = getEnvDuration("IMAGE_PROBE_TIMEOUT", 5*time.Second)
	cfg.ListingRetentionDays = getEnvInt("LISTING_RETENTION_DAYS", 90)

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return cfg, nil
}

// UsesDatabase はPostgreSQLを取得元として使用するかを返す。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
