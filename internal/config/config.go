package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/gmsas95/notakopi/internal/errors"
	"github.com/spf13/viper"
)

// OCR providers understood by the ocr package.
const (
	ProviderOCRSpace  = "ocrspace"
	ProviderTesseract = "tesseract"
	ProviderMock      = "mock"
)

// Config holds all configuration for notakopi
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Security SecurityConfig `mapstructure:"security"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Inbox    InboxConfig    `mapstructure:"inbox"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	Production   bool   `mapstructure:"production"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir     string        `mapstructure:"data_dir"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	BadgerPath  string        `mapstructure:"badger_path"`
	OCRCacheTTL time.Duration `mapstructure:"ocr_cache_ttl"`
}

// OCRConfig selects and tunes the text extraction backend
type OCRConfig struct {
	Provider          string        `mapstructure:"provider"`
	APIKey            string        `mapstructure:"api_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	Language          string        `mapstructure:"language"`
	Engine            int           `mapstructure:"engine"`
	Timeout           time.Duration `mapstructure:"timeout"`
	TesseractPath     string        `mapstructure:"tesseract_path"`
	TesseractLang     string        `mapstructure:"tesseract_lang"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	CacheEnabled      bool          `mapstructure:"cache_enabled"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the hosted OCR API
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// SecurityConfig holds security settings
type SecurityConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	AdminPassword string        `mapstructure:"admin_password"`
	AllowOrigins  []string      `mapstructure:"allow_origins"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

// UploadConfig limits nota uploads
type UploadConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// InboxConfig holds drop-folder ingestion settings
type InboxConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	Dir                 string  `mapstructure:"dir"`
	ProcessedDir        string  `mapstructure:"processed_dir"`
	FailedDir           string  `mapstructure:"failed_dir"`
	AutoSave            bool    `mapstructure:"auto_save"`
	SweepSchedule       string  `mapstructure:"sweep_schedule"`
	StockReportSchedule string  `mapstructure:"stock_report_schedule"`
	LowStockThreshold   float64 `mapstructure:"low_stock_threshold"`
}

// BatchConfig holds bulk processing settings
type BatchConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}
	dataDir = expandPath(dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "notakopi.db"))
	v.SetDefault("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.SetDefault("inbox.dir", filepath.Join(dataDir, "inbox"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "notakopi.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrConfigInvalid.Code, "failed to read config")
		}
	}

	// NOTAKOPI_SERVER_PORT, NOTAKOPI_OCR_PROVIDER, ...
	v.SetEnvPrefix("NOTAKOPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.production", false)

	v.SetDefault("storage.ocr_cache_ttl", 30*24*time.Hour)

	v.SetDefault("ocr.provider", ProviderOCRSpace)
	v.SetDefault("ocr.api_key", "")
	v.SetDefault("ocr.endpoint", "https://api.ocr.space/parse/image")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.engine", 2)
	v.SetDefault("ocr.timeout", 60*time.Second)
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.tesseract_lang", "ind+eng")
	v.SetDefault("ocr.requests_per_minute", 30)
	v.SetDefault("ocr.cache_enabled", true)
	v.SetDefault("ocr.breaker.max_requests", 1)
	v.SetDefault("ocr.breaker.interval", time.Minute)
	v.SetDefault("ocr.breaker.timeout", 30*time.Second)
	v.SetDefault("ocr.breaker.failure_threshold", 3)

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.admin_password", "")
	v.SetDefault("security.allow_origins", []string{"*"})
	v.SetDefault("security.token_ttl", 7*24*time.Hour)

	v.SetDefault("upload.max_bytes", 10<<20)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg", "application/pdf"})

	v.SetDefault("inbox.enabled", false)
	v.SetDefault("inbox.processed_dir", "")
	v.SetDefault("inbox.failed_dir", "")
	v.SetDefault("inbox.auto_save", false)
	v.SetDefault("inbox.sweep_schedule", "*/15 * * * *")
	v.SetDefault("inbox.stock_report_schedule", "0 7 * * *")
	v.SetDefault("inbox.low_stock_threshold", 5)

	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.timeout", 2*time.Minute)
	v.SetDefault("batch.requests_per_minute", 30)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "notakopi")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "notakopi")
}

// loadEnvOverrides resolves settings that are commonly exported under
// other names, such as OCR_SPACE_API_KEY.
func loadEnvOverrides(cfg *Config) {
	if key := ResolveEnvWithAliases("NOTAKOPI_OCR_API_KEY"); key != "" {
		cfg.OCR.APIKey = key
	}
	if secret := ResolveEnvWithAliases("NOTAKOPI_SECURITY_JWT_SECRET"); secret != "" {
		cfg.Security.JWTSecret = secret
	}
	if pw := ResolveEnvWithAliases("NOTAKOPI_SECURITY_ADMIN_PASSWORD"); pw != "" {
		cfg.Security.AdminPassword = pw
	}
	if port := GetEnvWithFallback("NOTAKOPI_SERVER_PORT", "PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
}

func validate(cfg *Config) error {
	cfg.OCR.Provider = strings.ToLower(strings.TrimSpace(cfg.OCR.Provider))
	if !slices.Contains([]string{ProviderOCRSpace, ProviderTesseract, ProviderMock}, cfg.OCR.Provider) {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, fmt.Sprintf("unknown ocr.provider %q", cfg.OCR.Provider))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Upload.MaxBytes <= 0 {
		return apperrors.New(apperrors.ErrConfigInvalid.Code, "upload.max_bytes must be positive")
	}
	if cfg.Batch.Concurrency <= 0 {
		cfg.Batch.Concurrency = 1
	}

	cfg.Inbox.Dir = expandPath(cfg.Inbox.Dir)
	if cfg.Inbox.ProcessedDir == "" {
		cfg.Inbox.ProcessedDir = filepath.Join(cfg.Inbox.Dir, "processed")
	}
	if cfg.Inbox.FailedDir == "" {
		cfg.Inbox.FailedDir = filepath.Join(cfg.Inbox.Dir, "failed")
	}

	// Tokens issued with a generated secret stop working on restart.
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = generateSecret(32)
	}

	return nil
}

func generateSecret(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// AuthEnabled reports whether the API requires a login
func (c *Config) AuthEnabled() bool {
	return c.Security.AdminPassword != ""
}
