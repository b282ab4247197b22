package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location, overridable with ADVOCATE_CONFIG.
var ConfigPath = envOr("ADVOCATE_CONFIG", "config.yaml")

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// DatabaseURL selects Postgres. Empty runs on the in-memory store.
	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr              string `yaml:"redisAddr"`
	RedisPassword          string `yaml:"redisPassword"`
	ChatRateLimitPerMinute int    `yaml:"chatRateLimitPerMinute"`
	UploadRateLimitPerHour int    `yaml:"uploadRateLimitPerHour"`
	RateLimitFailOpen      bool   `yaml:"rateLimitFailOpen"`

	StorageProvider    string `yaml:"storageProvider"`
	StorageDir         string `yaml:"storageDir"`
	StoragePublicURL   string `yaml:"storagePublicURL"`
	MinioEndpoint      string `yaml:"minioEndpoint"`
	MinioAccessKey     string `yaml:"minioAccessKey"`
	MinioSecretKey     string `yaml:"minioSecretKey"`
	MinioBucket        string `yaml:"minioBucket"`
	MinioUseSSL        bool   `yaml:"minioUseSSL"`
	MinioPresignExpiry string `yaml:"minioPresignExpiry"`

	GenerationProvider       string `yaml:"generationProvider"`
	GenerationBaseURL        string `yaml:"generationBaseURL"`
	GenerationAPIKey         string `yaml:"generationAPIKey"`
	ChatModel                string `yaml:"chatModel"`
	AnalysisModel            string `yaml:"analysisModel"`
	GenerationTimeoutSeconds int    `yaml:"generationTimeoutSeconds"`

	AuthJWKSURL   string `yaml:"authJwksURL"`
	AuthJWTSecret string `yaml:"authJwtSecret"`
	JWTIssuer     string `yaml:"jwtIssuer"`
	JWTAudience   string `yaml:"jwtAudience"`
	JWTLeeway     string `yaml:"jwtLeeway"`

	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	DefaultCredits    int      `yaml:"defaultCredits"`
	MaxUploadBytes    int64    `yaml:"maxUploadBytes"`
	PdftotextPath     string   `yaml:"pdftotextPath"`
}

// Load reads config from path (defaults to ConfigPath), applies environment
// overrides and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.ChatRateLimitPerMinute, "ADVOCATE_CHAT_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.UploadRateLimitPerHour, "ADVOCATE_UPLOAD_RATE_LIMIT_PER_HOUR")
	setBool(&cfg.RateLimitFailOpen, "ADVOCATE_RATE_LIMIT_FAIL_OPEN")

	setString(&cfg.StorageProvider, "STORAGE_PROVIDER")
	setString(&cfg.StorageDir, "STORAGE_DIR")
	setString(&cfg.StoragePublicURL, "STORAGE_PUBLIC_URL")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setBool(&cfg.MinioUseSSL, "MINIO_USE_SSL")

	setString(&cfg.GenerationProvider, "GENERATION_PROVIDER")
	setString(&cfg.GenerationBaseURL, "GENERATION_BASE_URL")
	setString(&cfg.GenerationAPIKey, "GENERATION_API_KEY", "OPENAI_API_KEY")
	setString(&cfg.ChatModel, "GENERATION_CHAT_MODEL")
	setString(&cfg.AnalysisModel, "GENERATION_ANALYSIS_MODEL")
	setInt(&cfg.GenerationTimeoutSeconds, "GENERATION_TIMEOUT_SECONDS")

	setString(&cfg.AuthJWKSURL, "AUTH_JWKS_URL")
	setString(&cfg.AuthJWTSecret, "AUTH_JWT_SECRET", "SUPABASE_JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")

	if v := os.Getenv("ADVOCATE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("ADVOCATE_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	setInt(&cfg.DefaultCredits, "ADVOCATE_DEFAULT_CREDITS")
	if v := os.Getenv("ADVOCATE_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.StorageProvider = strings.ToLower(strings.TrimSpace(cfg.StorageProvider))
	if cfg.StorageProvider == "" {
		cfg.StorageProvider = "local"
	}
	if cfg.StorageProvider == "local" && cfg.StorageDir == "" {
		cfg.StorageDir = "data/uploads"
	}
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "openai"
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = cfg.ChatModel
	}
	if cfg.GenerationTimeoutSeconds == 0 {
		cfg.GenerationTimeoutSeconds = 90
	}
	if cfg.DefaultCredits == 0 {
		cfg.DefaultCredits = 5
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	switch cfg.StorageProvider {
	case "local":
		if strings.TrimSpace(cfg.StorageDir) == "" {
			return errors.New("config: storageDir is required for local storage")
		}
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint, minioAccessKey, minioSecretKey and minioBucket are required for minio storage")
		}
		if _, err := ParseDuration("minioPresignExpiry", cfg.MinioPresignExpiry); err != nil {
			return err
		}
	default:
		return fmt.Errorf("config: unknown storageProvider %q (local or minio)", cfg.StorageProvider)
	}
	switch cfg.GenerationProvider {
	case "openai", "openai-compat", "ollama", "gemini":
	default:
		return fmt.Errorf("config: unknown generationProvider %q", cfg.GenerationProvider)
	}
	if cfg.ChatModel == "" {
		return errors.New("config: chatModel is required (set in config.yaml or GENERATION_CHAT_MODEL)")
	}
	if cfg.GenerationProvider != "ollama" && cfg.GenerationAPIKey == "" {
		return errors.New("config: generationAPIKey is required (set in config.yaml or GENERATION_API_KEY)")
	}
	if cfg.GenerationTimeoutSeconds < 0 {
		return errors.New("config: generationTimeoutSeconds must be >= 0")
	}
	hasJWKS := strings.TrimSpace(cfg.AuthJWKSURL) != ""
	hasSecret := strings.TrimSpace(cfg.AuthJWTSecret) != ""
	if hasJWKS == hasSecret {
		return errors.New("config: set exactly one of authJwksURL or authJwtSecret")
	}
	if _, err := ParseDuration("jwtLeeway", cfg.JWTLeeway); err != nil {
		return err
	}
	if cfg.ChatRateLimitPerMinute < 0 || cfg.UploadRateLimitPerHour < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (cfg.ChatRateLimitPerMinute > 0 || cfg.UploadRateLimitPerHour > 0) && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when rate limits are enabled")
	}
	if cfg.DefaultCredits < 0 {
		return errors.New("config: defaultCredits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	return nil
}

// ParseDuration parses an optional duration setting. Empty means zero.
func ParseDuration(name, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s duration: %w", name, err)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
