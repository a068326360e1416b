package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Scorer    ScorerConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// EventsChannel is the Redis pub/sub channel async write failures are
	// forwarded to. Empty disables forwarding.
	EventsChannel string
}

// Production reports whether the server runs with production defaults.
func (s ServerConfig) Production() bool {
	return strings.EqualFold(s.Environment, "production")
}

// MongoDBConfig with an empty URI selects the in-memory stores.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

// Issuer returns the realm issuer URL, or "" when Keycloak is not configured.
func (k KeycloakConfig) Issuer() string {
	if k.URL == "" {
		return ""
	}
	if k.Realm == "" {
		return strings.TrimRight(k.URL, "/")
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

type JWTConfig struct {
	Secret          string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// StorageConfig selects the object store backend: memory, minio or s3.
type StorageConfig struct {
	Type      string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PathStyle forces path-style S3 addressing (MinIO or LocalStack behind the s3 backend).
	PathStyle bool
	// PublicBaseURL is the externally reachable server URL the memory store
	// signs against.
	PublicBaseURL string
	SigningSecret string
	// MaxObjectBytes caps one transfer into the memory store.
	MaxObjectBytes int64
}

type UploadConfig struct {
	URLExpiry  time.Duration
	ReadURLTTL time.Duration
}

type ScorerConfig struct {
	URL string
	// Timeout bounds one scorer call; zero means no client-side timeout.
	Timeout time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(envFile())

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("EVENTS_CHANNEL", "arkz:events")
	v.SetDefault("MONGODB_DATABASE", "arkz")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("JWT_ISSUER", "arkz")
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("STORAGE_TYPE", "memory")
	v.SetDefault("STORAGE_BUCKET", "arkz-uploads")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_MAX_OBJECT_MB", 25)
	v.SetDefault("UPLOAD_URL_EXPIRY", 10*time.Minute)
	v.SetDefault("UPLOAD_READ_URL_TTL", 15*time.Minute)
	v.SetDefault("SCORER_TIMEOUT", 0)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)

	port := v.GetString("SERVER_PORT")
	cfg := &Config{
		Server: ServerConfig{
			Port:          port,
			Host:          v.GetString("SERVER_HOST"),
			Environment:   v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			EventsChannel: v.GetString("EVENTS_CHANNEL"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          v.GetString("KEYCLOAK_URL"),
			Realm:        v.GetString("KEYCLOAK_REALM"),
			ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			Issuer:          v.GetString("JWT_ISSUER"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		Storage: StorageConfig{
			Type:           strings.ToLower(v.GetString("STORAGE_TYPE")),
			Endpoint:       v.GetString("STORAGE_ENDPOINT"),
			Region:         v.GetString("STORAGE_REGION"),
			AccessKey:      v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:         v.GetBool("STORAGE_USE_SSL"),
			Bucket:         v.GetString("STORAGE_BUCKET"),
			PathStyle:      v.GetBool("STORAGE_PATH_STYLE"),
			PublicBaseURL:  v.GetString("PUBLIC_BASE_URL"),
			SigningSecret:  os.Getenv("STORAGE_SIGNING_SECRET"),
			MaxObjectBytes: v.GetInt64("STORAGE_MAX_OBJECT_MB") << 20,
		},
		Upload: UploadConfig{
			URLExpiry:  v.GetDuration("UPLOAD_URL_EXPIRY"),
			ReadURLTTL: v.GetDuration("UPLOAD_READ_URL_TTL"),
		},
		Scorer: ScorerConfig{
			URL:     strings.TrimRight(v.GetString("SCORER_URL"), "/"),
			Timeout: v.GetDuration("SCORER_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = "http://localhost:" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWT.Secret == "" {
		logger.Warnf("JWT_SECRET is not set; local access tokens are disabled")
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Production() && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	switch c.Storage.Type {
	case "memory":
		if c.Server.Production() {
			return fmt.Errorf("STORAGE_TYPE=memory is not allowed in production")
		}
	case "minio", "s3":
		if c.Storage.Type == "minio" && c.Storage.Endpoint == "" {
			return fmt.Errorf("STORAGE_ENDPOINT is required for minio storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.Scorer.Timeout < 0 {
		return fmt.Errorf("SCORER_TIMEOUT must not be negative")
	}
	return nil
}

func envFile() string {
	if f := os.Getenv("ENV_FILE"); f != "" {
		return f
	}
	return ".env"
}
