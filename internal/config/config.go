package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	FilesBackendLocal = "local"
	FilesBackendGCS   = "gcs"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret   string
	ExternalAPIKey string
}

type GeocoderConfig struct {
	URL     string
	Timeout time.Duration
}

type FilesConfig struct {
	Backend        string
	UploadDir      string
	GCSBucket      string
	MaxUploadBytes int64
}

type Config struct {
	Environment    string
	MetricsEnabled bool
	HTTP           HTTPConfig
	DB             DBConfig
	Auth           AuthConfig
	Geocoder       GeocoderConfig
	Files          FilesConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.SetDefault("METRICS_ENABLED", true)

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment:    v.GetString("APP_ENV"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret:   v.GetString("JWT_ACCESS_SECRET"),
			ExternalAPIKey: v.GetString("EXTERNAL_API_KEY"),
		},
		Geocoder: GeocoderConfig{
			URL:     v.GetString("GEOCODER_URL"),
			Timeout: v.GetDuration("GEOCODER_TIMEOUT"),
		},
		Files: FilesConfig{
			Backend:        v.GetString("FILES_BACKEND"),
			UploadDir:      v.GetString("FILES_UPLOAD_DIR"),
			GCSBucket:      v.GetString("FILES_GCS_BUCKET"),
			MaxUploadBytes: v.GetInt64("FILES_MAX_UPLOAD_BYTES"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Geocoder.URL == "" {
		cfg.Geocoder.URL = "https://nominatim.openstreetmap.org/"
	}
	if cfg.Geocoder.Timeout <= 0 {
		cfg.Geocoder.Timeout = 5 * time.Second
	}
	if cfg.Files.Backend == "" {
		cfg.Files.Backend = FilesBackendLocal
	}
	if cfg.Files.UploadDir == "" {
		cfg.Files.UploadDir = "./uploads"
	}
	if cfg.Files.MaxUploadBytes <= 0 {
		cfg.Files.MaxUploadBytes = 16 << 20
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Auth.ExternalAPIKey == "" {
		return fmt.Errorf("EXTERNAL_API_KEY is required")
	}
	switch cfg.Files.Backend {
	case FilesBackendLocal:
	case FilesBackendGCS:
		if cfg.Files.GCSBucket == "" {
			return fmt.Errorf("FILES_GCS_BUCKET is required for gcs backend")
		}
	default:
		return fmt.Errorf("unknown FILES_BACKEND: %s", cfg.Files.Backend)
	}
	return nil
}
