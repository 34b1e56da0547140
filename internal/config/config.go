package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the VoxelMed server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Inference InferenceConfig
	Blob      BlobConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// InferenceConfig configures the outbound client for the external inference
// service. The service is known to be slow; timeouts are minutes, not seconds.
type InferenceConfig struct {
	BaseURL        string
	APIKey         string
	AnalyzeTimeout time.Duration
	RebuildTimeout time.Duration
	ViewsTimeout   time.Duration
}

// BlobConfig configures the S3-compatible object store holding result
// artifacts (works against S3, R2, or MinIO endpoints).
type BlobConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	PresignExpiry   time.Duration
	UploadTimeout   time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("VOXELMED_PORT", 8080),
			Env:  envString("VOXELMED_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Inference: InferenceConfig{
			BaseURL:        os.Getenv("INFERENCE_BASE_URL"),
			APIKey:         os.Getenv("INFERENCE_API_KEY"),
			AnalyzeTimeout: envDuration("INFERENCE_ANALYZE_TIMEOUT", 10*time.Minute),
			RebuildTimeout: envDuration("INFERENCE_REBUILD_TIMEOUT", 5*time.Minute),
			ViewsTimeout:   envDuration("INFERENCE_VIEWS_TIMEOUT", 2*time.Minute),
		},
		Blob: BlobConfig{
			Endpoint:        os.Getenv("BLOB_ENDPOINT"),
			Region:          envString("BLOB_REGION", "auto"),
			Bucket:          os.Getenv("BLOB_BUCKET"),
			AccessKeyID:     os.Getenv("BLOB_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("BLOB_SECRET_ACCESS_KEY"),
			PublicURL:       os.Getenv("BLOB_PUBLIC_URL"),
			PresignExpiry:   envDuration("BLOB_PRESIGN_EXPIRY", 15*time.Minute),
			UploadTimeout:   envDuration("BLOB_UPLOAD_TIMEOUT", 2*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Inference.BaseURL == "" {
		return fmt.Errorf("INFERENCE_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Inference.BaseURL, "http://") && !strings.HasPrefix(c.Inference.BaseURL, "https://") {
		return fmt.Errorf("INFERENCE_BASE_URL must start with http:// or https://, got %q", c.Inference.BaseURL)
	}

	if c.Blob.Bucket == "" {
		return fmt.Errorf("BLOB_BUCKET is required")
	}
	if c.Blob.AccessKeyID == "" || c.Blob.SecretAccessKey == "" {
		return fmt.Errorf("BLOB_ACCESS_KEY_ID and BLOB_SECRET_ACCESS_KEY are required")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
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

func envDuration(key string, defaultVal time.Duration) time.Duration {
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
