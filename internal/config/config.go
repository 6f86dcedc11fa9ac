package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config structure represents the application configuration
type Config struct {
	Server struct {
		Port    string `yaml:"port" env:"SERVER_PORT"`
		Mode    string `yaml:"mode" env:"SERVER_MODE"`
		BaseURL string `yaml:"base_url" env:"SERVER_BASE_URL"`
		// FrontendURL is used to build links in outgoing email
		FrontendURL     string `yaml:"frontend_url" env:"SERVER_FRONTEND_URL"`
		ShutdownTimeout string `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
		MigrationsDir   string `yaml:"migrations_dir" env:"SERVER_MIGRATIONS_DIR"`
		AutoMigrate     bool   `yaml:"auto_migrate" env:"SERVER_AUTO_MIGRATE"`
	} `yaml:"server"`

	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	JWT struct {
		Secret                string `yaml:"secret" env:"JWT_SECRET"`
		AccessTokenExpiration string `yaml:"access_token_expiration" env:"JWT_ACCESS_TOKEN_EXPIRATION"`
		Issuer                string `yaml:"issuer" env:"JWT_ISSUER"`
	} `yaml:"jwt"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`

	Storage struct {
		// Driver is one of local, minio, cloudinary
		Driver         string `yaml:"driver" env:"STORAGE_DRIVER"`
		LocalPath      string `yaml:"local_path" env:"STORAGE_LOCAL_PATH"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"STORAGE_MAX_UPLOAD_BYTES"`

		MinIO struct {
			Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
			AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
			SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
			Bucket    string `yaml:"bucket" env:"MINIO_BUCKET"`
			Region    string `yaml:"region" env:"MINIO_REGION"`
			UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
			PublicURL string `yaml:"public_url" env:"MINIO_PUBLIC_URL"`
		} `yaml:"minio"`

		Cloudinary struct {
			URL    string `yaml:"url" env:"CLOUDINARY_URL"`
			Folder string `yaml:"folder" env:"CLOUDINARY_FOLDER"`
		} `yaml:"cloudinary"`
	} `yaml:"storage"`

	Payments struct {
		KeyID         string `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
		KeySecret     string `yaml:"key_secret" env:"RAZORPAY_KEY_SECRET"`
		WebhookSecret string `yaml:"webhook_secret" env:"RAZORPAY_WEBHOOK_SECRET"`
		Currency      string `yaml:"currency" env:"PAYMENTS_CURRENCY"`
		PendingTTL    string `yaml:"pending_ttl" env:"PAYMENTS_PENDING_TTL"`
	} `yaml:"payments"`

	SMTP struct {
		Host      string `yaml:"host" env:"SMTP_HOST"`
		Port      int    `yaml:"port" env:"SMTP_PORT"`
		Username  string `yaml:"username" env:"SMTP_USERNAME"`
		Password  string `yaml:"password" env:"SMTP_PASSWORD"`
		FromName  string `yaml:"from_name" env:"SMTP_FROM_NAME"`
		FromEmail string `yaml:"from_email" env:"SMTP_FROM_EMAIL"`
		UseTLS    bool   `yaml:"use_tls" env:"SMTP_USE_TLS"`
	} `yaml:"smtp"`

	Notifications struct {
		// Mode is direct (send inline) or queue (asynq worker)
		Mode        string `yaml:"mode" env:"NOTIFY_MODE"`
		Concurrency int    `yaml:"concurrency" env:"NOTIFY_CONCURRENCY"`
		MaxRetry    int    `yaml:"max_retry" env:"NOTIFY_MAX_RETRY"`
	} `yaml:"notifications"`

	OTP struct {
		TTL    string `yaml:"ttl" env:"OTP_TTL"`
		Length int    `yaml:"length" env:"OTP_LENGTH"`
	} `yaml:"otp"`

	Jobs struct {
		Enabled              bool   `yaml:"enabled" env:"JOBS_ENABLED"`
		TokenCleanupSpec     string `yaml:"token_cleanup_spec" env:"JOBS_TOKEN_CLEANUP_SPEC"`
		BlobRetrySpec        string `yaml:"blob_retry_spec" env:"JOBS_BLOB_RETRY_SPEC"`
		PaymentExpirySpec    string `yaml:"payment_expiry_spec" env:"JOBS_PAYMENT_EXPIRY_SPEC"`
		BlobRetryBatch       int    `yaml:"blob_retry_batch" env:"JOBS_BLOB_RETRY_BATCH"`
		BlobRetryMaxAttempts int    `yaml:"blob_retry_max_attempts" env:"JOBS_BLOB_RETRY_MAX_ATTEMPTS"`
	} `yaml:"jobs"`

	Seed struct {
		AdminEmail    string    `yaml:"admin_email" env:"SEED_ADMIN_EMAIL"`
		AdminName     string    `yaml:"admin_name" env:"SEED_ADMIN_NAME"`
		AdminPassword string    `yaml:"admin_password" env:"SEED_ADMIN_PASSWORD"`
		Fees          []FeeSeed `yaml:"fees"`
	} `yaml:"seed"`
}

// FeeSeed is one default fee row
type FeeSeed struct {
	PaymentType string  `yaml:"payment_type"`
	Course      string  `yaml:"course"`
	Amount      float64 `yaml:"amount"`
}

// LoadConfig loads .env files, the YAML file at configPath and environment overrides
func LoadConfig(configPath string, envFiles ...string) (*Config, error) {
	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	config := &Config{}
	setDefaults(config)

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := processStructFields(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadDotEnv loads the given files, or ".env" when none are given. Missing files are ignored;
// variables already present in the environment win.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(config *Config) {
	config.Server.Port = "8080"
	config.Server.Mode = "development"
	config.Server.BaseURL = "http://localhost:8080"
	config.Server.FrontendURL = "http://localhost:3000"
	config.Server.ShutdownTimeout = "10s"
	config.Server.MigrationsDir = "migrations"
	config.Server.AutoMigrate = true

	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "college_portal"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"

	config.JWT.AccessTokenExpiration = "8h"
	config.JWT.Issuer = "college-portal"

	config.Logging.Level = "info"
	config.Logging.Format = "json"

	config.Redis.Addr = "localhost:6379"

	config.Storage.Driver = "local"
	config.Storage.LocalPath = "uploads"
	config.Storage.MaxUploadBytes = 5 << 20
	config.Storage.MinIO.Bucket = "college-portal"
	config.Storage.MinIO.Region = "us-east-1"
	config.Storage.Cloudinary.Folder = "college_portal"

	config.Payments.Currency = "INR"
	config.Payments.PendingTTL = "24h"

	config.SMTP.Port = 587
	config.SMTP.FromName = "College Portal"

	config.Notifications.Mode = "direct"
	config.Notifications.Concurrency = 5
	config.Notifications.MaxRetry = 5

	config.OTP.TTL = "10m"
	config.OTP.Length = 6

	config.Jobs.Enabled = true
	config.Jobs.TokenCleanupSpec = "@hourly"
	config.Jobs.BlobRetrySpec = "@every 5m"
	config.Jobs.PaymentExpirySpec = "@every 30m"
	config.Jobs.BlobRetryBatch = 50
	config.Jobs.BlobRetryMaxAttempts = 10

	config.Seed.AdminEmail = "admin@college.local"
	config.Seed.AdminName = "Portal Administrator"
}

// validateConfig ensures that the configuration is valid
func validateConfig(config *Config) error {
	var errs []error

	if config.Database.Host == "" {
		errs = append(errs, errors.New("database host is required"))
	}
	if config.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT secret is required"))
	}

	durations := map[string]string{
		"jwt.access_token_expiration": config.JWT.AccessTokenExpiration,
		"database.conn_max_lifetime":  config.Database.ConnMaxLifetime,
		"server.shutdown_timeout":     config.Server.ShutdownTimeout,
		"payments.pending_ttl":        config.Payments.PendingTTL,
		"otp.ttl":                     config.OTP.TTL,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", name, err))
		}
	}

	switch strings.ToLower(config.Storage.Driver) {
	case "local":
	case "minio":
		if config.Storage.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("storage.minio.endpoint is required for the minio driver"))
		}
	case "cloudinary":
		if config.Storage.Cloudinary.URL == "" {
			errs = append(errs, errors.New("storage.cloudinary.url is required for the cloudinary driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", config.Storage.Driver))
	}

	switch strings.ToLower(config.Notifications.Mode) {
	case "direct", "queue":
	default:
		errs = append(errs, fmt.Errorf("unknown notifications mode %q", config.Notifications.Mode))
	}

	if config.OTP.Length < 4 || config.OTP.Length > 10 {
		errs = append(errs, errors.New("otp.length must be between 4 and 10"))
	}

	return errors.Join(errs...)
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// AccessTokenTTL returns the parsed token lifetime
func (c *Config) AccessTokenTTL() time.Duration {
	return mustDuration(c.JWT.AccessTokenExpiration, 8*time.Hour)
}

// OTPTTL returns the parsed OTP lifetime
func (c *Config) OTPTTL() time.Duration {
	return mustDuration(c.OTP.TTL, 10*time.Minute)
}

// PendingPaymentTTL returns how long an unpaid order stays Pending
func (c *Config) PendingPaymentTTL() time.Duration {
	return mustDuration(c.Payments.PendingTTL, 24*time.Hour)
}

// ShutdownTimeout returns the graceful shutdown window
func (c *Config) ShutdownTimeout() time.Duration {
	return mustDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Mode, "production")
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
