package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	HTTPAddr      string
	Storage       string
	DBDSN         string
	MigrationsDir string
	JWTSecret     string

	Timezone   string
	BucketMode string

	LockBackend string
	RedisAddr   string
	LockWait    time.Duration
	LockTTL     time.Duration

	DirectoryBaseURL string
	DirectoryTimeout time.Duration

	Notifier       string
	AWSRegion      string
	EmailFrom      string
	SendGridAPIKey string
	TelegramToken  string
	TelegramChatID int64
	NotifyWorkers  int
	NotifyQueue    int
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфиг из переменных окружения и проверяет его
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:      getEnv("ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":3000"),
		Storage:          getEnv("STORAGE", "postgres"),
		DBDSN:            os.Getenv("DB_DSN"),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "migrations"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		Timezone:         getEnv("TIMEZONE", "America/Sao_Paulo"),
		BucketMode:       getEnv("BUCKET_MODE", "calendar"),
		LockBackend:      getEnv("LOCK_BACKEND", "local"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		DirectoryBaseURL: os.Getenv("DIRECTORY_BASE_URL"),
		Notifier:         getEnv("NOTIFIER", "ses"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		EmailFrom:        os.Getenv("EMAIL_FROM"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		TelegramToken:    os.Getenv("TELEGRAM_TOKEN"),
	}

	var err error
	if cfg.LockWait, err = getDuration("LOCK_WAIT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getDuration("LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.DirectoryTimeout, err = getDuration("DIRECTORY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.NotifyWorkers, err = getInt("NOTIFY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.NotifyQueue, err = getInt("NOTIFY_QUEUE", 64); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded (env=%s, storage=%s, lock=%s, notifier=%s)\n",
		cfg.Environment, cfg.Storage, cfg.LockBackend, cfg.Notifier)

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}

	switch c.Storage {
	case "postgres":
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required when STORAGE=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	switch c.LockBackend {
	case "local", "redis":
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}

	switch c.Notifier {
	case "ses", "stub":
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when NOTIFIER=sendgrid")
		}
	case "telegram":
		if c.TelegramToken == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required when NOTIFIER=telegram")
		}
	default:
		return fmt.Errorf("unknown NOTIFIER %q", c.Notifier)
	}

	if c.NotifyWorkers < 1 || c.NotifyQueue < 1 {
		return fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE must be positive")
	}
	return nil
}

// Location загружает часовой пояс для вычисления ячеек
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
