package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/manorfm/recoveryM/internal/domain"
)

// Process store backends
const (
	ProcessStoreRedis  = "redis"
	ProcessStoreMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ProcessStore  string

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// RabbitMQ configuration
	AMQPURL      string
	AMQPExchange string

	// Captcha configuration
	CaptchaVerifyURL string
	CaptchaSecret    string
	CaptchaTimeout   time.Duration

	// Admin API configuration
	JWTSecret string

	// Maintenance configuration
	SweepSchedule     string
	IncidentRetention time.Duration
	IncidentBuffer    int

	// Server configuration
	ServerPort     int
	PublicBaseURL  string
	RateLimitRPS   float64
	RateLimitBurst int
	BcryptCost     int

	Policy domain.RecoveryPolicy
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		// Database defaults
		DBHost:     "",
		DBPort:     5432,
		DBUser:     "",
		DBPassword: "",
		DBName:     "",

		// Redis defaults
		RedisAddr:    "localhost:6379",
		RedisDB:      0,
		ProcessStore: ProcessStoreRedis,

		// SMTP defaults
		SMTPPort: 587,
		SMTPFrom: "no-reply@localhost",

		// RabbitMQ defaults
		AMQPExchange: "notifications",

		// Captcha defaults
		CaptchaTimeout: 5 * time.Second,

		// Maintenance defaults
		SweepSchedule:     "@every 5m",
		IncidentRetention: 30 * 24 * time.Hour,
		IncidentBuffer:    1024,

		// Server defaults
		ServerPort:     8080,
		PublicBaseURL:  "http://localhost:8080",
		RateLimitRPS:   5,
		RateLimitBurst: 10,

		Policy: domain.DefaultRecoveryPolicy(),
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	cfg := NewConfig()
	var err error

	if cfg.DBPort, err = envInt("DB_PORT", cfg.DBPort); err != nil {
		return nil, err
	}
	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBUser = getEnv("DB_USER", "owner")
	cfg.DBPassword = getEnv("DB_PASSWORD", "ownerTest")
	cfg.DBName = getEnv("DB_NAME", "recovery")

	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", cfg.RedisDB)
	cfg.ProcessStore = strings.ToLower(getEnv("PROCESS_STORE", cfg.ProcessStore))
	if cfg.ProcessStore != ProcessStoreRedis && cfg.ProcessStore != ProcessStoreMemory {
		return nil, fmt.Errorf("PROCESS_STORE must be %q or %q", ProcessStoreRedis, ProcessStoreMemory)
	}

	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	if cfg.SMTPPort, err = envInt("SMTP_PORT", cfg.SMTPPort); err != nil {
		return nil, err
	}
	cfg.SMTPUsername = getEnv("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnv("SMTP_FROM", cfg.SMTPFrom)

	cfg.AMQPURL = getEnv("AMQP_URL", "")
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)

	cfg.CaptchaVerifyURL = getEnv("CAPTCHA_VERIFY_URL", "")
	cfg.CaptchaSecret = getEnv("CAPTCHA_SECRET", "")
	if cfg.CaptchaTimeout, err = envDuration("CAPTCHA_TIMEOUT", cfg.CaptchaTimeout); err != nil {
		return nil, err
	}

	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	cfg.SweepSchedule = getEnv("SWEEP_SCHEDULE", cfg.SweepSchedule)
	if cfg.IncidentRetention, err = envDuration("INCIDENT_RETENTION", cfg.IncidentRetention); err != nil {
		return nil, err
	}
	cfg.IncidentBuffer = getEnvInt("INCIDENT_BUFFER", cfg.IncidentBuffer)

	if cfg.ServerPort, err = envInt("PORT", cfg.ServerPort); err != nil {
		return nil, err
	}
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", cfg.PublicBaseURL), "/")
	if cfg.RateLimitRPS, err = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS); err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", cfg.BcryptCost)

	if err := loadPolicy(&cfg.Policy); err != nil {
		return nil, err
	}
	cfg.Policy.AbortURL = cfg.PublicBaseURL + "/api/v1/recovery/abort"
	if cfg.Policy.RequireCaptcha && cfg.CaptchaVerifyURL == "" {
		return nil, fmt.Errorf("RECOVERY_REQUIRE_CAPTCHA needs CAPTCHA_VERIFY_URL")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadPolicy(p *domain.RecoveryPolicy) error {
	var err error

	if p.ConcealMembership, err = envBool("RECOVERY_CONCEAL_MEMBERSHIP", p.ConcealMembership); err != nil {
		return err
	}
	if p.RequireCaptcha, err = envBool("RECOVERY_REQUIRE_CAPTCHA", p.RequireCaptcha); err != nil {
		return err
	}
	if p.AllowResetWhenSuspended, err = envBool("RECOVERY_ALLOW_SUSPENDED", p.AllowResetWhenSuspended); err != nil {
		return err
	}
	if p.RequireSecretQuestions, err = envBool("RECOVERY_REQUIRE_QUESTIONS", p.RequireSecretQuestions); err != nil {
		return err
	}

	if value, ok := os.LookupEnv("RECOVERY_FACTORS"); ok {
		factors := domain.FactorSet{}
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			t, err := domain.ParseFactorType(part)
			if err != nil {
				return fmt.Errorf("RECOVERY_FACTORS: unknown factor %q", part)
			}
			factors = factors.With(t)
		}
		p.RecoveryFactors = factors
	}

	if p.MinConfirmedFactors, err = envInt("RECOVERY_MIN_FACTORS", p.MinConfirmedFactors); err != nil {
		return err
	}
	if p.MaxAttempts, err = envInt("RECOVERY_MAX_ATTEMPTS", p.MaxAttempts); err != nil {
		return err
	}
	if p.PinLength, err = envInt("RECOVERY_PIN_LENGTH", p.PinLength); err != nil {
		return err
	}
	if p.MinPasswordLength, err = envInt("RECOVERY_MIN_PASSWORD_LENGTH", p.MinPasswordLength); err != nil {
		return err
	}
	if p.PinTTL, err = envDuration("RECOVERY_PIN_TTL", p.PinTTL); err != nil {
		return err
	}
	if p.ProcessTTL, err = envDuration("RECOVERY_PROCESS_TTL", p.ProcessTTL); err != nil {
		return err
	}
	if p.StartMinDuration, err = envDuration("RECOVERY_START_MIN_DURATION", p.StartMinDuration); err != nil {
		return err
	}
	if p.PinMinDuration, err = envDuration("RECOVERY_PIN_MIN_DURATION", p.PinMinDuration); err != nil {
		return err
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, defaultValue float64) (float64, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, defaultValue bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
