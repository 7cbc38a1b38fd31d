// Package config builds process configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level process configuration.
type Config struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string

	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Pipeline  PipelineConfig
	Challenge ChallengeConfig
	Wallet    WalletConfig
}

// PostgresConfig covers the relational store (system of record).
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig covers the legacy document store, rate-limit windows, and the
// in-flight submission guard.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig covers the status-event publisher. Empty brokers disable
// Kafka and fall back to the logging notifier.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PipelineConfig holds verification pipeline thresholds. The review floor is
// deliberately a parameter, not a constant: the 70 cutoff is preserved from
// the prior system without a documented rationale.
type PipelineConfig struct {
	SubmissionTimeout  time.Duration
	AutoApproveOverall float64
	FaceMatchThreshold float64
	FaceMinQuality     float64
	LivenessThreshold  float64
	ReviewFloor        float64
}

// ChallengeConfig holds one-time-code issuance limits.
type ChallengeConfig struct {
	CodeTTL         time.Duration
	MaxAttempts     int
	SubjectLimit    int
	DeviceLimit     int
	AddressLimit    int
	Window          time.Duration
	SweepInterval   time.Duration
	CodeLength      int
	DisableSweeper  bool
}

// WalletConfig holds the verification-fee knobs for the ledger-adjacent
// write path. A zero fee disables the debit entirely.
type WalletConfig struct {
	VerificationFee int64
	Currency        string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:          getEnv("VERIGATE_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Postgres: PostgresConfig{
			DSN:             getEnv("POSTGRES_DSN", "host=localhost port=5432 user=postgres password=postgres dbname=verigate sslmode=disable"),
			MaxOpenConns:    getInt("POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_STATUS_TOPIC", "kyc.status-events"),
		},
		Pipeline: PipelineConfig{
			SubmissionTimeout:  getDuration("PIPELINE_SUBMISSION_TIMEOUT", 10*time.Second),
			AutoApproveOverall: getFloat("PIPELINE_AUTO_APPROVE_OVERALL", 85),
			FaceMatchThreshold: getFloat("PIPELINE_FACE_MATCH_THRESHOLD", 80),
			FaceMinQuality:     getFloat("PIPELINE_FACE_MIN_QUALITY", 50),
			LivenessThreshold:  getFloat("PIPELINE_LIVENESS_THRESHOLD", 80),
			ReviewFloor:        getFloat("PIPELINE_REVIEW_FLOOR", 70),
		},
		Challenge: ChallengeConfig{
			CodeTTL:        getDuration("CHALLENGE_CODE_TTL", 5*time.Minute),
			MaxAttempts:    getInt("CHALLENGE_MAX_ATTEMPTS", 3),
			SubjectLimit:   getInt("CHALLENGE_SUBJECT_LIMIT", 3),
			DeviceLimit:    getInt("CHALLENGE_DEVICE_LIMIT", 5),
			AddressLimit:   getInt("CHALLENGE_ADDRESS_LIMIT", 10),
			Window:         getDuration("CHALLENGE_WINDOW", time.Hour),
			SweepInterval:  getDuration("CHALLENGE_SWEEP_INTERVAL", time.Minute),
			CodeLength:     getInt("CHALLENGE_CODE_LENGTH", 6),
			DisableSweeper: os.Getenv("CHALLENGE_DISABLE_SWEEPER") == "true",
		},
		Wallet: WalletConfig{
			VerificationFee: int64(getInt("WALLET_VERIFICATION_FEE", 0)),
			Currency:        getEnv("WALLET_CURRENCY", "USD"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
