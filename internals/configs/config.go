package configs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

/* =======================
   CONFIG VALUE
======================= */

// Config is built once at process start and passed explicitly to every
// component that needs it. Nothing in the codebase reads env vars after Load.
type Config struct {
	Port        string
	Environment string
	JWTSecret   string
	CORSOrigins []string

	DB      DBConfig
	Mpesa   MpesaConfig
	Kafka   KafkaConfig
	Sweeper SweeperConfig
}

type DBConfig struct {
	DSN      string // takes precedence when set
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

type MpesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	PassKey         string
	TransactionType string
	CallbackURL     string
	HTTPTimeout     time.Duration
	TokenSkew       time.Duration
	// a pending payment older than this is checked against the provider on status reads
	QueryAfter time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type SweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=rentflow&options=-c statement_timeout=3000",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate rejects a config that cannot take payments.
func (c Config) Validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.Mpesa.ConsumerKey == "" {
		missing = append(missing, "MPESA_CONSUMER_KEY")
	}
	if c.Mpesa.ConsumerSecret == "" {
		missing = append(missing, "MPESA_CONSUMER_SECRET")
	}
	if c.Mpesa.ShortCode == "" {
		missing = append(missing, "MPESA_SHORTCODE")
	}
	if c.Mpesa.PassKey == "" {
		missing = append(missing, "MPESA_PASSKEY")
	}
	if c.Mpesa.CallbackURL == "" {
		missing = append(missing, "MPESA_CALLBACK_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing config: " + strings.Join(missing, ", "))
	}
	return nil
}

/* =======================
   ENV LOADER
======================= */

func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") != "" {
		log.Println("running on Railway, using system env")
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env")
	} else {
		log.Println(".env loaded")
	}
}

// Load reads the environment into a Config. Call LoadEnv first.
func Load() Config {
	return Config{
		Port:        GetEnv("PORT", "3000"),
		Environment: GetEnv("APP_ENV", "development"),
		JWTSecret:   GetEnv("JWT_SECRET"),
		CORSOrigins: splitList(GetEnv("CORS_ORIGINS", "http://localhost:5173")),
		DB: DBConfig{
			DSN:      GetEnv("DATABASE_URL"),
			User:     GetEnv("DB_USER"),
			Password: GetEnv("DB_PASSWORD"),
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "5432"),
			Name:     GetEnv("DB_NAME"),
			SSLMode:  GetEnv("DB_SSLMODE", "require"),
		},
		Mpesa: MpesaConfig{
			BaseURL:         strings.TrimRight(GetEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"), "/"),
			ConsumerKey:     GetEnv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  GetEnv("MPESA_CONSUMER_SECRET"),
			ShortCode:       GetEnv("MPESA_SHORTCODE"),
			PassKey:         GetEnv("MPESA_PASSKEY"),
			TransactionType: GetEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			CallbackURL:     GetEnv("MPESA_CALLBACK_URL"),
			HTTPTimeout:     GetDuration("MPESA_HTTP_TIMEOUT", 15*time.Second),
			TokenSkew:       GetDuration("MPESA_TOKEN_SKEW", 60*time.Second),
			QueryAfter:      GetDuration("MPESA_QUERY_AFTER", 20*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(GetEnv("KAFKA_BROKERS")),
			Topic:   GetEnv("KAFKA_NOTIFICATION_TOPIC", "tenant.notifications"),
		},
		Sweeper: SweeperConfig{
			Interval:   GetDuration("SWEEPER_INTERVAL", 5*time.Minute),
			StaleAfter: GetDuration("SWEEPER_STALE_AFTER", 15*time.Minute),
		},
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// GetDuration accepts Go durations ("15s") or plain seconds ("15").
func GetDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("[WARN] invalid duration for %s=%q, using %s", key, raw, def)
	return def
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
