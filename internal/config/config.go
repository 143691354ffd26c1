package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultProvider    = "paystack"
	defaultCurrency    = "NGN"
	defaultAppURL      = "http://localhost:3000"
	defaultAPIPrefix   = "api/v1"
	defaultHTTPTimeout = 30 * time.Second
)

type Config struct {
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	AppPort    string
	AppEnv     string

	// AppURL and APIPrefix build the single callback URL every provider
	// redirects to.
	AppURL    string
	APIPrefix string

	PaymentProvider      string
	PaymentCurrency      string
	PaymentHTTPTimeout   time.Duration
	PaystackSecretKey    string
	FlutterwaveSecretKey string

	JWTSecret  string
	CORSOrigin string

	// InternalSecretKey lets trusted services bypass the public rate tiers.
	InternalSecretKey string
}

func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBHost:               os.Getenv("DB_HOST"),
		DBUser:               os.Getenv("DB_USER"),
		DBPassword:           os.Getenv("DB_PASSWORD"),
		DBName:               os.Getenv("DB_NAME"),
		DBPort:               os.Getenv("DB_PORT"),
		AppPort:              os.Getenv("APP_PORT"),
		AppEnv:               os.Getenv("APP_ENV"),
		AppURL:               getEnv("APP_URL", defaultAppURL),
		APIPrefix:            strings.Trim(getEnv("API_PREFIX", defaultAPIPrefix), "/"),
		PaymentProvider:      strings.ToLower(getEnv("PAYMENT_PROVIDER", defaultProvider)),
		PaymentCurrency:      strings.ToUpper(getEnv("PAYMENT_CURRENCY", defaultCurrency)),
		PaymentHTTPTimeout:   getDuration("PAYMENT_HTTP_TIMEOUT", defaultHTTPTimeout),
		PaystackSecretKey:    os.Getenv("PAYSTACK_SECRET_KEY"),
		FlutterwaveSecretKey: os.Getenv("FLUTTERWAVE_SECRET_KEY"),
		JWTSecret:            os.Getenv("SECRET_KEY"),
		CORSOrigin:           getEnv("CORS_ORIGIN", defaultAppURL),
		InternalSecretKey:    os.Getenv("INTERNAL_SECRET_KEY"),
	}

	if cfg.DBHost == "" {
		log.Fatal("Environment variables not loaded properly")
	}

	return cfg
}

// RoutePrefix is APIPrefix as a mux path prefix ("/api/v1" or "").
func (c *Config) RoutePrefix() string {
	if c.APIPrefix == "" {
		return ""
	}
	return "/" + c.APIPrefix
}

// CallbackURL is the one endpoint all payment types share.
func (c *Config) CallbackURL() string {
	base := strings.TrimRight(c.AppURL, "/")
	if c.APIPrefix == "" {
		return base + "/payment/callback"
	}
	return base + "/" + c.APIPrefix + "/payment/callback"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
