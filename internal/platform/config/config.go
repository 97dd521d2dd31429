package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the server.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL selects the postgres stores when set; empty keeps the
	// in-memory stores, which is the default for development.
	PostgresURL string

	Redis RedisConfig
	SMTP  SMTPConfig

	// NominatimURL is the geocoding endpoint.
	NominatimURL string
	// GeocodeTimeout bounds each geocoding call; a timeout is a hard
	// failure for event creation.
	GeocodeTimeout time.Duration
	// NotifyTimeout bounds each fire-and-forget notification send.
	NotifyTimeout time.Duration

	// UploadDir is where the filesystem media uploader stores images.
	UploadDir string
	// PublicBaseURL prefixes durable image URLs and QR redirect links.
	PublicBaseURL string
}

// RedisConfig configures the optional redis scan-token store.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SMTPConfig configures the outbound notification mailer. Leaving Host
// empty selects the log-only dispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          getenv("PLEDGEIT_ADDR", ":8080"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenvInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getenv("SMTP_FROM", "no-reply@pledgeit.example"),
		},
		NominatimURL:   getenv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeTimeout: 5 * time.Second,
		NotifyTimeout:  10 * time.Second,
		UploadDir:      getenv("UPLOAD_DIR", "uploads"),
		PublicBaseURL:  getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
