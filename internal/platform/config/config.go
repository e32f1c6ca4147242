package config

import (
	"os"
	"time"
)

// Server captures process level configuration for the credential hub.
type Server struct {
	Addr string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers   string
	LifecycleTopic string

	// Watchdog scheduling. A zero period disables the watchdog.
	WatchdogPeriod time.Duration
	WatchdogDelay  time.Duration

	// RenewalGracePeriod is the window before expiry in which the watchdog
	// proactively requests reissuance.
	RenewalGracePeriod time.Duration

	// DefaultPresentationFormat folds multi-format disclosures into one
	// presentation when the container format can carry them (legacy mode).
	// Empty means one presentation per credential format.
	DefaultPresentationFormat string

	// RevocationCacheTTL bounds how long cached revocation verdicts are reused.
	RevocationCacheTTL time.Duration

	// RevocationURL is the revocation oracle endpoint. Empty disables
	// revocation checks.
	RevocationURL string

	// TokenSecret verifies inbound access tokens on the disclosure API.
	TokenSecret string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                      getEnv("CREDHUB_ADDR", ":8080"),
		DatabaseURL:               os.Getenv("CREDHUB_DATABASE_URL"),
		RedisURL:                  os.Getenv("CREDHUB_REDIS_URL"),
		KafkaBrokers:              os.Getenv("CREDHUB_KAFKA_BROKERS"),
		LifecycleTopic:            getEnv("CREDHUB_LIFECYCLE_TOPIC", "credhub.credential.lifecycle"),
		WatchdogPeriod:            getDuration("CREDHUB_WATCHDOG_PERIOD", time.Minute),
		WatchdogDelay:             getDuration("CREDHUB_WATCHDOG_DELAY", 5*time.Second),
		RenewalGracePeriod:        getDuration("CREDHUB_RENEWAL_GRACE_PERIOD", 7*24*time.Hour),
		DefaultPresentationFormat: os.Getenv("CREDHUB_DEFAULT_PRESENTATION_FORMAT"),
		RevocationCacheTTL:        getDuration("CREDHUB_REVOCATION_CACHE_TTL", 5*time.Minute),
		RevocationURL:             os.Getenv("CREDHUB_REVOCATION_URL"),
		TokenSecret:               os.Getenv("CREDHUB_TOKEN_SECRET"),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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
