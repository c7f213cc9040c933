package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppEnv string

	// Hosted service connection. Both ServiceURL and ServiceAnonKey are
	// required before any authenticated surface is reachable; see Present.
	ServiceURL     string
	ServiceAnonKey string
	// ServiceRoleKey is the elevated key used only for admin operations
	// (deleting an auth identity). Optional for normal flows.
	ServiceRoleKey string

	// CampusEmailDomain restricts sign-in/sign-up to institutional addresses.
	CampusEmailDomain string

	// ResendCooldown throttles the verification-email resend button.
	ResendCooldown time.Duration

	CallbackAddr string

	// Local emulator (cmd/stubauth) settings.
	StubAddr       string
	StubJWTSecret  string
	StubTokenTTL   time.Duration
	SMTPHost       string
	SMTPPort       string
	SMTPFrom       string
	SMTPUsername   string
	SMTPPassword   string
	AllowedOrigins []string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		ServiceURL:        getEnv("SERVICE_URL", ""),
		ServiceAnonKey:    getEnv("SERVICE_ANON_KEY", ""),
		ServiceRoleKey:    getEnv("SERVICE_ROLE_KEY", ""),
		CampusEmailDomain: getEnv("CAMPUS_EMAIL_DOMAIN", "mail.utdt.edu"),
		ResendCooldown:    time.Duration(getEnvInt("RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
		CallbackAddr:      getEnv("CALLBACK_ADDR", "127.0.0.1:4280"),
		StubAddr:          getEnv("STUB_ADDR", ":9999"),
		StubJWTSecret:     getEnv("STUB_JWT_SECRET", "local-dev-secret"),
		StubTokenTTL:      time.Duration(getEnvInt("STUB_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "1025"),
		SMTPFrom:          getEnv("SMTP_FROM", "noreply@campusconnect.local"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// Present reports whether the two required connection parameters are set.
// When false the route guard must force the setup-required screen no
// matter what session state says.
func (c *Config) Present() bool {
	return c.ServiceURL != "" && c.ServiceAnonKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
