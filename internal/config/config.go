package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	defaultPerPage      = 50
	encryptionKeyLength = 32
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	JWTSecret           string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	Timezone            string
	// MailTLS controls implicit TLS for IMAP and STARTTLS for SMTP.
	MailTLS bool
	PerPage int
}

func NewConfig() (*Config, error) {
	env := os.Getenv("PROMAIL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	mailTLS, err := parseBool("PROMAIL_MAIL_TLS", true)
	if err != nil {
		return nil, err
	}

	perPage, err := parseInt("PROMAIL_PER_PAGE", defaultPerPage)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("PROMAIL_ENCRYPTION_KEY_BASE64"),
		JWTSecret:           os.Getenv("PROMAIL_JWT_SECRET"),
		DBHost:              getEnvOrDefault("PROMAIL_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("PROMAIL_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("PROMAIL_DB_USER", "promail"),
		DBPassword:          os.Getenv("PROMAIL_DB_PASSWORD"),
		DBName:              getEnvOrDefault("PROMAIL_DB_NAME", "promail"),
		DBSSLMode:           getEnvOrDefault("PROMAIL_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "8080"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
		MailTLS:             mailTLS,
		PerPage:             perPage,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("PROMAIL_ENCRYPTION_KEY_BASE64 is required")
	}

	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return fmt.Errorf("PROMAIL_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != encryptionKeyLength {
		return fmt.Errorf("PROMAIL_ENCRYPTION_KEY_BASE64 must decode to %d bytes, got %d", encryptionKeyLength, len(key))
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("PROMAIL_JWT_SECRET is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("PROMAIL_DB_PASSWORD is required")
	}

	if !validPort(c.DBPort) {
		return fmt.Errorf("PROMAIL_DB_PORT is not a valid port number: %q", c.DBPort)
	}

	if !validPort(c.Port) {
		return fmt.Errorf("PORT is not a valid port number: %q", c.Port)
	}

	if c.PerPage < 1 {
		return fmt.Errorf("PROMAIL_PER_PAGE must be positive")
	}

	return nil
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// GetDatabaseURL builds the pgx connection string. Credentials are URL-escaped.
func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func validPort(value string) bool {
	port, err := strconv.Atoi(value)
	return err == nil && port >= 1 && port <= 65535
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return parsed, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}
