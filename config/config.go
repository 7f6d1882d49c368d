package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server. Tags use
// mapstructure for Viper unmarshalling; environment variables use the
// same names.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	Environment     string `mapstructure:"ENVIRONMENT"` // development | production
	MongoURI        string `mapstructure:"MONGO_URI"`
	MongoDBName     string `mapstructure:"MONGO_DB_NAME"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"` // empty = in-memory token cache
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Token issuance identity.
	Issuer   string `mapstructure:"JWT_ISSUER"`
	Audience string `mapstructure:"JWT_AUDIENCE"`

	// Signing key lifecycle.
	JWTKeysDir          string `mapstructure:"JWT_KEYS_DIR"`
	KeyRotationDays     int    `mapstructure:"KEY_ROTATION_DAYS"`

	// SSO broker endpoints.
	IdentityBaseURL string `mapstructure:"IDENTITY_BASE_URL"`
	APIBaseURL      string `mapstructure:"API_BASE_URL"`

	// MFA delivery.
	SESRegion        string `mapstructure:"SES_REGION"`
	EmailFromAddress string `mapstructure:"EMAIL_FROM_ADDRESS"`

	// Admin endpoints bearer token; empty disables them.
	AdminToken string `mapstructure:"ADMIN_TOKEN"`

	CleanupIntervalMinutes int `mapstructure:"CLEANUP_INTERVAL_MINUTES"`
	BcryptCost             int `mapstructure:"BCRYPT_COST"`
}

// IsProduction reports whether the server runs in production mode, which
// among other things enables scheduled key rotation.
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/aether-identity/")
	v.AddConfigPath("$HOME/.aether-identity")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/aether_identity_dev")
	v.SetDefault("MONGO_DB_NAME", "aether_identity_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "aether-identity")
	v.SetDefault("JWT_ISSUER", "https://sso.skygenesisenterprise.com")
	v.SetDefault("JWT_AUDIENCE", "api.skygenesisenterprise.com")
	v.SetDefault("JWT_KEYS_DIR", "./keys")
	v.SetDefault("KEY_ROTATION_DAYS", 20)
	v.SetDefault("IDENTITY_BASE_URL", "https://sso.skygenesisenterprise.com")
	v.SetDefault("API_BASE_URL", "https://api.skygenesisenterprise.com")
	v.SetDefault("SES_REGION", "us-east-1")
	v.SetDefault("EMAIL_FROM_ADDRESS", "no-reply@skygenesisenterprise.com")
	v.SetDefault("CLEANUP_INTERVAL_MINUTES", 60)
	v.SetDefault("BCRYPT_COST", 0) // 0 = bcrypt.DefaultCost

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, env vars and defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}
