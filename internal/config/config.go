package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Links     LinksConfig     `mapstructure:"links"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	S3        S3Config        `mapstructure:"s3"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	// BaseURL is the public origin used when rendering shareable links.
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// AuthConfig covers the admin console. There is a single admin identity;
// the password is stored as a bcrypt hash, never in the clear.
type AuthConfig struct {
	AdminEmail        string        `mapstructure:"admin_email"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	SessionSecret     string        `mapstructure:"session_secret"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
}

// LinksConfig covers gardener access links.
type LinksConfig struct {
	// TokenSalt is mixed into the token hash; rotating it invalidates
	// every outstanding link at once.
	TokenSalt string `mapstructure:"token_salt"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
}

// SeedConfig lists gardeners ensured to exist at startup.
type SeedConfig struct {
	Gardeners []string `mapstructure:"gardeners"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// server.base_url -> SERVER_BASE_URL etc.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.base_url", "http://localhost:8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "gardenplan")
	viper.SetDefault("auth.session_ttl", "720h") // 30 days
	viper.SetDefault("ratelimit.limit", 60)
	viper.SetDefault("ratelimit.window", "10m")
	viper.SetDefault("s3.enabled", false)

	err = viper.ReadInConfig()
	// Missing config file is fine; env vars and defaults may be enough.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
