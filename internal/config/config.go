package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "INKWELL"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "inkwell.db"
	defaultLogLevel        = "info"
	defaultTokenTTL        = 24 * time.Hour
	defaultTokenIssuer     = "inkwell-auth"
	defaultTokenAudience   = "inkwell-api"
	defaultCommentLimit    = 10
	defaultCommentWindow   = 5 * time.Minute
	defaultAllowedOrigins  = "*"
	defaultAuthCookieName  = "jwt"
	defaultShutdownTimeout = 5 * time.Second
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	AuthSigningSecret   string
	AuthTokenTTL        time.Duration
	AuthIssuer          string
	AuthAudience        string
	AuthCookieName      string
	CommentRateLimitMax int
	CommentRateWindow   time.Duration
	CORSAllowedOrigins  []string
	ShutdownGracePeriod time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("http.shutdown_timeout", defaultShutdownTimeout)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.audience", defaultTokenAudience)
	configViper.SetDefault("auth.cookie_name", defaultAuthCookieName)
	configViper.SetDefault("comments.rate_limit.max", defaultCommentLimit)
	configViper.SetDefault("comments.rate_limit.window", defaultCommentWindow)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOrigins)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		LogLevel:            configViper.GetString("log.level"),
		AuthSigningSecret:   configViper.GetString("auth.signing_secret"),
		AuthTokenTTL:        configViper.GetDuration("auth.token_ttl"),
		AuthIssuer:          configViper.GetString("auth.issuer"),
		AuthAudience:        configViper.GetString("auth.audience"),
		AuthCookieName:      configViper.GetString("auth.cookie_name"),
		CommentRateLimitMax: configViper.GetInt("comments.rate_limit.max"),
		CommentRateWindow:   configViper.GetDuration("comments.rate_limit.window"),
		CORSAllowedOrigins:  splitOrigins(configViper.GetString("cors.allowed_origins")),
		ShutdownGracePeriod: configViper.GetDuration("http.shutdown_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.AuthSigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if strings.TrimSpace(c.AuthAudience) == "" {
		return fmt.Errorf("auth.audience is required")
	}
	if strings.TrimSpace(c.AuthCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.CommentRateLimitMax <= 0 {
		return fmt.Errorf("comments.rate_limit.max must be positive")
	}
	if c.CommentRateWindow <= 0 {
		return fmt.Errorf("comments.rate_limit.window must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("http.shutdown_timeout must be positive")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins is required")
	}
	return nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
