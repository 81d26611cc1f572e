package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	PolicyExplicit       = "explicit"
	PolicyDerivedByScore = "derived-by-score"
)

// AppConfig is read from the environment (and .env, loaded by main).
type AppConfig struct {
	AppEnv  string `envconfig:"APP_ENV" default:"dev"`
	Port    string `envconfig:"PORT" default:"8080"`
	SiteURL string `envconfig:"SITE_URL" default:"http://localhost:8080"`

	DatabaseURL   string `envconfig:"DATABASE_URL" default:"host=localhost user=postgres password=postgres dbname=codeq port=5432 sslmode=disable TimeZone=UTC"`
	SessionSecret string `envconfig:"SESSION_SECRET" default:"secret_key_change_me"`

	AcceptancePolicy string `envconfig:"ACCEPTANCE_POLICY" default:"derived-by-score"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`

	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads the configuration and rejects unknown acceptance policies.
func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	switch c.AcceptancePolicy {
	case PolicyExplicit, PolicyDerivedByScore:
	default:
		return fmt.Errorf("ACCEPTANCE_POLICY must be %q or %q, got %q", PolicyExplicit, PolicyDerivedByScore, c.AcceptancePolicy)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c AppConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
