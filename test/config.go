package test

import "github.com/kelseyhightower/envconfig"

// Config points the scenario test at a live backend instead of the
// in-process stub. Leave BackendURL empty to run fully self-contained.
type Config struct {
	BackendURL string `envconfig:"HRDESK_E2E_URL"`
	Email      string `envconfig:"HRDESK_E2E_EMAIL" default:"alice@example.com"`
	Password   string `envconfig:"HRDESK_E2E_PASSWORD" default:"ComplexPass123!"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
