package internal

import "time"

// Config defines the environment variables of the hrdesk client.
type Config struct {
	APIBaseURL     string        `env:"HRDESK_API_URL,required=true"`
	BadgerFilepath string        `env:"HRDESK_BADGER_PATH,required=true"`
	HTTPTimeout    time.Duration `env:"HRDESK_HTTP_TIMEOUT,default=30s"`
	HistoryLimit   int           `env:"HRDESK_HISTORY_LIMIT,default=20"`
	LogLevel       string        `env:"LOG_LEVEL,required=true"`
}
