package pricesync

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DaysBack    int    `envconfig:"PRICESYNC_DAYS_BACK" default:"10"`
	Tickers     string `envconfig:"PRICESYNC_TICKERS" default:""`
	QuotesURL   string `envconfig:"QUOTES_BASE_URL" default:""`
	PauseMillis int    `envconfig:"PRICESYNC_PAUSE_MS" default:"250"`
	MaxFailures int    `envconfig:"PRICESYNC_MAX_FAILURES" default:"25"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
