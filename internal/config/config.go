package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable, loaded from the environment. A local .env file
// is picked up by cmd/server before this runs.
type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	StoriesDir  string `envconfig:"STORIES_DIR" default:"stories"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	VoteSeconds    int           `envconfig:"VOTE_SECONDS" default:"12"`
	IntroDelay     time.Duration `envconfig:"INTRO_DELAY" default:"3s"`
	ResultDelay    time.Duration `envconfig:"RESULT_DELAY" default:"4s"`
	ReconnectGrace time.Duration `envconfig:"RECONNECT_GRACE" default:"60s"`
	MaxPlayers     int           `envconfig:"MAX_PLAYERS" default:"16"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("STORYPARTY", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}
