// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything tunable about the server. Fields map to environment
// variables via envconfig; defaults suit local development.
type Config struct {
	Addr           string   `envconfig:"ADDR" default:":4334"`
	Env            string   `envconfig:"ENV" default:"dev"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173"`

	MaxMessageSize int64   `envconfig:"MAX_MESSAGE_SIZE" default:"1048576"`
	MessageRate    float64 `envconfig:"MESSAGE_RATE" default:"100"`
	MessageBurst   int     `envconfig:"MESSAGE_BURST" default:"200"`

	ExecURL     string        `envconfig:"EXEC_URL" default:"https://emkc.org/api/v2/piston/execute"`
	ExecTimeout time.Duration `envconfig:"EXEC_TIMEOUT" default:"15s"`
	ExecRate    float64       `envconfig:"EXEC_RATE" default:"1"`
	ExecBurst   int           `envconfig:"EXEC_BURST" default:"5"`

	AIBaseURL string        `envconfig:"AI_BASE_URL"`
	AIAPIKey  string        `envconfig:"AI_API_KEY"`
	AIModel   string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout time.Duration `envconfig:"AI_TIMEOUT" default:"30s"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads JUSTCODING_* environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("justcoding", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
