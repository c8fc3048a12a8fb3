package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Env holds bootstrap settings read from the environment before the config
// file is loaded. A .env file in the working directory is honored but never
// overrides variables that are already set.
type Env struct {
	ConfigPath string `envconfig:"CONFIG" default:"./tickmux.yaml"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadEnv reads TICKMUX_* variables.
func LoadEnv() (Env, error) {
	_ = godotenv.Load()
	var e Env
	if err := envconfig.Process("tickmux", &e); err != nil {
		return Env{}, err
	}
	return e, nil
}
