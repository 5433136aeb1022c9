// Package config loads typed configuration structs from the environment.
//
// Fields are declared with `env:` struct tags (github.com/caarlos0/env); a
// .env file in the working directory is loaded once, if present, before the
// first parse (github.com/joho/godotenv). Missing required variables fail
// loading rather than producing half-initialized configs.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParse is returned when the environment cannot be parsed into the
// target struct.
var ErrParse = errors.New("config: failed to parse environment")

var loadDotEnv sync.Once

// Load populates cfg from the environment.
func Load[T any](cfg *T) error {
	loadDotEnv.Do(func() {
		// A missing .env file is fine; real deployments set the environment
		// directly.
		_ = godotenv.Load()
	})

	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParse, err)
	}
	return nil
}

// MustLoad is Load for configs the process cannot start without.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}
