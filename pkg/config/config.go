// Package config loads typed configuration structs from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// LoadEnvFile exports the settings of a .env-style file into the
// process environment. An empty path falls back to ./.env when that
// file exists.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		info, err := os.Stat(".env")
		if err != nil || info.IsDir() {
			return nil
		}
		path = ".env"
	}
	return exportEnvironment(path)
}

// New fills a config struct from environment variables with the given
// prefix.
func New[T any](prefix string) (*T, error) {
	var conf T
	if err := envconfig.Process(prefix, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func MustNew[T any](prefix string) *T {
	conf, err := New[T](prefix)
	if err != nil {
		panic(err)
	}
	return conf
}

func exportEnvironment(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}

	for k, val := range v.AllSettings() {
		if err := os.Setenv(strings.ToUpper(k), fmt.Sprint(val)); err != nil {
			return err
		}
	}
	return nil
}

// Require returns an error naming every missing key, for preflight
// checks before any client is constructed.
func Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing required environment: " + strings.Join(missing, ", "))
	}
	return nil
}
