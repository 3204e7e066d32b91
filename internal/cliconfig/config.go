// Package cliconfig binds the settings shared by the crysense binaries to
// flags, CRYSENSE_* environment variables and an optional YAML file.
package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/himanishpuri/CrySense/pkg/crysense"
	"github.com/himanishpuri/CrySense/pkg/logger"
)

const (
	EnvPrefix  = "CRYSENSE"
	DefaultDir = ".crysense"
	ConfigName = "crysense"
)

// Settings are the resolved values. Flags beat environment variables,
// which beat the config file.
type Settings struct {
	DBPath       string `mapstructure:"db"`
	TempDir      string `mapstructure:"temp"`
	ModelPath    string `mapstructure:"model"`
	History      bool   `mapstructure:"history"`
	StrictParams bool   `mapstructure:"strict-params"`
	Concurrency  int    `mapstructure:"concurrency"`
	LogLevel     string `mapstructure:"log-level"`
	LogFormat    string `mapstructure:"log-format"`
}

// AddFlags registers the shared persistent flags on cmd.
func AddFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "config file (default is ./crysense.yaml or ~/.crysense/crysense.yaml)")
	f.String("db", "crysense.sqlite3", "path to the SQLite history database")
	f.String("temp", os.TempDir(), "directory for temporary audio conversion files")
	f.String("model", "", "path to the model artifact (.msgpack, .json or .yaml)")
	f.Bool("history", false, "store classifications in the history database")
	f.Bool("strict-params", true, "reject models trained with different feature parameters")
	f.Int("concurrency", 0, "parallel feature computations (0 = GOMAXPROCS)")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", "console", "log format: console, text or json")
}

// Load binds cmd's flags into a fresh viper instance, reads the config file
// and environment, and returns the merged settings.
func Load(cmd *cobra.Command) (Settings, *viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Settings{}, nil, fmt.Errorf("binding flags: %w", err)
	}

	cfgFile := v.GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, DefaultDir))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Settings{}, nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, nil, fmt.Errorf("decoding config: %w", err)
	}
	return s, v, nil
}

// NewLogger builds the logger selected by LogFormat: the console logger by
// default, logrus for "text" and "json".
func (s Settings) NewLogger() (crysense.Logger, error) {
	level, ok := logger.ParseLevel(s.LogLevel)
	if !ok && s.LogLevel != "" {
		return nil, fmt.Errorf("unknown log level %q", s.LogLevel)
	}
	switch strings.ToLower(s.LogFormat) {
	case "", "console":
		cfg := logger.DefaultConfig()
		cfg.Level = level
		return logger.New(cfg), nil
	case string(logger.FormatText):
		return logger.NewLogrus(logger.FormatText, level, os.Stderr), nil
	case string(logger.FormatJSON):
		return logger.NewLogrus(logger.FormatJSON, level, os.Stderr), nil
	}
	return nil, fmt.Errorf("unknown log format %q", s.LogFormat)
}

// ServiceOptions maps the settings to service options.
func (s Settings) ServiceOptions(log crysense.Logger) []crysense.Option {
	return []crysense.Option{
		crysense.WithDBPath(s.DBPath),
		crysense.WithTempDir(s.TempDir),
		crysense.WithHistory(s.History),
		crysense.WithStrictParams(s.StrictParams),
		crysense.WithConcurrency(s.Concurrency),
		crysense.WithLogger(log),
	}
}
