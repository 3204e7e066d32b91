package crysense

import (
	"os"

	"github.com/himanishpuri/CrySense/pkg/crysense/features"
)

type Config struct {
	DBPath       string
	TempDir      string
	SampleRate   int
	Logger       Logger
	Storage      HistoryStore
	History      bool
	StrictParams bool
	Concurrency  int
	Params       features.Params
}

type Option func(*Config)

// WithDBPath sets the SQLite file used when history is enabled.
func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithTempDir sets where converted recordings are staged.
func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

// WithSampleRate sets the decoder target rate. It must match the feature
// parameter set.
func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStorage supplies a history store and enables history.
func WithStorage(storage HistoryStore) Option {
	return func(c *Config) {
		c.Storage = storage
		c.History = storage != nil
	}
}

// WithHistory toggles persistence of successful classifications. With no
// explicit storage, a SQLite store is opened at DBPath.
func WithHistory(enabled bool) Option {
	return func(c *Config) {
		c.History = enabled
	}
}

// WithStrictParams controls whether an artifact trained with different
// feature parameters is rejected (true) or only warned about.
func WithStrictParams(strict bool) Option {
	return func(c *Config) {
		c.StrictParams = strict
	}
}

// WithConcurrency bounds parallel frame extraction. n <= 0 uses GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(c *Config) {
		c.Concurrency = n
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:       "crysense.sqlite3",
		TempDir:      os.TempDir(),
		SampleRate:   features.ParamsV1.SampleRate,
		StrictParams: true,
		Params:       features.ParamsV1,
	}
}
