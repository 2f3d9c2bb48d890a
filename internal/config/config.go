package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultFile      = "config.json"
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	envPrefix        = "DRIVEFETCH"
)

// Config describes runtime settings loaded from the JSON config file.
type Config struct {
	DownloadDirectory string `mapstructure:"download_directory" json:"download_directory"`
	MaxThreads        int    `mapstructure:"max_threads" json:"max_threads"`
	ChunkSize         int    `mapstructure:"chunk_size" json:"chunk_size"`
	UserAgent         string `mapstructure:"user_agent" json:"user_agent"`
	Proxy             string `mapstructure:"proxy" json:"proxy"`
	HistoryFile       string `mapstructure:"history_file" json:"history_file"`
	LogLevel          string `mapstructure:"log_level" json:"log_level"`
}

func Defaults() map[string]any {
	return map[string]any{
		"download_directory": "./downloads",
		"max_threads":        5,
		"chunk_size":         32768,
		"user_agent":         DefaultUserAgent,
		"proxy":              "",
		"history_file":       "",
		"log_level":          "info",
	}
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"dir":        "download_directory",
	"threads":    "max_threads",
	"chunk-size": "chunk_size",
	"proxy":      "proxy",
	"log-level":  "log_level",
}

// Load reads the config file at path, creating it with defaults when absent.
// An existing file is never rewritten. Environment variables (DRIVEFETCH_<KEY>)
// and changed flags override file values for this run only.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if err := v.SafeWriteConfigAs(path); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if !errors.As(err, &exists) {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make every download fail.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DownloadDirectory) == "" {
		return errors.New("download_directory must not be empty")
	}
	if c.MaxThreads <= 0 {
		return fmt.Errorf("max_threads must be positive, got %d", c.MaxThreads)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	return nil
}
