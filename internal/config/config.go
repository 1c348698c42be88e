package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/sandbox"
)

type RunConfig struct {
	WorkDir              string        `mapstructure:"work_dir"`
	Level                string        `mapstructure:"level"`
	Timeout              time.Duration `mapstructure:"timeout"`
	SelectedInterpreters []string      `mapstructure:"selected_interpreters"`
	CLIArgs              []string      `mapstructure:"cli_args"`
	History              bool          `mapstructure:"history"`
}

type DockerConfig struct {
	Memory  string        `mapstructure:"memory"`
	Timeout time.Duration `mapstructure:"timeout"`
	Network bool          `mapstructure:"network"`
	Images  []string      `mapstructure:"images"`
}

type SandboxConfig struct {
	Driver string       `mapstructure:"driver"`
	Docker DockerConfig `mapstructure:"docker"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type Config struct {
	LogLevel         string        `mapstructure:"log_level"`
	Run              RunConfig     `mapstructure:"run"`
	Sandbox          SandboxConfig `mapstructure:"sandbox"`
	Server           ServerConfig  `mapstructure:"server"`
	Storage          StorageConfig `mapstructure:"storage"`
	InterpretersFile string        `mapstructure:"interpreters_file"`
}

// Load reads snipforge.yaml from path, or from the working directory and
// ~/.snipforge when path is empty. A missing default file is not an error.
// Environment variables prefixed SNIPFORGE_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("snipforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.snipforge")
	}

	v.SetEnvPrefix("snipforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Storage.DBPath = expandEnv(cfg.Storage.DBPath)
	cfg.Run.WorkDir = expandEnv(cfg.Run.WorkDir)
	cfg.InterpretersFile = expandEnv(cfg.InterpretersFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	policy := sandbox.DefaultPolicy()

	v.SetDefault("log_level", "info")
	v.SetDefault("run.work_dir", filepath.Join(cacheDir, "snipforge"))
	v.SetDefault("run.level", interp.Bloc.String())
	v.SetDefault("run.timeout", time.Duration(0))
	v.SetDefault("run.selected_interpreters", []string{})
	v.SetDefault("run.cli_args", []string{})
	v.SetDefault("run.history", true)
	v.SetDefault("sandbox.driver", sandbox.DriverLocal)
	v.SetDefault("sandbox.docker.memory", policy.MaxMemory)
	v.SetDefault("sandbox.docker.timeout", policy.MaxTimeout)
	v.SetDefault("sandbox.docker.network", policy.Network)
	v.SetDefault("sandbox.docker.images", policy.Images)
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", filepath.Join(home, ".snipforge", "snipforge.db"))
	v.SetDefault("interpreters_file", "")
}

// Validate checks values viper cannot check on its own.
func (c *Config) Validate() error {
	if _, err := c.MaxLevel(); err != nil {
		return fmt.Errorf("run.level: %w", err)
	}
	switch c.Sandbox.Driver {
	case sandbox.DriverLocal, sandbox.DriverDocker:
	default:
		return fmt.Errorf("sandbox.driver: unknown driver %q", c.Sandbox.Driver)
	}
	if c.Run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative")
	}
	return nil
}

// MaxLevel returns the configured cap on support levels.
func (c *Config) MaxLevel() (interp.SupportLevel, error) {
	return interp.ParseSupportLevel(c.Run.Level)
}

// Policy returns the docker driver limits.
func (c *Config) Policy() sandbox.Policy {
	return sandbox.Policy{
		MaxMemory:  c.Sandbox.Docker.Memory,
		MaxTimeout: c.Sandbox.Docker.Timeout,
		Network:    c.Sandbox.Docker.Network,
		Images:     c.Sandbox.Docker.Images,
	}
}

// expandEnv replaces a leading ~ and ${VAR} references.
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	if strings.HasPrefix(s, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			s = filepath.Join(home, s[2:])
		}
	}
	return os.ExpandEnv(s)
}
