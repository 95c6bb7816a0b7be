// Package config loads ditty configuration from file, environment and flags.
//
// Precedence, highest first: explicit overrides, DITTY_* environment
// variables, the config file, built-in defaults. Nested keys map to
// environment variables with dots replaced by underscores, so
// web.addr is DITTY_WEB_ADDR.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dittyapp/ditty/internal/log"
	"github.com/dittyapp/ditty/pkg/visualizer"
	"github.com/dittyapp/ditty/pkg/web"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "DITTY"

// Config is the complete application configuration.
type Config struct {
	Log    log.Options       `mapstructure:"log" yaml:"log" json:"log"`
	Engine visualizer.Config `mapstructure:"engine" yaml:"engine" json:"engine"`
	Web    web.Config        `mapstructure:"web" yaml:"web" json:"web"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log:    log.DefaultOptions(),
		Engine: visualizer.DefaultConfig(),
		Web:    web.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Web.Validate(); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// Loader reads configuration. The zero value is not usable; call NewLoader.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader seeded with the built-in defaults.
func NewLoader() (*Loader, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seeding defaults as a config document registers every key, which
	// AutomaticEnv needs to resolve nested environment overrides.
	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}, nil
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Set overrides a key, taking precedence over every other source.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load merges cfgFile (or ditty.yaml from the search path when empty) and
// returns the validated result. A missing file is only an error when
// cfgFile names it explicitly.
func (l *Loader) Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		l.v.SetConfigFile(cfgFile)
	} else {
		l.v.SetConfigName("ditty")
		for _, dir := range searchPaths() {
			l.v.AddConfigPath(dir)
		}
	}

	if err := l.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Used returns the config file that was merged, or "" if none.
func (l *Loader) Used() string {
	return l.v.ConfigFileUsed()
}

// Load is shorthand for NewLoader followed by Load.
func Load(cfgFile string) (*Config, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.Load(cfgFile)
}

// Encode renders cfg as YAML.
func Encode(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func searchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "ditty"))
	}
	return paths
}
