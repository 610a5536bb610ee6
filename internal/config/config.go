package config

import (
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/cj123/ini"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 9996
	DefaultOutputDirectory = "out"
	DefaultQueueSize       = 1024
	DefaultLogLevel        = "info"

	legacySection = "TELEMETRY"
)

type Config struct {
	Host              string  `json:"host" yaml:"host" ini:"HOST"`
	Port              int     `json:"port" yaml:"port" ini:"PORT"`
	OutputDirectory   string  `json:"output_directory" yaml:"output_directory" ini:"OUTPUT_DIRECTORY"`
	MovementThreshold float64 `json:"movement_threshold" yaml:"movement_threshold" ini:"MOVEMENT_THRESHOLD"`
	QueueSize         int     `json:"queue_size" yaml:"queue_size" ini:"QUEUE_SIZE"`
	HistoryDatabase   string  `json:"history_database" yaml:"history_database" ini:"HISTORY_DATABASE"`
	HTTPPort          int     `json:"http_port" yaml:"http_port" ini:"HTTP_PORT"`
	LogLevel          string  `json:"log_level" yaml:"log_level" ini:"LOG_LEVEL"`
}

func Default() *Config {
	c := &Config{}
	c.applyDefaults()

	return c
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}

	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.OutputDirectory == "" {
		c.OutputDirectory = DefaultOutputDirectory
	}

	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}

	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Load reads a yml config, or an ini config with a [TELEMETRY] section in the style of
// the game's own cfg files. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := ioutil.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "config: could not read %s", path)
	}

	var c *Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini":
		c, err = parseLegacy(b)
	default:
		c, err = parseYAML(b)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "config: could not parse %s", path)
	}

	c.applyDefaults()

	return c, nil
}

func parseYAML(b []byte) (*Config, error) {
	var c Config

	if err := yaml.UnmarshalStrict(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func parseLegacy(b []byte) (*Config, error) {
	i, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
	}, b)

	if err != nil {
		return nil, err
	}

	section, err := i.GetSection(legacySection)

	if err != nil {
		return nil, err
	}

	var c Config

	if err := section.MapTo(&c); err != nil {
		return nil, err
	}

	return &c, nil
}
