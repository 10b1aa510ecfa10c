package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"guardpost/internal/policy"
)

// Config is the root configuration.
type Config struct {
	GuardPost GuardPostConfig `yaml:"guardpost"`
}

// GuardPostConfig is the project configuration.
type GuardPostConfig struct {
	Input    InputConfig    `yaml:"input"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Engine   EngineConfig   `yaml:"engine"`
	Rules    RulesConfig    `yaml:"rules"`
	Actions  OutputConfig   `yaml:"actions"`
	Audit    OutputConfig   `yaml:"audit"`
	DM       DMConfig       `yaml:"dm"`
	Policy   PolicyConfig   `yaml:"policy"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig controls the input reader.
type InputConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// PipelineConfig controls pipeline behavior.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// EngineConfig controls detection tunables shared across guilds. Spam rate
// limits live in the guild policy, not here.
type EngineConfig struct {
	DecayPeriod         time.Duration `yaml:"decay_period"`
	DecayAmount         int           `yaml:"decay_amount"`
	VerificationTimeout time.Duration `yaml:"verification_timeout"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
}

// RulesConfig controls content rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// RedisConfig controls Redis input and output lists.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Key          string        `yaml:"key"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// OutputConfig controls an outbound sink.
type OutputConfig struct {
	Mode  string           `yaml:"mode"` // redis|file|http
	Redis RedisConfig      `yaml:"redis"`
	File  FileOutputConfig `yaml:"file"`
	HTTP  HTTPOutputConfig `yaml:"http"`
}

// DMConfig controls the direct message sink.
type DMConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// PolicyConfig holds the default guild policy and per-guild overrides.
type PolicyConfig struct {
	Default policy.Policy            `yaml:"default"`
	Guilds  map[string]policy.Policy `yaml:"guilds"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path string `yaml:"path"`
}

// HTTPOutputConfig config for remote output.
type HTTPOutputConfig struct {
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
