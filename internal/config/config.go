// Package config loads the tuning configuration. Every knob here is an
// empirically chosen constant, not a semantic guarantee, so all of them are
// overridable from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Memory     MemoryConfig     `yaml:"memory"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
}

type ClassifierConfig struct {
	// FuzzyThreshold is the minimum keyword similarity accepted by the
	// fuzzy tier, in (0,1].
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

type MemoryConfig struct {
	// WindowSize is how many trailing messages the indexer considers.
	WindowSize int `yaml:"window_size"`
	// TopK is how many relevant prior messages are linked per turn.
	TopK int `yaml:"top_k"`
	// Relevance scoring coefficients.
	TokenWeight  float64 `yaml:"token_weight"`
	EntityWeight float64 `yaml:"entity_weight"`
	TagWeight    float64 `yaml:"tag_weight"`
}

// SessionsConfig durations are Go duration strings ("30m", "1h").
type SessionsConfig struct {
	// TTL is how long an idle conversation keeps its last routed intent.
	TTL string `yaml:"ttl"`
	// MaxEntries caps how many conversations are tracked at once.
	MaxEntries int `yaml:"max_entries"`
}

// TimeoutsConfig durations are Go duration strings ("8s", "20s").
type TimeoutsConfig struct {
	// LLM bounds the classification fallback call.
	LLM string `yaml:"llm"`
	// Handler bounds each agent invocation.
	Handler string `yaml:"handler"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Classifier: ClassifierConfig{FuzzyThreshold: 0.75},
		Memory: MemoryConfig{
			WindowSize:   20,
			TopK:         5,
			TokenWeight:  0.5,
			EntityWeight: 3.0,
			TagWeight:    2.0,
		},
		Sessions: SessionsConfig{TTL: "30m", MaxEntries: 10_000},
		Timeouts: TimeoutsConfig{LLM: "8s", Handler: "20s"},
	}
}

// Load reads a YAML config file over the defaults. Unset fields keep their
// default values.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: invalid %s: %w", path, err)
	}
	return cfg, nil
}

// SessionTTL returns the session TTL as a duration.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.Sessions.TTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// LLMTimeout returns the LLM fallback timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.LLM)
	if err != nil {
		return 8 * time.Second
	}
	return d
}

// HandlerTimeout returns the agent invocation timeout as a duration.
func (c *Config) HandlerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeouts.Handler)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// applyDefaults replaces zero-valued fields so a sparse file never zeroes a
// knob.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Classifier.FuzzyThreshold == 0 {
		c.Classifier.FuzzyThreshold = def.Classifier.FuzzyThreshold
	}
	if c.Memory.WindowSize == 0 {
		c.Memory.WindowSize = def.Memory.WindowSize
	}
	if c.Memory.TopK == 0 {
		c.Memory.TopK = def.Memory.TopK
	}
	if c.Memory.TokenWeight == 0 {
		c.Memory.TokenWeight = def.Memory.TokenWeight
	}
	if c.Memory.EntityWeight == 0 {
		c.Memory.EntityWeight = def.Memory.EntityWeight
	}
	if c.Memory.TagWeight == 0 {
		c.Memory.TagWeight = def.Memory.TagWeight
	}
	if c.Sessions.TTL == "" {
		c.Sessions.TTL = def.Sessions.TTL
	}
	if c.Sessions.MaxEntries == 0 {
		c.Sessions.MaxEntries = def.Sessions.MaxEntries
	}
	if c.Timeouts.LLM == "" {
		c.Timeouts.LLM = def.Timeouts.LLM
	}
	if c.Timeouts.Handler == "" {
		c.Timeouts.Handler = def.Timeouts.Handler
	}
}

func (c *Config) Validate() error {
	if c.Classifier.FuzzyThreshold <= 0 || c.Classifier.FuzzyThreshold > 1 {
		return errors.New("classifier.fuzzy_threshold must be in (0,1]")
	}
	if c.Memory.WindowSize < 0 || c.Memory.TopK < 0 {
		return errors.New("memory.window_size and memory.top_k must not be negative")
	}
	if c.Sessions.MaxEntries < 0 {
		return errors.New("sessions.max_entries must not be negative")
	}
	for name, raw := range map[string]string{
		"sessions.ttl":     c.Sessions.TTL,
		"timeouts.llm":     c.Timeouts.LLM,
		"timeouts.handler": c.Timeouts.Handler,
	} {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}
