// Package config loads the experiment suite definition from YAML with
// environment overrides, and hot-reloads it on file changes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/reliancelab/mazesim/internal/agent"
	"github.com/reliancelab/mazesim/internal/runner"
	"github.com/reliancelab/mazesim/internal/tracing"
)

// Suite is the complete run definition: global wiring plus the list of
// experiment configurations to execute.
type Suite struct {
	Name string `mapstructure:"name"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Tracing tracing.Config `mapstructure:"tracing"`

	Session struct {
		RedisAddr string `mapstructure:"redis_addr"` // empty selects memory-only
		MaxTurns  int    `mapstructure:"max_turns"`
	} `mapstructure:"session"`

	Results struct {
		Dir string `mapstructure:"dir"`
		DSN string `mapstructure:"dsn"` // empty disables the SQL store
	} `mapstructure:"results"`

	// Collaborator defaults apply to every configuration that does not
	// override them.
	Collaborator agent.LLMConfig `mapstructure:"collaborator"`

	// Baseline names the tool-free configuration the reliance index is
	// computed against.
	Baseline       string          `mapstructure:"baseline"`
	Configurations []runner.Config `mapstructure:"configurations"`
}

// Load reads the suite from path, or from CONFIG_PATH / ./mazesim.yaml when
// path is empty. MAZESIM_-prefixed environment variables override file keys
// (MAZESIM_SESSION_REDIS_ADDR, MAZESIM_METRICS_PORT, ...).
func Load(path string) (*Suite, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "mazesim.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MAZESIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var s Suite
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "mazesim")
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)
	v.SetDefault("session.max_turns", 50)
	v.SetDefault("results.dir", "results")
	v.SetDefault("collaborator.timeout", 10*time.Second)
	v.SetDefault("collaborator.requests_per_minute", 60)
	v.SetDefault("collaborator.history_turns", 10)
}

// Validate checks the suite and every configuration in it.
func (s *Suite) Validate() error {
	if len(s.Configurations) == 0 {
		return fmt.Errorf("at least one configuration is required")
	}

	names := make(map[string]bool, len(s.Configurations))
	for i := range s.Configurations {
		c := &s.Configurations[i]

		// Propagate collaborator defaults.
		if c.Strategy == "llm" && c.Collaborator.Endpoint == "" {
			c.Collaborator = s.Collaborator
		}

		if err := c.Validate(); err != nil {
			return err
		}
		if names[c.Name] {
			return fmt.Errorf("duplicate configuration name %q", c.Name)
		}
		names[c.Name] = true

		if c.Strategy == "llm" && c.Collaborator.Endpoint == "" {
			return fmt.Errorf("configuration %q uses the llm strategy but no collaborator endpoint is set", c.Name)
		}
	}

	if s.Baseline != "" && !names[s.Baseline] {
		return fmt.Errorf("baseline %q is not among the configurations", s.Baseline)
	}
	return nil
}
