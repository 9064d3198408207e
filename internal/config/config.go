package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dayline/internal/schedule"
	"dayline/internal/score"
	"dayline/internal/timeutil"
)

// Config models dayline.yml.
type Config struct {
	User struct {
		ID string `yaml:"id"`
	} `yaml:"user"`
	Scoring    score.Weights `yaml:"scoring"`
	Validation Validation    `yaml:"validation"`
	Generation Generation    `yaml:"generation"`
}

// Validation holds the schedule limits. Windows are "HH:MM-HH:MM".
type Validation struct {
	MaxHardBlocks      int      `yaml:"max_hard_blocks"`
	OptimalHardBlocks  int      `yaml:"optimal_hard_blocks"`
	MaxDeepWorkBlocks  int      `yaml:"max_deep_work_blocks"`
	MaxDeepWorkMinutes int      `yaml:"max_deep_work_minutes"`
	DeepWorkWindows    []string `yaml:"deep_work_windows"`
	AdminWindows       []string `yaml:"admin_windows"`
}

// Generation configures the background stamping worker and its queue.
type Generation struct {
	StampTime     string `yaml:"stamp_time"`
	MaxRetries    int    `yaml:"max_retries"`
	BackoffBaseMS int    `yaml:"backoff_base_ms"`
	BackoffMaxMS  int    `yaml:"backoff_max_ms"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dl init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.User.ID == "" {
		return fmt.Errorf("config.user.id is required")
	}
	if c.Scoring.RateThreshold <= 0 || c.Scoring.RateThreshold > 1 {
		return fmt.Errorf("config.scoring.rate_threshold must be in (0,1]")
	}
	if c.Validation.MaxHardBlocks < c.Validation.OptimalHardBlocks {
		return fmt.Errorf("config.validation.max_hard_blocks below the optimum")
	}
	if c.Validation.MaxDeepWorkBlocks <= 0 || c.Validation.MaxDeepWorkMinutes <= 0 {
		return fmt.Errorf("config.validation deep-work limits must be positive")
	}
	if _, err := c.Rules(); err != nil {
		return err
	}
	if c.Generation.StampTime != "" {
		if _, err := timeutil.ToMinutes(c.Generation.StampTime); err != nil {
			return fmt.Errorf("config.generation.stamp_time: %w", err)
		}
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("config.generation.max_retries must not be negative")
	}
	if c.Generation.BackoffBaseMS <= 0 || c.Generation.BackoffMaxMS < c.Generation.BackoffBaseMS {
		return fmt.Errorf("config.generation backoff bounds are inconsistent")
	}
	return nil
}

// Rules converts the validation section to the engine's rule set.
func (c *Config) Rules() (schedule.Rules, error) {
	rules := schedule.Rules{
		MaxHardBlocks:      c.Validation.MaxHardBlocks,
		OptimalHardBlocks:  c.Validation.OptimalHardBlocks,
		MaxDeepWorkBlocks:  c.Validation.MaxDeepWorkBlocks,
		MaxDeepWorkMinutes: c.Validation.MaxDeepWorkMinutes,
	}
	var err error
	if rules.DeepWorkWindows, err = parseWindows(c.Validation.DeepWorkWindows); err != nil {
		return schedule.Rules{}, fmt.Errorf("config.validation.deep_work_windows: %w", err)
	}
	if rules.AdminWindows, err = parseWindows(c.Validation.AdminWindows); err != nil {
		return schedule.Rules{}, fmt.Errorf("config.validation.admin_windows: %w", err)
	}
	return rules, nil
}

func parseWindows(specs []string) ([]schedule.Window, error) {
	windows := make([]schedule.Window, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, "-", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("window %q is not HH:MM-HH:MM", spec)
		}
		start, end, err := timeutil.Span(parts[0], parts[1])
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", spec, err)
		}
		windows = append(windows, schedule.Window{Start: start, End: end})
	}
	return windows, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "dayline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(userID string) string {
	return fmt.Sprintf(defaultTemplate, userID)
}

// Default returns the default Config struct for a user.
func Default(userID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, userID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `user:
  id: %s

scoring:
  block_base: 5
  event_block_bonus: 8
  perfect_block_per_task: 2
  perfect_block_cap: 10
  task_base: 8
  high_priority: 10
  medium_priority: 5
  low_priority: 2
  project_task: 8
  routine_rate_bonus: 20
  high_priority_rate_bonus: 25
  block_rate_bonus: 30
  rate_threshold: 0.8

validation:
  max_hard_blocks: 3
  optimal_hard_blocks: 2
  max_deep_work_blocks: 2
  max_deep_work_minutes: 210
  deep_work_windows: ["08:00-11:00", "15:00-17:00"]
  admin_windows: ["11:00-12:00", "14:00-15:00", "16:30-18:00"]

generation:
  stamp_time: "05:00"
  max_retries: 5
  backoff_base_ms: 500
  backoff_max_ms: 60000
`
