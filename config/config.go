package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"bro.dev/mint/consensus"
)

const (
	defaultDeployment = "testnet4"
	defaultLogLevel   = "info"
	maxWorkers        = 256
)

// Config is the operator configuration of the verifier tooling. The
// verifier itself only ever sees the resolved consensus.Params.
type Config struct {
	Deployment string           `yaml:"deployment"`
	Overrides  *ParamsOverrides `yaml:"overrides"`
	Log        *LogConfig       `yaml:"log"`
	Journal    JournalConfig    `yaml:"journal"`
	// Workers bounds parallel verification in batch mode. Zero means one
	// per CPU.
	Workers int `yaml:"workers"`
}

// ParamsOverrides replaces individual deployment constants. Intended for
// private test deployments.
type ParamsOverrides struct {
	MinTargetBits        *uint32 `yaml:"minTargetBits"`
	Denomination         *uint64 `yaml:"denomination"`
	HalvingPeriodSeconds *uint64 `yaml:"halvingPeriodSeconds"`
	StartTime            *uint64 `yaml:"startTime"`
}

type JournalConfig struct {
	// Path is the journal directory. Empty disables the journal.
	Path string `yaml:"path"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".bro"
	}
	return filepath.Join(home, ".bro")
}

// DefaultJournalPath is where the journal lives when enabled without an
// explicit path.
func DefaultJournalPath() string {
	return filepath.Join(DefaultDataDir(), "journal")
}

func DefaultConfig() Config {
	return Config{}.WithDefaults()
}

// WithDefaults returns a copy of the Config with any missing fields set to
// their default values.
func (c Config) WithDefaults() Config {
	cpy := c
	if strings.TrimSpace(cpy.Deployment) == "" {
		cpy.Deployment = defaultDeployment
	}
	if cpy.Log == nil {
		cpy.Log = &LogConfig{}
	}
	log := cpy.Log.WithDefaults()
	cpy.Log = &log
	if cpy.Workers == 0 {
		cpy.Workers = runtime.NumCPU()
	}
	return cpy
}

// Load reads a YAML config file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied.
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(b, &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return &cfg, nil
}

// Validate checks a config that has already had defaults applied.
func (c Config) Validate() error {
	if _, err := consensus.DeploymentParams(c.Deployment); err != nil {
		return errors.Wrapf(err, "deployment (known: %s)", strings.Join(consensus.Deployments(), ", "))
	}
	if c.Workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if c.Workers > maxWorkers {
		return errors.Errorf("workers must be <= %d", maxWorkers)
	}
	if c.Log != nil {
		level := strings.ToLower(strings.TrimSpace(c.Log.Level))
		if _, ok := allowedLogLevels[level]; !ok {
			return errors.Errorf("invalid log level %q", c.Log.Level)
		}
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	return nil
}

// Params resolves the configured deployment with overrides applied.
func (c Config) Params() (consensus.Params, error) {
	p, err := consensus.DeploymentParams(c.Deployment)
	if err != nil {
		return consensus.Params{}, errors.Wrap(err, "resolve params")
	}
	if o := c.Overrides; o != nil {
		if o.MinTargetBits != nil {
			p.MinTargetBits = *o.MinTargetBits
		}
		if o.Denomination != nil {
			p.Reward.Denomination = *o.Denomination
		}
		if o.HalvingPeriodSeconds != nil {
			p.Reward.HalvingPeriodSeconds = *o.HalvingPeriodSeconds
		}
		if o.StartTime != nil {
			p.Reward.StartTime = *o.StartTime
		}
	}
	if err := p.Validate(); err != nil {
		return consensus.Params{}, errors.Wrap(err, "resolve params")
	}
	return p, nil
}
