package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/ownership-engine/internal/abtest"
	"github.com/danielpatrickdp/ownership-engine/internal/active"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/tuning"
)

// ErrUnknownFormat is returned for config files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("unknown config format")

// #region types
// TuningConfig selects the threshold grid and criterion.
type TuningConfig struct {
	Candidates []float64 `yaml:"candidates" toml:"candidates"`
	Criteria   string    `yaml:"criteria" toml:"criteria"`
}

// ABTestConfig configures experiment arm assignment.
type ABTestConfig struct {
	Assignment string `yaml:"assignment" toml:"assignment"`
	Seed       uint64 `yaml:"seed" toml:"seed"`
}

// StorageConfig locates the SQLite database and snapshot files.
type StorageConfig struct {
	DBPath      string `yaml:"db_path" toml:"db_path"`
	SnapshotDir string `yaml:"snapshot_dir" toml:"snapshot_dir"`
}

// Config aggregates every component's configuration.
type Config struct {
	Mode     string                 `yaml:"mode" toml:"mode"`
	Hybrid   hybrid.Config          `yaml:"hybrid" toml:"hybrid"`
	Tuning   TuningConfig           `yaml:"tuning" toml:"tuning"`
	Active   active.LearnerConfig   `yaml:"active" toml:"active"`
	Registry registry.ManagerConfig `yaml:"registry" toml:"registry"`
	Retrain  retrain.Config         `yaml:"retrain" toml:"retrain"`
	Schedule retrain.Schedule       `yaml:"schedule" toml:"schedule"`
	ABTest   ABTestConfig           `yaml:"abtest" toml:"abtest"`
	Storage  StorageConfig          `yaml:"storage" toml:"storage"`
}

// #endregion types

// #region defaults
// Default returns every component's defaults.
func Default() Config {
	return Config{
		Mode:   hybrid.ModeHybrid.String(),
		Hybrid: hybrid.DefaultConfig(),
		Tuning: TuningConfig{
			Candidates: tuning.DefaultCandidates(),
			Criteria:   tuning.MaxAccuracy.String(),
		},
		Active:   active.DefaultLearnerConfig(),
		Registry: registry.DefaultManagerConfig(),
		Retrain:  retrain.DefaultConfig(),
		Schedule: retrain.DefaultSchedule(),
		ABTest: ABTestConfig{
			Assignment: abtest.RoundRobin.String(),
			Seed:       abtest.DefaultSeed,
		},
		Storage: StorageConfig{
			DBPath:      "ownership.db",
			SnapshotDir: ".ownership",
		},
	}
}

// #endregion defaults

// #region load
// Load reads a YAML or TOML file over the defaults. Keys missing from the file
// keep their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &c)
		if err != nil {
			return c, fmt.Errorf("parse config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return c, fmt.Errorf("parse config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
		if meta.IsDefined("tuning", "candidates") && len(c.Tuning.Candidates) == 0 {
			return c, fmt.Errorf("parse config %s: tuning.candidates is empty", path)
		}
	default:
		return c, fmt.Errorf("load %s: %w", path, ErrUnknownFormat)
	}

	c.Schedule = retrain.NewSchedule(c.Schedule.Day, c.Schedule.Hour, c.Schedule.Minute).
		WithTimezone(c.Schedule.TZOffset)
	return c, nil
}

// #endregion load

// #region validate
// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if len(c.Tuning.Candidates) == 0 {
		errs = append(errs, errors.New("tuning: empty candidate list"))
	}
	if slices.ContainsFunc(c.Tuning.Candidates, func(v float64) bool { return v < 0 || v > 1 }) {
		errs = append(errs, errors.New("tuning: candidates must lie in [0,1]"))
	}
	if _, err := tuning.ParseCriteria(c.Tuning.Criteria); err != nil {
		errs = append(errs, fmt.Errorf("tuning: %w", err))
	}
	if _, err := hybrid.ParseMode(c.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode: %w", err))
	}
	if c.Hybrid.Threshold < 0 || c.Hybrid.Threshold > 1 {
		errs = append(errs, fmt.Errorf("hybrid: threshold %.2f outside [0,1]", c.Hybrid.Threshold))
	}
	if _, err := active.ParseStrategy(c.Active.Strategy.String()); err != nil {
		errs = append(errs, fmt.Errorf("active: %w", err))
	}
	if _, err := abtest.ParseAssignment(c.ABTest.Assignment); err != nil {
		errs = append(errs, fmt.Errorf("abtest: %w", err))
	}
	if c.Retrain.TrainRatio <= 0 || c.Retrain.ValidationRatio < 0 || c.Retrain.TrainRatio+c.Retrain.ValidationRatio >= 1 {
		errs = append(errs, fmt.Errorf("retrain: train %.2f + validation %.2f must leave a test split",
			c.Retrain.TrainRatio, c.Retrain.ValidationRatio))
	}
	return errors.Join(errs...)
}

// #endregion validate

// #region accessors
// ClassificationMode parses Mode, falling back to hybrid.
func (c Config) ClassificationMode() hybrid.Mode {
	m, err := hybrid.ParseMode(c.Mode)
	if err != nil {
		return hybrid.ModeHybrid
	}
	return m
}

// Tuner builds a tuner over the configured grid and criterion.
func (c Config) Tuner() *tuning.Tuner {
	t := tuning.NewTuner()
	if len(c.Tuning.Candidates) > 0 {
		t.WithCandidates(c.Tuning.Candidates)
	}
	if crit, err := tuning.ParseCriteria(c.Tuning.Criteria); err == nil {
		t.WithCriteria(crit)
	}
	return t
}

// Assignment parses the A/B assignment strategy, falling back to round-robin.
func (c Config) Assignment() abtest.Assignment {
	a, err := abtest.ParseAssignment(c.ABTest.Assignment)
	if err != nil {
		return abtest.RoundRobin
	}
	return a
}

// WithLogger points every workflow component at logger.
func (c Config) WithLogger(logger *slog.Logger) Config {
	c.Registry.Logger = logger
	c.Retrain.Logger = logger
	return c
}

// #endregion accessors
