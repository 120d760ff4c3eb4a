package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/ownership-engine/internal/abtest"
	"github.com/danielpatrickdp/ownership-engine/internal/active"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/tuning"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, hybrid.ModeHybrid, c.ClassificationMode())
	assert.Equal(t, abtest.RoundRobin, c.Assignment())
	assert.Equal(t, 0.65, c.Hybrid.Threshold)
	assert.False(t, c.Hybrid.MLEnabled)
	assert.NotNil(t, c.Registry.Logger)
	assert.NotNil(t, c.Retrain.Logger)
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
mode: ensemble
hybrid:
  threshold: 0.7
  ml_enabled: true
active:
  strategy: entropy
registry:
  thresholds:
    min_accuracy: 0.9
abtest:
  assignment: random
  seed: 7
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, hybrid.ModeEnsemble, c.ClassificationMode())
	assert.Equal(t, 0.7, c.Hybrid.Threshold)
	assert.True(t, c.Hybrid.MLEnabled)
	assert.Equal(t, active.Entropy, c.Active.Strategy)
	assert.Equal(t, 0.9, c.Registry.Thresholds.MinAccuracy)
	assert.Equal(t, 0.80, c.Registry.Thresholds.MinPrecision)
	assert.Equal(t, abtest.Random, c.Assignment())
	assert.Equal(t, uint64(7), c.ABTest.Seed)

	def := Default()
	assert.Equal(t, def.Retrain.MinTrain, c.Retrain.MinTrain)
	assert.Equal(t, def.Tuning.Candidates, c.Tuning.Candidates)
	assert.Equal(t, def.Storage, c.Storage)
	assert.NotNil(t, c.Retrain.Logger)
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "engine.toml", `
mode = "rules"

[tuning]
candidates = [0.5, 0.6, 0.75]
criteria = "max-f1"

[retrain]
min_precision = 0.9
train_ratio = 0.6
validation_ratio = 0.2

[schedule]
day = 3
hour = 4
minute = 30
tz_offset = -5

[storage]
db_path = "/var/lib/own.db"
`)
	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, hybrid.ModeRules, c.ClassificationMode())
	assert.Equal(t, []float64{0.5, 0.6, 0.75}, c.Tuning.Candidates)
	assert.Equal(t, 0.9, c.Retrain.MinPrecision)
	assert.Equal(t, 0.80, c.Retrain.MinRecall)
	assert.Equal(t, uint8(3), c.Schedule.Day)
	assert.Equal(t, int8(-5), c.Schedule.TZOffset)
	assert.Equal(t, "/var/lib/own.db", c.Storage.DBPath)
	assert.Equal(t, ".ownership", c.Storage.SnapshotDir)

	tuner := c.Tuner()
	assert.Equal(t, tuning.MaxF1, tuner.Criteria())
	assert.Equal(t, []float64{0.5, 0.6, 0.75}, tuner.Candidates())
}

func TestLoadClampsSchedule(t *testing.T) {
	path := writeFile(t, "engine.yml", "schedule:\n  day: 9\n  hour: 30\n  minute: 75\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), c.Schedule.Day)
	assert.Equal(t, uint8(23), c.Schedule.Hour)
	assert.Equal(t, uint8(59), c.Schedule.Minute)
}

func TestLoadEmptyYAML(t *testing.T) {
	c, err := Load(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Mode, c.Mode)
}

func TestLoadUnknownFormat(t *testing.T) {
	_, err := Load(writeFile(t, "engine.json", "{}"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "engine.yaml", "hybird:\n  threshold: 0.5\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "engine.toml", "[hybrid]\nthreshhold = 0.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hybrid.threshhold")
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	_, err := Load(writeFile(t, "engine.yaml", "active:\n  strategy: coin\n"))
	assert.Error(t, err)
}

func TestLoadTOMLEmptyCandidates(t *testing.T) {
	_, err := Load(writeFile(t, "engine.toml", "[tuning]\ncandidates = []\n"))
	assert.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	c := Default()
	c.Tuning.Candidates = nil
	c.Tuning.Criteria = "max-vibes"
	c.Mode = "vote"
	c.ABTest.Assignment = "coin-flip"
	c.Active.Strategy = active.Strategy(42)

	err := c.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "empty candidate list")
	assert.Contains(t, msg, "max-vibes")
	assert.Contains(t, msg, "vote")
	assert.Contains(t, msg, "coin-flip")
	assert.Contains(t, msg, "active:")

	assert.Equal(t, hybrid.ModeHybrid, c.ClassificationMode())
	assert.Equal(t, abtest.RoundRobin, c.Assignment())
}

func TestValidateRatiosAndThreshold(t *testing.T) {
	c := Default()
	c.Retrain.TrainRatio = 0.8
	c.Retrain.ValidationRatio = 0.2
	c.Hybrid.Threshold = 1.5
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must leave a test split")
	assert.Contains(t, err.Error(), "threshold 1.50")
}
