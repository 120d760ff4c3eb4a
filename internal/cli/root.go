package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/config"
	"github.com/danielpatrickdp/ownership-engine/internal/store"
)

// ConfigEnv names the environment variable consulted when --config is absent.
const ConfigEnv = "OWNCTL_CONFIG"

var (
	good = color.New(color.FgGreen, color.Bold)
	bad  = color.New(color.FgRed, color.Bold)
	warn = color.New(color.FgYellow)
)

// #region app
// app is the state shared by every subcommand. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	verbose    bool

	config config.Config
	logger *slog.Logger
}

func (a *app) load(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	c := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		c = loaded
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.config = c.WithLogger(a.logger)
	return nil
}

func (a *app) openStore() (*store.Store, error) {
	path := a.config.Storage.DBPath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return store.NewStore(path)
}

// snapshotPath places name under the configured snapshot directory,
// creating the directory on first use.
func (a *app) snapshotPath(name string) (string, error) {
	dir := a.config.Storage.SnapshotDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// #endregion app

// #region root
// NewRootCmd assembles ownctl and every subcommand.
func NewRootCmd(version string) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "ownctl",
		Short: "Ownership decision engine for C-to-Rust pointer translation",
		Long: `ownctl classifies C pointer variables into Rust ownership kinds with
hand-written rules, an optional learned model, or both. It also tunes the
confidence threshold, manages model versions, drives retraining, queues
uncertain decisions for labeling, localizes inference faults and runs
A/B experiments between classifiers.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", envOr(ConfigEnv, ""), "YAML or TOML config file (env "+ConfigEnv+")")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	root.AddCommand(
		newClassifyCmd(a),
		newTuneCmd(a),
		newRegistryCmd(a),
		newRetrainCmd(a),
		newQueueCmd(a),
		newErrorsCmd(a),
		newABTestCmd(a),
	)
	return root
}

// Execute runs ownctl with os.Args and returns the process exit code.
func Execute(version string) int {
	root := NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "%s %v\n", bad.Sprint("error:"), err)
		return 1
	}
	return 0
}

// #endregion root

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeReport prints report to w, or writes it to path when one is given.
func writeReport(w io.Writer, path, report string) error {
	if path == "" {
		_, err := io.WriteString(w, report)
		return err
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(w, "report written to %s\n", path)
	return nil
}

// #endregion helpers
