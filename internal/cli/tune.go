package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/replay"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/tuning"
)

func newTuneCmd(a *app) *cobra.Command {
	var fixture, criteria, out string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Find the ML confidence threshold that best serves a labeled fixture",
		Example: `  ownctl tune --fixture testdata/labeled_cases.json
  ownctl tune --fixture cases.json --criteria min-fallback --out tuning.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTune(a, fixture, criteria, out, jsonOut, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&fixture, "fixture", "f", "", "Labeled replay fixture (JSON)")
	cmd.Flags().StringVar(&criteria, "criteria", "", "max-accuracy, max-f1, balanced or min-fallback (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the Markdown report here instead of stdout")
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output the tuning result as JSON")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

func runTune(a *app, fixturePath, criteria, out string, jsonOut bool, w io.Writer) error {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		return err
	}
	tuner := a.config.Tuner()
	if criteria != "" {
		c, err := tuning.ParseCriteria(criteria)
		if err != nil {
			return err
		}
		tuner.WithCriteria(c)
	}

	result := tuner.Tune(replay.ValidationSamples(f.ToCases()))
	a.logger.Info("threshold tuned",
		slog.Int("samples", len(f.Cases)),
		slog.Float64("threshold", result.OptimalThreshold),
		slog.Float64("improvement", result.Improvement))

	if jsonOut {
		return writeJSON(w, result)
	}
	if err := writeReport(w, out, result.Markdown()); err != nil {
		return err
	}
	if result.Improvement > 0 {
		good.Fprintf(w, "adopt hybrid at threshold %.2f (+%.1f%%)\n", result.OptimalThreshold, result.Improvement*100)
	} else {
		warn.Fprintln(w, "keep rules only")
	}
	return nil
}

// fixtureSamples reads a replay fixture as labeled training samples.
func fixtureSamples(path string) ([]retrain.Sample, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return replay.TrainingSamples(f.ToCases()), nil
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }
