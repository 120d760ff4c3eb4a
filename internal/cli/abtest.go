package cli

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/abtest"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/replay"
	"github.com/danielpatrickdp/ownership-engine/internal/snapshot"
	"github.com/danielpatrickdp/ownership-engine/internal/telemetry"
)

type abtestOptions struct {
	fixture    string
	name       string
	assignment string
	seed       uint64
	out        string
	metrics    string
}

func newABTestCmd(a *app) *cobra.Command {
	var opts abtestOptions
	cmd := &cobra.Command{
		Use:   "abtest",
		Short: "Compare rules-only (control) with the configured mode (treatment)",
		Long: `abtest replays a labeled fixture, assigning each case to the control arm
(rules only) or the treatment arm (the fixture's classification mode), and
reports accuracy, confidence and latency per arm with a chi-squared test.
Observations are kept in the snapshot directory for later reports.`,
		Example: `  ownctl abtest --fixture cases.json --assignment random --seed 7
  ownctl abtest report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runABTest(a, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.fixture, "fixture", "f", "", "Labeled replay fixture (JSON)")
	cmd.Flags().StringVar(&opts.name, "name", "rules-vs-hybrid", "Experiment name")
	cmd.Flags().StringVar(&opts.assignment, "assignment", "", "round-robin, random, all-control or all-treatment (default from config)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "Seed for random assignment (default from config)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the report here instead of stdout")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "Write prometheus metrics to this textfile")
	_ = cmd.MarkFlagRequired("fixture")

	cmd.AddCommand(newABTestReportCmd(a))
	return cmd
}

func runABTest(a *app, opts abtestOptions, w io.Writer) error {
	f, err := replay.LoadFixture(opts.fixture)
	if err != nil {
		return err
	}
	strategy := a.config.Assignment()
	if opts.assignment != "" {
		if strategy, err = abtest.ParseAssignment(opts.assignment); err != nil {
			return err
		}
	}
	seed := a.config.ABTest.Seed
	if opts.seed != 0 {
		seed = opts.seed
	}

	rc := f.Config.ToReplayConfig()
	treatmentMode := rc.Mode
	if treatmentMode == hybrid.ModeRules {
		treatmentMode = hybrid.ModeHybrid
	}
	hc := hybrid.New(rc.Classifier)
	hc.EnableML()

	runner := abtest.NewRunner(opts.name, "rules-only control against "+treatmentMode.String()+" treatment", strategy).
		WithSeed(seed)
	sink := telemetry.NewSink()

	cases := f.ToCases()
	observations := make([]abtest.Observation, 0, len(cases))
	for _, c := range cases {
		v := runner.Assign()
		mode := hybrid.ModeRules
		if v == abtest.Treatment {
			mode = treatmentMode
		}
		start := time.Now()
		r := replay.ClassifyCase(hc, mode, c)
		expected := c.Expected
		obs := abtest.NewObservation(v, r, &expected, time.Since(start))

		runner.Experiment().Record(obs)
		observations = append(observations, obs)
		sink.RecordObservation(obs)
		sink.RecordDecision(r)
	}

	path, err := a.snapshotPath(observationsFile)
	if err != nil {
		return err
	}
	if err := snapshot.SaveObservations(path, observations); err != nil {
		return err
	}
	if opts.metrics != "" {
		if err := sink.WriteTextfile(opts.metrics); err != nil {
			return err
		}
	}

	exp := runner.Experiment()
	better, p := exp.IsTreatmentBetter()
	a.logger.Info("experiment finished",
		slog.String("id", exp.ID.String()),
		slog.Uint64("observations", exp.TotalObservations()),
		slog.Float64("accuracy_lift", exp.AccuracyLift()),
		slog.Float64("p_value", p))

	if err := writeReport(w, opts.out, runner.Finish()); err != nil {
		return err
	}
	if better {
		good.Fprintf(w, "treatment wins (p=%.2f)\n", p)
	} else {
		warn.Fprintf(w, "no significant improvement (p=%.2f)\n", p)
	}
	return nil
}

func newABTestReportCmd(a *app) *cobra.Command {
	var out, name string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the report from the last run's stored observations",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.snapshotPath(observationsFile)
			if err != nil {
				return err
			}
			obs, err := snapshot.LoadObservations(path)
			if err != nil {
				return err
			}
			exp := abtest.NewExperiment(name, "rebuilt from stored observations")
			for _, o := range obs {
				exp.Record(o)
			}
			exp.End()
			return writeReport(cmd.OutOrStdout(), out, exp.Markdown())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report here instead of stdout")
	cmd.Flags().StringVar(&name, "name", "rules-vs-hybrid", "Experiment name")
	return cmd
}
