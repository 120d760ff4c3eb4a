package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/classifier"
	"github.com/danielpatrickdp/ownership-engine/internal/eval"
	"github.com/danielpatrickdp/ownership-engine/internal/model"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/telemetry"
)

type retrainOptions struct {
	samples     string
	trainerAddr string
	scheduled   bool
	metrics     string
}

func newRetrainCmd(a *app) *cobra.Command {
	var opts retrainOptions
	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Run one retraining cycle against a remote trainer",
		Long: `Retrain appends any --samples to the store's training set, sends the
whole set to the trainer service, and registers the result when it clears the
quality gate without degrading the active version. Every cycle is recorded.`,
		Example: `  ownctl retrain --samples labeled.json --trainer-addr localhost:50052
  ownctl retrain --trainer-addr localhost:50052 --scheduled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRetrain(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.samples, "samples", "s", "", "JSON file of labeled samples to add first")
	cmd.Flags().StringVar(&opts.trainerAddr, "trainer-addr", "localhost:50052", "gRPC address of the trainer service")
	cmd.Flags().BoolVar(&opts.scheduled, "scheduled", false, "Only run inside the configured schedule slot")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "Write prometheus metrics to this textfile")
	return cmd
}

func runRetrain(ctx context.Context, a *app, opts retrainOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.scheduled && !a.config.Schedule.ShouldRun(time.Now()) {
		fmt.Fprintf(w, "not scheduled now; next run %s (%s)\n",
			a.config.Schedule.Next(time.Now()).Format(time.RFC3339), a.config.Schedule.Description())
		return nil
	}

	trainer, err := model.NewRemoteTrainer(opts.trainerAddr)
	if err != nil {
		return err
	}
	defer trainer.Close()
	return retrainWith(ctx, a, trainer, opts, w)
}

// retrainWith runs one cycle with trainer and persists the outcome.
func retrainWith(ctx context.Context, a *app, trainer retrain.Trainer, opts retrainOptions, w io.Writer) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.samples != "" {
		var incoming []retrain.Sample
		if err := readJSON(opts.samples, &incoming); err != nil {
			return err
		}
		if err := st.AddSamples(incoming); err != nil {
			return err
		}
	}
	samples, err := st.LoadSamples()
	if err != nil {
		return err
	}

	mgr, err := st.LoadRegistry(a.config.Registry)
	if err != nil {
		return err
	}
	history, err := st.ListExecutions(0)
	if err != nil {
		return err
	}
	p := retrain.NewPipeline(trainer, mgr, a.config.Retrain)
	p.LoadHistory(history)

	outcome := p.Execute(ctx, samples)

	if err := st.SaveRegistry(mgr); err != nil {
		return err
	}
	execs := p.History()
	if err := st.SaveExecution(execs[len(execs)-1]); err != nil {
		return err
	}

	if opts.metrics != "" {
		sink := telemetry.NewSink()
		sink.RecordOutcome(outcome)
		if err := sink.WriteTextfile(opts.metrics); err != nil {
			return err
		}
	}

	a.logger.Info("retraining cycle recorded",
		slog.String("status", string(outcome.Status)),
		slog.Int("samples", len(samples)),
		slog.Float64("success_rate", p.SuccessRate()))

	if outcome.IsSuccess() {
		good.Fprintln(w, outcome.Summary())
	} else {
		bad.Fprintln(w, outcome.Summary())
	}
	return nil
}

// #region check
func newRegistryCheckCmd(a *app) *cobra.Command {
	var modelAddr, fixture string
	var autoRollback bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the live model on labeled data and roll back if it falls short",
		Example: `  ownctl registry check --model-addr localhost:50051
  ownctl registry check --model-addr localhost:50051 --fixture cases.json --auto-rollback`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m model.Model = model.Null{}
			if modelAddr != "" {
				remote, err := model.NewRemote(model.RemoteConfig{Addr: modelAddr, Name: "remote", Timeout: model.DefaultRemoteConfig().Timeout})
				if err != nil {
					return err
				}
				defer remote.Close()
				m = remote
			}
			return runCheck(a, classifier.NewLearned(m), fixture, autoRollback, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&modelAddr, "model-addr", "", "gRPC address of the live predictor")
	cmd.Flags().StringVarP(&fixture, "fixture", "f", "", "Labeled replay fixture (default: the store's training samples)")
	cmd.Flags().BoolVar(&autoRollback, "auto-rollback", false, "Roll back when quality fails")
	return cmd
}

func runCheck(a *app, c classifier.Classifier, fixture string, autoRollback bool, w io.Writer) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var samples []retrain.Sample
	if fixture != "" {
		if samples, err = fixtureSamples(fixture); err != nil {
			return err
		}
	} else if samples, err = st.LoadSamples(); err != nil {
		return err
	}

	mgr, err := st.LoadRegistry(a.config.Registry)
	if err != nil {
		return err
	}

	metrics := eval.EvaluateWithThreshold(c, samples, a.config.Hybrid.Threshold)
	result := eval.NewHarness(eval.DefaultEvalConfig()).Run(metrics, mgr.Thresholds())
	for _, m := range result.Metrics {
		mark := good.Sprint("pass")
		if !m.Pass {
			mark = bad.Sprint("FAIL")
		}
		fmt.Fprintf(w, "%-10s %8.4f  (min %.4f)  %s\n", m.Name, m.Value, m.Threshold, mark)
	}
	fmt.Fprintln(w, result.Reason)

	if !autoRollback {
		return nil
	}
	rb, rolled := mgr.AutoRollbackIfNeeded(eval.ToQualityMetrics(metrics))
	if !rolled {
		fmt.Fprintln(w, "no rollback")
		return nil
	}
	if err := st.SaveRegistry(mgr); err != nil {
		return err
	}
	warn.Fprintf(w, "rolled back %s → %s: %s\n", rb.From, rb.To, rb.Reason)
	return nil
}

// #endregion check
