package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/active"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/snapshot"
)

// queueInput is one model verdict offered to the active learner.
type queueInput struct {
	Variable   string               `json:"variable"`
	Features   ownership.Features   `json:"features"`
	Prediction ownership.Prediction `json:"prediction"`
}

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the active-learning labeling queue",
	}
	cmd.AddCommand(
		newQueueAddCmd(a),
		newQueueLabelCmd(a),
		newQueueExportCmd(a),
		newQueueStatsCmd(a),
		newQueueReportCmd(a),
	)
	return cmd
}

// withLearner restores the learner from its snapshot, runs fn, and saves the
// queue back when fn reports a change.
func (a *app) withLearner(fn func(l *active.Learner) (changed bool, err error)) error {
	path, err := a.snapshotPath(queueFile)
	if err != nil {
		return err
	}
	q, err := snapshot.LoadQueue(path, a.config.Active.Strategy, a.config.Active.MaxPending)
	if err != nil {
		return err
	}
	l := active.NewLearnerWithQueue(a.config.Active, q)
	changed, err := fn(l)
	if err != nil || !changed {
		return err
	}
	return snapshot.SaveQueue(path, l.Queue())
}

func newQueueAddCmd(a *app) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Score model verdicts and queue the uncertain ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			var inputs []queueInput
			if err := readJSON(input, &inputs); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.withLearner(func(l *active.Learner) (bool, error) {
				var queued int
				for _, in := range inputs {
					score, ok := l.Process(in.Variable, in.Features, in.Prediction)
					if ok {
						queued++
						fmt.Fprintf(w, "queued %s (uncertainty %.2f)\n", in.Variable, score)
					}
				}
				fmt.Fprintf(w, "%d of %d verdicts queued, %d pending\n", queued, len(inputs), l.Stats().Pending)
				return queued > 0, nil
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON file of {variable, features, prediction}")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newQueueLabelCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:     "label",
		Short:   "Label the most uncertain pending sample",
		Example: `  ownctl queue label --kind BorrowedMut`,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := ownership.ParseKind(kind)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.withLearner(func(l *active.Learner) (bool, error) {
				s, ok := l.Next()
				if !ok {
					fmt.Fprintln(w, "queue is empty")
					return false, nil
				}
				s.ApplyLabel(k)
				l.SubmitLabeled(s)
				if correct, _ := s.PredictionCorrect(); correct {
					good.Fprintf(w, "%s labeled %s (model agreed)\n", s.Variable, k)
				} else {
					warn.Fprintf(w, "%s labeled %s (model said %s)\n", s.Variable, k, s.Prediction.Kind)
				}
				return true, nil
			})
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Ownership kind for the sample")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newQueueExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Move labeled samples into the store's training set",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			return a.withLearner(func(l *active.Learner) (bool, error) {
				labeled := l.TakeTrainingSamples()
				if len(labeled) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no labeled samples")
					return false, nil
				}
				if err := st.AddSamples(trainingSamples(labeled)); err != nil {
					return false, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d labeled samples\n", len(labeled))
				return true, nil
			})
		},
	}
}

func newQueueStatsCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLearner(func(l *active.Learner) (bool, error) {
				return false, printStats(cmd.OutOrStdout(), l.Stats(), jsonOut)
			})
		},
	}
	cmd.Flags().BoolVarP(&jsonOut, "json", "j", false, "Output as JSON")
	return cmd
}

func newQueueReportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the active learning report as Markdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLearner(func(l *active.Learner) (bool, error) {
				return false, writeReport(cmd.OutOrStdout(), out, l.Markdown())
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report here instead of stdout")
	return cmd
}

func printStats(w io.Writer, st active.Stats, jsonOut bool) error {
	if jsonOut {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "pending:             %d\n", st.Pending)
	fmt.Fprintf(w, "labeled:             %d\n", st.Labeled)
	fmt.Fprintf(w, "total processed:     %d\n", st.TotalProcessed)
	fmt.Fprintf(w, "avg uncertainty:     %.2f\n", st.AvgUncertainty)
	fmt.Fprintf(w, "prediction accuracy: %s\n", pct(st.PredictionAccuracy))
	return nil
}

func trainingSamples(labeled []active.UncertainSample) []retrain.Sample {
	out := make([]retrain.Sample, 0, len(labeled))
	for _, s := range labeled {
		if s.Label == nil {
			continue
		}
		out = append(out, retrain.NewSample(s.Features, *s.Label, s.SourceFile, s.SourceLine))
	}
	return out
}
