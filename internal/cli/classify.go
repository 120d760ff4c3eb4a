package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/ownership-engine/internal/active"
	"github.com/danielpatrickdp/ownership-engine/internal/classifier"
	"github.com/danielpatrickdp/ownership-engine/internal/errtrack"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/logging"
	"github.com/danielpatrickdp/ownership-engine/internal/model"
	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"github.com/danielpatrickdp/ownership-engine/internal/snapshot"
	"github.com/danielpatrickdp/ownership-engine/internal/telemetry"
)

// Snapshot file names under storage.snapshot_dir.
const (
	queueFile        = "queue.msgpack"
	errorsFile       = "errors.msgpack"
	suggestionsFile  = "suggestions.msgpack"
	observationsFile = "abtest.msgpack"
)

// classifyInput is one variable to classify. Expected is optional ground truth.
type classifyInput struct {
	Variable   string             `json:"variable"`
	SourceFile string             `json:"source_file,omitempty"`
	SourceLine uint32             `json:"source_line,omitempty"`
	Features   ownership.Features `json:"features"`
	Expected   *ownership.Kind    `json:"expected,omitempty"`
}

type classifyOptions struct {
	input       string
	mode        string
	modelAddr   string
	timeout     time.Duration
	cacheSize   int
	workers     int
	logDecision bool
	queue       bool
	metrics     string
	jsonOut     bool
}

func newClassifyCmd(a *app) *cobra.Command {
	var opts classifyOptions
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify pointer variables into ownership kinds",
		Long: `Classify reads a JSON array of {variable, features, expected?} records and
prints one decision per variable. With --model-addr the learned model is a
remote predictor; otherwise only the rules are consulted.`,
		Example: `  ownctl classify --input vars.json
  ownctl classify --input vars.json --mode ensemble --model-addr localhost:50051 --log
  ownctl classify --input vars.json --metrics ownership.prom --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd.Context(), a, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "JSON file of variables to classify")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "rules, hybrid or ensemble (default from config)")
	cmd.Flags().StringVar(&opts.modelAddr, "model-addr", "", "gRPC address of a remote predictor")
	cmd.Flags().DurationVar(&opts.timeout, "model-timeout", model.DefaultRemoteConfig().Timeout, "Per-prediction timeout")
	cmd.Flags().IntVar(&opts.cacheSize, "cache-size", 1024, "Prediction cache entries")
	cmd.Flags().IntVar(&opts.workers, "workers", 8, "Concurrent predictions while warming the cache")
	cmd.Flags().BoolVar(&opts.logDecision, "log", false, "Record every decision in the store")
	cmd.Flags().BoolVar(&opts.queue, "queue", true, "Queue uncertain model verdicts for labeling")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "Write prometheus metrics to this textfile")
	cmd.Flags().BoolVarP(&opts.jsonOut, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runClassify(ctx context.Context, a *app, opts classifyOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var inputs []classifyInput
	if err := readJSON(opts.input, &inputs); err != nil {
		return err
	}

	mode := a.config.ClassificationMode()
	if opts.mode != "" {
		m, err := hybrid.ParseMode(opts.mode)
		if err != nil {
			return err
		}
		mode = m
	}

	hc := hybrid.New(a.config.Hybrid)
	if opts.modelAddr != "" {
		remote, err := model.NewRemote(model.RemoteConfig{Addr: opts.modelAddr, Name: "remote", Timeout: opts.timeout})
		if err != nil {
			return err
		}
		defer remote.Close()
		cached, err := model.NewCached(remote, opts.cacheSize)
		if err != nil {
			return err
		}
		feats := make([]ownership.Features, len(inputs))
		for i, in := range inputs {
			feats[i] = in.Features
		}
		if _, err := model.PredictConcurrent(ctx, cached, feats, opts.workers); err != nil {
			return fmt.Errorf("warm prediction cache: %w", err)
		}
		hc.SetModel(cached)
		hc.EnableML()
		if failed := remote.Failures(); failed > 0 {
			a.logger.Warn("remote predictor failures, affected variables fall back to rules",
				slog.Int64("failures", failed))
		}
	}

	sink := telemetry.NewSink()
	rules := classifier.NewRuleBased(classifier.DefaultRuleWeights())

	// the Null sentinel's verdicts are not decisions worth a label
	var learner *active.Learner
	var queuePath string
	if opts.queue && !model.IsNull(hc.Model()) {
		var err error
		if queuePath, err = a.snapshotPath(queueFile); err != nil {
			return err
		}
		q, err := snapshot.LoadQueue(queuePath, a.config.Active.Strategy, a.config.Active.MaxPending)
		if err != nil {
			return err
		}
		learner = active.NewLearnerWithQueue(a.config.Active, q)
	}

	var tracker *errtrack.Tracker
	trackerPath, err := a.snapshotPath(errorsFile)
	if err != nil {
		return err
	}

	modelVersion := hc.Model().Name()
	var decisions func(hybrid.Result) error
	if opts.logDecision {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if mgr, err := st.LoadRegistry(a.config.Registry); err == nil {
			if e, ok := mgr.Active(); ok {
				modelVersion = e.Version.String()
			}
		}
		decisions = func(r hybrid.Result) error {
			return logging.LogDecision(st.DB(), logging.NewDecisionEntry(r, modelVersion))
		}
	}

	results := make([]hybrid.Result, 0, len(inputs))
	for _, in := range inputs {
		start := time.Now()
		inf := rules.Infer(in.Variable, in.Features)
		r := hc.Classify(mode, inf, in.Features)
		sink.RecordLatency(time.Since(start))
		sink.RecordDecision(r)
		results = append(results, r)

		if learner != nil && r.MLResult != nil {
			learner.Process(in.Variable, in.Features, *r.MLResult)
		}
		if in.Expected != nil {
			if tracker == nil {
				if tracker, err = snapshot.LoadTracker(trackerPath); err != nil {
					return err
				}
			}
			if r.Kind == *in.Expected {
				tracker.RecordSuccess(in.Features.Names()...)
			} else {
				tracker.RecordError(errtrack.NewInferenceError(in.Variable, in.SourceFile, in.SourceLine,
					r.Kind, *in.Expected, r.Confidence, ownership.PointerMisclassification).
					WithFeatures(in.Features.Names()...))
			}
		}
		if decisions != nil {
			if err := decisions(r); err != nil {
				return err
			}
		}
	}

	if learner != nil {
		if err := snapshot.SaveQueue(queuePath, learner.Queue()); err != nil {
			return err
		}
		sink.SetPending(learner.Stats().Pending)
	}
	if tracker != nil {
		if err := snapshot.SaveTracker(trackerPath, tracker); err != nil {
			return err
		}
	}
	if opts.metrics != "" {
		if err := sink.WriteTextfile(opts.metrics); err != nil {
			return err
		}
	}

	a.logger.Info("classified variables",
		slog.Int("count", len(results)),
		slog.String("mode", mode.String()),
		slog.String("model", modelVersion))

	if opts.jsonOut {
		return writeJSON(w, results)
	}
	return printResults(w, results)
}

func printResults(w io.Writer, results []hybrid.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tKIND\tCONFIDENCE\tMETHOD\tREASON")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", r.Variable, r.Kind, r.Confidence, r.Method, r.Reasoning)
	}
	return tw.Flush()
}
