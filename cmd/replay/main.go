package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielpatrickdp/ownership-engine/internal/classifier"
	"github.com/danielpatrickdp/ownership-engine/internal/hybrid"
	"github.com/danielpatrickdp/ownership-engine/internal/replay"
	"github.com/danielpatrickdp/ownership-engine/internal/store"
	"github.com/danielpatrickdp/ownership-engine/internal/tuning"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to ownership.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	mode := flag.String("mode", "", "override the classification mode: rules, hybrid or ensemble")
	verbose := flag.Bool("v", false, "log every replayed case")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/ownership.db")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath, *mode, logger)
	} else {
		exitCode = runDBMode(*dbPath, *mode, logger)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode replays the store's labeled training samples. No model verdicts
// are stored with them, so the rules decide every case.
func runDBMode(dbPath, modeFlag string, logger *slog.Logger) int {
	s, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer s.Close()

	samples, err := s.LoadSamples()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load samples: %v\n", err)
		return 2
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stderr, "no training samples found")
		return 2
	}

	rules := classifier.NewRuleBased(classifier.DefaultRuleWeights())
	cases := make([]replay.Case, len(samples))
	for i, sm := range samples {
		variable := fmt.Sprintf("%s:%d", sm.SourceFile, sm.LineNumber)
		cases[i] = replay.Case{
			Variable:   variable,
			SourceFile: sm.SourceFile,
			SourceLine: sm.LineNumber,
			Features:   sm.Features,
			Rule:       rules.Infer(variable, sm.Features),
			Expected:   sm.Label,
		}
	}

	config := replay.DefaultReplayConfig()
	config.Logger = logger
	if !applyMode(&config, modeFlag) {
		return 2
	}
	return printComparison(cases, replay.Replay(cases, config))
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path, modeFlag string, logger *slog.Logger) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	config := f.Config.ToReplayConfig()
	config.Logger = logger
	if !applyMode(&config, modeFlag) {
		return 2
	}
	cases := f.ToCases()
	code := printComparison(cases, replay.Replay(cases, config))

	result := tuning.NewTuner().Tune(replay.ValidationSamples(cases))
	fmt.Printf("\nOptimal threshold %.2f (%s): accuracy %.1f%%, baseline %.1f%%\n",
		result.OptimalThreshold, result.CriteriaName, result.Optimal.Accuracy*100, result.BaselineAccuracy*100)
	return code
}

func applyMode(config *replay.ReplayConfig, modeFlag string) bool {
	if modeFlag == "" {
		return true
	}
	m, err := hybrid.ParseMode(modeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return false
	}
	config.Mode = m
	return true
}

// #endregion fixture-mode

// #region output

// printComparison outputs a comparison table and returns exit code 1 when any
// case diverges from its expected kind.
func printComparison(cases []replay.Case, results []replay.ReplayResult) int {
	fmt.Printf("%-16s| %-12s| %-12s| %-11s| %s\n", "Variable", "Expected", "Replayed", "Method", "Match")
	fmt.Printf("%-16s+%-13s+%-13s+%-12s+%s\n",
		"----------------", "-------------", "-------------", "------------", "------")

	for _, r := range results {
		match := "DIFF"
		if r.Correct {
			match = "OK"
		}
		fmt.Printf("%-16s| %-12s| %-12s| %-11s| %s\n", r.Variable, r.Expected, r.Result.Kind, r.Result.Method, match)
	}

	s := replay.Summarize(cases, results)
	diverge := s.TotalCases - s.Correct
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", s.TotalCases, s.Correct, diverge)
	fmt.Printf("Accuracy %.1f%% (rules %.1f%%, model %.1f%% over %d verdicts)\n",
		s.Accuracy()*100, s.RuleAccuracy()*100, s.MLAccuracy()*100, s.MLRecorded)
	fmt.Printf("ML usage %.1f%%, fallback %.1f%%, agreement %.1f%%\n",
		s.Methods.MLUsageRate()*100, s.Methods.FallbackRate()*100, s.Methods.AgreementRate()*100)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
