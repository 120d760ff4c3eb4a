package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/ownership-engine/internal/logging"
	"github.com/danielpatrickdp/ownership-engine/internal/registry"
	"github.com/danielpatrickdp/ownership-engine/internal/retrain"
	"github.com/danielpatrickdp/ownership-engine/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to ownership.db")
	last := flag.Int("last", 20, "show N most recent executions and decisions")
	version := flag.String("version", "", "show single model version detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/ownership.db [--last N] [--version 1.2.0] [--json]")
		os.Exit(2)
	}

	s, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *version != "" {
		err = runDetailMode(s, *version, *jsonOut)
	} else {
		err = runListMode(s, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listOutput struct {
	Versions   []registry.Entry          `json:"versions"`
	Executions []retrain.Execution       `json:"executions"`
	Decisions  []logging.DecisionEntry   `json:"decisions"`
	Samples    int                       `json:"training_samples"`
	Rollbacks  []registry.RollbackResult `json:"rollbacks"`
}

func runListMode(s *store.Store, last int, jsonOut bool) error {
	var out listOutput
	var err error
	if out.Versions, err = s.ListEntries(); err != nil {
		return err
	}
	if out.Rollbacks, err = s.ListRollbacks(); err != nil {
		return err
	}
	if out.Executions, err = s.ListExecutions(last); err != nil {
		return err
	}
	if out.Decisions, err = logging.ListDecisions(s.DB(), last); err != nil {
		return err
	}
	if out.Samples, err = s.CountSamples(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out)
	}
	printVersions(out.Versions)
	printExecutions(out.Executions)
	printDecisions(out.Decisions)
	fmt.Printf("\nTraining samples: %d   Rollbacks: %d\n", out.Samples, len(out.Rollbacks))
	return nil
}

func printVersions(entries []registry.Entry) {
	fmt.Printf("%-10s  %8s  %6s  %8s  %-12s  %s\n", "Version", "Accuracy", "F1", "Samples", "Status", "Released")
	fmt.Printf("%-10s+-%8s+-%6s+-%8s+-%-12s+-%s\n",
		"----------", "--------", "------", "--------", "------------", "--------------------")
	for _, e := range entries {
		fmt.Printf("%-10s  %7.1f%%  %6.3f  %8d  %-12s  %s\n",
			e.Version, e.Metrics.Accuracy*100, e.Metrics.F1, e.Metrics.SampleCount, status(e),
			e.ReleasedAt.Format("2006-01-02T15:04:05Z"))
	}
	if len(entries) == 0 {
		fmt.Println("(no versions)")
	}
}

func printExecutions(execs []retrain.Execution) {
	fmt.Printf("\n%-10s  %-20s  %-10s  %7s  %s\n", "Run", "Status", "Version", "Samples", "Detail")
	fmt.Printf("%-10s+-%-20s+-%-10s+-%7s+-%s\n",
		"----------", "--------------------", "----------", "-------", "--------------------")
	for _, e := range execs {
		version := "—"
		if e.Version != nil {
			version = e.Version.String()
		}
		fmt.Printf("%-10s  %-20s  %-10s  %7d  %s\n",
			shortID(e.ID.String()), e.Status, version, e.SampleCount, e.Detail)
	}
	if len(execs) == 0 {
		fmt.Println("(no executions)")
	}
}

func printDecisions(entries []logging.DecisionEntry) {
	fmt.Printf("\n%-16s  %-12s  %5s  %-10s  %-12s  %s\n", "Variable", "Kind", "Conf", "Method", "Model", "Time")
	fmt.Printf("%-16s+-%-12s+-%5s+-%-10s+-%-12s+-%s\n",
		"----------------", "------------", "-----", "----------", "------------", "--------------------")
	for _, d := range entries {
		model := d.ModelVersion
		if model == "" {
			model = "—"
		}
		fmt.Printf("%-16s  %-12s  %5.2f  %-10s  %-12s  %s\n",
			d.Variable, d.Kind, d.Confidence, d.Method, model, d.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	if len(entries) == 0 {
		fmt.Println("(no decisions)")
	}
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Entry     registry.Entry            `json:"entry"`
	Rollbacks []registry.RollbackResult `json:"rollbacks"`
}

func runDetailMode(s *store.Store, raw string, jsonOut bool) error {
	v, err := registry.ParseVersion(raw)
	if err != nil {
		return err
	}
	entries, err := s.ListEntries()
	if err != nil {
		return err
	}
	var out detailOutput
	found := false
	for _, e := range entries {
		if e.Version == v {
			out.Entry, found = e, true
			break
		}
	}
	if !found {
		return fmt.Errorf("version %s: %w", v, registry.ErrVersionNotFound)
	}

	rollbacks, err := s.ListRollbacks()
	if err != nil {
		return err
	}
	for _, rb := range rollbacks {
		if rb.From == v || rb.To == v {
			out.Rollbacks = append(out.Rollbacks, rb)
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	e := out.Entry
	fmt.Printf("Version:     %s\n", e.Version)
	fmt.Printf("Status:      %s\n", status(e))
	fmt.Printf("Released:    %s\n", e.ReleasedAt.Format("2006-01-02T15:04:05Z"))
	fmt.Printf("Description: %s\n", e.Description)
	fmt.Printf("Artifact:    %s\n", e.ArtifactPath)
	if e.RollbackReason != "" {
		fmt.Printf("Rolled back: %s\n", e.RollbackReason)
	}

	fmt.Printf("\nMetrics:\n")
	fmt.Printf("  Accuracy:       %.4f\n", e.Metrics.Accuracy)
	fmt.Printf("  Precision:      %.4f\n", e.Metrics.Precision)
	fmt.Printf("  Recall:         %.4f\n", e.Metrics.Recall)
	fmt.Printf("  F1:             %.4f\n", e.Metrics.F1)
	fmt.Printf("  Avg Confidence: %.4f\n", e.Metrics.AvgConfidence)
	fmt.Printf("  Fallback Rate:  %.4f\n", e.Metrics.FallbackRate)
	fmt.Printf("  Samples:        %d\n", e.Metrics.SampleCount)

	if len(out.Rollbacks) > 0 {
		fmt.Printf("\nRollbacks:\n")
		for _, rb := range out.Rollbacks {
			fmt.Printf("  %s  %s → %s  %s\n", rb.Timestamp.Format("2006-01-02T15:04:05Z"), rb.From, rb.To, rb.Reason)
		}
	}
	return nil
}

// #endregion detail-mode

// #region output

func status(e registry.Entry) string {
	switch {
	case e.IsActive:
		return "active"
	case e.RolledBack:
		return "rolled_back"
	}
	return "inactive"
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
