package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/costpred"
	"github.com/sells-group/wellness-engine/internal/finance"
	"github.com/sells-group/wellness-engine/internal/loader"
	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/monitoring"
	"github.com/sells-group/wellness-engine/internal/population"
	"github.com/sells-group/wellness-engine/internal/report"
	"github.com/sells-group/wellness-engine/internal/scorer"
	"github.com/sells-group/wellness-engine/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full period: score, predict, and split pool savings",
	Long: `Run a complete financial period over a member population. Every
member is scored and priced in parallel; members with settled actual costs
enter the pool savings split, the rest are reported as exclusions.

Examples:
  # Compute a quarter and persist everything
  wellness-engine run --period 2026-Q1 --members members.json --actuals actuals.csv --save

  # Compute only, exporting the workbook for finance
  wellness-engine run --period 2026-Q1 --members members.json --actuals actuals.csv --report q1.xlsx`,
	RunE: runPeriodCmd,
}

func init() {
	f := runCmd.Flags()
	f.String("period", "", "period label, e.g. 2026-Q1 (required)")
	f.String("members", "", "member snapshot file (required)")
	f.String("actuals", "", "actual-cost feed for the period")
	f.String("report", "", "write an XLSX period report to this path")
	f.Bool("save", false, "persist scores, predictions, and summaries")
	f.Bool("json", false, "print the pool summary as JSON")
	_ = runCmd.MarkFlagRequired("period")
	_ = runCmd.MarkFlagRequired("members")

	rootCmd.AddCommand(runCmd)
}

func runPeriodCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	period, _ := cmd.Flags().GetString("period")
	membersPath, _ := cmd.Flags().GetString("members")
	actualsPath, _ := cmd.Flags().GetString("actuals")
	reportPath, _ := cmd.Flags().GetString("report")
	save, _ := cmd.Flags().GetBool("save")
	asJSON, _ := cmd.Flags().GetBool("json")

	members, err := loader.LoadMembers(ctx, membersPath)
	if err != nil {
		return err
	}

	actuals := map[string]loader.ActualCost{}
	if actualsPath != "" {
		if actuals, err = loader.LoadActuals(ctx, actualsPath); err != nil {
			return err
		}
	}

	inputs := make([]population.MemberInput, 0, len(members))
	for _, j := range loader.Inputs(members, actuals) {
		inputs = append(inputs, population.MemberInput{
			Member:           j.Member,
			Actual:           j.Actual,
			InterventionCost: j.InterventionCost,
		})
	}

	pred, err := costpred.NewPredictor(cfg.Engine.Scoring, cfg.Engine.Cost)
	if err != nil {
		return err
	}

	var sink store.Store
	if save {
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "run: migrate store")
		}
		sink = st
	}

	stats := &monitoring.RunStats{}
	runner := population.NewRunner(scorer.NewRuleScorer(), pred, sink, stats, cfg.Engine)

	run, err := runner.Run(ctx, period, inputs)
	if err != nil {
		return eris.Wrap(err, "run: period run")
	}

	for _, w := range run.Warnings {
		zap.L().Warn("run: deferred write", zap.String("detail", w))
	}

	if reportPath != "" {
		rep, err := periodReport(run, inputs, cfg.Engine.Savings)
		if err != nil {
			return err
		}
		if err := report.WriteWorkbook(reportPath, rep); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", reportPath)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run.Pool)
	}
	printPoolSummary(run.Pool)
	return nil
}

// periodReport assembles the workbook inputs from a run, recomputing the
// full savings split for every member whose actual cost settled. Members
// without actuals carry no split and show up on the exclusions sheet via
// the pool summary instead.
func periodReport(run *population.RunResult, inputs []population.MemberInput, savingsCfg config.SavingsConfig) (*report.PeriodReport, error) {
	byMember := make(map[string]population.MemberInput, len(inputs))
	for _, in := range inputs {
		if in.Member != nil {
			byMember[in.Member.MemberID] = in
		}
	}

	rep := &report.PeriodReport{Pool: run.Pool}
	for _, res := range run.Results {
		if res.Err != nil || res.Prediction == nil {
			continue
		}
		in, ok := byMember[res.MemberID]
		if !ok || in.Actual == nil {
			continue
		}
		summary, err := finance.ComputeSavings(run.Period, res.MemberID,
			res.Prediction.Point, *in.Actual, in.InterventionCost, savingsCfg)
		if err != nil {
			return nil, eris.Wrapf(err, "run: member summary for %s", res.MemberID)
		}
		rep.Members = append(rep.Members, *summary)
	}
	return rep, nil
}

func printPoolSummary(pool *model.PoolSummary) {
	s := pool.Summary
	fmt.Printf("Period:            %s\n", s.Period)
	fmt.Printf("Members included:  %d (excluded: %d)\n", pool.MembersIncluded, len(pool.Excluded))
	fmt.Printf("Predicted cost:    $%s\n", s.PredictedCost.StringFixed(2))
	fmt.Printf("Actual cost:       $%s\n", s.ActualCost.StringFixed(2))
	fmt.Printf("Intervention cost: $%s\n", s.InterventionCost.StringFixed(2))
	fmt.Printf("Savings:           $%s (%.2f%%)\n", s.Savings.StringFixed(2), pool.SavingsPercent)
	fmt.Printf("Operator share:    $%s\n", s.OperatorShare.StringFixed(2))
	fmt.Printf("Member share:      $%s\n", s.MemberShare.StringFixed(2))
	fmt.Printf("Reserve:           $%s\n", pool.Reserve.StringFixed(2))
	if len(pool.Excluded) > 0 {
		fmt.Println("\nExclusions:")
		for _, e := range pool.Excluded {
			fmt.Printf("  %-12s %s\n", e.MemberID, e.Reason)
		}
	}
}
