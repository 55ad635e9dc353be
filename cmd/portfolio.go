package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wellness-engine/internal/costpred"
	"github.com/sells-group/wellness-engine/internal/loader"
	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/portfolio"
	"github.com/sells-group/wellness-engine/internal/roi"
	"github.com/sells-group/wellness-engine/internal/scorer"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Select the intervention portfolio under a budget",
	Long: `Score members, evaluate every (member, program) pairing against the
program catalog, and select the savings-maximizing set of interventions
that fits the budget.

Examples:
  # Optimize a $50,000 quarterly intervention budget
  wellness-engine portfolio --members members.json --programs catalog.yaml --budget 50000

  # Persist the selections as pending recommendations
  wellness-engine portfolio --members members.json --programs catalog.yaml --budget 50000 --save`,
	RunE: runPortfolioCmd,
}

func init() {
	f := portfolioCmd.Flags()
	f.String("members", "", "member snapshot file (required)")
	f.String("programs", "", "program catalog file (required)")
	f.Float64("budget", 0, "intervention budget in dollars (required)")
	f.Bool("save", false, "persist selections as pending recommendations")
	_ = portfolioCmd.MarkFlagRequired("members")
	_ = portfolioCmd.MarkFlagRequired("programs")
	_ = portfolioCmd.MarkFlagRequired("budget")

	rootCmd.AddCommand(portfolioCmd)
}

func runPortfolioCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	membersPath, _ := cmd.Flags().GetString("members")
	programsPath, _ := cmd.Flags().GetString("programs")
	budgetFlag, _ := cmd.Flags().GetFloat64("budget")
	save, _ := cmd.Flags().GetBool("save")

	budget := decimal.NewFromFloat(budgetFlag)
	if !budget.IsPositive() {
		return eris.Errorf("portfolio: --budget must be positive (got %v)", budgetFlag)
	}

	members, err := loader.LoadMembers(ctx, membersPath)
	if err != nil {
		return err
	}
	programs, err := loader.LoadPrograms(ctx, programsPath)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "portfolio"))
	log.Info("evaluating candidates",
		zap.Int("members", len(members)),
		zap.Int("programs", len(programs)),
	)

	sc := scorer.NewRuleScorer()
	pred, err := costpred.NewPredictor(cfg.Engine.Scoring, cfg.Engine.Cost)
	if err != nil {
		return err
	}
	eval, err := roi.NewEvaluator(pred, cfg.Engine.ROI)
	if err != nil {
		return err
	}

	var candidates []model.InterventionCandidate
	for i := range members {
		score, err := sc.Score(&members[i], cfg.Engine.Scoring)
		if err != nil {
			return eris.Wrapf(err, "portfolio: score member %s", members[i].MemberID)
		}
		cands, err := eval.EvaluatePrograms(&members[i], score, programs)
		if err != nil {
			return eris.Wrapf(err, "portfolio: evaluate member %s", members[i].MemberID)
		}
		candidates = append(candidates, cands...)
	}

	result, err := portfolio.Select(ctx, candidates, budget, cfg.Engine.Portfolio)
	if err != nil {
		return eris.Wrap(err, "portfolio: select")
	}

	printPortfolio(result, budget)

	if save && len(result.Selected) > 0 {
		recs := portfolio.NewRecommendations(result.Selected, time.Now().UTC())

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "portfolio: migrate store")
		}
		if err := st.SaveRecommendations(ctx, recs); err != nil {
			return eris.Wrap(err, "portfolio: save recommendations")
		}
		fmt.Printf("\nSaved %d pending recommendations\n", len(recs))
	}

	return nil
}

func printPortfolio(result *portfolio.Result, budget decimal.Decimal) {
	method := "exact"
	if !result.Exact {
		method = fmt.Sprintf("greedy (%s)", result.FallbackReason)
	}
	fmt.Printf("Method:        %s\n", method)
	fmt.Printf("Budget:        $%s (spent $%s)\n", budget.StringFixed(2), result.TotalCost.StringFixed(2))
	fmt.Printf("NPV savings:   $%s\n", result.TotalSavings.StringFixed(2))
	fmt.Printf("Interventions: %d\n", len(result.Selected))

	if len(result.Selected) == 0 {
		return
	}
	fmt.Printf("\n%-12s %-12s %12s %14s %8s\n", "Member", "Program", "Cost", "NPV Savings", "ROI")
	for _, c := range result.Selected {
		roiCol := "n/a"
		if !c.ROIUndefined {
			roiCol = fmt.Sprintf("%.2f", c.ROI)
		}
		fmt.Printf("%-12s %-12s %12s %14s %8s\n",
			c.MemberID, c.ProgramID,
			"$"+c.ProgramCost.StringFixed(2),
			"$"+c.NPVGrossSavings.StringFixed(2),
			roiCol)
	}
}
