package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sells-group/wellness-engine/internal/finance"
)

var savingsCmd = &cobra.Command{
	Use:   "savings",
	Short: "Compute one member's savings split",
	Long: `Compute the savings split for a single member period from settled
figures. Savings never go negative; the operator share is the configured
rate of realized savings and the member share is the exact remainder.

Example:
  wellness-engine savings --predicted 14200 --actual 9500 --intervention 800`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		period, _ := cmd.Flags().GetString("period")
		memberID, _ := cmd.Flags().GetString("member-id")

		predicted, err := decimalFlag(cmd, "predicted")
		if err != nil {
			return err
		}
		actual, err := decimalFlag(cmd, "actual")
		if err != nil {
			return err
		}
		intervention, err := decimalFlag(cmd, "intervention")
		if err != nil {
			return err
		}

		summary, err := finance.ComputeSavings(period, memberID, predicted, actual, intervention, cfg.Engine.Savings)
		if err != nil {
			return err
		}

		fmt.Printf("Predicted:      $%s\n", summary.PredictedCost.StringFixed(2))
		fmt.Printf("Actual:         $%s\n", summary.ActualCost.StringFixed(2))
		fmt.Printf("Intervention:   $%s\n", summary.InterventionCost.StringFixed(2))
		fmt.Printf("Savings:        $%s\n", summary.Savings.StringFixed(2))
		fmt.Printf("Operator share: $%s\n", summary.OperatorShare.StringFixed(2))
		fmt.Printf("Member share:   $%s\n", summary.MemberShare.StringFixed(2))
		return nil
	},
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, eris.Wrapf(err, "savings: parse --%s %q", name, raw)
	}
	return d, nil
}

func init() {
	f := savingsCmd.Flags()
	f.String("period", "adhoc", "period label")
	f.String("member-id", "", "member ID for the summary")
	f.String("predicted", "", "predicted cost in dollars (required)")
	f.String("actual", "", "actual cost in dollars (required)")
	f.String("intervention", "0", "intervention cost in dollars")
	_ = savingsCmd.MarkFlagRequired("predicted")
	_ = savingsCmd.MarkFlagRequired("actual")

	rootCmd.AddCommand(savingsCmd)
}
