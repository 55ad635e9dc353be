package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/portfolio"
	"github.com/sells-group/wellness-engine/internal/store"
)

var recsCmd = &cobra.Command{
	Use:   "recs",
	Short: "Inspect and advance intervention recommendations",
}

var recsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored recommendations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		memberID, _ := cmd.Flags().GetString("member-id")
		state, _ := cmd.Flags().GetString("state")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRecommendations(ctx, store.RecommendationFilter{
			MemberID: memberID,
			State:    model.RecommendationState(state),
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No recommendations found.")
			return nil
		}

		fmt.Printf("%-38s %-12s %-12s %-10s %-20s\n", "ID", "Member", "Program", "State", "Updated")
		for _, r := range recs {
			fmt.Printf("%-38s %-12s %-12s %-10s %-20s\n",
				r.ID, r.Candidate.MemberID, r.Candidate.ProgramID,
				r.State, r.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var recsAdvanceCmd = &cobra.Command{
	Use:   "advance <recommendation-id> <state>",
	Short: "Record a lifecycle event for a recommendation",
	Long: `Record an externally triggered lifecycle event. Legal transitions:
pending -> presented | expired
presented -> accepted | declined | expired
accepted -> enrolled
enrolled -> completed | dropped | failed`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		id, next := args[0], model.RecommendationState(args[1])

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetRecommendation(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("recs: recommendation %q not found", id)
		}

		if err := portfolio.Transition(rec, next, time.Now().UTC()); err != nil {
			return err
		}
		if err := st.UpdateRecommendationState(ctx, id, next); err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", id, next)
		return nil
	},
}

var recsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire recommendations past the response window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		now := time.Now().UTC()
		window := cfg.Engine.Portfolio.ResponseWindowDays

		expired := 0
		for _, state := range []model.RecommendationState{model.StatePending, model.StatePresented} {
			recs, err := st.ListRecommendations(ctx, store.RecommendationFilter{State: state})
			if err != nil {
				return err
			}
			for i := range recs {
				if !portfolio.ExpireIfStale(&recs[i], now, window) {
					continue
				}
				if err := st.UpdateRecommendationState(ctx, recs[i].ID, model.StateExpired); err != nil {
					return err
				}
				expired++
			}
		}
		fmt.Printf("Expired %d recommendations (window: %d days)\n", expired, window)
		return nil
	},
}

func init() {
	f := recsListCmd.Flags()
	f.String("member-id", "", "filter by member ID")
	f.String("state", "", "filter by lifecycle state")
	f.Int("limit", 50, "maximum rows")

	recsCmd.AddCommand(recsListCmd)
	recsCmd.AddCommand(recsAdvanceCmd)
	recsCmd.AddCommand(recsExpireCmd)
	rootCmd.AddCommand(recsCmd)
}
