package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/wellness-engine/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show population risk distribution and store health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		asJSON, _ := cmd.Flags().GetBool("json")
		showDLQ, _ := cmd.Flags().GetBool("dlq")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := monitoring.NewCollector(st, nil).Collect(ctx)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap); err != nil {
				return err
			}
		} else {
			d := snap.Distribution
			total := d.Low + d.Moderate + d.High + d.Critical
			fmt.Printf("Members scored:  %d\n", total)
			fmt.Printf("  low:       %d\n", d.Low)
			fmt.Printf("  moderate:  %d\n", d.Moderate)
			fmt.Printf("  high:      %d\n", d.High)
			fmt.Printf("  critical:  %d\n", d.Critical)
			fmt.Printf("DLQ depth:       %d\n", snap.DLQDepth)
		}

		if showDLQ && snap.DLQDepth > 0 {
			entries, err := st.ListDLQ(ctx, 50)
			if err != nil {
				return err
			}
			fmt.Println("\nDead-letter entries:")
			for _, e := range entries {
				fmt.Printf("  %-38s %-16s %-12s retry %d/%d  %s\n",
					e.ID, e.Kind, e.MemberID, e.RetryCount, e.MaxRetries, e.Error)
			}
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		fmt.Printf("Store migrated (%s)\n", cfg.Store.Driver)
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	statusCmd.Flags().Bool("dlq", false, "list dead-letter entries")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(migrateCmd)
}
