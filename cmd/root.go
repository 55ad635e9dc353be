package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wellness-engine/internal/config"
	"github.com/sells-group/wellness-engine/internal/costpred"
	"github.com/sells-group/wellness-engine/internal/scorer"
	"github.com/sells-group/wellness-engine/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "wellness-engine",
	Short: "Member risk scoring and financial engine",
	Long:  "Scores health-plan members, predicts annual cost, splits realized savings, evaluates intervention ROI, and selects intervention portfolios under budget.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		applyEngineDefaults(cfg)

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// applyEngineDefaults fills the rule-table maps when the config file omits
// them. Viper defaults cover scalars only; the tables live with the
// packages that interpret them.
func applyEngineDefaults(c *config.Config) {
	defScoring := scorer.DefaultScoringConfig()
	s := &c.Engine.Scoring
	if s.ConditionPoints == nil {
		s.ConditionPoints = defScoring.ConditionPoints
	}
	if s.SeverityMultipliers == nil {
		s.SeverityMultipliers = defScoring.SeverityMultipliers
	}
	if c.Engine.Cost.Multipliers == nil {
		c.Engine.Cost.Multipliers = costpred.DefaultCostConfig().Multipliers
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "wellness.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
