package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/wellness-engine/internal/costpred"
	"github.com/sells-group/wellness-engine/internal/loader"
	"github.com/sells-group/wellness-engine/internal/model"
	"github.com/sells-group/wellness-engine/internal/scorer"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score members and predict annual cost",
	Long: `Score members from a snapshot file (JSON, YAML, CSV, or XLSX) and
derive cost predictions from the scores.

Examples:
  # Score every member in a snapshot
  wellness-engine score --members members.json

  # Score one member and show the factor breakdown
  wellness-engine score --members members.json --member-id M-1001

  # Export scores to CSV and persist them
  wellness-engine score --members extract.xlsx --format csv --output scores.csv --save`,
	RunE: runScoreCmd,
}

func init() {
	f := scoreCmd.Flags()
	f.String("members", "", "member snapshot file (required)")
	f.String("member-id", "", "score a single member by ID")
	f.String("format", "table", "output format: table, csv, or json")
	f.String("output", "", "output file path (default: stdout)")
	f.Bool("save", false, "persist scores and predictions to the store")
	_ = scoreCmd.MarkFlagRequired("members")

	rootCmd.AddCommand(scoreCmd)
}

type scoredMember struct {
	Score      *model.RiskScore      `json:"score"`
	Prediction *model.CostPrediction `json:"prediction"`
}

func runScoreCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	membersPath, _ := cmd.Flags().GetString("members")
	memberID, _ := cmd.Flags().GetString("member-id")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetBool("save")

	if format != "table" && format != "csv" && format != "json" {
		return eris.Errorf("score: --format must be table, csv, or json (got %q)", format)
	}
	if err := scorer.ValidateConfig(cfg.Engine.Scoring); err != nil {
		return err
	}

	members, err := loader.LoadMembers(ctx, membersPath)
	if err != nil {
		return err
	}
	if memberID != "" {
		members = filterMember(members, memberID)
		if len(members) == 0 {
			return eris.Errorf("score: member %q not found in %s", memberID, membersPath)
		}
	}

	log := zap.L().With(zap.String("command", "score"))
	log.Info("scoring members", zap.Int("members", len(members)))

	sc := scorer.NewRuleScorer()
	pred, err := costpred.NewPredictor(cfg.Engine.Scoring, cfg.Engine.Cost)
	if err != nil {
		return err
	}

	results := make([]scoredMember, 0, len(members))
	for i := range members {
		score, err := sc.Score(&members[i], cfg.Engine.Scoring)
		if err != nil {
			return eris.Wrapf(err, "score: member %s", members[i].MemberID)
		}
		p, err := pred.Predict(score)
		if err != nil {
			return eris.Wrapf(err, "score: predict member %s", members[i].MemberID)
		}
		results = append(results, scoredMember{Score: score, Prediction: p})
	}

	if memberID != "" && format == "table" {
		printSingleScore(&results[0])
	} else if err := outputScores(results, format, outputPath); err != nil {
		return err
	}

	if save {
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "score: migrate store")
		}
		for _, r := range results {
			if err := st.SaveScore(ctx, r.Score); err != nil {
				return eris.Wrapf(err, "score: save score for %s", r.Score.MemberID)
			}
			if err := st.SavePrediction(ctx, r.Prediction); err != nil {
				return eris.Wrapf(err, "score: save prediction for %s", r.Score.MemberID)
			}
		}
		fmt.Printf("Saved %d scores to the store\n", len(results))
	}

	return nil
}

func filterMember(members []model.MemberRecord, id string) []model.MemberRecord {
	for i := range members {
		if members[i].MemberID == id {
			return members[i : i+1]
		}
	}
	return nil
}

func printSingleScore(r *scoredMember) {
	s := r.Score
	fmt.Printf("Member:     %s\n", s.MemberID)
	fmt.Printf("Score:      %.1f / 100 (%s)\n", s.Value, s.Category)
	fmt.Printf("Confidence: %.2f\n", s.Confidence)
	fmt.Printf("Predicted:  $%s  [$%s - $%s]\n",
		r.Prediction.Point.StringFixed(2),
		r.Prediction.Lower.StringFixed(2),
		r.Prediction.Upper.StringFixed(2))
	if len(s.TopFactors) > 0 {
		fmt.Println("\nTop Factors:")
		for _, f := range s.TopFactors {
			fmt.Printf("  %-30s %-12s %+.1f\n", f.Name, f.Type, f.Contribution)
		}
	}
	if len(s.Interventions) > 0 {
		fmt.Println("\nSuggested Interventions:")
		for _, iv := range s.Interventions {
			fmt.Printf("  - %s\n", iv)
		}
	}
}

func outputScores(results []scoredMember, format, outputPath string) error {
	w := os.Stdout
	if outputPath != "" {
		var err error
		w, err = os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer w.Close() //nolint:errcheck
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "csv":
		return writeScoreCSV(w, results)
	default:
		return writeScoreTable(w, results)
	}
}

func writeScoreCSV(w *os.File, results []scoredMember) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"member_id", "score", "category", "confidence", "predicted_cost", "lower", "upper"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, r := range results {
		row := []string{
			r.Score.MemberID,
			strconv.FormatFloat(r.Score.Value, 'f', 1, 64),
			string(r.Score.Category),
			strconv.FormatFloat(r.Score.Confidence, 'f', 2, 64),
			r.Prediction.Point.StringFixed(2),
			r.Prediction.Lower.StringFixed(2),
			r.Prediction.Upper.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}

func writeScoreTable(w *os.File, results []scoredMember) error {
	header := fmt.Sprintf("%-12s %7s %-10s %6s %14s\n",
		"Member", "Score", "Category", "Conf", "Predicted")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 55)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, r := range results {
		line := fmt.Sprintf("%-12s %7.1f %-10s %6.2f %14s\n",
			r.Score.MemberID, r.Score.Value, r.Score.Category,
			r.Score.Confidence, "$"+r.Prediction.Point.StringFixed(2))
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}
