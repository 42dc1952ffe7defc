package cli

import (
	"encoding/json"
	"time"

	"live-quiz-service/internal/domain/scoring"
	"github.com/spf13/cobra"
)

// NewScoreCmd prints the score breakdown for a single correct answer.
func NewScoreCmd(configPath *string) *cobra.Command {
	var (
		base       int
		multiplier float64
		streak     int
		elapsed    time.Duration
		limit      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the points for one correct answer",
		Example: `  quiz-service score --base 100 --speed 0.5 --streak 3
  quiz-service score --base 100 --elapsed 4s --limit 20s --streak 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("elapsed") {
				multiplier = scoring.SpeedMultiplier(elapsed, limit)
			}
			engine := scoring.NewEngine(scoring.WithStreakStep(cfg.Scoring.StreakStep))
			b, err := engine.Breakdown(base, multiplier, streak)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(b)
		},
	}
	cmd.Flags().IntVar(&base, "base", 1, "base points of the question")
	cmd.Flags().Float64Var(&multiplier, "speed", 0, "speed bonus multiplier in [0,1]")
	cmd.Flags().IntVar(&streak, "streak", 0, "consecutive correct answers including this one")
	cmd.Flags().DurationVar(&elapsed, "elapsed", 0, "answer latency; derives --speed from --limit when set")
	cmd.Flags().DurationVar(&limit, "limit", 20*time.Second, "question time limit used with --elapsed")
	return cmd
}
