package cli

import (
	"errors"

	pginfra "live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/pkg/logger"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads quizzes from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert quizzes from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured")
			}
			source, err := memory.LoadQuizFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			loader := pginfra.NewQuizLoader(pool)
			log := logger.Named("seed")
			for _, quiz := range source.Quizzes() {
				if err := loader.SaveQuiz(ctx, quiz); err != nil {
					return err
				}
				log.Info(ctx, "quiz seeded", logger.String("quiz_id", quiz.ID), logger.Int("questions", len(quiz.Questions)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/quizzes.yaml", "YAML file with a top-level quizzes list")
	return cmd
}
