package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/domain/nickname"
	"live-quiz-service/internal/domain/scoring"
	"live-quiz-service/internal/infra/memory"
	pginfra "live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
	"live-quiz-service/pkg/logger"
	"live-quiz-service/pkg/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	var quizFile string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if *port != "" {
				cfg.Server.Port = *port
			}
			if quizFile != "" {
				cfg.Quiz.File = quizFile
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&quizFile, "quizzes", "", "YAML file of quizzes to serve when postgres is not configured")
	return cmd
}

// deps are the infrastructure handles opened for one server run.
type deps struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	db    *bun.DB
}

func (d deps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		d.pool.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

func openDeps(ctx context.Context, cfg config.Config) (deps, error) {
	var d deps
	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		d.db = openBunDB(cfg.Postgres.URL)
		if err := applyMigrations(ctx, d.db); err != nil {
			d.Close()
			return deps{}, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return deps{}, err
		}
		d.pool = pool
	}
	return d, nil
}

func runServer(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Named("server")

	d, err := openDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	loader, err := quizLoader(cfg, d)
	if err != nil {
		return err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if d.redis != nil {
		quizRepo = redisinfra.NewQuizRepository(d.redis, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	var (
		store     app.SessionRepository
		live      transport.LiveQuizLister
		recorders []app.AnswerRecorder
	)
	if d.redis != nil {
		sessions := redisinfra.NewSessionStore(d.redis, redisTTL, redisinfra.WithSessionLogger(logger.Named("sessions")))
		store, live = sessions, sessions
		recorders = append(recorders, redisinfra.NewAnswerRecorder(d.redis, redisTTL))
	} else {
		sessions := memory.NewSessionStore()
		store, live = sessions, sessions
	}
	if d.db != nil {
		recorders = append(recorders, pginfra.NewAnswerRecorder(d.db))
	}

	engine := scoring.NewEngine(scoring.WithStreakStep(cfg.Scoring.StreakStep))
	nicknames := nickname.NewValidator(cfg.Nickname.MinLength, cfg.Nickname.MaxLength)
	m := metrics.NewManager()

	service := app.NewQuizService(store, quizRepo,
		app.WithScoringEngine(engine),
		app.WithNicknameValidator(nicknames),
		app.WithDefaultTimeLimit(config.TTLDuration(cfg.Scoring.DefaultTimeLimit, domain.DefaultTimeLimit)),
		app.WithRecorders(recorders...),
		app.WithLogger(logger.Named("quiz")),
		app.WithMetrics(m),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("/ws", transport.NewWSHandler(service, logger.Named("ws")).ServeWS)
	transport.NewAPIHandler(service, engine, nicknames, m, logger.Named("api")).
		WithLiveQuizzes(live).
		Register(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting quiz service", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// quizLoader picks the quiz source: Postgres when configured, then a YAML
// file, then the built-in sample.
func quizLoader(cfg config.Config, d deps) (app.QuizLoader, error) {
	switch {
	case d.pool != nil:
		return pginfra.NewQuizLoader(d.pool), nil
	case cfg.Quiz.File != "":
		loader, err := memory.LoadQuizFile(cfg.Quiz.File)
		if err != nil {
			return nil, err
		}
		return loader, nil
	default:
		return memory.NewStaticQuizLoader(sampleQuizzes()), nil
	}
}

// sampleQuizzes provides a minimal quiz so the service is playable without a database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points:      100,
					TimeLimitMs: 20000,
				},
				{
					ID:     "q2",
					Prompt: "Which planet is known as the Red Planet?",
					Options: []domain.Option{
						{ID: "o1", Text: "Venus", Correct: false},
						{ID: "o2", Text: "Mars", Correct: true},
						{ID: "o3", Text: "Jupiter", Correct: false},
					},
					Points:      100,
					TimeLimitMs: 20000,
				},
			},
		},
	}
}
