package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/english-trainer-backend/internal/app"
	httpMW "github.com/yungbote/english-trainer-backend/internal/http/middleware"
	"github.com/yungbote/english-trainer-backend/internal/kbimport"
	"github.com/yungbote/english-trainer-backend/internal/services"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs and the cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Log.Info("worker started", "concurrency", a.Cfg.WorkerConcurrency)
				return a.RunWorker(ctx)
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(); err != nil {
					return err
				}
				a.Log.Info("migrations applied")
				return nil
			})
		},
	}
}

func newImportCardsCommand() *cobra.Command {
	var (
		sample bool
		inline bool
	)
	cmd := &cobra.Command{
		Use:   "import-cards [file]",
		Short: "Upsert curated knowledge cards from a YAML or JSON file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				specs []kbimport.CardSpec
				err   error
			)
			switch {
			case len(args) == 1:
				specs, err = kbimport.ReadFile(args[0])
			case sample:
				specs, err = kbimport.SampleCards()
			default:
				return fmt.Errorf("pass a card file or --sample")
			}
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.ImportCards(ctx, specs, inline)
				if err != nil {
					return err
				}
				for _, s := range res.Skipped {
					a.Log.Warn("card skipped", "reason", s)
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "Import the built-in sample cards")
	cmd.Flags().BoolVar(&inline, "embed", true, "Embed cards now instead of queueing embedding jobs")
	return cmd
}

func newBackfillCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "backfill-embeddings",
		Short: "Queue embedding jobs for cards without an embedding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Backfill(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "Maximum cards per table")
	return cmd
}

func newReportsCommand() *cobra.Command {
	var week string
	cmd := &cobra.Command{
		Use:   "weekly-reports",
		Short: "Generate weekly reports for every active user",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := services.LastWeekStart(time.Now())
			if week != "" {
				t, err := time.Parse(time.DateOnly, week)
				if err != nil {
					return fmt.Errorf("--week: %w", err)
				}
				start = services.WeekStart(t)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Services.Reports.GenerateAll(ctx, start)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"week_start": start.Format(time.DateOnly), "reports": n})
			})
		},
	}
	cmd.Flags().StringVar(&week, "week", "", "Any date in the target week (YYYY-MM-DD); defaults to last week")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(envFile)
			if err != nil {
				return err
			}
			id := uuid.New()
			if user != "" {
				if id, err = uuid.Parse(user); err != nil {
					return fmt.Errorf("--user: %w", err)
				}
			}
			if ttl <= 0 {
				ttl = cfg.AccessTokenTTL
			}
			tok, err := httpMW.IssueToken(cfg.JWTSecretKey, id, ttl)
			if err != nil {
				return err
			}
			return printJSON(map[string]string{"user_id": id.String(), "access_token": tok})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to ACCESS_TOKEN_TTL)")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
