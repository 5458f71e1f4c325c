package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"video-digest/pkg/analyzer"
	"video-digest/pkg/app"
	"video-digest/pkg/auth"
	"video-digest/pkg/config"
	"video-digest/pkg/db"
	"video-digest/pkg/ingest"
	"video-digest/pkg/logging"
)

var (
	userID    string
	userToken string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "videodigest",
		Short:        "Summarize YouTube videos and manage saved analyses",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "act as this user id")
	rootCmd.PersistentFlags().StringVar(&userToken, "token", "", "access token to authenticate as")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tagsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads config, builds the app and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// CLI output goes to stdout; keep logs quiet unless asked for.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	cfg.LogFormat = "console"
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(ctx, a)
}

// resolveUser returns the user selected by --token or --user, or nil.
func resolveUser(ctx context.Context, a *app.App) (*auth.User, error) {
	if userToken != "" {
		user, err := a.Auth.Authenticate(ctx, userToken)
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	if userID != "" {
		return &auth.User{ID: userID}, nil
	}
	return nil, nil
}

func requireUser(ctx context.Context, a *app.App) (*auth.User, error) {
	user, err := resolveUser(ctx, a)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("--user or --token is required")
	}
	return user, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func analyzeCmd() *cobra.Command {
	var (
		tags    string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze [url]",
		Short: "Analyze a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := resolveUser(ctx, a)
				if err != nil {
					return err
				}

				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				res, err := a.Analyzer.Analyze(ctx, analyzer.Request{URL: args[0], Tags: splitTags(tags)}, user)
				if err != nil {
					return err
				}

				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(res)
				}
				printResult(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags to attach")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall analysis timeout")
	return cmd
}

func printResult(res *analyzer.Result) {
	an := res.Analysis
	fmt.Printf("Video:    %s (%s)\n", res.VideoID, res.URL)
	fmt.Printf("Title:    %s\n", an.Title)
	fmt.Printf("Category: %s  Difficulty: %s  Sentiment: %s  Length: %s\n",
		an.Category, an.Difficulty, an.Sentiment, an.DurationEstimate)
	fmt.Printf("Source:   %s", res.TranscriptSource)
	if res.Degraded {
		fmt.Print(" (no transcript)")
	} else if res.StandIn {
		fmt.Print(" (title and description only)")
	}
	if res.Demo {
		fmt.Print(" [demo]")
	}
	fmt.Println()
	fmt.Printf("\n%s\n\n", an.Summary)
	for _, p := range an.KeyPoints {
		fmt.Printf("  - %s\n", p)
	}
	if len(an.Tags) > 0 {
		fmt.Printf("\nTags: %s\n", strings.Join(an.Tags, ", "))
	}
	switch {
	case res.Saved:
		fmt.Printf("\nSaved as %s\n", res.SavedID)
	case res.Message != "":
		fmt.Printf("\n%s\n", res.Message)
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent analyses of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := requireUser(ctx, a)
				if err != nil {
					return err
				}
				entries, err := a.Coordinator.ListHistory(ctx, user.ID, limit)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("No history yet.")
					return nil
				}
				for _, e := range entries {
					title := "(deleted)"
					if e.Record != nil {
						title = e.Record.Title
					}
					fmt.Printf("%s  %s  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.AnalysisID, truncate(title, 60))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Backfill missing history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if all {
					n, err := a.Reconciler.ReconcileAll(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("Backfilled %d history entries.\n", n)
					return nil
				}

				user, err := requireUser(ctx, a)
				if err != nil {
					return err
				}
				n, err := a.Coordinator.Reconcile(ctx, user.ID)
				if err != nil {
					return err
				}
				fmt.Printf("Backfilled %d history entries for %s.\n", n, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reconcile every user that owns records")
	return cmd
}

func ingestCmd() *cobra.Command {
	var (
		max     int
		workers int
		tags    string
	)

	cmd := &cobra.Command{
		Use:   "ingest [file|feed-url|channel-id]",
		Short: "Analyze every new video from a list file, RSS feed or channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := resolveUser(ctx, a)
				if err != nil {
					return err
				}

				start := time.Now()
				report, err := a.Ingest(workers).Ingest(ctx, ingest.Request{
					Source:     args[0],
					MaxEntries: max,
					Tags:       splitTags(tags),
					User:       user,
				})
				if report != nil {
					printReport(report)
				}
				if err != nil {
					return err
				}
				a.Log.Info("ingest done", zap.Duration("duration", time.Since(start)))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&max, "max", 20, "max videos to analyze (<=0 means no limit)")
	cmd.Flags().IntVar(&workers, "workers", 3, "number of parallel analyses")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags to attach")
	return cmd
}

func printReport(r *ingest.Report) {
	fmt.Printf("Found %d URLs, analyzed %d new videos: %d ok, %d failed\n",
		r.Found, r.Queued, r.Stats.Success, r.Stats.Errors)
	for _, res := range r.Analyses {
		status := "not saved"
		if res.Saved {
			status = "saved " + res.SavedID
		}
		fmt.Printf("  %s  %s  (%s)\n", res.VideoID, truncate(res.Analysis.Title, 60), status)
	}
	for url, err := range r.Stats.Failed {
		fmt.Printf("  FAILED %s: %v\n", url, err)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var provider interface {
				db.DBProvider
				Close() error
			}
			switch {
			case cfg.Database.URL != "":
				client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.Database.URL})
				if err := client.Connect(ctx); err != nil {
					return err
				}
				provider = client
			case cfg.Database.SupabasePassword != "":
				client := db.NewSupabaseClient(db.SupabaseConfig{
					SupabaseURL: cfg.Database.SupabaseURL,
					Password:    cfg.Database.SupabasePassword,
				})
				if err := client.Connect(ctx); err != nil {
					return err
				}
				provider = client
			default:
				return fmt.Errorf("migrate needs DATABASE_URL or SUPABASE_DB_PASSWORD: %w", db.ErrNotConfigured)
			}
			defer provider.Close()

			if err := db.EnsureSchema(ctx, provider); err != nil {
				return err
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List a user's tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				user, err := requireUser(ctx, a)
				if err != nil {
					return err
				}
				tags, err := a.Coordinator.ListTags(ctx, user.ID)
				if err != nil {
					return err
				}
				if len(tags) == 0 {
					fmt.Println("No tags yet.")
					return nil
				}
				for _, t := range tags {
					fmt.Println(t.Name)
				}
				return nil
			})
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
