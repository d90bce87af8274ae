package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wikimetron/internal/app"
	"wikimetron/internal/config"
	"wikimetron/internal/domain"
	"wikimetron/internal/logging"
	"wikimetron/internal/report"
	"wikimetron/internal/resolve"
	"wikimetron/internal/usecase"
)

const dateLayout = "2006-01-02"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wikimetron",
		Short:         "Wikipedia page sensitivity scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(analyzeCmd())
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		startFlag string
		endFlag   string
		langFlag  string
		pollFlag  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze PAGE...",
		Short: "Score pages and print the JSON report",
		Long: `Submits the given pages (titles or full wiki URLs) as one analysis
task, polls until it finishes and prints the report as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}
			go application.RunJanitor(cmd.Context())

			rng, err := parseRange(startFlag, endFlag)
			if err != nil {
				return err
			}

			lang := langFlag
			if lang == "" {
				lang = application.DefaultLanguage()
			}

			pages := make([]resolve.Input, 0, len(args))
			for _, page := range args {
				pages = append(pages, resolve.Input{Page: page})
			}

			ctx := cmd.Context()
			manager := application.Manager()
			task, err := manager.Submit(ctx, usecase.Submission{
				Pages:           pages,
				Range:           rng,
				DefaultLanguage: lang,
			})
			if err != nil {
				return err
			}
			logger.Info("task submitted",
				"task", task.ID,
				"pages", len(task.Units),
				"estimated_seconds", usecase.EstimatedSeconds(len(task.Units)))

			done, err := manager.Wait(ctx, task.ID, pollFlag)
			if err != nil {
				return err
			}

			raw, err := json.MarshalIndent(report.FromTask(done), "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "analysis window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endFlag, "end", "", "analysis window end (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&langFlag, "lang", "", "default language for bare titles")
	cmd.Flags().DurationVar(&pollFlag, "poll", time.Second, "task poll interval")
	return cmd
}

// parseRange turns the flag pair into an inclusive window; with no flags the
// window is the last 30 days.
func parseRange(startFlag, endFlag string) (domain.DateRange, error) {
	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endFlag != "" {
		parsed, err := time.Parse(dateLayout, endFlag)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("parse --end: %w", err)
		}
		end = parsed
	}
	start := end.AddDate(0, 0, -30)
	if startFlag != "" {
		parsed, err := time.Parse(dateLayout, startFlag)
		if err != nil {
			return domain.DateRange{}, fmt.Errorf("parse --start: %w", err)
		}
		start = parsed
	}
	return domain.DateRange{
		Start: start,
		End:   end.Add(24*time.Hour - time.Second),
	}, nil
}
