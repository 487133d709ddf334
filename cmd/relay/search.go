package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"news-relay/internal/pipeline"
)

var (
	flagEntries    string
	flagOut        string
	flagEmail      bool
	flagDeadline   time.Duration
	flagWorkers    int
	flagMaxResults int
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Rank recent feed articles against a query",
	Example: `  relay search ocean warming
  relay search "climate policy" --out results.json --email
  relay search mars --entries entries.json --deadline 2m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&flagEntries, "entries", "", "read feed entries from a JSON file instead of fetching feeds")
	f.StringVar(&flagOut, "out", "", "write JSON results to this file (default: stdout)")
	f.BoolVar(&flagEmail, "email", false, "send the results as an email digest (EMAIL_FROM/EMAIL_PASSWORD/EMAIL_TO)")
	f.DurationVar(&flagDeadline, "deadline", 0, "overall run deadline, e.g. 2m (0 = none)")
	f.IntVar(&flagWorkers, "workers", 0, "extraction worker count (default from config)")
	f.IntVar(&flagMaxResults, "max-results", 0, "maximum number of articles returned (default from config)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := pipeline.LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	// フラグはファイル設定より優先
	if cmd.Flags().Changed("deadline") {
		cfg.RunTimeout = flagDeadline
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}
	if flagMaxResults > 0 {
		cfg.MaxResults = flagMaxResults
	}

	// メール設定は実行前に検証する（収集後に失敗しないように）
	var sender *pipeline.EmailSender
	if flagEmail {
		if sender, err = pipeline.NewEmailSenderFromEnv(); err != nil {
			return fmt.Errorf("email: %w", err)
		}
	}

	orch, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	// Ctrl-C で実行中の抽出を打ち切り、集まった分だけでランキングする
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	var result *pipeline.RunResult
	if flagEntries != "" {
		batches, err := pipeline.LoadEntriesFile(flagEntries)
		if err != nil {
			return err
		}
		result, err = orch.RunEntries(ctx, query, batches)
		if err != nil {
			return err
		}
	} else {
		infof("Searching %d feeds for %q...", len(cfg.Feeds), query)
		result, err = orch.Run(ctx, query)
		if err != nil {
			return err
		}
	}
	infof("Done in %s: %d articles", time.Since(start).Round(time.Millisecond), len(result.Articles))

	if flagOut != "" {
		if err := pipeline.WriteJSONFile(flagOut, result); err != nil {
			return fmt.Errorf("writing %s: %w", flagOut, err)
		}
		infof("Results written to %s", flagOut)
	} else if err := pipeline.WriteJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	if sender != nil {
		if err := sender.SendDigest(context.Background(), result); err != nil {
			return fmt.Errorf("sending digest: %w", err)
		}
		infof("Digest email sent")
	}
	return nil
}
