// =============================================================================
// main.go - news-relay CLIのエントリーポイント
// =============================================================================
//
// RSSフィードからクエリに関連する記事を探し、関連度順に上位の記事を返すCLIです。
//
// =============================================================================
// 【サブコマンド】
// =============================================================================
//
//   relay search <query...>   フィードを読み込み、クエリで記事をランキング
//   relay feeds               設定されているフィード一覧を表示
//   relay version             バージョン情報を表示
//
// =============================================================================
// 【処理フロー（search）】
// =============================================================================
//
//   ┌─────────────┐    ┌─────────────┐    ┌─────────────┐
//   │  1. 設定    │ -> │  2. 実行    │ -> │  3. 出力    │
//   │  読み込み   │    │  ランキング │    │  JSON/メール│
//   └─────────────┘    └─────────────┘    └─────────────┘
//          │                  │                  │
//          v                  v                  v
//   .env読み込み        フィード読み込み    stdout or --out
//   YAML + フラグ       本文抽出・採点      --email でダイジェスト
//
// =============================================================================
// 【ポイント】
// =============================================================================
//
// - cobra でサブコマンドとフラグを解析
// - godotenv で.envファイルを読み込み（メール設定など）
// - 進捗・エラーは標準エラー出力、stdoutはJSONのみ
//
// =============================================================================
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"news-relay/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Rank RSS news articles by relevance to a query",
	Long: `relay reads a fixed list of RSS/Atom feeds, extracts the full text of each
recent article, scores it against a free-text query and prints the top
matches as JSON.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env が無くても環境変数だけで続行する
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			warnf(".env file not loaded: %v", err)
		}
	},
}

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "List the configured feeds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipeline.LoadConfig(flagConfig)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, f := range cfg.Feeds {
			mark := " "
			if f.Primary {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %-28s %s\n", mark, f.Name, f.URL)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relay %s (commit: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file (default: built-in feeds)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(feedsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errorf("%v", err)
		os.Exit(1)
	}
}

// warnf / errorf は標準エラー出力にログを書き出す（stdoutはJSON専用）
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "WARN: "+format+"\n", args...)
}

func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}

func infof(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "INFO: "+format+"\n", args...)
}
