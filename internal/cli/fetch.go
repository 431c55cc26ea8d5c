/*
PURPOSE:
  Defines the 'fetch' subcommand.
  Requests every configured URL and streams the exchanges into one archive.

REQUIREMENTS:
  User-specified:
  - Capture a list of URLs into a HAR file.
  - Specific flags for overrides.

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load fails or the run fails.
  - Individual URL failures are logged by the engine, not returned.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Override -> Engine.Run.

USAGE:
  harstream fetch --urls https://...

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/engine/runner.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/harstream/internal/engine"
)

var (
	urlsOverride        []string
	outputOverride      string
	outputDirOverride   string
	formatOverride      string
	commentOverride     string
	summaryOverride     string
	concurrencyOverride int
	methodOverride      string
	headerOverrides     map[string]string
	bodyOverride        string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Capture a list of URLs into a HAR archive",
	Long: `Requests every configured URL and writes each exchange to the archive as
soon as it completes. Requests run concurrently, so entries appear in completion
order. Redirects are not followed: every hop is its own entry.

Entries are streamed, so memory use does not grow with the number of URLs. The
document is finished when all requests are done, or when the command is
interrupted.`,
	Example: `  # Capture with defaults (uses harstream.yaml)
  harstream fetch

  # Override targets and write to stdout
  harstream fetch --urls https://example.com,https://example.org -o -

  # JSON Lines instead of HAR, with a CSV summary
  harstream fetch --format jsonl --summary summary.csv

  # POST a form body
  harstream fetch --urls https://example.com/login -X POST \
    -H Content-Type=application/x-www-form-urlencoded --data 'user=a&pass=b'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if len(urlsOverride) > 0 {
			cfg.URLs = urlsOverride
		}
		if outputOverride != "" {
			cfg.OutputFile = outputOverride
		}
		if outputDirOverride != "" {
			cfg.OutputDir = outputDirOverride
		}
		if formatOverride != "" {
			cfg.Format = formatOverride
		}
		if commentOverride != "" {
			cfg.Comment = commentOverride
		}
		if summaryOverride != "" {
			cfg.SummaryCSV = summaryOverride
		}
		if flags.Changed("concurrency") {
			cfg.Concurrency = concurrencyOverride
		}
		if methodOverride != "" {
			cfg.Method = methodOverride
		}
		for k, v := range headerOverrides {
			if cfg.Headers == nil {
				cfg.Headers = map[string]string{}
			}
			cfg.Headers[k] = v
		}
		if flags.Changed("data") {
			cfg.Body = bodyOverride
		}

		return engine.Run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringSliceVar(&urlsOverride, "urls", nil, "Comma-separated list of URLs to capture")
	fetchCmd.Flags().StringVarP(&outputOverride, "output", "o", "", "Output file, '-' for stdout (overrides config)")
	fetchCmd.Flags().StringVar(&outputDirOverride, "output-dir", "", "Directory for relative output paths")
	fetchCmd.Flags().StringVar(&formatOverride, "format", "", "Output format: har or jsonl")
	fetchCmd.Flags().StringVar(&commentOverride, "comment", "", "Comment for the log object")
	fetchCmd.Flags().StringVar(&summaryOverride, "summary", "", "Also write a CSV summary to this file")
	fetchCmd.Flags().IntVarP(&concurrencyOverride, "concurrency", "c", 0, "Number of concurrent requests")
	fetchCmd.Flags().StringVarP(&methodOverride, "method", "X", "", "HTTP method")
	fetchCmd.Flags().StringToStringVarP(&headerOverrides, "header", "H", nil, "Request headers as Name=Value (repeatable)")
	fetchCmd.Flags().StringVar(&bodyOverride, "data", "", "Request body")
}
