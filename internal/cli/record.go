/*
PURPOSE:
  Defines the 'record' subcommand.
  Runs a reverse proxy that records every exchange passing through it.

REQUIREMENTS:
  User-specified:
  - Record live traffic from a real client into a HAR file.

  Implementation-discovered:
  - The archive is finished on SIGINT/SIGTERM (the context from main.go).

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Record()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if the listener cannot be opened or the archive cannot be finished.

USAGE:
  harstream record --upstream https://api.example.com --listen :8080

RELATED FILES:
  - internal/engine/recorder.go
*/

package cli

import (
	"github.com/spf13/cobra"

	"github.com/daryltucker/harstream/internal/engine"
)

var (
	listenOverride   string
	upstreamOverride string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record traffic through a reverse proxy",
	Long: `Listens on --listen and forwards every request to --upstream, recording each
exchange as it completes. Point a client at the listen address, then press Ctrl-C
to finish the archive.`,
	Example: `  harstream record --upstream http://localhost:3000 -o session.har`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenOverride != "" {
			cfg.Listen = listenOverride
		}
		if upstreamOverride != "" {
			cfg.Upstream = upstreamOverride
		}
		if outputOverride != "" {
			cfg.OutputFile = outputOverride
		}
		if formatOverride != "" {
			cfg.Format = formatOverride
		}
		if commentOverride != "" {
			cfg.Comment = commentOverride
		}
		return engine.Record(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVar(&listenOverride, "listen", "", "Address to listen on (default 127.0.0.1:8080)")
	recordCmd.Flags().StringVar(&upstreamOverride, "upstream", "", "Upstream base URL to forward to")
	recordCmd.Flags().StringVarP(&outputOverride, "output", "o", "", "Output file, '-' for stdout (overrides config)")
	recordCmd.Flags().StringVar(&formatOverride, "format", "", "Output format: har or jsonl")
	recordCmd.Flags().StringVar(&commentOverride, "comment", "", "Comment for the log object")
}
