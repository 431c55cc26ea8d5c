package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/harstream/internal/model"
	"github.com/daryltucker/harstream/internal/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the harstream version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "harstream %s (HAR %s)\n", output.Version, model.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
