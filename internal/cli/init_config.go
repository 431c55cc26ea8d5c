package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/output"
)

var forceInit bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [PATH]",
	Short: "Write a starter harstream.yaml with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "harstream.yaml"
		if len(args) == 1 {
			target = args[0]
		}

		if !forceInit {
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat %s: %w", target, err)
			}
		}

		data, err := starterConfig()
		if err != nil {
			return err
		}

		if dir := filepath.Dir(target); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create target directory %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", target, err)
		}

		output.Logger.Info("Wrote config", "path", target)
		return nil
	},
}

// starterConfig renders the defaults with an example target filled in.
func starterConfig() ([]byte, error) {
	cfg := config.DefaultConfig()
	cfg.URLs = []string{"https://example.com/"}
	cfg.Headers = map[string]string{"User-Agent": "harstream/" + output.Version}
	cfg.Creator = &config.Identity{Name: "harstream", Version: output.Version}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	header := "# harstream configuration. Every key is optional; see `harstream fetch --help`.\n"
	return append([]byte(header), data...), nil
}

func init() {
	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
	rootCmd.AddCommand(initConfigCmd)
}
