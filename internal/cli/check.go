/*
PURPOSE:
  Defines the 'check' subcommand.
  Verifies that HAR files parse, validate and survive a round trip.

REQUIREMENTS:
  User-specified:
  - Validate archives before handing them to other tools.

  Implementation-discovered:
  - Useful validation step for archives written by other producers.
  - A failed round trip is easiest to read as a diff of canonical JSON.

ARCHITECTURE INTEGRATION:
  - Calls: internal/model (Unmarshal, Marshal, Canonicalize)

ERROR HANDLING:
  - Prints one line per file; returns an error if any file failed.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  harstream check capture.har other.har

RELATED FILES:
  - internal/model/codec.go
*/

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/daryltucker/harstream/internal/model"
)

// ErrRoundTrip is returned when re-encoding an archive changes its content.
var ErrRoundTrip = errors.New("archive changed on round trip")

var showDiff bool

var checkCmd = &cobra.Command{
	Use:   "check FILE...",
	Short: "Validate HAR files and check that they round-trip",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
				failed++
				continue
			}
			har, diff, err := checkArchive(data)
			if err != nil {
				fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
				if diff != "" && showDiff {
					fmt.Fprintln(out, diff)
				}
				failed++
				continue
			}
			fmt.Fprintf(out, "ok   %s (%d entries)\n", path, len(har.Log.Entries))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&showDiff, "diff", true, "Print a diff when a file does not round-trip")
}

// checkArchive decodes and validates data, re-encodes it and compares both
// forms canonically. On a mismatch it returns ErrRoundTrip and a diff.
func checkArchive(data []byte) (*model.Har, string, error) {
	har, err := model.Unmarshal(data)
	if err != nil {
		return nil, "", err
	}
	if err := har.Validate(); err != nil {
		return nil, "", err
	}

	encoded, err := model.Marshal(har)
	if err != nil {
		return nil, "", fmt.Errorf("re-encode: %w", err)
	}

	want, err := model.Canonicalize(data)
	if err != nil {
		return nil, "", err
	}
	got, err := model.Canonicalize(encoded)
	if err != nil {
		return nil, "", err
	}
	if string(want) == string(got) {
		return har, "", nil
	}
	return har, textDiff(string(want), string(got)), ErrRoundTrip
}

func textDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
