package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/daryltucker/harstream/internal/config"
	"github.com/daryltucker/harstream/internal/model"
	"github.com/daryltucker/harstream/internal/output"
)

// stdout is os.Stdout without Close, so finishing a document never closes
// the process's stdout.
type stdout struct{ io.Writer }

// OpenSinks opens the configured outputs: the main document (HAR or JSON
// Lines) plus the optional CSV summary. pages are written into the HAR
// preamble. The main document comes first in the MultiSink, so a failing
// summary is logged without counting the entry as lost.
func OpenSinks(cfg *config.Config, pages ...model.Page) (output.EntrySink, error) {
	main, err := openFile(cfg.OutputPath())
	if err != nil {
		return nil, err
	}

	var sinks output.MultiSink
	switch cfg.Format {
	case config.FormatJSONL:
		sinks = append(sinks, output.NewJSONLWriter(main))
	default:
		hw, err := output.NewHARWriter(main, harOptions(cfg, pages)...)
		if err != nil {
			closeFile(main)
			return nil, fmt.Errorf("failed to init HAR writer at %s: %w", cfg.OutputPath(), err)
		}
		sinks = append(sinks, hw)
	}

	if path := cfg.SummaryPath(); path != "" {
		f, err := openFile(path)
		if err != nil {
			sinks.Close()
			return nil, err
		}
		cw, err := output.NewCSVWriter(f)
		if err != nil {
			closeFile(f)
			sinks.Close()
			return nil, fmt.Errorf("failed to init CSV writer at %s: %w", path, err)
		}
		sinks = append(sinks, cw)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

func openFile(path string) (io.Writer, error) {
	if path == "-" {
		return stdout{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

func closeFile(w io.Writer) {
	if c, ok := w.(io.Closer); ok {
		c.Close()
	}
}

func harOptions(cfg *config.Config, pages []model.Page) []output.HAROption {
	opts := []output.HAROption{output.WithPollInterval(cfg.PollInterval)}
	if c := cfg.Creator; c != nil && c.Name != "" {
		creator := model.Creator{Name: c.Name, Version: c.Version}
		if c.Comment != "" {
			creator.Comment = model.Some(c.Comment)
		}
		opts = append(opts, output.WithCreator(creator))
	}
	if b := cfg.Browser; b != nil {
		browser := model.Browser{Name: b.Name, Version: b.Version}
		if b.Comment != "" {
			browser.Comment = model.Some(b.Comment)
		}
		opts = append(opts, output.WithBrowser(browser))
	}
	if cfg.Comment != "" {
		opts = append(opts, output.WithComment(cfg.Comment))
	}
	if len(pages) > 0 {
		opts = append(opts, output.WithPages(pages...))
	}
	return opts
}
