// nupmerge tiles the pages of every PDF in a folder onto n-up sheets and
// concatenates all sheets into one merged PDF, in natural numeric filename
// order. Typical use is turning a directory of lecture slide decks into a
// single printable handout.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"nupmerge/internal/batch"
	"nupmerge/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("nupmerge", pflag.ContinueOnError)
	input := flagSet.StringP("input", "i", "", "folder containing the source PDF files")
	output := flagSet.StringP("output", "o", "merged.pdf", "path of the merged output PDF")
	pages := flagSet.IntP("pages-per-sheet", "n", 4, "source pages tiled onto one output page")
	padding := flagSet.Float64("padding", 0, "padding ratio per cell side, in [0, 0.5)")
	workers := flagSet.Int("workers", 0, "concurrent chunks per document (default: number of CPUs)")
	configPath := flagSet.StringP("config", "c", "", "YAML config file; explicit flags take precedence")
	verbose := flagSet.BoolP("verbose", "v", false, "enable debug logging")
	help := flagSet.BoolP("help", "h", false, "show this help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *help {
		fmt.Fprintf(os.Stderr, "Usage: nupmerge --input DIR [flags]\n\n%s", flagSet.FlagUsages())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	if *configPath != "" {
		cfg, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg.apply(flagSet, input, output, pages, padding, workers)
	}
	if *input == "" {
		return errors.New("an input folder is required (--input)")
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := pipeline.Options{
		PagesPerSheet: *pages,
		Padding:       *padding,
		Workers:       *workers,
	}
	return batch.Run(*input, *output, opts, logger)
}
