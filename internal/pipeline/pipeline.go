// Package pipeline turns one source document into its sequence of n-up
// sheets. Chunks of a document are composited concurrently on a bounded
// worker pool; results are collected by chunk index so the output order
// never depends on which worker finishes first.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"nupmerge/internal/compose"
	"nupmerge/internal/layout"
)

// ErrInvalidConfig marks configuration errors surfaced before any
// processing starts.
var ErrInvalidConfig = errors.New("invalid configuration")

// Options configures the conversion of every document in a batch.
type Options struct {
	// PagesPerSheet is the number of source pages tiled onto one output
	// page. Must be at least 1.
	PagesPerSheet int

	// Padding shrinks each page inside its grid cell by this ratio per
	// side. Must be in [0, 0.5); zero disables padding.
	Padding float64

	// Workers bounds the number of chunks composited concurrently within
	// one document. Zero or negative means the number of CPUs.
	Workers int
}

// Validate reports the first configuration error, if any.
func (o Options) Validate() error {
	if o.PagesPerSheet < 1 {
		return fmt.Errorf("%w: pages per sheet must be at least 1, got %d", ErrInvalidConfig, o.PagesPerSheet)
	}
	if o.Padding < 0 || o.Padding >= 0.5 {
		return fmt.Errorf("%w: padding must be in [0, 0.5), got %g", ErrInvalidConfig, o.Padding)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Process converts the document at path into its composited sheets, in
// chunk order. Every failure below the configuration level is soft: an
// unreadable or empty document yields an empty result, a failed chunk a
// gap, and in both cases a warning is logged and the batch goes on.
func Process(path string, opts Options, logger *slog.Logger) [][]byte {
	src, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("skipping unreadable document", "path", path, "error", err)
		return nil
	}

	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(src), model.NewDefaultConfiguration())
	if err != nil {
		logger.Warn("skipping unreadable document", "path", path, "error", err)
		return nil
	}
	if err := ctx.EnsurePageCount(); err != nil {
		logger.Warn("skipping document without page count", "path", path, "error", err)
		return nil
	}
	if ctx.PageCount == 0 {
		logger.Warn("skipping empty document", "path", path)
		return nil
	}

	// Sheet geometry comes from the first page and is assumed uniform for
	// the whole document.
	_, _, inh, err := ctx.PageDict(1, false)
	if err != nil || inh.MediaBox == nil {
		logger.Warn("skipping document without media box", "path", path, "error", err)
		return nil
	}
	width, height := inh.MediaBox.Width(), inh.MediaBox.Height()

	grid, err := layout.ComputeGrid(opts.PagesPerSheet)
	if err != nil {
		logger.Warn("skipping document", "path", path, "error", err)
		return nil
	}
	sx, sy := layout.Scale(grid, opts.Padding)
	lay := compose.Layout{
		Grid:    grid,
		Width:   width,
		Height:  height,
		ScaleX:  sx,
		ScaleY:  sy,
		Padding: opts.Padding,
	}

	chunks := partition(ctx.PageCount, opts.PagesPerSheet)
	results := make([][]byte, len(chunks))
	sem := make(chan struct{}, min(opts.workers(), len(chunks)))
	var wg sync.WaitGroup
	for i, ch := range chunks {
		wg.Add(1)
		go func(i int, ch compose.Chunk) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			sheet, err := compose.Sheet(src, ch, lay)
			if err != nil {
				logger.Warn("chunk composition failed",
					"path", path,
					"pages", fmt.Sprintf("%d-%d", ch.Start+1, ch.End),
					"error", err)
				return
			}
			results[i] = sheet
		}(i, ch)
	}
	wg.Wait()

	sheets := make([][]byte, 0, len(results))
	for _, r := range results {
		if r != nil {
			sheets = append(sheets, r)
		}
	}
	logger.Debug("document processed", "path", path, "pages", ctx.PageCount, "sheets", len(sheets))
	return sheets
}

// partition splits total pages into consecutive chunks of size pages each;
// the last chunk may be shorter.
func partition(total, size int) []compose.Chunk {
	chunks := make([]compose.Chunk, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		chunks = append(chunks, compose.Chunk{Start: start, End: end})
	}
	return chunks
}
