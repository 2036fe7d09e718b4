// Package batch drives a whole conversion run: it discovers the PDF files
// of a folder, processes them one at a time in natural numeric order, and
// writes all resulting sheets as one merged document.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"nupmerge/internal/pipeline"
)

// ErrNoOutput is returned when a run produces no sheets at all; no output
// file is written in that case.
var ErrNoOutput = errors.New("batch: no pages produced, nothing to write")

var digitRun = regexp.MustCompile(`\d+`)

// Run converts every PDF in inputDir and writes the merged result to
// outputPath. Documents are processed in natural numeric filename order;
// per-document and per-chunk failures are absorbed with a warning. Only a
// configuration error, an unlistable input directory, an entirely empty
// result, or a failing final write abort the run.
func Run(inputDir, outputPath string, opts pipeline.Options, logger *slog.Logger) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	files, err := listDocuments(inputDir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", inputDir, err)
	}
	logger.Info("documents discovered", "count", len(files), "dir", inputDir)

	// Each segment is one single-page sheet; segments accumulate in
	// (document, chunk) order and are written exactly once at the end.
	var segments [][]byte
	for i, name := range files {
		logger.Info("processing document", "index", i+1, "total", len(files), "file", name)
		segments = append(segments, pipeline.Process(filepath.Join(inputDir, name), opts, logger)...)
	}

	if len(segments) == 0 {
		return ErrNoOutput
	}
	if err := writeMerged(outputPath, segments); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	logger.Info("merged document written", "path", outputPath, "pages", len(segments))
	return nil
}

// listDocuments returns the PDF filenames of dir in natural numeric order.
func listDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	naturalSort(names)
	return names, nil
}

// naturalSort orders filenames by the first run of decimal digits found in
// each; names without digits sort after all numbered ones. The sort is
// stable, so ties keep their enumeration order.
func naturalSort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ki, iOK := numericKey(names[i])
		kj, jOK := numericKey(names[j])
		switch {
		case iOK && jOK:
			return ki < kj
		case iOK:
			return true
		default:
			return false
		}
	})
}

func numericKey(name string) (int64, bool) {
	m := digitRun.FindString(name)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		// Digit run longer than an int64; still a numbered file, and
		// larger than any parseable key.
		return math.MaxInt64, true
	}
	return n, true
}

func writeMerged(path string, segments [][]byte) error {
	if len(segments) == 1 {
		return os.WriteFile(path, segments[0], 0644)
	}
	readers := make([]io.ReadSeeker, len(segments))
	for i, s := range segments {
		readers[i] = bytes.NewReader(s)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pdfapi.MergeRaw(readers, f, false, model.NewDefaultConfiguration()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
