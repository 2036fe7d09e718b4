package batch

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"nupmerge/internal/pdftest"
	"nupmerge/internal/pipeline"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDoc(t *testing.T, dir, name string, pages int) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), pdftest.Document(t, pages, 612, 792), 0644); err != nil {
		t.Fatal(err)
	}
}

func outputPageCount(t *testing.T, path string) int {
	t.Helper()
	ctx, err := pdfapi.ReadContextFile(path)
	if err != nil {
		t.Fatalf("reading output %s: %v", path, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatalf("page count: %v", err)
	}
	return ctx.PageCount
}

// pageFormCounts returns, for each page of the merged output, how many form
// XObjects its content invokes — the number of source pages on that sheet.
func pageFormCounts(t *testing.T, path string) []int {
	t.Helper()
	ctx, err := pdfapi.ReadContextFile(path)
	if err != nil {
		t.Fatalf("reading output %s: %v", path, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatalf("page count: %v", err)
	}
	counts := make([]int, 0, ctx.PageCount)
	for nr := 1; nr <= ctx.PageCount; nr++ {
		pageDict, _, _, err := ctx.PageDict(nr, false)
		if err != nil {
			t.Fatalf("page dict %d: %v", nr, err)
		}
		content, err := ctx.PageContent(pageDict)
		if err != nil {
			t.Fatalf("page content %d: %v", nr, err)
		}
		counts = append(counts, strings.Count(string(content), " Do "))
	}
	return counts
}

// pageBoxes returns the media box dimensions of every page of a PDF file.
func pageBoxes(t *testing.T, path string) [][2]float64 {
	t.Helper()
	ctx, err := pdfapi.ReadContextFile(path)
	if err != nil {
		t.Fatalf("reading output %s: %v", path, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		t.Fatalf("page count: %v", err)
	}
	boxes := make([][2]float64, 0, ctx.PageCount)
	for nr := 1; nr <= ctx.PageCount; nr++ {
		_, _, inh, err := ctx.PageDict(nr, false)
		if err != nil {
			t.Fatalf("page dict %d: %v", nr, err)
		}
		if inh.MediaBox == nil {
			t.Fatalf("page %d has no media box", nr)
		}
		boxes = append(boxes, [2]float64{inh.MediaBox.Width(), inh.MediaBox.Height()})
	}
	return boxes
}

func TestNaturalSort(t *testing.T) {
	names := []string{"slide10.pdf", "slide2.pdf", "cover.pdf", "slide1.pdf"}
	naturalSort(names)
	want := []string{"slide1.pdf", "slide2.pdf", "slide10.pdf", "cover.pdf"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("naturalSort mismatch (-want +got):\n%s", diff)
	}
}

func TestNaturalSortStableTies(t *testing.T) {
	names := []string{"b.pdf", "a.pdf", "part3-1.pdf", "part3-2.pdf"}
	naturalSort(names)
	// Equal keys (both 3) and absent keys keep their incoming order.
	want := []string{"part3-1.pdf", "part3-2.pdf", "b.pdf", "a.pdf"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("naturalSort mismatch (-want +got):\n%s", diff)
	}
}

func TestListDocumentsFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one1.pdf", 1)
	writeDoc(t, dir, "two2.PDF", 1)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := listDocuments(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one1.pdf", "two2.PDF"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("listDocuments mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMergesInOrder(t *testing.T) {
	// Documents of 4, 1 and 9 pages at 4 pages per sheet give 1+1+3
	// output pages.
	dir := t.TempDir()
	writeDoc(t, dir, "deck1.pdf", 4)
	writeDoc(t, dir, "deck2.pdf", 1)
	writeDoc(t, dir, "deck3.pdf", 9)
	out := filepath.Join(t.TempDir(), "merged.pdf")

	if err := Run(dir, out, pipeline.Options{PagesPerSheet: 4}, discard()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := outputPageCount(t, out); n != 5 {
		t.Fatalf("output has %d pages, want 5", n)
	}
}

func TestRunDocumentOrder(t *testing.T) {
	// Documents of 3, 4 and 9 pages produce sheets carrying distinct page
	// counts (3 | 4 | 4, 4, 1), so the merged output reveals any document
	// or chunk reordering.
	dir := t.TempDir()
	writeDoc(t, dir, "deck1.pdf", 3)
	writeDoc(t, dir, "deck2.pdf", 4)
	writeDoc(t, dir, "deck3.pdf", 9)
	out := filepath.Join(t.TempDir(), "merged.pdf")

	if err := Run(dir, out, pipeline.Options{PagesPerSheet: 4, Workers: 8}, discard()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int{3, 4, 4, 4, 1}
	if diff := cmp.Diff(want, pageFormCounts(t, out)); diff != "" {
		t.Errorf("output pages out of (document, chunk) order (-want +got):\n%s", diff)
	}
}

func TestRunSingleSheet(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "only.pdf", 3)
	out := filepath.Join(t.TempDir(), "merged.pdf")

	if err := Run(dir, out, pipeline.Options{PagesPerSheet: 4}, discard()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := outputPageCount(t, out); n != 1 {
		t.Fatalf("output has %d pages, want 1", n)
	}
}

func TestRunSkipsCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good1.pdf", 2)
	writeDoc(t, dir, "good2.pdf", 2)
	if err := os.WriteFile(filepath.Join(dir, "bad3.pdf"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}
	writeDoc(t, dir, "good4.pdf", 2)
	out := filepath.Join(t.TempDir(), "merged.pdf")

	if err := Run(dir, out, pipeline.Options{PagesPerSheet: 2}, discard()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := outputPageCount(t, out); n != 3 {
		t.Fatalf("output has %d pages, want 3", n)
	}
}

func TestRunEmptyFolder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "merged.pdf")
	err := Run(t.TempDir(), out, pipeline.Options{PagesPerSheet: 4}, discard())
	if !errors.Is(err, ErrNoOutput) {
		t.Fatalf("Run on empty folder = %v, want ErrNoOutput", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("output file was written for an empty run")
	}
}

func TestRunInvalidOptions(t *testing.T) {
	err := Run(t.TempDir(), filepath.Join(t.TempDir(), "out.pdf"), pipeline.Options{PagesPerSheet: 0}, discard())
	if !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Fatalf("Run = %v, want ErrInvalidConfig", err)
	}
}

func TestRunMissingFolder(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	err := Run(missing, filepath.Join(t.TempDir(), "out.pdf"), pipeline.Options{PagesPerSheet: 4}, discard())
	if err == nil {
		t.Fatal("Run on missing folder succeeded, want error")
	}
}

func TestRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "deck1.pdf", 9)
	writeDoc(t, dir, "deck2.pdf", 4)
	opts := pipeline.Options{PagesPerSheet: 4, Padding: 0.02}

	out1 := filepath.Join(t.TempDir(), "a.pdf")
	out2 := filepath.Join(t.TempDir(), "b.pdf")
	if err := Run(dir, out1, opts, discard()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := Run(dir, out2, opts, discard()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n1, n2 := outputPageCount(t, out1), outputPageCount(t, out2); n1 != n2 {
		t.Fatalf("page counts differ between runs: %d vs %d", n1, n2)
	}
	if diff := cmp.Diff(pageBoxes(t, out1), pageBoxes(t, out2)); diff != "" {
		t.Errorf("per-page geometry differs between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(pageFormCounts(t, out1), pageFormCounts(t, out2)); diff != "" {
		t.Errorf("per-page placements differ between runs (-first +second):\n%s", diff)
	}
}
