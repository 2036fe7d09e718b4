// Package pdftest generates minimal well-formed PDF fixtures for tests, so
// no binary files need to be checked in.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// Document returns an uncompressed PDF with the given number of pages, each
// inheriting a [0 0 width height] media box from the page tree and carrying
// a one-line content stream.
func Document(t *testing.T, pages int, width, height float64) []byte {
	t.Helper()
	if pages < 1 {
		t.Fatalf("pdftest: need at least one page, got %d", pages)
	}

	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.7\n")

	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Count %d /Kids [%s] /MediaBox [0 0 %g %g] >>",
		pages, strings.Join(kids, " "), width, height))
	for i := 0; i < pages; i++ {
		writeObj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << >> /Contents %d 0 R >>",
			4+2*i))
		stream := fmt.Sprintf("0 0 m %g %g l S", width, height)
		writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefOffset)
	return buf.Bytes()
}
