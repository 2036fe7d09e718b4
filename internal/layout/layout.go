// Package layout computes the sheet geometry for n-up imposition: how many
// grid cells a sheet gets, how much each source page is scaled down, and
// where each cell's lower-left corner sits on the sheet.
package layout

import (
	"errors"
	"math"
)

// ErrInvalidCount is returned by ComputeGrid for a page count below 1.
var ErrInvalidCount = errors.New("layout: pages per sheet must be at least 1")

// Grid is the cell arrangement of one output sheet.
type Grid struct {
	Cols int
	Rows int
}

// Point is a position on the sheet in page coordinates (origin bottom-left).
type Point struct {
	X float64
	Y float64
}

// ComputeGrid derives a near-square arrangement for n pages per sheet:
// columns = ceil(sqrt(n)), rows = ceil(n/columns). The grid always holds at
// least n pages (2 -> 2x1, 4 -> 2x2, 5 and 6 -> 3x2, 9 -> 3x3).
func ComputeGrid(n int) (Grid, error) {
	if n < 1 {
		return Grid{}, ErrInvalidCount
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	return Grid{Cols: cols, Rows: rows}, nil
}

// Capacity returns the number of cells in the grid.
func (g Grid) Capacity() int {
	return g.Cols * g.Rows
}

// Scale returns the per-axis scale factor applied to every page placed on
// the sheet. A positive padding shrinks both axes by (1 - 2*padding) so the
// page floats inside its cell; zero or negative padding means the page fills
// the cell exactly.
func Scale(g Grid, padding float64) (sx, sy float64) {
	f := 1.0
	if padding > 0 {
		f = 1 - 2*padding
	}
	return f / float64(g.Cols), f / float64(g.Rows)
}

// CellSize returns the width and height of one grid cell on a sheet of the
// given dimensions.
func CellSize(g Grid, sheetWidth, sheetHeight float64) (cw, ch float64) {
	return sheetWidth / float64(g.Cols), sheetHeight / float64(g.Rows)
}

// SlotOrigins returns the lower-left corner of every cell in placement
// order: row-major from the visually topmost row down, left to right. The
// first origin is the top-left cell (highest y), the last the bottom-right.
// Source pages of a chunk are assigned to slots in this order.
func SlotOrigins(g Grid, sheetWidth, sheetHeight float64) []Point {
	cw, ch := CellSize(g, sheetWidth, sheetHeight)
	origins := make([]Point, 0, g.Capacity())
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			origins = append(origins, Point{
				X: float64(col) * cw,
				Y: float64(g.Rows-1-row) * ch,
			})
		}
	}
	return origins
}
