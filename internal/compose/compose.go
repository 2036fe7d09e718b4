// Package compose builds one n-up output sheet from a contiguous chunk of
// source pages. Each source page becomes a Form XObject inside the source
// document's own pdfcpu context, and a fresh canvas page invokes the forms
// under a scale-then-translate matrix, one per grid slot. The result is a
// self-contained single-page PDF.
package compose

import (
	"bytes"
	"errors"
	"fmt"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"nupmerge/internal/layout"
)

// Chunk is a half-open range [Start, End) of zero-based source page indices
// that map onto the slots of one sheet.
type Chunk struct {
	Start int
	End   int
}

// Layout carries the precomputed geometry shared by every chunk of one
// document: the grid, the sheet dimensions taken from the document's first
// page, the per-page scale, and the padding ratio.
type Layout struct {
	Grid    layout.Grid
	Width   float64
	Height  float64
	ScaleX  float64
	ScaleY  float64
	Padding float64
}

// Sheet composites the chunk's pages of the document in src onto a single
// blank page and returns it serialized as a one-page PDF. Pages beyond the
// grid's capacity are dropped; a chunk shorter than the capacity leaves the
// remaining slots empty. src is never modified.
func Sheet(src []byte, ch Chunk, lay Layout) ([]byte, error) {
	ctx, err := pdfapi.ReadValidateAndOptimize(bytes.NewReader(src), model.NewDefaultConfiguration())
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, err
	}
	if ch.Start < 0 || ch.Start >= ch.End || ch.End > ctx.PageCount {
		return nil, fmt.Errorf("compose: chunk [%d, %d) out of range for %d pages", ch.Start, ch.End, ctx.PageCount)
	}

	count := ch.End - ch.Start
	if capacity := lay.Grid.Capacity(); count > capacity {
		count = capacity
	}
	origins := layout.SlotOrigins(lay.Grid, lay.Width, lay.Height)
	cellW, cellH := layout.CellSize(lay.Grid, lay.Width, lay.Height)

	xObjects := types.Dict{}
	var content bytes.Buffer
	for idx := 0; idx < count; idx++ {
		pageNr := ch.Start + idx + 1
		formRef, err := formFromPage(ctx, pageNr)
		if err != nil {
			return nil, fmt.Errorf("compose: page %d: %w", pageNr, err)
		}
		name := fmt.Sprintf("Fm%d", idx)
		xObjects[name] = *formRef

		tx, ty := origins[idx].X, origins[idx].Y
		if lay.Padding > 0 {
			tx += lay.Padding * cellW
			ty += lay.Padding * cellH
		}
		fmt.Fprintf(&content, "q %.5f 0 0 %.5f %.5f %.5f cm /%s Do Q ",
			lay.ScaleX, lay.ScaleY, tx, ty, name)
	}

	return writeCanvas(ctx, content.Bytes(), xObjects, lay.Width, lay.Height)
}

// formFromPage wraps one source page as a Form XObject within its own
// context, so the page's resources stay referenced. Media boxes with a
// non-zero lower-left corner are normalized to the origin via the form
// matrix so slot placement is unaffected.
func formFromPage(ctx *model.Context, pageNr int) (*types.IndirectRef, error) {
	pageDict, _, inh, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return nil, err
	}
	if pageDict == nil {
		return nil, errors.New("page dict missing")
	}
	box := inh.MediaBox
	if box == nil {
		box = inh.CropBox
	}
	if box == nil {
		return nil, errors.New("no media box")
	}

	var content []byte
	if _, found := pageDict.Find("Contents"); found {
		content, err = ctx.PageContent(pageDict)
		if err != nil {
			return nil, err
		}
	}

	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	sd.InsertName("Type", "XObject")
	sd.InsertName("Subtype", "Form")
	sd.InsertInt("FormType", 1)
	sd.Insert("BBox", box.Array())
	if inh.Resources != nil {
		sd.Insert("Resources", inh.Resources)
	}
	if box.LL.X != 0 || box.LL.Y != 0 {
		sd.Insert("Matrix", types.NewNumberArray(1, 0, 0, 1, -box.LL.X, -box.LL.Y))
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return ctx.IndRefForNewObject(*sd)
}

// writeCanvas installs a page tree holding a single blank page of the given
// size whose content invokes the chunk's form XObjects, then serializes the
// context. The catalog swap orphans the source page tree, which the writer
// drops during its reachability walk.
func writeCanvas(ctx *model.Context, content []byte, xObjects types.Dict, width, height float64) ([]byte, error) {
	sd, err := ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	contentRef, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return nil, err
	}

	box := types.RectForWidthAndHeight(0, 0, width, height)
	pagesDict := types.Dict{
		"Type":     types.Name("Pages"),
		"Count":    types.Integer(1),
		"MediaBox": box.Array(),
	}
	pagesRef, err := ctx.IndRefForNewObject(pagesDict)
	if err != nil {
		return nil, err
	}
	pageDict := types.Dict{
		"Type":      types.Name("Page"),
		"Parent":    *pagesRef,
		"MediaBox":  box.Array(),
		"Resources": types.Dict{"XObject": xObjects},
		"Contents":  *contentRef,
	}
	pageRef, err := ctx.IndRefForNewObject(pageDict)
	if err != nil {
		return nil, err
	}
	pagesDict["Kids"] = types.Array{*pageRef}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, err
	}
	rootDict["Pages"] = *pagesRef
	ctx.PageCount = 1

	var out bytes.Buffer
	if err := pdfapi.WriteContext(ctx, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
