package sweep

import (
	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
)

const (
	gridItems = "ytd-rich-grid-renderer #contents > ytd-rich-item-renderer, " +
		"ytd-rich-grid-renderer #contents > ytd-rich-section-renderer, " +
		"ytd-rich-grid-row #contents > ytd-rich-item-renderer"
	gridRows  = "ytd-rich-grid-renderer ytd-rich-grid-row, ytd-rich-grid-row > #contents"
)

var placementProps = []string{
	"grid-row",
	"grid-row-start",
	"grid-row-end",
	"grid-column",
	"grid-column-start",
	"grid-column-end",
	"grid-area",
}

// GridRepair strips explicit grid placement from feed items and the section
// shelves between them, and flattens row wrappers so the grid re-flows
// around hidden cards instead of leaving gaps.
// It has to run after every mutation that may add or remove grid items.
func GridRepair(d *dom.Doc, s settings.Settings) int {
	if !s.BlockShorts {
		return 0
	}
	edits := 0
	for _, item := range dom.QueryAll(d.Root, gridItems) {
		edits += d.RemoveStyle(item, placementProps...)
	}
	for _, row := range dom.QueryAll(d.Root, gridRows) {
		if d.SetStyle(row, "display", "contents", false) {
			edits++
		}
	}
	return edits
}
