package sweep

import (
	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
)

const (
	// the player toggles these with inline styles, which beat a plain rule
	endscreenInline = ".ytp-ce-element, .ytp-ce-rendering-container, .ytp-ce-element-show, " +
		".html5-endscreen, .ytp-endscreen, .ytp-pause-overlay, .ytp-pause-overlay-container, " +
		".ytp-autonav-endscreen, .ytp-suggested-action, .videowall-endscreen, " +
		".ytp-show-videowall-ui, .ytp-upnext, .ytp-endscreen-paginate"
	// overlay cards removed outright
	endscreenRemovable = "ytd-endscreen-element-renderer, ytd-compact-autoplay-renderer, " +
		".ytp-ce-element, .ytp-ce-video, .ytp-ce-playlist, .ytp-ce-channel, " +
		".ytp-ce-covering-overlay, .ytp-ce-expanding-overlay, .ytp-suggestion-set, " +
		".ytp-endscreen-content, .ytp-videowall-still"
)

var visibilityProps = []string{"display", "visibility", "opacity", "pointer-events"}

// EndscreenInline strips inline visibility overrides so the suppression
// stylesheet's rule applies.
func EndscreenInline(d *dom.Doc, s settings.Settings) int {
	if !s.BlockEndscreen {
		return 0
	}
	edits := 0
	for _, n := range dom.QueryAll(d.Root, endscreenInline) {
		edits += d.RemoveStyle(n, visibilityProps...)
	}
	return edits
}

// EndscreenRemove deletes end-of-video overlay elements.
func EndscreenRemove(d *dom.Doc, s settings.Settings) int {
	if !s.BlockEndscreen {
		return 0
	}
	edits := 0
	for _, n := range dom.QueryAll(d.Root, endscreenRemovable) {
		// nested overlays go with their removed ancestor
		if !dom.Contains(d.Root, n) {
			continue
		}
		if d.Remove(n) {
			edits++
		}
	}
	return edits
}
