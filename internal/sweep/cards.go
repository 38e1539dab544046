package sweep

import (
	"strings"

	"golang.org/x/net/html"

	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
)

// cardContainers are the feed items that have no CSS-selectable shorts
// marker of their own.
const cardContainers = "ytd-rich-item-renderer, ytd-video-renderer, ytd-grid-video-renderer, ytd-compact-video-renderer, ytd-reel-item-renderer, yt-lockup-view-model"

const shortsPath = "/shorts/"

// IsShortsCard reports whether a card embeds a shorts marker attribute, a
// shorts lockup, or a link into the shorts path.
func IsShortsCard(card *html.Node) bool {
	if dom.HasAttr(card, "is-shorts") {
		return true
	}
	if dom.Query(card, "[is-shorts], ytm-shorts-lockup-view-model, ytd-reel-item-renderer") != nil {
		return true
	}
	for _, a := range dom.QueryAll(card, "a[href]") {
		href := dom.GetAttr(a, "href")
		if strings.HasPrefix(href, shortsPath) || strings.Contains(href, "youtube.com"+shortsPath) {
			return true
		}
	}
	return false
}

// ShortsCards hides shorts cards with an inline style. Matching needs the
// card's content, which a selector on the shared stylesheet cannot inspect.
// Cards the site recycled for regular content are restored.
func ShortsCards(d *dom.Doc, s settings.Settings) int {
	if !s.BlockShorts {
		return 0
	}
	edits := 0
	for _, card := range dom.QueryAll(d.Root, cardContainers) {
		if IsShortsCard(card) {
			if d.SetAttr(card, dom.ShortsAttr, "1") {
				edits++
			}
			if d.SetStyle(card, "display", "none", true) {
				edits++
			}
			continue
		}
		if dom.HasAttr(card, dom.ShortsAttr) {
			d.RemoveAttr(card, dom.ShortsAttr)
			edits++
			edits += d.RemoveStyle(card, "display")
		}
	}
	return edits
}
