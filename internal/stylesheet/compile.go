// Package stylesheet turns Settings into the text of the single live
// stylesheet. Compile is pure: no DOM, no network, no state.
package stylesheet

import (
	"strings"

	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
)

// ElementID is the id of the live <style> element owned by the engine.
const ElementID = "tubeguard-style"

// EndscreenElementID is the dedicated overlay suppression stylesheet.
const EndscreenElementID = "tubeguard-endscreen"

// Block is one flag's contribution to the stylesheet.
type Block struct {
	Key     string
	Enabled bool
	CSS     string
}

type blockDef struct {
	key       string
	selectors []string
	// extra is emitted verbatim after the hide rule, for blocks that do more
	// than hide.
	extra string
}

// Order is stable; selector sets are disjoint across blocks.
var blockDefs = []blockDef{
	{settings.KeyBlockShorts, []string{
		"ytd-reel-shelf-renderer",
		"ytd-rich-shelf-renderer[is-shorts]",
		"ytd-guide-entry-renderer:has(a[title=\"Shorts\"])",
		"ytd-mini-guide-entry-renderer[aria-label=\"Shorts\"]",
		"yt-chip-cloud-chip-renderer:has(yt-formatted-string[title=\"Shorts\"])",
		"ytm-shorts-lockup-view-model",
		"[" + dom.ShortsAttr + "]",
	}, ""},
	{settings.KeyBlockHomeFeed, []string{
		"ytd-browse[page-subtype=\"home\"] ytd-rich-grid-renderer",
		"ytd-browse[page-subtype=\"home\"] #chips-wrapper",
	}, ""},
	{settings.KeyBlockSidebar, []string{
		"ytd-watch-flexy #secondary #related",
		"ytd-watch-next-secondary-results-renderer",
	}, `ytd-watch-two-column-results-renderer {
  grid-template-columns: 1fr !important;
}
`},
	{settings.KeyBlockComments, []string{
		"ytd-comments#comments",
		"ytd-comments-entry-point-header-renderer",
	}, ""},
	{settings.KeyBlockEndscreen, []string{
		".ytp-ce-element",
		".ytp-ce-covering-overlay",
		".html5-endscreen",
		".ytp-endscreen-content",
	}, ""},
	{settings.KeyBlockLiveChat, []string{
		"ytd-live-chat-frame",
		"#chat-container",
	}, ""},
	{settings.KeyBlockMerch, []string{
		"ytd-merch-shelf-renderer",
		"ytd-ticket-shelf-renderer",
		"ytd-product-list-header-renderer",
	}, ""},
	{settings.KeyBlockNotifications, []string{
		"ytd-notification-topbar-button-renderer",
	}, ""},
	{settings.KeyBlockExplore, []string{
		"ytd-guide-section-renderer:has(a[href=\"/feed/trending\"])",
		"ytd-guide-entry-renderer:has(a[href^=\"/feed/explore\"])",
	}, ""},
	{settings.KeyBlockPlayerOverlays, []string{
		".ytp-watermark",
		".iv-branding",
		".ytp-cards-button",
		".ytp-cards-teaser",
		".ytp-cards-teaser-shown",
		".iv-drawer",
		".ytp-iv-drawer",
	}, ""},
	{settings.KeyBlurThumbnails, nil, `ytd-thumbnail img,
yt-thumbnail-view-model img,
ytd-video-preview img {
  filter: blur(12px) grayscale(0.5) !important;
  transition: filter 0.4s ease !important;
}
ytd-thumbnail:hover img,
yt-thumbnail-view-model:hover img,
ytd-video-preview:hover img {
  filter: none !important;
}
`},
	{settings.KeyHideMetrics, []string{
		"#owner-sub-count",
		"ytd-video-view-count-renderer",
		"#info-container yt-formatted-string#info > span:first-child",
		"like-button-view-model .yt-spec-button-shape-next__button-text-content",
		"[" + dom.MetricAttr + "]",
		"[" + dom.DelimiterAttr + "]",
	}, ""},
}

const hideDecl = " {\n  display: none !important;\n}\n"

// Blocks returns every flag's block in compile order.
func Blocks(s settings.Settings) []Block {
	out := make([]Block, 0, len(blockDefs))
	for _, def := range blockDefs {
		on, _ := s.Flag(def.key)
		out = append(out, Block{Key: def.key, Enabled: on, CSS: renderBlock(def, on)})
	}
	return out
}

func renderBlock(def blockDef, on bool) string {
	var b strings.Builder
	if !on {
		b.WriteString("/* ")
		b.WriteString(def.key)
		b.WriteString(": shown */\n")
		return b.String()
	}
	b.WriteString("/* ")
	b.WriteString(def.key)
	b.WriteString(": hidden */\n")
	if len(def.selectors) > 0 {
		b.WriteString(strings.Join(def.selectors, ",\n"))
		b.WriteString(hideDecl)
	}
	b.WriteString(def.extra)
	return b.String()
}

// Compile returns the full live stylesheet for s. Settings are normalized
// first, so any value compiles.
func Compile(s settings.Settings) string {
	s = settings.Normalize(s)
	var b strings.Builder
	for _, blk := range Blocks(s) {
		b.WriteString(blk.CSS)
	}
	return b.String()
}

// Endscreen is the text of the dedicated overlay suppression stylesheet. It
// outranks the player's own rules by specificity and !important.
func Endscreen() string {
	return `.html5-video-player .ytp-ce-element,
.html5-video-player .ytp-ce-rendering-container,
.html5-video-player .ytp-ce-covering-overlay,
.html5-video-player .ytp-ce-expanding-overlay,
.html5-video-player .html5-endscreen,
.html5-video-player .ytp-endscreen-content,
.html5-video-player .ytp-videowall-still,
.html5-video-player .ytp-pause-overlay,
.html5-video-player .ytp-autonav-endscreen,
.html5-video-player .ytp-suggested-action,
.html5-video-player .ytp-upnext,
ytd-endscreen-element-renderer,
ytd-compact-autoplay-renderer {
  display: none !important;
  visibility: hidden !important;
  opacity: 0 !important;
  pointer-events: none !important;
}
`
}

// EarlyPaint compiles from the local flag mirror read before the settings
// store has answered.
func EarlyPaint(flags map[string]string) string {
	return Compile(settings.FromLocalFlags(flags))
}

// EarlyRules maps each local flag name to the block it enables, and gives
// the value to assume when the flag is missing from page storage. An
// in-page script built from these reproduces EarlyPaint.
func EarlyRules() (rules, defaults map[string]string) {
	defaults = settings.LocalFlags(settings.Defaults())
	rules = make(map[string]string, len(defaults))
	for _, def := range blockDefs {
		if _, ok := defaults[settings.FlagPrefix+def.key]; ok {
			rules[settings.FlagPrefix+def.key] = renderBlock(def, true)
		}
	}
	return rules, defaults
}
