package settings

import (
	"errors"
	"strconv"
)

var (
	ErrUnknownKey   = errors.New("settings: unknown key")
	ErrInvalidValue = errors.New("settings: invalid value")
)

// Quality is the user-facing resolution preference.
type Quality string

const (
	QualityAuto Quality = "auto"
	Quality2160 Quality = "2160p"
	Quality1440 Quality = "1440p"
	Quality1080 Quality = "1080p"
	Quality720  Quality = "720p"
	Quality480  Quality = "480p"
	Quality360  Quality = "360p"
)

// Qualities lists every accepted value, highest tier first.
var Qualities = []Quality{QualityAuto, Quality2160, Quality1440, Quality1080, Quality720, Quality480, Quality360}

func (q Quality) Valid() bool {
	for _, v := range Qualities {
		if v == q {
			return true
		}
	}
	return false
}

// Speed is a playback rate preference as its wire string ("1.25").
type Speed string

const SpeedNormal Speed = "1"

// Speeds is the supported range. "1" is the identity and means no override.
var Speeds = []Speed{"0.25", "0.5", "0.75", "1", "1.25", "1.5", "1.75", "2"}

func (s Speed) Valid() bool {
	for _, v := range Speeds {
		if v == s {
			return true
		}
	}
	return false
}

// Rate returns the numeric playback rate, 1 for anything unparsable.
func (s Speed) Rate() float64 {
	f, err := strconv.ParseFloat(string(s), 64)
	if err != nil || f <= 0 {
		return 1
	}
	return f
}

// Settings is the typed SettingsObject. Values are replaced wholesale; a
// Settings value handed to a component is never modified afterwards.
type Settings struct {
	BlockShorts          bool    `toml:"block_shorts" json:"blockShorts"`
	BlockHomeFeed        bool    `toml:"block_home_feed" json:"blockHomeFeed"`
	BlockSidebar         bool    `toml:"block_sidebar" json:"blockSidebar"`
	BlockComments        bool    `toml:"block_comments" json:"blockComments"`
	BlockEndscreen       bool    `toml:"block_endscreen" json:"blockEndscreen"`
	BlockLiveChat        bool    `toml:"block_live_chat" json:"blockLiveChat"`
	BlockMerch           bool    `toml:"block_merch" json:"blockMerch"`
	BlockNotifications   bool    `toml:"block_notifications" json:"blockNotifications"`
	BlockExplore         bool    `toml:"block_explore" json:"blockExplore"`
	BlockPlayerOverlays  bool    `toml:"block_player_overlays" json:"blockPlayerOverlays"`
	BlurThumbnails       bool    `toml:"blur_thumbnails" json:"blurThumbnails"`
	HideMetrics          bool    `toml:"hide_metrics" json:"hideMetrics"`
	RedirectChannel      bool    `toml:"redirect_channel" json:"redirectChannel"`
	BlockChannelAutoplay bool    `toml:"block_channel_autoplay" json:"blockChannelAutoplay"`
	PauseOnLoad          bool    `toml:"pause_on_load" json:"pauseOnLoad"`
	DisableAutoplay      bool    `toml:"disable_autoplay" json:"disableAutoplay"`
	Quality              Quality `toml:"quality_select" json:"qualitySelect"`
	Speed                Speed   `toml:"speed_control" json:"speedControl"`
}

// Defaults returns the documented fallback for every key.
func Defaults() Settings {
	return Settings{
		BlockShorts: true,
		Quality:     QualityAuto,
		Speed:       SpeedNormal,
	}
}

// Key names as used on the wire by the preferences UI.
const (
	KeyBlockShorts          = "blockShorts"
	KeyBlockHomeFeed        = "blockHomeFeed"
	KeyBlockSidebar         = "blockSidebar"
	KeyBlockComments        = "blockComments"
	KeyBlockEndscreen       = "blockEndscreen"
	KeyBlockLiveChat        = "blockLiveChat"
	KeyBlockMerch           = "blockMerch"
	KeyBlockNotifications   = "blockNotifications"
	KeyBlockExplore         = "blockExplore"
	KeyBlockPlayerOverlays  = "blockPlayerOverlays"
	KeyBlurThumbnails       = "blurThumbnails"
	KeyHideMetrics          = "hideMetrics"
	KeyRedirectChannel      = "redirectChannel"
	KeyBlockChannelAutoplay = "blockChannelAutoplay"
	KeyPauseOnLoad          = "pauseOnLoad"
	KeyDisableAutoplay      = "disableAutoplay"
	KeyQuality              = "qualitySelect"
	KeySpeed                = "speedControl"
)

// aliases maps keys written by older preference pages to the key they set.
// Several aliases may name one key; any true alias turns it on.
var aliases = map[string]string{
	"blockHomepage":       KeyBlockHomeFeed,
	"minimizeChat":        KeyBlockLiveChat,
	"redirectChannelHome": KeyRedirectChannel,
	"blockWatermark":      KeyBlockPlayerOverlays,
	"blockInfoCards":      KeyBlockPlayerOverlays,
}

// CanonicalKey resolves an alias to the key it sets. Other keys are
// returned unchanged.
func CanonicalKey(k string) string {
	if target, ok := aliases[k]; ok {
		return target
	}
	return k
}

// ignoredKeys belong to the preferences page itself and carry no setting.
var ignoredKeys = map[string]bool{"theme": true}

// flag binds a boolean wire key to its field.
type flag struct {
	key string
	get func(*Settings) *bool
}

var flags = []flag{
	{KeyBlockShorts, func(s *Settings) *bool { return &s.BlockShorts }},
	{KeyBlockHomeFeed, func(s *Settings) *bool { return &s.BlockHomeFeed }},
	{KeyBlockSidebar, func(s *Settings) *bool { return &s.BlockSidebar }},
	{KeyBlockComments, func(s *Settings) *bool { return &s.BlockComments }},
	{KeyBlockEndscreen, func(s *Settings) *bool { return &s.BlockEndscreen }},
	{KeyBlockLiveChat, func(s *Settings) *bool { return &s.BlockLiveChat }},
	{KeyBlockMerch, func(s *Settings) *bool { return &s.BlockMerch }},
	{KeyBlockNotifications, func(s *Settings) *bool { return &s.BlockNotifications }},
	{KeyBlockExplore, func(s *Settings) *bool { return &s.BlockExplore }},
	{KeyBlockPlayerOverlays, func(s *Settings) *bool { return &s.BlockPlayerOverlays }},
	{KeyBlurThumbnails, func(s *Settings) *bool { return &s.BlurThumbnails }},
	{KeyHideMetrics, func(s *Settings) *bool { return &s.HideMetrics }},
	{KeyRedirectChannel, func(s *Settings) *bool { return &s.RedirectChannel }},
	{KeyBlockChannelAutoplay, func(s *Settings) *bool { return &s.BlockChannelAutoplay }},
	{KeyPauseOnLoad, func(s *Settings) *bool { return &s.PauseOnLoad }},
	{KeyDisableAutoplay, func(s *Settings) *bool { return &s.DisableAutoplay }},
}

// Keys returns every known key in a stable order.
func Keys() []string {
	out := make([]string, 0, len(flags)+2)
	for _, f := range flags {
		out = append(out, f.key)
	}
	return append(out, KeyQuality, KeySpeed)
}

// Flag reports the value of a boolean key.
func (s Settings) Flag(key string) (bool, bool) {
	for _, f := range flags {
		if f.key == key {
			return *f.get(&s), true
		}
	}
	return false, false
}

// WithFlag returns a copy with one boolean key changed.
func (s Settings) WithFlag(key string, v bool) (Settings, error) {
	for _, f := range flags {
		if f.key == key {
			*f.get(&s) = v
			return s, nil
		}
	}
	return s, ErrUnknownKey
}
