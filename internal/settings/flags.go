package settings

import "strings"

// FlagPrefix namespaces the local mirror in page storage.
const FlagPrefix = "tubeguard:"

// earlyKeys are the flags needed before the async store answers, so the first
// paint already hides what the user asked to hide.
var earlyKeys = []string{
	KeyBlockShorts,
	KeyBlockHomeFeed,
	KeyBlockSidebar,
	KeyBlockComments,
	KeyBlockEndscreen,
	KeyBlockPlayerOverlays,
	KeyBlurThumbnails,
	KeyHideMetrics,
}

// LocalFlags mirrors the early-paint subset as string pairs.
func LocalFlags(s Settings) map[string]string {
	out := make(map[string]string, len(earlyKeys))
	for _, k := range earlyKeys {
		v, _ := s.Flag(k)
		if v {
			out[FlagPrefix+k] = "1"
		} else {
			out[FlagPrefix+k] = "0"
		}
	}
	return out
}

// FromLocalFlags rebuilds a best-effort Settings from the mirror. Keys missing
// from the mirror keep their defaults.
func FromLocalFlags(kv map[string]string) Settings {
	s := Defaults()
	for k, v := range kv {
		if !strings.HasPrefix(k, FlagPrefix) {
			continue
		}
		key := strings.TrimPrefix(k, FlagPrefix)
		if b, ok := parseBool(v); ok {
			if next, err := s.WithFlag(key, b); err == nil {
				s = next
			}
		}
	}
	return s
}
