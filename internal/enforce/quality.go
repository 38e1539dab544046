package enforce

import "tubeguard/internal/settings"

// Player quality labels, highest first.
var tierOrder = []string{"hd2160", "hd1440", "hd1080", "hd720", "large", "medium", "small", "tiny"}

// variants lists labels the player reports for the same resolution with a
// different frame rate or dynamic range.
var variants = map[string][]string{
	"hd2160": {"hd216060", "hd2160hdr"},
	"hd1440": {"hd144060", "hd1440hdr"},
	"hd1080": {"hd108060", "hd1080premium", "hd1080hdr"},
	"hd720":  {"hd72060", "hd720hdr"},
}

var tierForQuality = map[settings.Quality]string{
	settings.Quality2160: "hd2160",
	settings.Quality1440: "hd1440",
	settings.Quality1080: "hd1080",
	settings.Quality720:  "hd720",
	settings.Quality480:  "large",
	settings.Quality360:  "medium",
}

// TierFor maps a preference to the player's label. "auto" has none.
func TierFor(q settings.Quality) (string, bool) {
	t, ok := tierForQuality[q]
	return t, ok
}

// baseTier returns the base label for a variant, or the label itself.
func baseTier(label string) string {
	for base, vs := range variants {
		for _, v := range vs {
			if v == label {
				return base
			}
		}
	}
	return label
}

// ResolveQuality walks down from desired until a tier the player currently
// offers is found; a known variant of a tier counts as that tier and the
// base label wins over its variants. It never picks a tier above desired.
// ok is false when nothing matches.
func ResolveQuality(desired string, available []string) (string, bool) {
	offered := make(map[string]string, len(available))
	for _, a := range available {
		base := baseTier(a)
		if cur, seen := offered[base]; !seen || (cur != base && a == base) {
			offered[base] = a
		}
	}
	start := -1
	for i, t := range tierOrder {
		if t == desired {
			start = i
			break
		}
	}
	if start < 0 {
		return "", false
	}
	for _, t := range tierOrder[start:] {
		if label, ok := offered[t]; ok {
			return label, true
		}
	}
	return "", false
}

// ResolveSpeed returns the rate to enforce. The identity rate and anything
// outside the supported range mean no override.
func ResolveSpeed(sp settings.Speed) (float64, bool) {
	if !sp.Valid() || sp == settings.SpeedNormal {
		return 0, false
	}
	return sp.Rate(), true
}
