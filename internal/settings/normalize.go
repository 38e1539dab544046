package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FromMap default-fills a loosely typed mapping into Settings. Unknown keys
// are dropped and invalid values fall back to their default; each is reported
// as an error wrapping ErrUnknownKey or ErrInvalidValue. Older key names are
// accepted as aliases, and a canonical key wins over its aliases. The
// returned Settings is always usable.
func FromMap(raw map[string]any) (Settings, []error) {
	s := Defaults()
	var problems []error

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	aliased := map[string]bool{}
	for _, k := range keys {
		v := raw[k]
		switch k {
		case KeyQuality:
			q, ok := parseQuality(v)
			if !ok {
				problems = append(problems, fmt.Errorf("%w: %s=%v", ErrInvalidValue, k, v))
				continue
			}
			s.Quality = q
		case KeySpeed:
			sp, ok := parseSpeed(v)
			if !ok {
				problems = append(problems, fmt.Errorf("%w: %s=%v", ErrInvalidValue, k, v))
				continue
			}
			s.Speed = sp
		default:
			if ignoredKeys[k] {
				continue
			}
			target, isAlias := aliases[k]
			if isAlias {
				if _, explicit := raw[target]; explicit {
					continue
				}
			} else {
				target = k
			}
			if _, known := s.Flag(target); !known {
				problems = append(problems, fmt.Errorf("%w: %s", ErrUnknownKey, k))
				continue
			}
			b, ok := parseBool(v)
			if !ok {
				problems = append(problems, fmt.Errorf("%w: %s=%v", ErrInvalidValue, k, v))
				continue
			}
			if isAlias {
				prev, _ := s.Flag(target)
				b = b || (aliased[target] && prev)
				aliased[target] = true
			}
			s, _ = s.WithFlag(target, b)
		}
	}
	return s, problems
}

// ToMap renders Settings with wire keys, suitable for the preferences UI.
func ToMap(s Settings) map[string]any {
	out := make(map[string]any, len(flags)+2)
	for _, f := range flags {
		out[f.key] = *f.get(&s)
	}
	out[KeyQuality] = string(s.Quality)
	out[KeySpeed] = string(s.Speed)
	return out
}

// Normalize repairs a Settings value that did not come through FromMap.
func Normalize(s Settings) Settings {
	if !s.Quality.Valid() {
		s.Quality = QualityAuto
	}
	if !s.Speed.Valid() {
		if sp, ok := parseSpeed(string(s.Speed)); ok {
			s.Speed = sp
		} else {
			s.Speed = SpeedNormal
		}
	}
	return s
}

func parseBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true, true
		case "0", "false", "off", "no", "":
			return false, true
		}
	}
	return false, false
}

// parseQuality accepts the wire values plus bare heights ("1080") and the
// player's own labels ("hd1080").
func parseQuality(v any) (Quality, bool) {
	raw := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	if f, ok := v.(float64); ok {
		raw = strconv.FormatFloat(f, 'f', -1, 64)
	}
	raw = strings.TrimPrefix(raw, "hd")
	if _, err := strconv.Atoi(raw); err == nil {
		raw += "p"
	}
	q := Quality(raw)
	return q, q.Valid()
}

func parseSpeed(v any) (Speed, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "x"), 64)
		if err != nil {
			return "", false
		}
		f = p
	default:
		return "", false
	}
	sp := Speed(strconv.FormatFloat(f, 'f', -1, 64))
	if !sp.Valid() {
		return "", false
	}
	return sp, true
}
