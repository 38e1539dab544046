// Package navguard redirects channel home pages to their video listing
// without re-entering itself while the host router is mid-navigation.
package navguard

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"tubeguard/internal/settings"
)

// State of the guard.
type State int

const (
	Idle State = iota
	RedirectPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RedirectPending:
		return "redirect-pending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Navigator replaces the current location without adding a history entry.
type Navigator interface {
	Replace(target string) error
}

// ListingTab is appended to a channel home path.
const ListingTab = "videos"

// Guard is the redirect state machine. Issuing a redirect makes the host
// router fire navigate-start again before the URL changes, so further starts
// are ignored until navigate-finish.
type Guard struct {
	nav         Navigator
	logger      *log.Logger
	state       State
	initialDone bool
	redirects   int
}

func New(nav Navigator, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.Default()
	}
	return &Guard{nav: nav, logger: logger}
}

func (g *Guard) State() State { return g.state }

// Pending reports whether a redirect is in flight.
func (g *Guard) Pending() bool { return g.state == RedirectPending }

// Redirects counts issued redirects.
func (g *Guard) Redirects() int { return g.redirects }

// NavigateStart handles the router's navigation-start signal for target. It
// reports whether a redirect was issued.
func (g *Guard) NavigateStart(target string, s settings.Settings) bool {
	if g.state != Idle || !s.RedirectChannel {
		return false
	}
	return g.redirect(target)
}

// NavigateFinish returns the guard to Idle.
func (g *Guard) NavigateFinish() {
	g.state = Idle
}

// CheckInitial covers hard loads and deep links, which never produce a
// navigation-start. It runs once, when readiness reaches interactive or
// complete.
func (g *Guard) CheckInitial(readyState, current string, s settings.Settings) bool {
	if g.initialDone {
		return false
	}
	switch readyState {
	case "interactive", "complete":
	default:
		return false
	}
	g.initialDone = true
	if g.state != Idle || !s.RedirectChannel {
		return false
	}
	return g.redirect(current)
}

// Reset forgets the one-shot initial check and any pending redirect, for a
// fresh document.
func (g *Guard) Reset() {
	g.state = Idle
	g.initialDone = false
}

func (g *Guard) redirect(target string) bool {
	next, ok := ChannelHome(target)
	if !ok {
		return false
	}
	g.state = RedirectPending
	if g.nav == nil {
		return true
	}
	if err := g.nav.Replace(next); err != nil {
		g.logger.Printf("NAV redirect %s failed: %v", next, err)
		g.state = Idle
		return false
	}
	g.redirects++
	g.logger.Printf("NAV redirect %s -> %s", target, next)
	return true
}

// ChannelHome maps a channel landing page to its listing tab. Recognised
// forms: /@handle, /@handle/featured, /channel/UC..., /c/name, /user/name.
// Query strings survive; absolute URLs stay absolute.
func ChannelHome(target string) (string, bool) {
	u, err := url.Parse(target)
	if err != nil {
		return "", false
	}
	segs := splitPath(u.Path)
	switch {
	case len(segs) == 1 && isHandle(segs[0]):
	case len(segs) == 2 && isHandle(segs[0]) && segs[1] == "featured":
		segs = segs[:1]
	case len(segs) == 2 && segs[0] == "channel" && strings.HasPrefix(segs[1], "UC") && len(segs[1]) > 2:
	case len(segs) == 2 && (segs[0] == "c" || segs[0] == "user") && segs[1] != "":
	default:
		return "", false
	}
	out := *u
	out.Path = "/" + strings.Join(append(segs, ListingTab), "/")
	out.RawPath = ""
	return out.String(), true
}

func isHandle(seg string) bool {
	return len(seg) > 1 && seg[0] == '@'
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
