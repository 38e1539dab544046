package navguard

import (
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubeguard/internal/settings"
)

type recordingNav struct {
	calls []string
	err   error
}

func (n *recordingNav) Replace(target string) error {
	n.calls = append(n.calls, target)
	return n.err
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func redirectOn() settings.Settings {
	s := settings.Defaults()
	s.RedirectChannel = true
	return s
}

func TestChannelHome(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/@handle", "/@handle/videos", true},
		{"/@handle/", "/@handle/videos", true},
		{"/@handle/featured", "/@handle/videos", true},
		{"https://www.youtube.com/@handle?si=x", "https://www.youtube.com/@handle/videos?si=x", true},
		{"/channel/UC1234567890", "/channel/UC1234567890/videos", true},
		{"/c/SomeName", "/c/SomeName/videos", true},
		{"/user/legacy", "/user/legacy/videos", true},
		{"/@handle/videos", "", false},
		{"/@handle/shorts", "", false},
		{"/channel/XX123", "", false},
		{"/channel/UC123/videos", "", false},
		{"/watch?v=abc", "", false},
		{"/", "", false},
		{"/@", "", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ChannelHome(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRapidStartsRedirectOnce(t *testing.T) {
	t.Parallel()
	nav := &recordingNav{}
	g := New(nav, quietLogger())

	require.True(t, g.NavigateStart("/@handle", redirectOn()))
	// the router re-fires navigate-start for the redirect itself
	require.False(t, g.NavigateStart("/@handle", redirectOn()))
	require.Equal(t, []string{"/@handle/videos"}, nav.calls)
	require.Equal(t, RedirectPending, g.State())

	g.NavigateFinish()
	require.Equal(t, Idle, g.State())
	require.True(t, g.NavigateStart("/@other", redirectOn()))
	require.Len(t, nav.calls, 2)
}

func TestDisabledOrUnmatchedStaysIdle(t *testing.T) {
	t.Parallel()
	nav := &recordingNav{}
	g := New(nav, quietLogger())
	assert.False(t, g.NavigateStart("/@handle", settings.Defaults()))
	assert.False(t, g.NavigateStart("/watch?v=1", redirectOn()))
	assert.Equal(t, Idle, g.State())
	assert.Empty(t, nav.calls)
}

func TestReplaceFailureReturnsToIdle(t *testing.T) {
	t.Parallel()
	nav := &recordingNav{err: errors.New("detached")}
	g := New(nav, quietLogger())
	assert.False(t, g.NavigateStart("/@handle", redirectOn()))
	assert.Equal(t, Idle, g.State())
	assert.Equal(t, 0, g.Redirects())
}

func TestCheckInitialRunsOnce(t *testing.T) {
	t.Parallel()
	nav := &recordingNav{}
	g := New(nav, quietLogger())

	assert.False(t, g.CheckInitial("loading", "/@handle", redirectOn()))
	assert.Empty(t, nav.calls)

	assert.True(t, g.CheckInitial("interactive", "/@handle", redirectOn()))
	g.NavigateFinish()
	assert.False(t, g.CheckInitial("complete", "/@handle", redirectOn()))
	assert.Len(t, nav.calls, 1)

	g.Reset()
	assert.True(t, g.CheckInitial("complete", "/c/name", redirectOn()))
	assert.Equal(t, "/c/name/videos", nav.calls[1])
}
