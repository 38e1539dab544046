package enforce

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
	"tubeguard/internal/stylesheet"
)

type fakePlayer struct {
	avail    []string
	quality  string
	rate     float64
	err      error
	sets     []string
	rates    []float64
	pauses   int
	autoplay []bool
}

func (p *fakePlayer) AvailableQualityLevels(context.Context) ([]string, error) {
	return p.avail, p.err
}
func (p *fakePlayer) Quality(context.Context) (string, error) { return p.quality, p.err }
func (p *fakePlayer) SetQuality(_ context.Context, level string) error {
	if p.err != nil {
		return p.err
	}
	p.sets = append(p.sets, level)
	p.quality = level
	return nil
}
func (p *fakePlayer) PlaybackRate(context.Context) (float64, error) { return p.rate, p.err }
func (p *fakePlayer) SetPlaybackRate(_ context.Context, r float64) error {
	if p.err != nil {
		return p.err
	}
	p.rates = append(p.rates, r)
	p.rate = r
	return nil
}
func (p *fakePlayer) Pause(context.Context) error { p.pauses++; return p.err }
func (p *fakePlayer) SetAutoplay(_ context.Context, on bool) error {
	if p.err != nil {
		return p.err
	}
	p.autoplay = append(p.autoplay, on)
	return nil
}

type fakeSurface struct {
	doc     *dom.Doc
	styles  map[string]string
	applied [][]dom.Mutation
}

func newFakeSurface(t *testing.T, src string) *fakeSurface {
	t.Helper()
	d, err := dom.ParseString(src)
	require.NoError(t, err)
	return &fakeSurface{doc: d, styles: map[string]string{}}
}

func (f *fakeSurface) SetStyle(_ context.Context, id, css string) error {
	f.styles[id] = css
	return nil
}
func (f *fakeSurface) RemoveStyle(_ context.Context, id string) error {
	delete(f.styles, id)
	return nil
}
func (f *fakeSurface) Snapshot(_ context.Context, sel string) (*dom.Doc, error) {
	if dom.Query(f.doc.Root, sel) == nil {
		return nil, nil
	}
	return f.doc, nil
}
func (f *fakeSurface) Apply(_ context.Context, muts []dom.Mutation) error {
	f.applied = append(f.applied, muts)
	return nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestResolveQuality(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		desired string
		avail   []string
		want    string
		ok      bool
	}{
		{"never rounds up", "hd1080", []string{"hd720", "medium"}, "hd720", true},
		{"variant counts as tier", "hd1080", []string{"hd108060"}, "hd108060", true},
		{"exact match", "hd720", []string{"hd1080", "hd720", "auto"}, "hd720", true},
		{"base preferred over variant", "hd1080", []string{"hd108060", "hd1080"}, "hd1080", true},
		{"higher variant ignored", "hd720", []string{"hd108060", "large"}, "large", true},
		{"nothing at or below", "medium", []string{"hd720", "hd1080"}, "", false},
		{"empty availability", "hd1080", nil, "", false},
		{"unknown desired", "hd4320", []string{"hd2160"}, "", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ResolveQuality(tc.desired, tc.avail)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTierForAndBase(t *testing.T) {
	t.Parallel()
	_, ok := TierFor(settings.QualityAuto)
	assert.False(t, ok)
	tier, ok := TierFor(settings.Quality480)
	assert.True(t, ok)
	assert.Equal(t, "large", tier)
	assert.Equal(t, "hd1080", baseTier("hd1080premium"))
	assert.Equal(t, "medium", baseTier("medium"))
}

func TestResolveSpeed(t *testing.T) {
	t.Parallel()
	_, ok := ResolveSpeed("1")
	assert.False(t, ok, "identity means no override")
	_, ok = ResolveSpeed("9")
	assert.False(t, ok)
	r, ok := ResolveSpeed("1.25")
	assert.True(t, ok)
	assert.Equal(t, 1.25, r)
}

func newEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := New(Config{
		BurstInterval:   100 * time.Millisecond,
		BurstAttempts:   3,
		PersistInterval: time.Second,
		Logger:          quiet(),
	})
	require.NoError(t, err)
	return e
}

func TestBurstThenPersistOnWatch(t *testing.T) {
	t.Parallel()
	e := newEnforcer(t)
	p := &fakePlayer{avail: []string{"hd720", "large"}, quality: "auto", rate: 1}
	s := settings.Defaults()
	s.Quality = settings.Quality1080
	s.Speed = "1.5"
	ctx := context.Background()
	t0 := time.Unix(0, 0)

	e.Start(t0, "/watch")
	require.Equal(t, Bursting, e.Phase())
	e.Tick(ctx, t0, p, s)
	assert.Equal(t, []string{"hd720"}, p.sets)
	assert.Equal(t, []float64{1.5}, p.rates)

	// not due yet
	e.Tick(ctx, t0.Add(50*time.Millisecond), p, s)
	assert.Equal(t, 1, e.Attempts())

	// the player resets itself; the burst re-applies
	p.quality = "auto"
	e.Tick(ctx, t0.Add(100*time.Millisecond), p, s)
	e.Tick(ctx, t0.Add(200*time.Millisecond), p, s)
	assert.Equal(t, []string{"hd720", "hd720"}, p.sets)
	assert.Equal(t, Persisting, e.Phase())

	next, ok := e.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(1200*time.Millisecond), next)

	// settings changed after the burst window
	s.Quality = settings.Quality480
	e.Tick(ctx, next, p, s)
	assert.Equal(t, "large", p.quality)
	assert.Equal(t, Persisting, e.Phase())
}

func TestBurstEndsIdleOffPlayback(t *testing.T) {
	t.Parallel()
	e := newEnforcer(t)
	p := &fakePlayer{}
	ctx := context.Background()
	t0 := time.Unix(0, 0)
	e.Start(t0, "/@someone/videos")
	for i := 0; i < 3; i++ {
		e.Tick(ctx, t0.Add(time.Duration(i)*100*time.Millisecond), p, settings.Defaults())
	}
	assert.Equal(t, Idle, e.Phase())
	_, ok := e.NextDeadline()
	assert.False(t, ok)
}

func TestPersistStopsWhenLeavingPlayback(t *testing.T) {
	t.Parallel()
	e := newEnforcer(t)
	p := &fakePlayer{}
	ctx := context.Background()
	t0 := time.Unix(0, 0)
	e.Start(t0, "/watch")
	for i := 0; i < 3; i++ {
		e.Tick(ctx, t0.Add(time.Duration(i)*100*time.Millisecond), p, settings.Defaults())
	}
	require.Equal(t, Persisting, e.Phase())
	e.SetPath("/feed/subscriptions")
	e.Tick(ctx, t0.Add(time.Hour), p, settings.Defaults())
	assert.Equal(t, Idle, e.Phase())
}

func TestAbsentPlayerDegradesSilently(t *testing.T) {
	t.Parallel()
	e := newEnforcer(t)
	p := &fakePlayer{err: ErrNoPlayer}
	s := settings.Defaults()
	s.Quality = settings.Quality720
	s.Speed = "2"
	s.DisableAutoplay = true
	e.Start(time.Unix(0, 0), "/watch")
	e.Tick(context.Background(), time.Unix(0, 0), p, s)
	assert.Empty(t, p.sets)
	assert.Empty(t, p.rates)
	assert.Empty(t, p.autoplay)
	assert.Equal(t, 1, e.Attempts())
	e.Tick(context.Background(), time.Unix(1, 0), nil, s)
	assert.Equal(t, 2, e.Attempts())
}

func TestAutoQualityAndIdentitySpeedLeavePlayerAlone(t *testing.T) {
	t.Parallel()
	e := newEnforcer(t)
	p := &fakePlayer{avail: []string{"hd1080"}, rate: 1.5}
	e.Start(time.Unix(0, 0), "/watch")
	e.Tick(context.Background(), time.Unix(0, 0), p, settings.Defaults())
	assert.Empty(t, p.sets)
	assert.Empty(t, p.rates)
}

func TestDisableAutoplayOncePerView(t *testing.T) {
	t.Parallel()
	e := newEnforcer(t)
	p := &fakePlayer{}
	s := settings.Defaults()
	s.DisableAutoplay = true
	t0 := time.Unix(0, 0)
	e.Start(t0, "/watch")
	e.Tick(context.Background(), t0, p, s)
	e.Tick(context.Background(), t0.Add(time.Second), p, s)
	assert.Equal(t, []bool{false}, p.autoplay)
	e.Start(t0.Add(2*time.Second), "/watch")
	e.Tick(context.Background(), t0.Add(2*time.Second), p, s)
	assert.Len(t, p.autoplay, 2)
}

func TestBadPlaybackPattern(t *testing.T) {
	t.Parallel()
	_, err := New(Config{PlaybackPaths: []string{"/watch[", "/x"}})
	require.Error(t, err)
}

func TestPauseGate(t *testing.T) {
	t.Parallel()
	var g PauseGate
	g.HardLoad()
	assert.True(t, g.Playing(true, true), "first playing on fresh view is paused")
	assert.False(t, g.Playing(true, true), "second playing is left alone")

	g.HardLoad()
	g.Gesture(false)
	assert.True(t, g.Playing(true, true), "synthetic gestures are not intent")

	g.HardLoad()
	g.Gesture(true)
	assert.False(t, g.Playing(true, true), "trusted click disables pause")

	g.HardLoad()
	g.Navigated()
	assert.False(t, g.Playing(true, true), "navigation disables pause")

	g.HardLoad()
	assert.False(t, g.Playing(false, true), "feature off")
	assert.False(t, g.Playing(true, false), "not a watch view")
	assert.True(t, g.Playing(true, true))

	var never PauseGate
	assert.False(t, never.Playing(true, true), "no hard load seen")
}

const playerHTML = `<div id="movie_player" class="html5-video-player">
<div class="html5-endscreen" style="display: block"></div>
<div class="ytp-ce-element"></div>
</div>`

func TestOverlayToggleAndTick(t *testing.T) {
	t.Parallel()
	surf := newFakeSurface(t, playerHTML)
	o := NewOverlay(time.Second, quiet())
	ctx := context.Background()
	s := settings.Defaults()
	s.BlockEndscreen = true
	t0 := time.Unix(0, 0)

	assert.False(t, o.Due(t0))
	o.Sync(ctx, t0, surf, s)
	require.True(t, o.Enabled())
	assert.Contains(t, surf.styles, stylesheet.EndscreenElementID)
	require.True(t, o.Due(t0))

	n := o.Tick(ctx, t0, surf, s)
	assert.Equal(t, 2, n)
	require.Len(t, surf.applied, 1)
	assert.Nil(t, dom.Query(surf.doc.Root, ".ytp-ce-element"))

	// nothing left to do, fallback interval not reached
	assert.False(t, o.Due(t0.Add(500*time.Millisecond)))
	// the player re-inserts an overlay and the container observer fires
	o.Trigger()
	require.True(t, o.Due(t0.Add(500*time.Millisecond)))
	assert.Equal(t, 0, o.Tick(ctx, t0.Add(500*time.Millisecond), surf, s))
	assert.Len(t, surf.applied, 1, "no-op pass applies nothing")

	s.BlockEndscreen = false
	o.Sync(ctx, t0.Add(time.Second), surf, s)
	assert.NotContains(t, surf.styles, stylesheet.EndscreenElementID)
	assert.False(t, o.Due(t0.Add(time.Hour)))
}

func TestOverlayReinstallsAfterReset(t *testing.T) {
	t.Parallel()
	surf := newFakeSurface(t, `<p>no player yet</p>`)
	o := NewOverlay(time.Second, quiet())
	ctx := context.Background()
	t0 := time.Unix(0, 0)
	o.Toggle(ctx, t0, surf, true)
	assert.Equal(t, 0, o.Tick(ctx, t0, surf, settings.Settings{BlockEndscreen: true}))

	delete(surf.styles, stylesheet.EndscreenElementID)
	o.Reset()
	o.Tick(ctx, t0.Add(time.Second), surf, settings.Settings{BlockEndscreen: true})
	assert.Contains(t, surf.styles, stylesheet.EndscreenElementID)
	assert.True(t, o.Installed())
}

func TestOverlaySnapshotErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	o := NewOverlay(time.Second, quiet())
	surf := &erroringSurface{}
	o.Toggle(context.Background(), time.Unix(0, 0), surf, true)
	assert.Equal(t, 0, o.Tick(context.Background(), time.Unix(0, 0), surf, settings.Settings{BlockEndscreen: true}))
}

type erroringSurface struct{}

func (erroringSurface) SetStyle(context.Context, string, string) error { return nil }
func (erroringSurface) RemoveStyle(context.Context, string) error      { return nil }
func (erroringSurface) Snapshot(context.Context, string) (*dom.Doc, error) {
	return nil, errors.New("target closed")
}
func (erroringSurface) Apply(context.Context, []dom.Mutation) error { return nil }
