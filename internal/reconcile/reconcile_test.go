package reconcile

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

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newObserver() *Observer {
	return NewObserver(Config{
		DiscoveryInterval: 500 * time.Millisecond,
		DiscoveryTimeout:  2 * time.Second,
		Debounce:          300 * time.Millisecond,
		MaxWait:           time.Second,
		Backstop:          1500 * time.Millisecond,
		Logger:            quiet(),
	})
}

var relevant = Batch{{Type: ChildList, Target: "div", Added: []Node{{Tag: "ytd-rich-item-renderer"}}}}

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		b    Batch
		want bool
	}{
		{"component added", relevant, true},
		{"yt prefix", Batch{{Type: ChildList, Added: []Node{{Tag: "YT-FORMATTED-STRING"}}}}, true},
		{"player node", Batch{{Type: ChildList, Added: []Node{{Tag: "ytp-button"}}}}, true},
		{"overlay class", Batch{{Type: ChildList, Added: []Node{{Tag: "div", Class: "ytp-ce-element ytp-ce-video"}}}}, true},
		{"plain div", Batch{{Type: ChildList, Added: []Node{{Tag: "div", Class: "x"}}}}, false},
		{"removal only", Batch{{Type: ChildList, Target: "ytd-app"}}, false},
		{"style on tracked", Batch{{Type: Attributes, Target: "ytd-rich-item-renderer", Attribute: "style"}}, true},
		{"class on tracked", Batch{{Type: Attributes, Target: "ytm-shorts-lockup-view-model", Attribute: "class"}}, true},
		{"style on untracked", Batch{{Type: Attributes, Target: "span", Attribute: "style"}}, false},
		{"other attribute", Batch{{Type: Attributes, Target: "ytd-app", Attribute: "hidden"}}, false},
		{"empty", nil, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.b); got != tc.want {
				t.Fatalf("Classify(%v) = %v, want %v", tc.b, got, tc.want)
			}
		})
	}
}

func TestDiscoveryAttachesAndRunsImmediately(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	assert.False(t, o.Mutations(t0, relevant), "unattached ignores batches")

	o.Start(t0)
	require.Equal(t, Discovering, o.State())
	require.True(t, o.PollDue(t0))
	assert.False(t, o.Poll(t0, false, ""))
	assert.False(t, o.PollDue(t0.Add(100*time.Millisecond)))

	next, ok := o.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(500*time.Millisecond), next)

	at := t0.Add(500 * time.Millisecond)
	require.True(t, o.Poll(at, true, "root-1"))
	assert.Equal(t, Attached, o.State())
	assert.Equal(t, PassFull, o.Take(at), "attachment runs a pass at once")
	assert.Equal(t, PassNone, o.Take(at))
}

func TestDiscoveryGivesUp(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	for at := t0; o.State() == Discovering; at = at.Add(500 * time.Millisecond) {
		require.True(t, at.Before(t0.Add(10*time.Second)), "poll never terminated")
		o.Poll(at, false, "")
	}
	assert.Equal(t, GaveUp, o.State())
	assert.False(t, o.PollDue(t0.Add(time.Hour)))
	assert.False(t, o.Poll(t0.Add(time.Hour), true, "late"))
	assert.Equal(t, 0, o.Attaches())
}

func TestDebounceCoalescesBatches(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	o.Poll(t0, true, "root")
	require.Equal(t, PassFull, o.Take(t0))

	passes := 0
	at := t0.Add(100 * time.Millisecond)
	for i := 0; i < 25; i++ {
		o.Mutations(at, relevant)
		if o.Take(at) == PassFull {
			passes++
		}
		at = at.Add(10 * time.Millisecond)
	}
	assert.Equal(t, 0, passes, "nothing runs inside the window")
	next, ok := o.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, PassFull, o.Take(next))
	assert.Equal(t, PassNone, o.Take(next))
}

func TestDebounceBoundedByMaxWait(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	o.Poll(t0, true, "root")
	o.Take(t0)

	start := t0.Add(10 * time.Millisecond)
	fired := time.Time{}
	for at := start; at.Before(start.Add(3 * time.Second)); at = at.Add(100 * time.Millisecond) {
		if o.Take(at) == PassFull {
			fired = at
			break
		}
		o.Mutations(at, relevant)
	}
	require.False(t, fired.IsZero(), "continuous mutations starved the pass")
	assert.False(t, fired.After(start.Add(time.Second+100*time.Millisecond)))
}

func TestIrrelevantBatchesIgnored(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	o.Poll(t0, true, "root")
	o.Take(t0)
	assert.False(t, o.Mutations(t0, Batch{{Type: ChildList, Added: []Node{{Tag: "span"}}}}))
	assert.False(t, o.Pending())
}

func TestRequestIsImmediateAndNotDeferredByMutations(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	o.Poll(t0, true, "root")
	o.Take(t0)

	at := t0.Add(200 * time.Millisecond)
	o.Mutations(at, relevant)
	o.Request(at)
	o.Mutations(at, relevant)
	assert.Equal(t, PassFull, o.Take(at))
}

func TestRootReplacementReattaches(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	o.Poll(t0, true, "a")
	o.Take(t0)

	assert.False(t, o.Poll(t0.Add(time.Second), true, "a"), "same root")
	assert.True(t, o.Poll(t0.Add(time.Second), true, "b"))
	assert.Equal(t, "b", o.RootID())
	assert.Equal(t, 2, o.Attaches())
	assert.Equal(t, PassFull, o.Take(t0.Add(time.Second)))

	assert.False(t, o.Poll(t0.Add(2*time.Second), false, ""))
	assert.Equal(t, Discovering, o.State())
	assert.Equal(t, "", o.RootID())
}

func TestBackstopRunsIndependently(t *testing.T) {
	t.Parallel()
	o := newObserver()
	t0 := time.Unix(0, 0)
	o.Start(t0)
	assert.Equal(t, PassNone, o.Take(t0.Add(time.Second)))
	assert.Equal(t, PassBackstop, o.Take(t0.Add(1500*time.Millisecond)))
	assert.Equal(t, PassNone, o.Take(t0.Add(2*time.Second)))
	assert.Equal(t, PassBackstop, o.Take(t0.Add(3*time.Second)))

	o.Reset()
	_, ok := o.NextDeadline()
	assert.False(t, ok, "reset clears every schedule")
	assert.False(t, o.Due(t0.Add(time.Hour)))
}

type fakeSurface struct {
	doc     *dom.Doc
	styles  map[string]string
	order   []string
	applied int
	fail    error
}

func (f *fakeSurface) SetStyle(_ context.Context, id, css string) error {
	if f.fail != nil {
		return f.fail
	}
	f.order = append(f.order, "style")
	f.styles[id] = css
	return nil
}

func (f *fakeSurface) Snapshot(_ context.Context, sel string) (*dom.Doc, error) {
	f.order = append(f.order, "snapshot")
	if dom.Query(f.doc.Root, sel) == nil {
		return nil, nil
	}
	return f.doc, nil
}

func (f *fakeSurface) Apply(_ context.Context, muts []dom.Mutation) error {
	f.applied += len(muts)
	return nil
}

const page = `<ytd-app><ytd-rich-grid-renderer><div id="contents">
<ytd-rich-item-renderer style="grid-row: 1; grid-column: 1"><a href="/watch?v=a">v</a></ytd-rich-item-renderer>
<ytd-rich-item-renderer style="grid-row: 1; grid-column: 2"><a href="/shorts/b">s</a></ytd-rich-item-renderer>
</div></ytd-rich-grid-renderer>
<div id="metadata-line"><span>1.2M views</span><span>•</span><span>3 days ago</span></div>
</ytd-app>`

func newSurface(t *testing.T, src string) *fakeSurface {
	t.Helper()
	d, err := dom.ParseString(src)
	require.NoError(t, err)
	return &fakeSurface{doc: d, styles: map[string]string{}}
}

func TestRunnerFullPassOrderAndConvergence(t *testing.T) {
	t.Parallel()
	surf := newSurface(t, page)
	r := NewRunner("", quiet())
	s := settings.Defaults()
	s.HideMetrics = true
	ctx := context.Background()

	rep, err := r.Run(ctx, surf, PassFull, s)
	require.NoError(t, err)
	assert.True(t, rep.CSS)
	assert.Equal(t, []string{"style", "snapshot"}, surf.order, "stylesheet precedes sweeps")
	assert.Equal(t, stylesheet.Compile(s), surf.styles[stylesheet.ElementID])
	assert.Positive(t, rep.Mutations)
	assert.Equal(t, rep.Mutations, surf.applied)
	assert.Positive(t, rep.Sweeps.Counts["shorts-cards"])
	assert.Positive(t, rep.Sweeps.Counts["metric-text"])

	rep, err = r.Run(ctx, surf, PassFull, s)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Mutations, "second pass over unchanged page is a no-op")
	assert.Equal(t, 2, r.Passes())
}

func TestRunnerBackstopSkipsStylesheet(t *testing.T) {
	t.Parallel()
	surf := newSurface(t, page)
	r := NewRunner(DefaultRoot, quiet())
	rep, err := r.Run(context.Background(), surf, PassBackstop, settings.Defaults())
	require.NoError(t, err)
	assert.False(t, rep.CSS)
	assert.Empty(t, surf.styles)
	assert.Equal(t, 0, rep.Sweeps.Counts["metric-text"], "gated off")
	assert.Positive(t, rep.Sweeps.Counts["shorts-cards"])
}

func TestRunnerMissingScopeIsNoop(t *testing.T) {
	t.Parallel()
	surf := newSurface(t, `<p>loading</p>`)
	r := NewRunner(DefaultRoot, quiet())
	rep, err := r.Run(context.Background(), surf, PassFull, settings.Defaults())
	require.NoError(t, err)
	assert.True(t, rep.CSS)
	assert.Equal(t, 0, rep.Mutations)

	rep, err = r.Run(context.Background(), surf, PassNone, settings.Defaults())
	require.NoError(t, err)
	assert.Equal(t, Report{Pass: PassNone}, rep)
}

func TestRunnerStylesheetFailure(t *testing.T) {
	t.Parallel()
	surf := newSurface(t, page)
	surf.fail = errors.New("target closed")
	r := NewRunner(DefaultRoot, quiet())
	_, err := r.Run(context.Background(), surf, PassFull, settings.Defaults())
	require.Error(t, err)
	assert.Empty(t, surf.order, "no sweep without the stylesheet")
}
