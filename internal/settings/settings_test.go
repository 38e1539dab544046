package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromMapDefaults(t *testing.T) {
	t.Parallel()
	s, problems := FromMap(nil)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if s != Defaults() {
		t.Fatalf("FromMap(nil) = %+v, want defaults", s)
	}
}

func TestFromMapNormalizes(t *testing.T) {
	t.Parallel()
	s, problems := FromMap(map[string]any{
		"blockSidebar":  "true",
		"hideMetrics":   1.0,
		"qualitySelect": "1080P",
		"speedControl":  1.5,
		"blockShorts":   false,
	})
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if !s.BlockSidebar || !s.HideMetrics || s.BlockShorts {
		t.Fatalf("flags not applied: %+v", s)
	}
	if s.Quality != Quality1080 {
		t.Fatalf("quality = %q, want %q", s.Quality, Quality1080)
	}
	if s.Speed != "1.5" {
		t.Fatalf("speed = %q, want 1.5", s.Speed)
	}
}

func TestFromMapRejectsUnknownAndInvalid(t *testing.T) {
	t.Parallel()
	s, problems := FromMap(map[string]any{
		"blockEverything": true,
		"qualitySelect":   "8k",
		"speedControl":    "7",
		"blockComments":   []int{1},
	})
	if len(problems) != 4 {
		t.Fatalf("got %d problems, want 4: %v", len(problems), problems)
	}
	var unknown, invalid int
	for _, p := range problems {
		switch {
		case errors.Is(p, ErrUnknownKey):
			unknown++
		case errors.Is(p, ErrInvalidValue):
			invalid++
		}
	}
	if unknown != 1 || invalid != 3 {
		t.Fatalf("unknown=%d invalid=%d, want 1 and 3", unknown, invalid)
	}
	if s.Quality != QualityAuto || s.Speed != SpeedNormal || s.BlockComments {
		t.Fatalf("invalid values should fall back to defaults: %+v", s)
	}
}

func TestToMapRoundTripsThroughFromMap(t *testing.T) {
	t.Parallel()
	in := Defaults()
	in.BlockEndscreen = true
	in.Quality = Quality720
	in.Speed = "2"
	out, problems := FromMap(ToMap(in))
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestSpeedRate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   Speed
		want float64
	}{
		{"1", 1},
		{"0.25", 0.25},
		{"1.75", 1.75},
		{"", 1},
		{"fast", 1},
	}
	for _, tc := range cases {
		if got := tc.in.Rate(); got != tc.want {
			t.Fatalf("Speed(%q).Rate() = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLocalFlagsMirror(t *testing.T) {
	t.Parallel()
	s := Defaults()
	s.HideMetrics = true
	s.BlockShorts = false
	kv := LocalFlags(s)
	if kv[FlagPrefix+KeyHideMetrics] != "1" || kv[FlagPrefix+KeyBlockShorts] != "0" {
		t.Fatalf("unexpected mirror: %v", kv)
	}
	for k := range kv {
		if !strings.HasPrefix(k, FlagPrefix) {
			t.Fatalf("key %q lacks prefix", k)
		}
	}
	back := FromLocalFlags(kv)
	if !back.HideMetrics || back.BlockShorts {
		t.Fatalf("FromLocalFlags lost values: %+v", back)
	}
}

func TestSnapshotSwapIsWholesale(t *testing.T) {
	t.Parallel()
	snap := NewSnapshot(Defaults())
	gen := snap.Generation()
	next := Defaults()
	next.BlockComments = true
	prev := snap.Swap(next)
	if prev.BlockComments {
		t.Fatalf("previous value should be the old one")
	}
	if !snap.Load().BlockComments {
		t.Fatalf("Load did not observe swap")
	}
	if snap.Generation() != gen+1 {
		t.Fatalf("generation = %d, want %d", snap.Generation(), gen+1)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "prefs", "settings.toml"))
	ctx := context.Background()

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("Get on missing file: %v", err)
	}
	if got != Defaults() {
		t.Fatalf("missing file should yield defaults, got %+v", got)
	}

	var notified Settings
	cancel := store.OnChanged(func(s Settings) { notified = s })
	defer cancel()

	want := Defaults()
	want.BlockSidebar = true
	want.Quality = Quality1440
	if err := store.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if notified != want {
		t.Fatalf("listener got %+v, want %+v", notified, want)
	}
	got, err = store.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}

func TestFileStorePartialFileKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte("hide_metrics = true\nquality_select = \"bogus\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileStore(path).Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HideMetrics || !got.BlockShorts || got.Quality != QualityAuto {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestMemoryStoreFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("quota exceeded")
	m := NewMemoryStore(Defaults())
	m.Fail = boom
	if err := m.Set(context.Background(), Defaults()); !errors.Is(err, boom) {
		t.Fatalf("Set error = %v, want %v", err, boom)
	}
	if _, err := m.Get(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Get error = %v, want %v", err, boom)
	}
}

func TestFromMapAcceptsLegacyKeys(t *testing.T) {
	t.Parallel()
	s, problems := FromMap(map[string]any{
		"blockHomepage":       true,
		"minimizeChat":        true,
		"redirectChannelHome": true,
		"blockWatermark":      false,
		"blockInfoCards":      true,
		"qualitySelect":       "1080",
		"theme":               "dark",
	})
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if !s.BlockHomeFeed || !s.BlockLiveChat || !s.RedirectChannel || !s.BlockPlayerOverlays {
		t.Fatalf("aliases not applied: %+v", s)
	}
	if s.Quality != Quality1080 {
		t.Fatalf("quality = %q, want %q", s.Quality, Quality1080)
	}

	s, _ = FromMap(map[string]any{"blockHomepage": true, "blockHomeFeed": false})
	if s.BlockHomeFeed {
		t.Fatalf("canonical key must win over its alias")
	}
}

func TestFromMapQualityForms(t *testing.T) {
	t.Parallel()
	for raw, want := range map[any]Quality{
		"720":    Quality720,
		"hd1440": Quality1440,
		2160.0:   Quality2160,
		"AUTO":   QualityAuto,
	} {
		s, problems := FromMap(map[string]any{KeyQuality: raw})
		if len(problems) != 0 || s.Quality != want {
			t.Fatalf("quality %v = %q (%v), want %q", raw, s.Quality, problems, want)
		}
	}
}

func TestFileStoreWatchSeesOtherWriters(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.toml")
	writer, reader := NewFileStore(path), NewFileStore(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Settings, 4)
	defer reader.OnChanged(func(s Settings) { got <- s })()
	reader.Watch(ctx, 10*time.Millisecond)

	want := Defaults()
	want.BlockComments = true
	want.BlurThumbnails = true
	if err := writer.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	select {
	case s := <-got:
		if s != want {
			t.Fatalf("watcher got %+v, want %+v", s, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("write from another store was never reported")
	}

	// Unchanged contents stay quiet.
	select {
	case s := <-got:
		t.Fatalf("unexpected notification %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}
