// Package browser drives one YouTube tab over the DevTools protocol. It
// exposes the page as the surfaces the engine needs and forwards page
// signals as Events.
package browser

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"tubeguard/internal/dom"
	"tubeguard/internal/enforce"
)

const defaultStartURL = "https://www.youtube.com/"

// Config describes how the browser is obtained.
type Config struct {
	// RemoteURL attaches to a running browser instead of launching one.
	RemoteURL   string
	Headless    bool
	UserDataDir string
	StartURL    string
	CallTimeout time.Duration
	EventBuffer int
	Logger      *log.Logger
}

// DefaultConfig populates configuration from environment variables.
func DefaultConfig() Config {
	cfg := Config{
		RemoteURL:   strings.TrimSpace(os.Getenv("TUBEGUARD_CHROME_URL")),
		UserDataDir: strings.TrimSpace(os.Getenv("TUBEGUARD_PROFILE")),
		StartURL:    strings.TrimSpace(os.Getenv("TUBEGUARD_START_URL")),
		CallTimeout: 5 * time.Second,
		EventBuffer: 256,
		Logger:      log.Default(),
	}
	if cfg.StartURL == "" {
		cfg.StartURL = defaultStartURL
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv("TUBEGUARD_HEADLESS"))); err == nil {
		cfg.Headless = v
	}
	return cfg
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("mute-audio", cfg.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// Driver owns the browser tab.
type Driver struct {
	cfg    Config
	logger *log.Logger

	tab    context.Context
	cancel []context.CancelFunc

	events    chan Event
	closeOnce sync.Once
	dropped   int
	mu        sync.Mutex
}

// Launch starts or attaches to a browser, installs the page scripts and the
// event binding, and returns a driver for a fresh tab. Call Open to load a
// page.
func Launch(ctx context.Context, cfg Config) (*Driver, error) {
	def := DefaultConfig()
	if cfg.StartURL == "" {
		cfg.StartURL = def.StartURL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(cfg.Logger.Printf))

	d := &Driver{
		cfg:    cfg,
		logger: cfg.Logger,
		tab:    tabCtx,
		cancel: []context.CancelFunc{tabCancel, allocCancel},
		events: make(chan Event, cfg.EventBuffer),
	}
	chromedp.ListenTarget(tabCtx, d.onTarget)

	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(d.install)); err != nil {
		d.Close()
		return nil, fmt.Errorf("install page hooks: %w", err)
	}
	return d, nil
}

func (d *Driver) install(ctx context.Context) error {
	if err := runtime.AddBinding(BindingName).Do(ctx); err != nil {
		return fmt.Errorf("add binding: %w", err)
	}
	if _, err := page.AddScriptToEvaluateOnNewDocument(EarlyPaintScript()).Do(ctx); err != nil {
		return fmt.Errorf("early paint script: %w", err)
	}
	if _, err := page.AddScriptToEvaluateOnNewDocument(HookScript()).Do(ctx); err != nil {
		return fmt.Errorf("hook script: %w", err)
	}
	return nil
}

// onTarget runs on the CDP event goroutine and must not block or call back
// into the browser.
func (d *Driver) onTarget(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		if e.Name != BindingName {
			return
		}
		pe, err := DecodeEvent(e.Payload)
		if err != nil {
			d.logger.Printf("BROWSER %v", err)
			return
		}
		d.emit(pe)
	}
}

func (d *Driver) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
		d.mu.Lock()
		d.dropped++
		n := d.dropped
		d.mu.Unlock()
		if n == 1 || n%100 == 0 {
			d.logger.Printf("BROWSER event queue full, dropped %d (%s)", n, ev.Kind)
		}
	}
}

// Events delivers page signals. Watch Done for the end of the session.
func (d *Driver) Events() <-chan Event { return d.events }

// Done is closed when the tab or browser goes away.
func (d *Driver) Done() <-chan struct{} { return d.tab.Done() }

// Open navigates the tab. An empty target loads the configured start URL.
func (d *Driver) Open(ctx context.Context, target string) error {
	if strings.TrimSpace(target) == "" {
		target = d.cfg.StartURL
	}
	if err := chromedp.Run(d.tab, chromedp.Navigate(target)); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

// Close shuts the tab and, when launched locally, the browser.
func (d *Driver) Close() {
	d.closeOnce.Do(func() {
		for _, c := range d.cancel {
			c()
		}
	})
}

// eval runs expr in the page with the call timeout, bound to ctx as well.
func (d *Driver) eval(ctx context.Context, expr string, res any) error {
	runCtx, cancel := context.WithTimeout(d.tab, d.cfg.CallTimeout)
	defer cancel()
	if ctx != nil {
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}
	return chromedp.Run(runCtx, chromedp.Evaluate(expr, res))
}

func (d *Driver) SetStyle(ctx context.Context, id, css string) error {
	var ok bool
	if err := d.eval(ctx, setStyleScript(id, css), &ok); err != nil {
		return fmt.Errorf("set stylesheet %s: %w", id, err)
	}
	return nil
}

func (d *Driver) RemoveStyle(ctx context.Context, id string) error {
	var ok bool
	if err := d.eval(ctx, removeStyleScript(id), &ok); err != nil {
		return fmt.Errorf("remove stylesheet %s: %w", id, err)
	}
	return nil
}

// Snapshot stamps refs under selector and returns the parsed subtree, or nil
// when nothing matches.
func (d *Driver) Snapshot(ctx context.Context, selector string) (*dom.Doc, error) {
	var markup string
	if err := d.eval(ctx, snapshotScript(selector), &markup); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", selector, err)
	}
	if markup == "" {
		return nil, nil
	}
	return dom.ParseString(markup)
}

// Apply replays a journal on the live page.
func (d *Driver) Apply(ctx context.Context, muts []dom.Mutation) error {
	if len(liveMutations(muts)) == 0 {
		return nil
	}
	var applied int
	if err := d.eval(ctx, applyScript(muts), &applied); err != nil {
		return fmt.Errorf("apply journal: %w", err)
	}
	return nil
}

// RootID reports whether selector matches and the element's identity.
func (d *Driver) RootID(ctx context.Context, selector string) (string, bool, error) {
	var id string
	if err := d.eval(ctx, rootIDScript(selector), &id); err != nil {
		return "", false, fmt.Errorf("find %s: %w", selector, err)
	}
	return id, id != "", nil
}

// Observe installs the page-side mutation observer named name on selector,
// replacing any previous one with that name. Batches arrive as events of
// the given kind.
func (d *Driver) Observe(ctx context.Context, name, kind, selector string, attrs bool) (bool, error) {
	var ok bool
	if err := d.eval(ctx, observeScript(name, kind, selector, attrs), &ok); err != nil {
		return false, fmt.Errorf("observe %s: %w", selector, err)
	}
	return ok, nil
}

// ObserveRoot watches the content root for added components and style or
// class changes.
func (d *Driver) ObserveRoot(ctx context.Context, selector string) (bool, error) {
	return d.Observe(ctx, "root", KindMutations, selector, true)
}

// ObservePlayer watches the player container for structural changes.
func (d *Driver) ObservePlayer(ctx context.Context, selector string) (bool, error) {
	return d.Observe(ctx, "player", KindPlayerMutations, selector, false)
}

// Replace navigates without adding a history entry.
func (d *Driver) Replace(target string) error {
	var ok bool
	if err := d.eval(context.Background(), replaceScript(target), &ok); err != nil {
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

// WriteLocalFlags stores the early-paint mirror in page storage.
func (d *Driver) WriteLocalFlags(ctx context.Context, flags map[string]string) error {
	var ok bool
	if err := d.eval(ctx, writeFlagsScript(flags), &ok); err != nil {
		return fmt.Errorf("write local flags: %w", err)
	}
	return nil
}

// DispatchEndscreen raises the in-page settings event. The hook script
// answers with an endscreen event on the binding.
func (d *Driver) DispatchEndscreen(ctx context.Context, blockEndscreen bool) error {
	var ok bool
	if err := d.eval(ctx, dispatchSettingsScript(blockEndscreen), &ok); err != nil {
		return fmt.Errorf("dispatch %s: %w", SettingsEvent, err)
	}
	return nil
}

// PauseTrailer stops a channel page's featured video.
func (d *Driver) PauseTrailer(ctx context.Context) (bool, error) {
	var paused bool
	if err := d.eval(ctx, pauseTrailerScript(), &paused); err != nil {
		return false, fmt.Errorf("pause trailer: %w", err)
	}
	return paused, nil
}

// Player returns the movie player adapter.
func (d *Driver) Player() enforce.Player { return &player{eval: d.eval} }
