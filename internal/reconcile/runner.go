package reconcile

import (
	"context"
	"fmt"
	"log"

	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
	"tubeguard/internal/stylesheet"
	"tubeguard/internal/sweep"
)

// Surface is the live page as the runner sees it.
type Surface interface {
	SetStyle(ctx context.Context, id, css string) error
	// Snapshot returns the subtree under selector, or nil when absent.
	Snapshot(ctx context.Context, selector string) (*dom.Doc, error)
	Apply(ctx context.Context, muts []dom.Mutation) error
}

// Report describes one executed pass.
type Report struct {
	Pass      Pass
	CSS       bool // stylesheet assigned
	Sweeps    sweep.Result
	Mutations int
}

// Runner executes reconciliation passes against a Surface.
type Runner struct {
	scope  string
	logger *log.Logger
	passes int
}

// NewRunner returns a runner whose sweeps see the subtree under scope.
func NewRunner(scope string, logger *log.Logger) *Runner {
	if scope == "" {
		scope = DefaultRoot
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{scope: scope, logger: logger}
}

// Passes counts executed passes.
func (r *Runner) Passes() int { return r.passes }

// Run executes pass p with the settings snapshot s. The stylesheet is
// assigned before any sweep so sweeps see the post-CSS page. A missing
// scope is not an error.
func (r *Runner) Run(ctx context.Context, surf Surface, p Pass, s settings.Settings) (Report, error) {
	rep := Report{Pass: p}
	var list []sweep.Sweep
	switch p {
	case PassFull:
		if err := surf.SetStyle(ctx, stylesheet.ElementID, stylesheet.Compile(s)); err != nil {
			return rep, fmt.Errorf("assign stylesheet: %w", err)
		}
		rep.CSS = true
		list = sweep.Reconcile
	case PassBackstop:
		list = sweep.Backstop
	default:
		return rep, nil
	}
	r.passes++

	doc, err := surf.Snapshot(ctx, r.scope)
	if err != nil {
		return rep, fmt.Errorf("snapshot %s: %w", r.scope, err)
	}
	if doc == nil {
		return rep, nil
	}
	rep.Sweeps = sweep.Run(doc, s, list)
	muts := doc.TakeJournal()
	rep.Mutations = len(muts)
	if len(muts) == 0 {
		return rep, nil
	}
	if err := surf.Apply(ctx, muts); err != nil {
		return rep, fmt.Errorf("apply %d mutations: %w", len(muts), err)
	}
	r.logger.Printf("RECONCILE pass %s: %d edits %v", p, rep.Mutations, rep.Sweeps.Counts)
	return rep, nil
}
