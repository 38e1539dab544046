package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"tubeguard/internal/dom"
	"tubeguard/internal/settings"
	"tubeguard/internal/stylesheet"
	"tubeguard/internal/sweep"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var overlay bool
	cmd := &cobra.Command{
		Use:   "inspect FILE|URL",
		Short: "Show what the stored settings would suppress in a saved page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.store()
			if err != nil {
				return err
			}
			s, err := store.Get(cmd.Context())
			if err != nil {
				return err
			}
			doc, err := loadDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rep, err := inspect(doc, s, overlay)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overlay, "overlay", false, "Also run the end-of-video overlay sweeps")
	return cmd
}

func loadDocument(ctx context.Context, src string) (*dom.Doc, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dom.Parse(f)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "tubeguard-inspect/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch %s: %s", src, resp.Status)
	}
	return dom.Parse(resp.Body)
}

type hiddenElement struct {
	Element string
	Via     string
	Text    string
}

type inspectReport struct {
	Hidden []hiddenElement
	Sweeps map[string]int
}

// inspect applies the compiled stylesheet and the sweeps to doc and lists
// the outermost elements that became hidden. Elements the page already hid
// on its own are left out.
func inspect(doc *dom.Doc, s settings.Settings, overlay bool) (inspectReport, error) {
	before, err := dom.NewCascade()
	if err != nil {
		return inspectReport{}, err
	}
	before.AddDocumentStyles(doc.Root)
	already := map[*html.Node]bool{}
	for _, n := range before.HiddenRoots(doc.Root) {
		already[n] = true
	}

	res := sweep.Run(doc, s, sweep.Reconcile)
	counts := res.Counts
	if overlay {
		for name, n := range sweep.Run(doc, s, sweep.Overlay).Counts {
			counts[name] += n
		}
	}

	after, err := dom.NewCascade()
	if err != nil {
		return inspectReport{}, err
	}
	after.AddDocumentStyles(doc.Root)
	if err := after.Add(stylesheet.Compile(s)); err != nil {
		return inspectReport{}, fmt.Errorf("compiled stylesheet: %w", err)
	}
	if overlay {
		if err := after.Add(stylesheet.Endscreen()); err != nil {
			return inspectReport{}, fmt.Errorf("endscreen stylesheet: %w", err)
		}
	}

	rep := inspectReport{Sweeps: counts}
	for _, n := range after.HiddenRoots(doc.Root) {
		if already[n] {
			continue
		}
		rep.Hidden = append(rep.Hidden, hiddenElement{
			Element: describe(n),
			Via:     via(n),
			Text:    preview(dom.Text(n), 48),
		})
	}
	return rep, nil
}

func via(n *html.Node) string {
	for _, d := range dom.ParseStyle(dom.GetAttr(n, "style")) {
		if d.Property == "display" && strings.EqualFold(d.Value, "none") {
			return "sweep"
		}
	}
	return "stylesheet"
}

func describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(dom.Tag(n))
	if id := dom.GetAttr(n, "id"); id != "" {
		b.WriteString("#" + id)
	}
	for _, c := range strings.Fields(dom.GetAttr(n, "class")) {
		b.WriteString("." + c)
	}
	return b.String()
}

func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

func printReport(w io.Writer, rep inspectReport) {
	rows := make([][]string, 0, len(rep.Hidden))
	for _, h := range rep.Hidden {
		rows = append(rows, []string{h.Element, h.Via, h.Text})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "Nothing suppressed.")
	} else {
		fmt.Fprintln(w, renderTable(w, []string{"Element", "Via", "Text"}, rows, nil))
	}

	names := make([]string, 0, len(rep.Sweeps))
	for name := range rep.Sweeps {
		names = append(names, name)
	}
	sort.Strings(names)
	sweeps := make([][]string, 0, len(names))
	for _, name := range names {
		sweeps = append(sweeps, []string{name, strconv.Itoa(rep.Sweeps[name])})
	}
	fmt.Fprintln(w, renderTable(w, []string{"Sweep", "Edits"}, sweeps, []columnAlignment{alignLeft, alignRight}))
}
