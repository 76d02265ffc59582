package scanner

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	FormatTSV   = "tsv"
	FormatTable = "table"
)

// Match lists the files similar to Path. Each pair appears once, under the path that
// sorts first.
type Match struct {
	Path    string
	Similar []string
}

type Report struct {
	RunID   string
	Files   int
	Failed  int
	Cached  int
	Matches []Match
}

// WriteReport writes r in the given format. The tsv format is one line per match with
// the similar paths separated by tabs.
func WriteReport(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "", FormatTSV:
		for _, m := range r.Matches {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", m.Path, strings.Join(m.Similar, "\t")); err != nil {
				return err
			}
		}
		return nil
	case FormatTable:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetTitle("run %s: %d files, %d cached, %d failed", r.RunID, r.Files, r.Cached, r.Failed)
		t.AppendHeader(table.Row{"File", "Similar files", "Count"})
		for _, m := range r.Matches {
			t.AppendRow(table.Row{m.Path, strings.Join(m.Similar, "\n"), len(m.Similar)})
		}
		t.SetStyle(table.StyleLight)
		t.Render()
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
