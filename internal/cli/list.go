package cli

import (
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/lonestarx1/opgraph/pkg/pipelines"
)

func (a *App) runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	if err := fs.Parse(args); err != nil {
		return 1
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, e := range pipelines.All() {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.ID, e.Description)
	}
	_ = w.Flush()

	return 0
}
