package scanner

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// elapsedPrecision rounds the reported wall time.
const elapsedPrecision = 10 * time.Millisecond

// density is the stored-entry fraction of the full matrix.
func density(res *Result) float64 {
	if res.N == 0 {
		return 0
	}

	return float64(res.NNZ) / (float64(res.N) * float64(res.N))
}

// WriteSummary renders the end-of-scan report as a table.
func WriteSummary(w io.Writer, res *Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Units scanned", humanize.Comma(int64(res.UnitsTotal))},
		{"Units resumed", humanize.Comma(int64(res.UnitsResumed))},
		{"Units partial", humanize.Comma(res.Stats.UnitsPartial)},
		{"Units failed", humanize.Comma(res.Stats.UnitsFailed)},
		{"Records streamed", humanize.Comma(res.Stats.RecordsTotal)},
		{"Records matched", humanize.Comma(res.Stats.RecordsMatched)},
		{"Lines skipped", humanize.Comma(res.Stats.RecordsSkipped)},
		{"Identifiers", humanize.Comma(int64(res.N))},
		{"Distinct pairs", humanize.Comma(int64(res.PairsDistinct))},
		{"Matrix entries", humanize.Comma(res.NNZ)},
		{"Density", fmt.Sprintf("%.6f", density(res))},
		{"Elapsed", res.Elapsed.Round(elapsedPrecision).String()},
	})

	tw.Render()

	// Interrupted runs have no published outputs.
	if res.MatrixPath != "" {
		fmt.Fprintf(w, "matrix: %s\nindex:  %s\n", res.MatrixPath, res.IndexPath)
	}

	if res.Stats.UnitsFailed > 0 || res.Stats.UnitsPartial > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d failed and %d partial units; weights from damaged units are incomplete\n",
			res.Stats.UnitsFailed, res.Stats.UnitsPartial)
	} else {
		color.New(color.FgGreen).Fprintln(w, "all units decoded cleanly")
	}
}
