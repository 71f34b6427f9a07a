// Table rendering for reports and capture summaries
// Shared by validate, run and inspect
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/andrewh/tracecheck/pkg/expect"
	"github.com/andrewh/tracecheck/pkg/spans"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	return t
}

// writeReport prints one row per check and the pass summary as footer.
func writeReport(w io.Writer, title string, r *expect.Report) {
	t := newTable(w)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Status", "Check", "Detail"})
	for _, c := range r.Checks() {
		status := "PASS"
		if !c.Passed {
			status = "FAIL"
		}
		t.AppendRow(table.Row{status, c.Name, c.Message})
	}
	t.AppendFooter(table.Row{"", r.Summary(), ""})
	t.Render()
}

func writeReportJSON(w io.Writer, r *expect.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// writeSummary prints per-name span counts and duration spread.
func writeSummary(w io.Writer, stats []spans.NameStats) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Span", "Count", "Untimed", "Mean", "StdDev", "Max"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	total := 0
	for _, st := range stats {
		total += st.Count
		t.AppendRow(table.Row{
			st.Name,
			st.Count,
			st.Untimed,
			spans.MeanDuration(st.Durations),
			spans.StdDevDuration(st.Durations),
			spans.MaxDuration(st.Durations),
		})
	}
	t.AppendFooter(table.Row{"total", total, "", "", "", ""})
	t.Render()
}
