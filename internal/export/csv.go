// Package export renders datasets, benchmark comparisons and pull ledgers
// to CSV text and Excel workbooks.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"crsp-equity-lab/internal/benchmark"
	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/timeseries"
)

const csvDateFormat = "2006-01-02"

// RenderTableCSV renders a table as CSV with the date index in the first
// column. Missing cells stay empty.
func RenderTableCSV(t *timeseries.Table) string {
	var sb strings.Builder

	sb.WriteString("date")
	for _, c := range t.Columns() {
		sb.WriteString(",")
		sb.WriteString(csvEscape(c.Name))
	}
	sb.WriteString("\n")

	cols := t.Columns()
	for i, d := range t.Dates() {
		sb.WriteString(d.Format(csvDateFormat))
		for _, c := range cols {
			sb.WriteString(",")
			sb.WriteString(csvCell(c, i))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderIndexReturnsCSV renders replicated monthly market returns.
func RenderIndexReturnsCSV(returns []benchmark.IndexReturn) string {
	var sb strings.Builder

	sb.WriteString("month,vw_return,ew_return,stock_count\n")
	for _, r := range returns {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d\n",
			r.Month.Format(csvDateFormat),
			csvFloat(r.VW),
			csvFloat(r.EW),
			r.N,
		))
	}

	return sb.String()
}

// RenderDivergencesCSV renders the replicated-versus-published comparison.
func RenderDivergencesCSV(divergences []benchmark.Divergence) string {
	var sb strings.Builder

	sb.WriteString("month,vw_computed,vw_published,vw_diff,ew_computed,ew_published,ew_diff\n")
	for _, d := range divergences {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s\n",
			d.Month.Format(csvDateFormat),
			csvFloat(d.VWComputed),
			csvFloat(d.VWPublished),
			csvFloat(d.VWDiff),
			csvFloat(d.EWComputed),
			csvFloat(d.EWPublished),
			csvFloat(d.EWDiff),
		))
	}

	return sb.String()
}

// RenderPullSummary renders the pull ledger as a Markdown table, newest run
// first as the store returns them.
func RenderPullSummary(runs []*domain.PullRun) string {
	var sb strings.Builder

	sb.WriteString("# Pull Runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("No pull runs recorded.\n")
		return sb.String()
	}

	sb.WriteString("| ID | Kind | Policy | Window | Started | Status | Records | Error |\n")
	sb.WriteString("|----|------|--------|--------|---------|--------|---------|-------|\n")
	for _, r := range runs {
		policy := r.PolicyName
		if policy == "" {
			policy = "-"
		}
		errText := "-"
		if r.ErrorText != nil {
			errText = *r.ErrorText
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s to %s | %s | %s | %d | %s |\n",
			r.ID,
			r.Kind,
			policy,
			r.StartDate.Format(csvDateFormat),
			r.EndDate.Format(csvDateFormat),
			r.StartedAt.Format(time.RFC3339),
			r.Status,
			r.RecordCount,
			errText,
		))
	}

	return sb.String()
}

func csvCell(c timeseries.Column, row int) string {
	if c.Text != nil {
		return csvEscape(c.Text[row])
	}
	return csvFloat(c.Values[row])
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// csvEscape quotes a field when it carries a comma, quote or newline.
// Company names out of CRSP routinely contain commas.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
}
