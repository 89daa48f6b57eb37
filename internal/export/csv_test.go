package export

import (
	"strings"
	"testing"
	"time"

	"crsp-equity-lab/internal/benchmark"
	"crsp-equity-lab/internal/domain"
	"crsp-equity-lab/internal/timeseries"
)

func ptr[T any](v T) *T {
	return &v
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestRenderTableCSV(t *testing.T) {
	table := timeseries.NewTable(
		[]time.Time{day("2000-01-31"), day("2000-02-29")},
		timeseries.Column{Name: "10001", Values: []*float64{ptr(0.05), nil}},
		timeseries.Column{Name: "comnam", Text: []string{"ACME, INC", "ACME"}},
	)

	got := RenderTableCSV(table)
	want := "date,10001,comnam\n" +
		"2000-01-31,0.05,\"ACME, INC\"\n" +
		"2000-02-29,,ACME\n"
	if got != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, got)
	}
}

func TestRenderTableCSV_Empty(t *testing.T) {
	table := timeseries.NewTable(nil, timeseries.Column{Name: "ret"})

	got := RenderTableCSV(table)
	if got != "date,ret\n" {
		t.Errorf("Expected a bare header, got %q", got)
	}
}

func TestRenderIndexReturnsCSV(t *testing.T) {
	returns := []benchmark.IndexReturn{
		{Month: day("2000-01-01"), VW: ptr(0.0123), EW: ptr(0.04), N: 1500},
		{Month: day("2000-02-01"), VW: nil, EW: ptr(-0.01), N: 3},
	}

	got := RenderIndexReturnsCSV(returns)
	want := "month,vw_return,ew_return,stock_count\n" +
		"2000-01-01,0.0123,0.04,1500\n" +
		"2000-02-01,,-0.01,3\n"
	if got != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, got)
	}
}

func TestRenderDivergencesCSV(t *testing.T) {
	divergences := []benchmark.Divergence{
		{
			Month:      day("2000-01-01"),
			VWComputed: ptr(0.051), VWPublished: ptr(0.05), VWDiff: ptr(0.001),
			EWComputed: ptr(0.03), EWPublished: nil, EWDiff: nil,
		},
	}

	got := RenderDivergencesCSV(divergences)
	want := "month,vw_computed,vw_published,vw_diff,ew_computed,ew_published,ew_diff\n" +
		"2000-01-01,0.051,0.05,0.001,0.03,,\n"
	if got != want {
		t.Errorf("Expected:\n%s\nGot:\n%s", want, got)
	}
}

func TestRenderPullSummary(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	runs := []*domain.PullRun{
		{
			ID:          7,
			Kind:        domain.PullKindStock,
			PolicyName:  "imputed",
			StartDate:   day("2000-01-01"),
			EndDate:     day("2000-12-31"),
			StartedAt:   started,
			Status:      domain.PullStatusCompleted,
			RecordCount: 42000,
		},
		{
			ID:        8,
			Kind:      domain.PullKindIndex,
			StartDate: day("2000-01-01"),
			EndDate:   day("2000-12-31"),
			StartedAt: started,
			Status:    domain.PullStatusFailed,
			ErrorText: ptr("wrds timeout"),
		},
	}

	got := RenderPullSummary(runs)
	if !strings.Contains(got, "| 7 | stock | imputed | 2000-01-01 to 2000-12-31 | 2024-03-01T10:30:00Z | completed | 42000 | - |") {
		t.Errorf("Expected the completed run row, got:\n%s", got)
	}
	if !strings.Contains(got, "| 8 | index | - | 2000-01-01 to 2000-12-31 | 2024-03-01T10:30:00Z | failed | 0 | wrds timeout |") {
		t.Errorf("Expected the failed run row, got:\n%s", got)
	}
}

func TestRenderPullSummary_Empty(t *testing.T) {
	got := RenderPullSummary(nil)
	if !strings.Contains(got, "No pull runs recorded.") {
		t.Errorf("Expected the empty notice, got %q", got)
	}
}
