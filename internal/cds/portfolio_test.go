package cds

import (
	"math"
	"testing"
	"time"

	"crsp-equity-lab/internal/domain"
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

func quoteRecord(date, ticker, tenor string, spread float64) *domain.CDSSpreadRecord {
	return &domain.CDSSpreadRecord{
		Date:      day(date),
		Ticker:    ptr(ticker),
		RedCode:   ptr("RED" + ticker),
		Tenor:     ptr(tenor),
		ParSpread: ptr(spread),
	}
}

func findPortfolio(t *testing.T, portfolios []*Portfolio, key string) *Portfolio {
	t.Helper()
	for _, p := range portfolios {
		if p.Key == key {
			return p
		}
	}
	t.Fatalf("portfolio %s not found", key)
	return nil
}

var testWindow = struct{ start, end time.Time }{day("2002-04-01"), day("2013-03-01")}

func TestBuildPortfolios_QuintileAssignment(t *testing.T) {
	// Five tickers, one month, spreads 0.01..0.05. Nearest-index quantile
	// breaks for n=5 are 0.02/0.03/0.03/0.04, so the buckets come out
	// 1, 1, 2, 4, 5 with the third quintile empty.
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-02", "A", "5Y", 0.01),
		quoteRecord("2002-04-02", "B", "5Y", 0.02),
		quoteRecord("2002-04-02", "C", "5Y", 0.03),
		quoteRecord("2002-04-02", "D", "5Y", 0.04),
		quoteRecord("2002-04-02", "E", "5Y", 0.05),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	if len(portfolios) != 20 {
		t.Fatalf("Expected 20 portfolios, got %d", len(portfolios))
	}

	q1 := findPortfolio(t, portfolios, "5Y_Q1")
	if len(q1.Spreads) != 1 {
		t.Fatalf("Expected one Q1 date, got %d", len(q1.Spreads))
	}
	// A and B share the bucket; their spreads average.
	if math.Abs(q1.Spreads[0]-0.015) > 1e-12 {
		t.Errorf("Expected Q1 representative spread 0.015, got %.6f", q1.Spreads[0])
	}

	q2 := findPortfolio(t, portfolios, "5Y_Q2")
	if len(q2.Spreads) != 1 || math.Abs(q2.Spreads[0]-0.03) > 1e-12 {
		t.Errorf("Expected Q2 to hold C alone at 0.03, got %v", q2.Spreads)
	}

	q3 := findPortfolio(t, portfolios, "5Y_Q3")
	if len(q3.Dates) != 0 {
		t.Errorf("Expected empty Q3, got %d dates", len(q3.Dates))
	}

	q4 := findPortfolio(t, portfolios, "5Y_Q4")
	if len(q4.Spreads) != 1 || math.Abs(q4.Spreads[0]-0.04) > 1e-12 {
		t.Errorf("Expected Q4 to hold D alone at 0.04, got %v", q4.Spreads)
	}

	q5 := findPortfolio(t, portfolios, "5Y_Q5")
	if len(q5.Spreads) != 1 || math.Abs(q5.Spreads[0]-0.05) > 1e-12 {
		t.Errorf("Expected Q5 to hold E alone at 0.05, got %v", q5.Spreads)
	}
}

func TestBuildPortfolios_FirstSpreadOfMonthDecides(t *testing.T) {
	// The bucket comes from the month's first 5Y quote; later quotes still
	// feed the representative series.
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-15", "A", "5Y", 0.05),
		quoteRecord("2002-04-02", "A", "5Y", 0.01),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	q1 := findPortfolio(t, portfolios, "5Y_Q1")
	if len(q1.Dates) != 2 {
		t.Fatalf("Expected both quote dates in Q1, got %d", len(q1.Dates))
	}
	if !q1.Dates[0].Equal(day("2002-04-02")) || !q1.Dates[1].Equal(day("2002-04-15")) {
		t.Errorf("Expected dates sorted ascending, got %v", q1.Dates)
	}
	if math.Abs(q1.Spreads[1]-0.05) > 1e-12 {
		t.Errorf("Expected the later spread 0.05 in the series, got %.6f", q1.Spreads[1])
	}
}

func TestBuildPortfolios_BucketSpansTenors(t *testing.T) {
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-02", "A", "5Y", 0.01),
		quoteRecord("2002-04-02", "A", "10Y", 0.02),
		quoteRecord("2002-04-03", "A", "3Y", 0.008),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	tenY := findPortfolio(t, portfolios, "10Y_Q1")
	if len(tenY.Spreads) != 1 || math.Abs(tenY.Spreads[0]-0.02) > 1e-12 {
		t.Errorf("Expected the 10Y quote in 10Y_Q1, got %v", tenY.Spreads)
	}

	threeY := findPortfolio(t, portfolios, "3Y_Q1")
	if len(threeY.Spreads) != 1 || math.Abs(threeY.Spreads[0]-0.008) > 1e-12 {
		t.Errorf("Expected the 3Y quote in 3Y_Q1, got %v", threeY.Spreads)
	}
}

func TestBuildPortfolios_NoFiveYearNoBucket(t *testing.T) {
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-02", "A", "3Y", 0.01),
		quoteRecord("2002-04-02", "A", "10Y", 0.02),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	for _, p := range portfolios {
		if len(p.Dates) != 0 {
			t.Errorf("Expected %s empty without a 5Y quote, got %d dates", p.Key, len(p.Dates))
		}
	}
}

func TestBuildPortfolios_IrrelevantTenorsDrop(t *testing.T) {
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-02", "A", "5Y", 0.01),
		quoteRecord("2002-04-02", "A", "1Y", 0.005),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	total := 0
	for _, p := range portfolios {
		total += len(p.Dates)
	}
	if total != 1 {
		t.Errorf("Expected only the 5Y quote to survive, got %d portfolio dates", total)
	}
}

func TestBuildPortfolios_OutlierCollapsesToGlobalMean(t *testing.T) {
	// Two months so the tickers sit in separate quantile pools; the 12.0
	// representative spread exceeds 10 and collapses to the global mean
	// (0.02 + 12.0) / 2 = 6.01.
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-02", "A", "5Y", 0.02),
		quoteRecord("2002-05-02", "B", "5Y", 12.0),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	q1 := findPortfolio(t, portfolios, "5Y_Q1")
	if len(q1.Spreads) != 2 {
		t.Fatalf("Expected 2 dates in Q1, got %d", len(q1.Spreads))
	}
	if math.Abs(q1.Spreads[0]-0.02) > 1e-12 {
		t.Errorf("Expected the sane spread untouched, got %.6f", q1.Spreads[0])
	}
	if math.Abs(q1.Spreads[1]-6.01) > 1e-12 {
		t.Errorf("Expected the outlier replaced with 6.01, got %.6f", q1.Spreads[1])
	}
}

func TestBuildPortfolios_DedupesAndDropsNulls(t *testing.T) {
	missing := quoteRecord("2002-04-02", "A", "5Y", 0)
	missing.ParSpread = nil

	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-04-02", "A", "5Y", 0.01),
		quoteRecord("2002-04-02", "A", "5Y", 0.01), // exact repeat
		quoteRecord("2002-04-02", "A", "5Y", 0.03), // distinct quote, kept
		missing,
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	q1 := findPortfolio(t, portfolios, "5Y_Q1")
	if len(q1.Spreads) != 1 {
		t.Fatalf("Expected 1 representative date, got %d", len(q1.Spreads))
	}
	// Mean of 0.01 and 0.03: the repeat collapses, the null drops.
	if math.Abs(q1.Spreads[0]-0.02) > 1e-12 {
		t.Errorf("Expected representative spread 0.02, got %.6f", q1.Spreads[0])
	}
}

func TestBuildPortfolios_DateWindow(t *testing.T) {
	records := []*domain.CDSSpreadRecord{
		quoteRecord("2002-03-29", "A", "5Y", 0.01),
		quoteRecord("2013-03-02", "A", "5Y", 0.01),
	}

	portfolios, err := BuildPortfolios(records, testWindow.start, testWindow.end)
	if err != nil {
		t.Fatalf("BuildPortfolios failed: %v", err)
	}

	for _, p := range portfolios {
		if len(p.Dates) != 0 {
			t.Errorf("Expected out-of-window quotes dropped, %s has %d dates", p.Key, len(p.Dates))
		}
	}
}
