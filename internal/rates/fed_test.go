package rates

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// fedCSV builds a synthetic feds200628.csv: descriptive preamble, a header
// with a leading non-tenor column, then one row per date where SVENYyy
// carries yy/10 percent. Tenors listed in missing stay empty for that date.
func fedCSV(rows []struct {
	date    string
	missing []int
}) string {
	var b strings.Builder
	b.WriteString("\"Yield curve estimates\"\n")
	b.WriteString("\"Research division\"\n")
	b.WriteString("\n")

	b.WriteString("Date,BETA0")
	for y := 1; y <= 30; y++ {
		fmt.Fprintf(&b, ",SVENY%02d", y)
	}
	b.WriteString("\n")

	for _, row := range rows {
		b.WriteString(row.date)
		b.WriteString(",4.2")
		for y := 1; y <= 30; y++ {
			skip := false
			for _, m := range row.missing {
				if m == y {
					skip = true
					break
				}
			}
			if skip {
				b.WriteString(",")
			} else {
				fmt.Fprintf(&b, ",%.2f", float64(y)/10)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func TestFedCurveClient_YieldCurve(t *testing.T) {
	csv := fedCSV([]struct {
		date    string
		missing []int
	}{
		{"2002-03-29", nil},         // before start
		{"2002-04-01", nil},         // kept
		{"2002-04-02", []int{30}},   // incomplete, dropped
		{"2002-04-03", nil},         // kept
		{"2002-04-04", []int{1, 2}}, // incomplete, dropped
		{"2002-05-01", nil},         // after end
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(csv))
	}))
	defer server.Close()

	client := NewFedCurveClient(server.URL, server.Client())
	ts, err := client.YieldCurve(context.Background(), day("2002-04-01"), day("2002-04-30"))
	if err != nil {
		t.Fatalf("YieldCurve failed: %v", err)
	}

	if len(ts.Dates) != 2 {
		t.Fatalf("Expected 2 complete rows, got %d", len(ts.Dates))
	}
	if !ts.Dates[0].Equal(day("2002-04-01")) || !ts.Dates[1].Equal(day("2002-04-03")) {
		t.Errorf("Expected the complete in-range dates, got %v", ts.Dates)
	}

	if len(ts.Maturities) != 30 || ts.Maturities[0] != 1 || ts.Maturities[29] != 30 {
		t.Fatalf("Expected maturities 1..30, got %v", ts.Maturities)
	}

	// SVENY07 = 0.70 percent = 0.007.
	if math.Abs(ts.Rates[0][6]-0.007) > 1e-12 {
		t.Errorf("Expected 0.007 at the 7y tenor, got %.6f", ts.Rates[0][6])
	}
}

func TestFedCurveClient_YieldCurve_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	client := NewFedCurveClient(server.URL, server.Client())
	if _, err := client.YieldCurve(context.Background(), time.Time{}, day("2030-01-01")); err == nil {
		t.Fatal("Expected error for non-200 response, got nil")
	}
}

func TestParseFedCurve_NoHeader(t *testing.T) {
	if _, err := parseFedCurve("\"just a preamble\"\n1,2,3\n", time.Time{}, day("2030-01-01")); err == nil {
		t.Fatal("Expected error when the header row is missing, got nil")
	}
}

func TestParseFedCurve_MissingTenorColumn(t *testing.T) {
	body := "Date,SVENY01\n2002-04-01,1.0\n"
	if _, err := parseFedCurve(body, time.Time{}, day("2030-01-01")); err == nil {
		t.Fatal("Expected error when tenor columns are missing, got nil")
	}
}
