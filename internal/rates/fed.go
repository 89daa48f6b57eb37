package rates

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultFedCurveURL is the Board's Gürkaynak-Sack-Wright zero-coupon yield
// curve publication (research data file feds200628).
const DefaultFedCurveURL = "https://www.federalreserve.gov/econres/feds/files/feds200628.csv"

const fedCurveMaxYears = 30

// FedCurveClient fetches the Board's zero-coupon yield curve CSV.
type FedCurveClient struct {
	url    string
	client *http.Client
}

// NewFedCurveClient creates a yield curve client. An empty url uses the
// Board's publication; a nil httpClient gets a 60 second timeout, the file
// runs to several megabytes.
func NewFedCurveClient(url string, httpClient *http.Client) *FedCurveClient {
	if url == "" {
		url = DefaultFedCurveURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &FedCurveClient{url: url, client: httpClient}
}

// YieldCurve fetches the curve and keeps the SVENY01..SVENY30 zero-coupon
// columns for dates in [start, end] inclusive. Rows missing any tenor drop
// (the early sample lacks long tenors); percent scales to decimals.
func (c *FedCurveClient) YieldCurve(ctx context.Context, start, end time.Time) (TermStructure, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return TermStructure{}, fmt.Errorf("create fed curve request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return TermStructure{}, fmt.Errorf("fetch fed curve: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return TermStructure{}, fmt.Errorf("fed curve: unexpected status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TermStructure{}, fmt.Errorf("read fed curve body: %w", err)
	}

	return parseFedCurve(string(body), start, end)
}

// parseFedCurve skips the descriptive preamble, locates the SVENY columns and
// builds the filtered grid.
func parseFedCurve(body string, start, end time.Time) (TermStructure, error) {
	lines := strings.Split(body, "\n")
	headerIdx := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "Date,") {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return TermStructure{}, fmt.Errorf("fed curve: no header row found")
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return TermStructure{}, fmt.Errorf("read fed curve header: %w", err)
	}

	colIdx := make([]int, fedCurveMaxYears)
	for y := 1; y <= fedCurveMaxYears; y++ {
		name := fmt.Sprintf("SVENY%02d", y)
		idx := -1
		for i, col := range header {
			if strings.TrimSpace(col) == name {
				idx = i
				break
			}
		}
		if idx == -1 {
			return TermStructure{}, fmt.Errorf("fed curve: column %s not found", name)
		}
		colIdx[y-1] = idx
	}

	maturities := make([]float64, fedCurveMaxYears)
	for y := range maturities {
		maturities[y] = float64(y + 1)
	}

	out := TermStructure{Maturities: maturities}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TermStructure{}, fmt.Errorf("read fed curve row: %w", err)
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(row[0]))
		if err != nil {
			return TermStructure{}, fmt.Errorf("parse fed curve date %q: %w", row[0], err)
		}
		if date.Before(start) || date.After(end) {
			continue
		}

		values := make([]float64, fedCurveMaxYears)
		complete := true
		for y, idx := range colIdx {
			if idx >= len(row) {
				complete = false
				break
			}
			cell := strings.TrimSpace(row[idx])
			if cell == "" || cell == "NA" {
				complete = false
				break
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return TermStructure{}, fmt.Errorf("parse fed curve value %q: %w", cell, err)
			}
			values[y] = v / 100
		}
		if !complete {
			continue
		}

		out.Dates = append(out.Dates, date)
		out.Rates = append(out.Rates, values)
	}

	sort.Sort(&dateSort{out.Dates, out.Rates})
	return out, nil
}

type dateSort struct {
	dates []time.Time
	rows  [][]float64
}

func (s *dateSort) Len() int           { return len(s.dates) }
func (s *dateSort) Less(i, j int) bool { return s.dates[i].Before(s.dates[j]) }
func (s *dateSort) Swap(i, j int) {
	s.dates[i], s.dates[j] = s.dates[j], s.dates[i]
	s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
}
