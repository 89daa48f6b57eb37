package rates

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Default endpoints and the FRED series feeding the short end of the curve.
const (
	DefaultFREDBaseURL = "https://fred.stlouisfed.org/graph/fredgraph.csv"

	SeriesDGS3MO = "DGS3MO" // 3-month Treasury constant maturity
	SeriesDGS6MO = "DGS6MO" // 6-month Treasury constant maturity
)

// Observation is one dated value of a FRED series. Value is nil on days FRED
// reports no observation.
type Observation struct {
	Date  time.Time
	Value *float64
}

// FREDClient fetches series through the fredgraph CSV export.
type FREDClient struct {
	baseURL string
	client  *http.Client
}

// NewFREDClient creates a FRED client. An empty baseURL uses the public
// endpoint; a nil httpClient gets a 30 second timeout.
func NewFREDClient(baseURL string, httpClient *http.Client) *FREDClient {
	if baseURL == "" {
		baseURL = DefaultFREDBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &FREDClient{baseURL: baseURL, client: httpClient}
}

// FetchSeries downloads one series. Values come back as published (percent
// for the Treasury series); missing observations are nil.
func (c *FREDClient) FetchSeries(ctx context.Context, seriesID string) ([]Observation, error) {
	u := c.baseURL + "?id=" + url.QueryEscape(seriesID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create fred request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch fred series %s: %w", seriesID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fred series %s: unexpected status %d: %s", seriesID, resp.StatusCode, body)
	}

	r := csv.NewReader(resp.Body)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read fred header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("fred series %s: header has %d columns", seriesID, len(header))
	}

	var observations []Observation
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read fred row: %w", err)
		}

		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			return nil, fmt.Errorf("parse fred date %q: %w", row[0], err)
		}

		obs := Observation{Date: date}
		// FRED marks missing observations with a bare dot.
		if row[1] != "" && row[1] != "." {
			v, err := strconv.ParseFloat(row[1], 64)
			if err != nil {
				return nil, fmt.Errorf("parse fred value %q: %w", row[1], err)
			}
			obs.Value = &v
		}
		observations = append(observations, obs)
	}

	return observations, nil
}

// ShortRates fetches the 3- and 6-month Treasury series from start on and
// merges them into a two-column term structure. Days missing either series
// drop; percent scales to decimals.
func (c *FREDClient) ShortRates(ctx context.Context, start time.Time) (TermStructure, error) {
	three, err := c.FetchSeries(ctx, SeriesDGS3MO)
	if err != nil {
		return TermStructure{}, err
	}
	six, err := c.FetchSeries(ctx, SeriesDGS6MO)
	if err != nil {
		return TermStructure{}, err
	}

	type pair struct {
		three *float64
		six   *float64
	}
	byDate := make(map[time.Time]*pair)
	at := func(d time.Time) *pair {
		p := byDate[d]
		if p == nil {
			p = &pair{}
			byDate[d] = p
		}
		return p
	}
	for _, o := range three {
		at(o.Date).three = o.Value
	}
	for _, o := range six {
		at(o.Date).six = o.Value
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		if d.Before(start) {
			continue
		}
		p := byDate[d]
		if p.three == nil || p.six == nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := TermStructure{
		Dates:      dates,
		Maturities: []float64{0.25, 0.5},
		Rates:      make([][]float64, len(dates)),
	}
	for i, d := range dates {
		p := byDate[d]
		out.Rates[i] = []float64{*p.three / 100, *p.six / 100}
	}

	return out, nil
}
