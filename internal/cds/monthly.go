package cds

import (
	"sort"
	"time"
)

// MonthlyReturn is one calendar month's compounded return.
type MonthlyReturn struct {
	Month  time.Time // first day of the month, UTC
	Return float64
}

// MonthlyCompound compounds daily returns within each calendar month,
// product(1+r) - 1.
func MonthlyCompound(daily *ReturnSeries) []MonthlyReturn {
	growth := make(map[time.Time]float64)
	for i, d := range daily.Dates {
		month := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		g, ok := growth[month]
		if !ok {
			g = 1.0
		}
		growth[month] = g * (1 + daily.Returns[i])
	}

	out := make([]MonthlyReturn, 0, len(growth))
	for month, g := range growth {
		out = append(out, MonthlyReturn{Month: month, Return: g - 1})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}
