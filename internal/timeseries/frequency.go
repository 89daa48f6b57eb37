package timeseries

// Frequency tags the sampling interval of a dataset.
type Frequency string

// Supported dataset frequencies.
const (
	FrequencyDaily     Frequency = "daily"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)
