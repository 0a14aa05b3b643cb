package reports

import (
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/bookkeeper_backend/models"
)

// Period is the concrete inclusive date range a report covers.
// Not persisted; recomputed per request.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// ResolvePeriod converts a (granularity, year, month) selection into an
// inclusive [start, end] range. Month is 1-12 and only consulted for
// month/quarter granularity.
func ResolvePeriod(granularity models.ReportGranularity, year int, month int) (Period, error) {
	if year < 1900 || year > 3000 {
		return Period{}, errors.New("invalid year")
	}

	switch granularity {
	case models.ReportGranularityMonth:
		if month < 1 || month > 12 {
			return Period{}, errors.New("month must be between 1 and 12")
		}
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		return Period{Start: start, End: end, Label: start.Format("January 2006")}, nil

	case models.ReportGranularityQuarter:
		if month < 1 || month > 12 {
			return Period{}, errors.New("month must be between 1 and 12")
		}
		quarter := (month - 1) / 3
		start := time.Date(year, time.Month(quarter*3+1), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 3, 0).Add(-time.Nanosecond)
		return Period{Start: start, End: end, Label: fmt.Sprintf("Q%d %d", quarter+1, year)}, nil

	case models.ReportGranularityYear:
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 23, 59, 59, 999999999, time.UTC)
		return Period{Start: start, End: end, Label: fmt.Sprintf("%d", year)}, nil
	}

	return Period{}, errors.New("granularity must be month, quarter or year")
}

// QuarterOf buckets a date into its calendar quarter (1-4).
func QuarterOf(date time.Time) int {
	return (int(date.Month())-1)/3 + 1
}

// QuarterKey labels a date's quarter bucket, e.g. "Q2 2025".
func QuarterKey(date time.Time) string {
	return fmt.Sprintf("Q%d %d", QuarterOf(date), date.Year())
}
