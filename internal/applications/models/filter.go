package models

import (
	"strings"
	"time"

	dErrors "nietos/pkg/domain-errors"
)

// MonthLayout is the accepted form of the month filter.
const MonthLayout = "2006-01"

// Filter restricts a listing to an inclusive procedureDate range.
// The zero value matches every record.
type Filter struct {
	From Date
	To   Date
}

// IsZero reports whether the filter matches everything.
func (f Filter) IsZero() bool {
	return f.From.IsZero() && f.To.IsZero()
}

// Matches reports whether d lies within [From, To].
func (f Filter) Matches(d Date) bool {
	if f.IsZero() {
		return true
	}
	return !d.Before(f.From) && !d.After(f.To)
}

// ParseFilter turns raw query values into a Filter.
//
// A complete startDate/endDate pair wins over month. A lone startDate or endDate
// is ignored, in which case month (if any) applies. Month bounds are the first
// and last day of the month in UTC. Every supplied value must parse.
func ParseFilter(startDate, endDate, month string) (Filter, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	month = strings.TrimSpace(month)

	var start, end Date
	var err error
	if startDate != "" {
		if start, err = ParseDate(startDate); err != nil {
			return Filter{}, dErrors.New(dErrors.CodeValidation, "invalid startDate, expected YYYY-MM-DD")
		}
	}
	if endDate != "" {
		if end, err = ParseDate(endDate); err != nil {
			return Filter{}, dErrors.New(dErrors.CodeValidation, "invalid endDate, expected YYYY-MM-DD")
		}
	}
	var monthFilter Filter
	if month != "" {
		if monthFilter, err = MonthFilter(month); err != nil {
			return Filter{}, err
		}
	}

	if !start.IsZero() && !end.IsZero() {
		if start.After(end) {
			return Filter{}, dErrors.New(dErrors.CodeValidation, "startDate must not be after endDate")
		}
		return Filter{From: start, To: end}, nil
	}
	return monthFilter, nil
}

// MonthFilter covers every day of a YYYY-MM month.
func MonthFilter(month string) (Filter, error) {
	t, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(month), time.UTC)
	if err != nil {
		return Filter{}, dErrors.New(dErrors.CodeValidation, "invalid month, expected YYYY-MM")
	}
	first := NewDate(t.Year(), t.Month(), 1)
	last := NewDate(t.Year(), t.Month()+1, 0)
	return Filter{From: first, To: last}, nil
}
