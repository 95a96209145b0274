package dto

import (
	"time"

	"stradapos/internal/core/apperror"
	"stradapos/internal/domain/reports"
)

// PeriodRequest is a date range filter. Zero bounds default to all-time.
type PeriodRequest struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// ToPeriod parses the RFC3339 bounds.
func (r *PeriodRequest) ToPeriod() (reports.Period, error) {
	var period reports.Period

	if r.From != "" {
		parsed, err := time.Parse(time.RFC3339, r.From)
		if err != nil {
			return period, apperror.NewValidation("invalid from date, expected RFC3339")
		}
		period.From = parsed
	}

	if r.To != "" {
		parsed, err := time.Parse(time.RFC3339, r.To)
		if err != nil {
			return period, apperror.NewValidation("invalid to date, expected RFC3339")
		}
		period.To = parsed
	}

	return period, nil
}
