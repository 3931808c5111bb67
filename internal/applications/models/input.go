package models

import (
	"strings"

	dErrors "nietos/pkg/domain-errors"
)

// CreateInput is the unvalidated create payload.
type CreateInput struct {
	FirstName                        string
	LastName                         string
	ProcedureDate                    string
	ConfirmationEmailReceived        bool
	AdditionalDocumentationRequested bool
	ResolutionReceived               bool
}

// Draft validates required fields and parses the procedure date.
func (in CreateInput) Draft() (Draft, error) {
	first := strings.TrimSpace(in.FirstName)
	if first == "" {
		return Draft{}, dErrors.New(dErrors.CodeValidation, "firstName is required")
	}
	if strings.TrimSpace(in.ProcedureDate) == "" {
		return Draft{}, dErrors.New(dErrors.CodeValidation, "procedureDate is required")
	}
	date, err := ParseDate(in.ProcedureDate)
	if err != nil {
		return Draft{}, dErrors.New(dErrors.CodeValidation, "invalid procedureDate, expected YYYY-MM-DD")
	}
	return Draft{
		FirstName:                        first,
		LastName:                         strings.TrimSpace(in.LastName),
		ProcedureDate:                    date,
		ConfirmationEmailReceived:        in.ConfirmationEmailReceived,
		AdditionalDocumentationRequested: in.AdditionalDocumentationRequested,
		ResolutionReceived:               in.ResolutionReceived,
	}, nil
}

// ListQuery carries the raw filter parameters of a listing.
type ListQuery struct {
	StartDate string
	EndDate   string
	Month     string
}

// Filter parses the query. See ParseFilter for precedence rules.
func (q ListQuery) Filter() (Filter, error) {
	return ParseFilter(q.StartDate, q.EndDate, q.Month)
}
