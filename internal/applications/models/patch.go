package models

import (
	"strings"
	"time"

	dErrors "nietos/pkg/domain-errors"
)

// Patch is a partial update. Nil fields are left untouched. It has no edit
// token field, so a token sent alongside a patch can never be persisted.
type Patch struct {
	FirstName                        *string
	LastName                         *string
	ProcedureDate                    *string
	ConfirmationEmailReceived        *bool
	AdditionalDocumentationRequested *bool
	ResolutionReceived               *bool
}

// IsEmpty reports whether the patch touches no field.
func (p Patch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.ProcedureDate == nil &&
		p.ConfirmationEmailReceived == nil && p.AdditionalDocumentationRequested == nil &&
		p.ResolutionReceived == nil
}

// Fields lists the JSON names of the touched fields, for audit events.
func (p Patch) Fields() []string {
	var out []string
	if p.FirstName != nil {
		out = append(out, "firstName")
	}
	if p.LastName != nil {
		out = append(out, "lastName")
	}
	if p.ProcedureDate != nil {
		out = append(out, "procedureDate")
	}
	if p.ConfirmationEmailReceived != nil {
		out = append(out, "confirmationEmailReceived")
	}
	if p.AdditionalDocumentationRequested != nil {
		out = append(out, "additionalDocumentationRequested")
	}
	if p.ResolutionReceived != nil {
		out = append(out, "resolutionReceived")
	}
	return out
}

// ApplyTo returns a patched copy of a. The original is not modified, so a
// failed validation leaves the caller's record intact.
func (p Patch) ApplyTo(a *Application, now time.Time) (*Application, error) {
	next := a.Clone()
	if p.FirstName != nil {
		next.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		next.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.ProcedureDate != nil {
		d, err := ParseDate(*p.ProcedureDate)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid procedureDate, expected YYYY-MM-DD")
		}
		next.ProcedureDate = d
	}
	if p.ConfirmationEmailReceived != nil {
		next.ConfirmationEmailReceived = *p.ConfirmationEmailReceived
	}
	if p.AdditionalDocumentationRequested != nil {
		next.AdditionalDocumentationRequested = *p.AdditionalDocumentationRequested
	}
	if p.ResolutionReceived != nil {
		next.ResolutionReceived = *p.ResolutionReceived
	}
	if err := next.validate(); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	if now.After(next.UpdatedAt) {
		next.UpdatedAt = now
	}
	return next, nil
}
