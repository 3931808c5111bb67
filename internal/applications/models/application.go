package models

import (
	"strings"
	"time"

	id "nietos/pkg/domain"
	dErrors "nietos/pkg/domain-errors"
)

// MaxNameLength bounds firstName and lastName.
const MaxNameLength = 200

// Application is one submitted citizenship procedure status report.
//
// Invariants:
//   - ID is assigned at creation and never changes
//   - FirstName is non-empty after trimming
//   - ProcedureDate is set
//   - EditTokenHash is set at creation and never changes; it is never serialised
//   - CreatedAt is immutable; UpdatedAt moves forward on every mutation
type Application struct {
	ID                               id.ApplicationID `json:"id"`
	FirstName                        string           `json:"firstName"`
	LastName                         string           `json:"lastName"`
	ProcedureDate                    Date             `json:"procedureDate"`
	ConfirmationEmailReceived        bool             `json:"confirmationEmailReceived"`
	AdditionalDocumentationRequested bool             `json:"additionalDocumentationRequested"`
	ResolutionReceived               bool             `json:"resolutionReceived"`
	EditTokenHash                    string           `json:"-"`
	CreatedAt                        time.Time        `json:"createdAt"`
	UpdatedAt                        time.Time        `json:"updatedAt"`
}

// Draft carries the caller supplied fields of a new application.
type Draft struct {
	FirstName                        string
	LastName                         string
	ProcedureDate                    Date
	ConfirmationEmailReceived        bool
	AdditionalDocumentationRequested bool
	ResolutionReceived               bool
}

// NewApplication builds a record and checks its invariants.
func NewApplication(appID id.ApplicationID, draft Draft, editTokenHash string, now time.Time) (*Application, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application id is required")
	}
	if editTokenHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "edit token hash is required")
	}
	a := &Application{
		ID:                               appID,
		FirstName:                        strings.TrimSpace(draft.FirstName),
		LastName:                         strings.TrimSpace(draft.LastName),
		ProcedureDate:                    draft.ProcedureDate,
		ConfirmationEmailReceived:        draft.ConfirmationEmailReceived,
		AdditionalDocumentationRequested: draft.AdditionalDocumentationRequested,
		ResolutionReceived:               draft.ResolutionReceived,
		EditTokenHash:                    editTokenHash,
		CreatedAt:                        now,
		UpdatedAt:                        now,
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Application) validate() error {
	if a.FirstName == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "firstName is required")
	}
	if len(a.FirstName) > MaxNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "firstName is too long")
	}
	if len(a.LastName) > MaxNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "lastName is too long")
	}
	if a.ProcedureDate.IsZero() {
		return dErrors.New(dErrors.CodeInvariantViolation, "procedureDate is required")
	}
	return nil
}

// IsPending reports whether no resolution has been received yet.
func (a *Application) IsPending() bool {
	return !a.ResolutionReceived
}

// Clone returns a copy safe to hand across store boundaries.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Created is the create response: the record plus the cleartext edit token,
// which is never available again.
type Created struct {
	*Application
	EditToken string `json:"editToken"`
}
