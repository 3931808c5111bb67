package handler

import (
	"nietos/internal/applications/models"
)

// CreateApplicationRequest is the POST /applications body.
type CreateApplicationRequest struct {
	FirstName                        string `json:"firstName"`
	LastName                         string `json:"lastName"`
	ProcedureDate                    string `json:"procedureDate"`
	ConfirmationEmailReceived        bool   `json:"confirmationEmailReceived"`
	AdditionalDocumentationRequested bool   `json:"additionalDocumentationRequested"`
	ResolutionReceived               bool   `json:"resolutionReceived"`
}

func (r *CreateApplicationRequest) Input() models.CreateInput {
	return models.CreateInput{
		FirstName:                        r.FirstName,
		LastName:                         r.LastName,
		ProcedureDate:                    r.ProcedureDate,
		ConfirmationEmailReceived:        r.ConfirmationEmailReceived,
		AdditionalDocumentationRequested: r.AdditionalDocumentationRequested,
		ResolutionReceived:               r.ResolutionReceived,
	}
}

// UpdateApplicationRequest is the PUT /applications/{id} body. Absent fields
// are left unchanged; EditToken authorizes the change and is never applied.
type UpdateApplicationRequest struct {
	EditToken                        string  `json:"editToken"`
	FirstName                        *string `json:"firstName"`
	LastName                         *string `json:"lastName"`
	ProcedureDate                    *string `json:"procedureDate"`
	ConfirmationEmailReceived        *bool   `json:"confirmationEmailReceived"`
	AdditionalDocumentationRequested *bool   `json:"additionalDocumentationRequested"`
	ResolutionReceived               *bool   `json:"resolutionReceived"`
}

func (r *UpdateApplicationRequest) Patch() models.Patch {
	return models.Patch{
		FirstName:                        r.FirstName,
		LastName:                         r.LastName,
		ProcedureDate:                    r.ProcedureDate,
		ConfirmationEmailReceived:        r.ConfirmationEmailReceived,
		AdditionalDocumentationRequested: r.AdditionalDocumentationRequested,
		ResolutionReceived:               r.ResolutionReceived,
	}
}

// DeleteApplicationRequest is the optional DELETE /applications/{id} body.
type DeleteApplicationRequest struct {
	EditToken string `json:"editToken"`
}
