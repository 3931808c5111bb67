package domain

import (
	"github.com/google/uuid"

	dErrors "nietos/pkg/domain-errors"
)

// ApplicationID identifies a submitted application record.
// It is a distinct type so record ids cannot be confused with request ids or tokens.
type ApplicationID uuid.UUID

// NewApplicationID returns a fresh random identifier.
func NewApplicationID() ApplicationID {
	return ApplicationID(uuid.New())
}

// ParseApplicationID validates the external representation of an id.
// Empty, malformed and nil UUIDs are rejected with CodeInvalidID.
func ParseApplicationID(s string) (ApplicationID, error) {
	if s == "" {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidID, "application id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidID, "invalid application id")
	}
	if parsed == uuid.Nil {
		return ApplicationID{}, dErrors.New(dErrors.CodeInvalidID, "invalid application id")
	}
	return ApplicationID(parsed), nil
}

func (id ApplicationID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the id is the zero UUID.
func (id ApplicationID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id ApplicationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ApplicationID) UnmarshalText(b []byte) error {
	parsed, err := ParseApplicationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
