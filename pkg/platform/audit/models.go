package audit

import (
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers changes to submitted records.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected capability checks and throttling.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

type AuditEvent string

const (
	EventApplicationCreated AuditEvent = "application_created"
	EventApplicationUpdated AuditEvent = "application_updated"
	EventApplicationDeleted AuditEvent = "application_deleted"
	EventEditTokenRejected  AuditEvent = "edit_token_rejected"
	EventRateLimitExceeded  AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventApplicationCreated: CategoryCompliance,
	EventApplicationUpdated: CategoryCompliance,
	EventApplicationDeleted: CategoryCompliance,
	EventEditTokenRejected:  CategorySecurity,
	EventRateLimitExceeded:  CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out. It never carries names, tokens
// or full client addresses.
type Event struct {
	Category  EventCategory `json:"category"`
	Action    AuditEvent    `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	// Subject is the application id the action targeted.
	Subject   string `json:"subject,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// ClientNetwork is the client IP truncated to its network prefix.
	ClientNetwork string `json:"client_network,omitempty"`
	// Client is the coarse browser and OS derived from the User-Agent.
	Client string `json:"client,omitempty"`
	// Fields lists the record fields an update touched.
	Fields []string `json:"fields,omitempty"`
	Reason string   `json:"reason,omitempty"`
}
