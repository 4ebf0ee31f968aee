package domain

import "time"

// Actions recorded in the queue history audit trail
const (
	ActionAdded              = "added"
	ActionUpdated            = "updated"
	ActionSnoozed            = "snoozed"
	ActionUnsnoozed          = "unsnoozed"
	ActionResurfaced         = "resurfaced"
	ActionMarkedWaiting      = "marked_waiting"
	ActionReplyReceived      = "reply_received"
	ActionCompleted          = "completed"
	ActionEscalated          = "escalated"
	ActionArchived           = "archived"
	ActionRemoved            = "removed"
	ActionSuggested          = "suggested"
	ActionSuggestionAccepted = "suggestion_accepted"
)

// QueueHistory is an append-only audit record created on every mutating
// operation against a queue item. Entries are never updated; the retention
// sweep is the only thing that removes them.
type QueueHistory struct {
	ID           string            `json:"id" gorm:"primaryKey"`
	ItemID       string            `json:"item_id" gorm:"index;not null"`
	Action       string            `json:"action" gorm:"not null"`
	FromStatus   Status            `json:"from_status,omitempty"`
	ToStatus     Status            `json:"to_status,omitempty"`
	FromPriority *Priority         `json:"from_priority,omitempty"`
	ToPriority   *Priority         `json:"to_priority,omitempty"`
	Actor        string            `json:"actor,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" gorm:"serializer:json"`
	CreatedAt    time.Time         `json:"created_at" gorm:"index"`
}

// TableName overrides GORM's pluralized default
func (QueueHistory) TableName() string {
	return "queue_history"
}
