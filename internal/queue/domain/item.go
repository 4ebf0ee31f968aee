package domain

import "time"

// Priority represents the urgency tier assigned by classification
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank maps a priority to its sort weight (higher = more urgent)
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the four known levels
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Bump returns the priority one tier up; critical stays critical
func (p Priority) Bump() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityCritical
	}
}

// Status represents the current lifecycle state of a queue item
type Status string

const (
	StatusActive    Status = "active"
	StatusSnoozed   Status = "snoozed"
	StatusWaiting   Status = "waiting"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
	StatusEscalated Status = "escalated"
)

// Terminal reports whether items in this status may be hard-deleted
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusArchived
}

// transitions is the lifecycle state machine. Anything not listed here is
// an invalid transition.
var transitions = map[Status][]Status{
	StatusActive:    {StatusSnoozed, StatusWaiting, StatusCompleted, StatusEscalated},
	StatusSnoozed:   {StatusActive, StatusCompleted},
	StatusWaiting:   {StatusActive, StatusCompleted, StatusEscalated},
	StatusEscalated: {StatusCompleted},
	StatusCompleted: {StatusArchived},
	StatusArchived:  {},
}

// CanTransition reports whether the state machine permits from -> to
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DeadlineStatus tracks how an item stands against its response deadline
type DeadlineStatus string

const (
	DeadlineOnTime  DeadlineStatus = "on_time"
	DeadlineAtRisk  DeadlineStatus = "at_risk"
	DeadlineOverdue DeadlineStatus = "overdue"
)

// Reason records why an item was admitted into the queue
type Reason string

const (
	ReasonNeedsReply          Reason = "needs_reply"
	ReasonWaitingOnOthers     Reason = "waiting_on_others"
	ReasonDeadlineApproaching Reason = "deadline_approaching"
	ReasonVIPAttention        Reason = "vip_attention"
	ReasonManual              Reason = "manual"
	ReasonSLAAtRisk           Reason = "sla_at_risk"
	ReasonPeriodicCheck       Reason = "periodic_check"
)

// Valid reports whether r is a known admission reason
func (r Reason) Valid() bool {
	switch r {
	case ReasonNeedsReply, ReasonWaitingOnOthers, ReasonDeadlineApproaching,
		ReasonVIPAttention, ReasonManual, ReasonSLAAtRisk, ReasonPeriodicCheck:
		return true
	}
	return false
}

// HasSLA reports whether this admission reason implies a response deadline
func (r Reason) HasSLA() bool {
	switch r {
	case ReasonNeedsReply, ReasonDeadlineApproaching, ReasonVIPAttention, ReasonSLAAtRisk:
		return true
	}
	return false
}

// QueueItem represents one email-derived unit of work in the follow-up queue
type QueueItem struct {
	ID       string `json:"id" gorm:"primaryKey"`
	EmailID  string `json:"email_id" gorm:"index;not null"`
	ThreadID string `json:"thread_id,omitempty" gorm:"index"`

	// Metadata snapshot taken at admission; later mailbox changes do not
	// flow back into this record.
	Subject    string    `json:"subject"`
	Sender     string    `json:"sender" gorm:"index"`
	Recipient  string    `json:"recipient,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
	Labels     []string  `json:"labels,omitempty" gorm:"serializer:json"`

	Priority Priority `json:"priority" gorm:"index;default:medium"`
	Category string   `json:"category,omitempty" gorm:"index"`
	Reason   Reason   `json:"reason" gorm:"index"`

	Status       Status     `json:"status" gorm:"index;default:active"`
	AddedAt      time.Time  `json:"added_at"`
	LastActionAt *time.Time `json:"last_action_at,omitempty"`
	SnoozeUntil  *time.Time `json:"snooze_until,omitempty" gorm:"index"`
	SnoozeReason string     `json:"snooze_reason,omitempty"`
	ActionCount  int        `json:"action_count"`
	SnoozeCount  int        `json:"snooze_count"`

	WaitingOn     string `json:"waiting_on,omitempty"`
	WaitingReason string `json:"waiting_reason,omitempty"`

	Deadline       *time.Time     `json:"deadline,omitempty" gorm:"index"`
	SLAHours       *float64       `json:"sla_hours,omitempty"`
	DeadlineStatus DeadlineStatus `json:"deadline_status" gorm:"index;default:on_time"`
	HoursRemaining *float64       `json:"hours_remaining,omitempty"`

	SuggestedAt          *time.Time `json:"suggested_at,omitempty"`
	SuggestionReason     string     `json:"suggestion_reason,omitempty"`
	SuggestionConfidence *float64   `json:"suggestion_confidence,omitempty"`
	SuggestionSource     string     `json:"suggestion_source,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides GORM's pluralized default
func (QueueItem) TableName() string {
	return "queue_items"
}
