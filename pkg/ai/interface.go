package ai

import (
	"context"
	"time"
)

// SuggestionRequest carries the item context and caller preferences handed
// to the advisory backend.
type SuggestionRequest struct {
	Subject  string    `json:"subject"`
	Sender   string    `json:"sender"`
	Priority string    `json:"priority"`
	Category string    `json:"category,omitempty"`
	Snippet  string    `json:"snippet,omitempty"`
	Now      time.Time `json:"now"`

	// Working-hours preferences the backend should respect
	WorkingHoursOnly bool   `json:"working_hours_only"`
	WorkStartHour    int    `json:"work_start_hour"`
	WorkEndHour      int    `json:"work_end_hour"`
	Timezone         string `json:"timezone,omitempty"`
}

// SuggestionResult is the advisory backend's answer: a resurfacing time,
// the rationale, up to three alternatives and a confidence score in [0,1].
type SuggestionResult struct {
	Time         time.Time   `json:"time"`
	Reasoning    string      `json:"reasoning"`
	Alternatives []time.Time `json:"alternatives,omitempty"`
	Confidence   float64     `json:"confidence"`
}

// SuggestionService is the interface for snooze-time advisory providers.
// Implement this interface to add new backends (OpenAI, local models, etc.)
type SuggestionService interface {
	SuggestSnoozeTime(ctx context.Context, req SuggestionRequest) (*SuggestionResult, error)
}
