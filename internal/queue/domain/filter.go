package domain

import (
	"sort"
	"strings"
)

// ItemFilter selects queue items for Query. All predicates combine by AND;
// an empty set matches everything.
type ItemFilter struct {
	Statuses         []Status         `json:"statuses,omitempty"`
	Priorities       []Priority       `json:"priorities,omitempty"`
	Categories       []string         `json:"categories,omitempty"`
	DeadlineStatuses []DeadlineStatus `json:"deadline_statuses,omitempty"`
	Search           string           `json:"search,omitempty"`
	Limit            int              `json:"limit,omitempty"`
	Offset           int              `json:"offset,omitempty"`
}

// Matches reports whether item passes every predicate of the filter.
// Pagination fields are ignored here.
func (f ItemFilter) Matches(item *QueueItem) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, item.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !containsPriority(f.Priorities, item.Priority) {
		return false
	}
	if len(f.Categories) > 0 && !containsString(f.Categories, item.Category) {
		return false
	}
	if len(f.DeadlineStatuses) > 0 {
		if item.Deadline == nil || !containsDeadlineStatus(f.DeadlineStatuses, item.DeadlineStatus) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(item.Subject), needle) &&
			!strings.Contains(strings.ToLower(item.Sender), needle) {
			return false
		}
	}
	return true
}

// Less is the canonical queue ordering: priority rank descending, then
// deadline ascending with missing deadlines last, then received date
// descending as the final tie-break.
func Less(a, b *QueueItem) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	switch {
	case a.Deadline != nil && b.Deadline == nil:
		return true
	case a.Deadline == nil && b.Deadline != nil:
		return false
	case a.Deadline != nil && b.Deadline != nil && !a.Deadline.Equal(*b.Deadline):
		return a.Deadline.Before(*b.Deadline)
	}
	return a.ReceivedAt.After(b.ReceivedAt)
}

// SortItems orders items in place by the canonical queue ordering
func SortItems(items []*QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(set []Priority, p Priority) bool {
	for _, v := range set {
		if v == p {
			return true
		}
	}
	return false
}

func containsDeadlineStatus(set []DeadlineStatus, d DeadlineStatus) bool {
	for _, v := range set {
		if v == d {
			return true
		}
	}
	return false
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
