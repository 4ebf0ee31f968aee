package domain

import "time"

// QueueStatistics is a derived aggregate over the current queue contents.
// It is recomputed on demand (or by the sweep) and cached; readers may see
// a snapshot up to the cache TTL old.
type QueueStatistics struct {
	TotalItems       int                    `json:"total_items"`
	ByStatus         map[Status]int         `json:"by_status"`
	ByPriority       map[Priority]int       `json:"by_priority"`
	ByDeadlineStatus map[DeadlineStatus]int `json:"by_deadline_status"`

	// AvgHoursInQueue covers items still open (not completed/archived);
	// AvgHoursToComplete covers items that reached completed.
	AvgHoursInQueue    float64 `json:"avg_hours_in_queue"`
	AvgHoursToComplete float64 `json:"avg_hours_to_complete"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ComputeStatistics derives the aggregate from a full item scan. Kept in the
// domain so every repository backend produces identical numbers.
func ComputeStatistics(items []*QueueItem, now time.Time) *QueueStatistics {
	stats := &QueueStatistics{
		ByStatus:         make(map[Status]int),
		ByPriority:       make(map[Priority]int),
		ByDeadlineStatus: make(map[DeadlineStatus]int),
		GeneratedAt:      now,
	}

	var openHours, doneHours float64
	var openCount, doneCount int

	for _, item := range items {
		stats.TotalItems++
		stats.ByStatus[item.Status]++
		stats.ByPriority[item.Priority]++
		if item.Deadline != nil {
			stats.ByDeadlineStatus[item.DeadlineStatus]++
		}

		switch item.Status {
		case StatusCompleted, StatusArchived:
			if item.LastActionAt != nil {
				doneHours += item.LastActionAt.Sub(item.AddedAt).Hours()
				doneCount++
			}
		default:
			openHours += now.Sub(item.AddedAt).Hours()
			openCount++
		}
	}

	if openCount > 0 {
		stats.AvgHoursInQueue = openHours / float64(openCount)
	}
	if doneCount > 0 {
		stats.AvgHoursToComplete = doneHours / float64(doneCount)
	}
	return stats
}
