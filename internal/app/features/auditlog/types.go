// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/sitecrew/internal/app/store/audit"
	"github.com/dalemusser/sitecrew/internal/app/system/paging"
)

// listItem represents a single audit event row.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Date          string            `json:"date,omitempty"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	SiteID        string            `json:"site_id,omitempty"`
	WorkerID      string            `json:"worker_id,omitempty"`
	WorkerName    string            `json:"worker_name,omitempty"` // resolved from WorkerID
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// listData is the response of the audit log list.
type listData struct {
	Items []listItem `json:"items"`

	// Filters
	Date      string `json:"date,omitempty"`
	Category  string `json:"category,omitempty"`
	EventType string `json:"event_type,omitempty"`

	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
	paging.Range
}

// categoryOption represents a category for filtering.
type categoryOption struct {
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	EventTypes []string `json:"event_types"`
}

// allCategories returns the available categories for filtering.
func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAssignment, Label: "Assignment", EventTypes: eventTypesForCategory(audit.CategoryAssignment)},
		{Value: audit.CategoryDispatch, Label: "Dispatch", EventTypes: eventTypesForCategory(audit.CategoryDispatch)},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	assignmentEvents := []string{
		audit.EventSlotAssigned,
		audit.EventSlotCleared,
		audit.EventDayReloaded,
		audit.EventRosterImport,
	}

	dispatchEvents := []string{
		audit.EventDispatchBatch,
		audit.EventDispatchSingle,
	}

	switch category {
	case audit.CategoryAssignment:
		return assignmentEvents
	case audit.CategoryDispatch:
		return dispatchEvents
	case "":
		all := make([]string, 0, len(assignmentEvents)+len(dispatchEvents))
		all = append(all, assignmentEvents...)
		all = append(all, dispatchEvents...)
		return all
	default:
		return nil
	}
}

func validEventType(category, eventType string) bool {
	for _, et := range eventTypesForCategory(category) {
		if et == eventType {
			return true
		}
	}
	return false
}
