package model

import (
	"time"

	"github.com/google/uuid"
)

// Event names published to the record lifecycle topic.
const (
	EventRecordComplete = "record.complete"
	EventRecordDegraded = "record.degraded"
)

// RecordEvent is published when a record reaches a terminal state. It
// carries analysis outcomes only, never image bytes.
type RecordEvent struct {
	Event       string          `json:"event"`
	RecordID    uuid.UUID       `json:"record_id"`
	Filename    string          `json:"filename"`
	Source      Source          `json:"source"`
	State       ProcessingState `json:"state"`
	SceneType   string          `json:"scene_type,omitempty"`
	PeopleCount int             `json:"people_count"`
	IsSafe      bool            `json:"is_safe"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// HistoryEntry is one row of the processing history kept for records that
// reached a terminal state.
type HistoryEntry struct {
	ID          uuid.UUID       `json:"id"`
	RecordID    uuid.UUID       `json:"record_id"`
	Filename    string          `json:"filename"`
	Source      Source          `json:"source"`
	State       ProcessingState `json:"state"`
	SceneType   string          `json:"scene_type,omitempty"`
	PeopleCount int             `json:"people_count"`
	IsSafe      bool            `json:"is_safe"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	FinishedAt  time.Time       `json:"finished_at"`
	CreatedAt   time.Time       `json:"created_at"`
}
