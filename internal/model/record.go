package model

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingState tracks where an image record is in the pipeline.
type ProcessingState string

const (
	StateIdle               ProcessingState = "idle"
	StateExtractingMetadata ProcessingState = "extracting_metadata"
	StateAnalyzing          ProcessingState = "analyzing"
	StateComplete           ProcessingState = "complete"
	StateDegraded           ProcessingState = "degraded"
)

// Terminal reports whether the state allows no further transitions.
func (s ProcessingState) Terminal() bool {
	return s == StateComplete || s == StateDegraded
}

// ImageRecord is the unit of work: one user-supplied image together with
// everything the pipeline has derived from it so far. Metadata and Analysis
// are each set at most once and never overwritten; ErrorDetail is set only
// when the record degrades.
type ImageRecord struct {
	ID          uuid.UUID       `json:"id"`
	Asset       Asset           `json:"asset"`
	PreviewPath string          `json:"preview_path,omitempty"`
	Metadata    *MetadataRecord `json:"metadata,omitempty"`
	Analysis    *AnalysisRecord `json:"analysis,omitempty"`
	State       ProcessingState `json:"state"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}
