package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aliskhannn/image-insight/internal/model"
)

// List bounds applied when callers pass no limit or an unreasonable one.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// repository defines the persistence interface for history entries.
type repository interface {
	Insert(ctx context.Context, ev model.RecordEvent) (uuid.UUID, error)
	ListRecent(ctx context.Context, limit int) ([]model.HistoryEntry, error)
}

// Service provides business logic for the processing history. It accepts
// only terminal record events and serves bounded recent listings.
type Service struct {
	repo repository
}

// NewService creates a new Service with the given repository.
func NewService(repo repository) *Service {
	return &Service{repo: repo}
}

// RecordTerminal validates a record event and persists it as a history
// entry. Events for non-terminal states or without a record ID are
// rejected.
func (s *Service) RecordTerminal(ctx context.Context, ev model.RecordEvent) (uuid.UUID, error) {
	if ev.RecordID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("record terminal: missing record id")
	}
	if !ev.State.Terminal() {
		return uuid.Nil, fmt.Errorf("record terminal: state %q is not terminal", ev.State)
	}

	id, err := s.repo.Insert(ctx, ev)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record terminal: %w", err)
	}

	return id, nil
}

// List returns up to limit recent history entries, newest first. A
// non-positive limit falls back to the default; oversized limits are
// clamped.
func (s *Service) List(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	entries, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return entries, nil
}
