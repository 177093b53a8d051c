package record

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-insight/internal/model"
)

// historyService defines the interface for recording terminal outcomes.
type historyService interface {
	RecordTerminal(ctx context.Context, ev model.RecordEvent) (uuid.UUID, error)
}

// TerminalHandler handles Kafka messages for records that reached a
// terminal state. It relies on a service that persists the history.
type TerminalHandler struct {
	service historyService
}

// NewTerminalHandler creates a new handler with the given service.
func NewTerminalHandler(s historyService) *TerminalHandler {
	return &TerminalHandler{service: s}
}

// Handle processes a Kafka message containing a terminal record event.
// It unmarshals the message, persists the outcome via the service,
// and logs the result.
func (h *TerminalHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev model.RecordEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("unmarshal record event: %w", err)
	}

	id, err := h.service.RecordTerminal(ctx, ev)
	if err != nil {
		return fmt.Errorf("record terminal event: %w", err)
	}

	zlog.Logger.Printf("history entry saved: %s", id)

	return nil
}
