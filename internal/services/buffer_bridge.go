package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/taskhub/domain"
	"github.com/fastygo/taskhub/internal/infrastructure/buffer"
	"github.com/fastygo/taskhub/usecase"
)

// BufferBridge adapts BufferProcessor to the use-case port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferTask(_ context.Context, operation string, task *domain.Task) error {
	if b.processor == nil || task == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return b.processor.Enqueue(buffer.Item{
		ID:        task.ID,
		OwnerID:   task.OwnerID,
		Entity:    buffer.EntityTask,
		Operation: operation,
		Data:      payload,
		Priority:  4,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
