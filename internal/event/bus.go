// Package event delivers domain events to in-process handlers.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// Bus is a synchronous event dispatcher. Handlers run in subscription order
// on the publisher's goroutine.
type Bus struct {
	mu        sync.RWMutex
	activated []model.ActivationHandler
	logger    *logger.Logger
}

var _ model.ActivationPublisher = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(logger *logger.Logger) *Bus {
	return &Bus{logger: logger}
}

// SubscribeActivated registers h for PrincipalActivated events.
func (b *Bus) SubscribeActivated(h model.ActivationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activated = append(b.activated, h)
}

// PublishActivated runs every activation handler. All handlers run even if
// one fails; their errors are joined.
func (b *Bus) PublishActivated(ctx context.Context, event model.PrincipalActivated) error {
	b.mu.RLock()
	handlers := make([]model.ActivationHandler, len(b.activated))
	copy(handlers, b.activated)
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.HandlePrincipalActivated(ctx, event); err != nil {
			b.logger.Error("Event bus: activation handler failed",
				"principal_id", event.PrincipalID.String(), "error", err.Error())
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to handle principal activation: %w", errors.Join(errs...))
	}
	return nil
}
