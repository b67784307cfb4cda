package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PrincipalActivated is emitted once a principal completes verification.
type PrincipalActivated struct {
	PrincipalID uuid.UUID
	ActivatedAt time.Time
}

// ActivationHandler reacts to principal activation.
type ActivationHandler interface {
	HandlePrincipalActivated(ctx context.Context, event PrincipalActivated) error
}

// ActivationPublisher delivers activation events to their handlers.
type ActivationPublisher interface {
	PublishActivated(ctx context.Context, event PrincipalActivated) error
}
