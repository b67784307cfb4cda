package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// DefaultTierLevel is granted to newly activated principals.
const DefaultTierLevel = 1

// Provisioner creates the profile of a newly activated principal.
type Provisioner struct {
	profiles     model.ProfileStore
	tiers        model.TierStore
	defaultLevel int
	logger       *logger.Logger
}

var _ model.ActivationHandler = (*Provisioner)(nil)

func NewProvisioner(profiles model.ProfileStore, tiers model.TierStore, defaultLevel int, logger *logger.Logger) *Provisioner {
	if defaultLevel <= 0 {
		defaultLevel = DefaultTierLevel
	}
	return &Provisioner{profiles: profiles, tiers: tiers, defaultLevel: defaultLevel, logger: logger}
}

// HandlePrincipalActivated creates the profile unless it exists. Running it
// twice for the same principal is a no-op.
func (p *Provisioner) HandlePrincipalActivated(ctx context.Context, event model.PrincipalActivated) error {
	profile := model.Profile{PrincipalID: event.PrincipalID}

	tier, err := p.tiers.GetByLevel(ctx, p.defaultLevel)
	switch {
	case err == nil:
		profile.TierID = &tier.ID
	case errors.Is(err, model.ErrNotFound):
		p.logger.Warn("Provisioner: default tier missing, profile has no access",
			"level", p.defaultLevel)
	default:
		return fmt.Errorf("failed to get default tier: %w", err)
	}

	created, err := p.profiles.CreateIfAbsent(ctx, profile)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	if created {
		p.logger.Info("Provisioner: profile created",
			"principal_id", event.PrincipalID.String(),
			"level", p.defaultLevel)
	}
	return nil
}
