package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dtroode/observer-server/internal/logger"
	"github.com/dtroode/observer-server/internal/model"
)

// DefaultCleanupAge is how long expired session state is retained.
const DefaultCleanupAge = 7 * 24 * time.Hour

// CleanupReport counts rows removed, or that would be removed on a dry run.
type CleanupReport struct {
	RefreshFamilies    int64
	VerificationTokens int64
	DryRun             bool
}

// Cleanup purges refresh families and verification tokens that expired
// long enough ago.
type Cleanup struct {
	families      model.RefreshFamilyStore
	registrations model.RegistrationStore
	logger        *logger.Logger
	now           func() time.Time
}

func NewCleanup(families model.RefreshFamilyStore, registrations model.RegistrationStore, logger *logger.Logger) *Cleanup {
	return &Cleanup{families: families, registrations: registrations, logger: logger, now: time.Now}
}

// Run removes state that expired more than age ago.
func (c *Cleanup) Run(ctx context.Context, age time.Duration, dryRun bool) (CleanupReport, error) {
	if age < 0 {
		return CleanupReport{}, fmt.Errorf("cleanup age must not be negative")
	}
	before := c.now().Add(-age)
	report := CleanupReport{DryRun: dryRun}

	var err error
	if dryRun {
		report.RefreshFamilies, err = c.families.CountExpired(ctx, before)
	} else {
		report.RefreshFamilies, err = c.families.DeleteExpired(ctx, before)
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("failed to clean refresh families: %w", err)
	}

	if dryRun {
		report.VerificationTokens, err = c.registrations.CountExpired(ctx, before)
	} else {
		report.VerificationTokens, err = c.registrations.DeleteExpired(ctx, before)
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("failed to clean verification tokens: %w", err)
	}

	c.logger.Info("Cleanup service: expired session state processed",
		"refresh_families", report.RefreshFamilies,
		"verification_tokens", report.VerificationTokens,
		"dry_run", dryRun,
		"before", before.Format(time.RFC3339))

	return report, nil
}
