// Package memory provides in-process implementations of the identity store
// interfaces. It backs tests and single-node development runs.
package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/observer-server/internal/model"
)

type Store struct {
	mu sync.RWMutex

	principals    map[uuid.UUID]model.Principal
	byIdentifier  map[string]uuid.UUID
	byEmail       map[string]uuid.UUID
	profiles      map[uuid.UUID]model.Profile
	nextProfileID int64
	tiers         map[int64]model.Tier
	families      map[uuid.UUID]model.RefreshFamily
	tokens        map[string]model.VerificationToken
}

func NewStore() *Store {
	return &Store{
		principals:   make(map[uuid.UUID]model.Principal),
		byIdentifier: make(map[string]uuid.UUID),
		byEmail:      make(map[string]uuid.UUID),
		profiles:     make(map[uuid.UUID]model.Profile),
		tiers:        make(map[int64]model.Tier),
		families:     make(map[uuid.UUID]model.RefreshFamily),
		tokens:       make(map[string]model.VerificationToken),
	}
}

func (s *Store) Principals() *PrincipalRepository { return &PrincipalRepository{s: s} }

func (s *Store) Tiers() *TierRepository { return &TierRepository{s: s} }

func (s *Store) Profiles() *ProfileRepository { return &ProfileRepository{s: s} }

func (s *Store) RefreshFamilies() *RefreshFamilyRepository { return &RefreshFamilyRepository{s: s} }

func (s *Store) Registrations() *RegistrationRepository { return &RegistrationRepository{s: s} }

func (s *Store) PasswordResets() *PasswordResetRepository { return &PasswordResetRepository{s: s} }

// PutTier adds or replaces a tier.
func (s *Store) PutTier(tier model.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[tier.ID] = tier
}

// DeleteTier removes a tier, leaving dangling profile references behind.
func (s *Store) DeleteTier(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tiers, id)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func (s *Store) insertPrincipal(p model.Principal) (model.Principal, error) {
	if _, taken := s.byIdentifier[normalize(p.Identifier)]; taken {
		return model.Principal{}, model.ErrAlreadyRegistered
	}
	if p.Email != "" {
		if _, taken := s.byEmail[normalize(p.Email)]; taken {
			return model.Principal{}, model.ErrAlreadyRegistered
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.principals[p.ID] = p
	s.byIdentifier[normalize(p.Identifier)] = p.ID
	if p.Email != "" {
		s.byEmail[normalize(p.Email)] = p.ID
	}
	return p, nil
}

type PrincipalRepository struct{ s *Store }

var _ model.PrincipalStore = (*PrincipalRepository)(nil)

func (r *PrincipalRepository) GetByIdentifier(_ context.Context, identifier string) (model.Principal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.byIdentifier[normalize(identifier)]
	if !ok {
		return model.Principal{}, model.ErrNotFound
	}
	return r.s.principals[id], nil
}

func (r *PrincipalRepository) GetByID(_ context.Context, id uuid.UUID) (model.Principal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.principals[id]
	if !ok {
		return model.Principal{}, model.ErrNotFound
	}
	return p, nil
}

func (r *PrincipalRepository) Create(_ context.Context, principal model.Principal) (model.Principal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertPrincipal(principal)
}

func (r *PrincipalRepository) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.principals[id]
	if !ok {
		return model.ErrNotFound
	}
	p.LastLoginAt = &at
	r.s.principals[id] = p
	return nil
}

func (r *PrincipalRepository) UpdateCredential(_ context.Context, id uuid.UUID, credentialHash []byte, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.principals[id]
	if !ok || !p.IsActive {
		return model.ErrNotFound
	}
	p.CredentialHash = bytes.Clone(credentialHash)
	p.UpdatedAt = at
	r.s.principals[id] = p
	return nil
}

type TierRepository struct{ s *Store }

var _ model.TierStore = (*TierRepository)(nil)

func (r *TierRepository) GetByID(_ context.Context, id int64) (model.Tier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tiers[id]
	if !ok {
		return model.Tier{}, model.ErrNotFound
	}
	return t, nil
}

func (r *TierRepository) GetByLevel(_ context.Context, level int) (model.Tier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tiers {
		if t.Level == level {
			return t, nil
		}
	}
	return model.Tier{}, model.ErrNotFound
}

func (r *TierRepository) List(_ context.Context) ([]model.Tier, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Tier, 0, len(r.s.tiers))
	for _, t := range r.s.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

type ProfileRepository struct{ s *Store }

var _ model.ProfileStore = (*ProfileRepository)(nil)

func (r *ProfileRepository) GetByPrincipalID(_ context.Context, principalID uuid.UUID) (model.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[principalID]
	if !ok {
		return model.Profile{}, model.ErrNotFound
	}
	return p, nil
}

func (r *ProfileRepository) CreateIfAbsent(_ context.Context, profile model.Profile) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.profiles[profile.PrincipalID]; exists {
		return false, nil
	}
	r.s.nextProfileID++
	profile.ID = r.s.nextProfileID
	now := time.Now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	r.s.profiles[profile.PrincipalID] = profile
	return true, nil
}

type RefreshFamilyRepository struct{ s *Store }

var _ model.RefreshFamilyStore = (*RefreshFamilyRepository)(nil)

func (r *RefreshFamilyRepository) Create(_ context.Context, family model.RefreshFamily) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.families[family.ID]; exists {
		return model.ErrTokenMismatch
	}
	family.CurrentHash = bytes.Clone(family.CurrentHash)
	r.s.families[family.ID] = family
	return nil
}

func (r *RefreshFamilyRepository) GetByID(_ context.Context, id uuid.UUID) (model.RefreshFamily, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.families[id]
	if !ok {
		return model.RefreshFamily{}, model.ErrNotFound
	}
	f.CurrentHash = bytes.Clone(f.CurrentHash)
	return f, nil
}

func (r *RefreshFamilyRepository) Rotate(_ context.Context, rotation model.Rotation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.families[rotation.FamilyID]
	if !ok {
		return model.ErrNotFound
	}
	if f.RevokedAt != nil {
		return model.ErrTokenRevoked
	}
	if f.CurrentJTI != rotation.PresentedJTI {
		return model.ErrRotationConflict
	}
	now := time.Now()
	f.CurrentJTI = rotation.NextJTI
	f.CurrentHash = bytes.Clone(rotation.NextHash)
	f.ExpiresAt = rotation.ExpiresAt
	f.RotatedAt = &now
	f.UpdatedAt = now
	r.s.families[f.ID] = f
	return nil
}

func (r *RefreshFamilyRepository) Revoke(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.families[id]
	if !ok {
		return model.ErrNotFound
	}
	if f.RevokedAt == nil {
		now := time.Now()
		f.RevokedAt = &now
		f.UpdatedAt = now
		r.s.families[id] = f
	}
	return nil
}

func (r *RefreshFamilyRepository) RevokeAllByPrincipal(_ context.Context, principalID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for id, f := range r.s.families {
		if f.PrincipalID == principalID && f.RevokedAt == nil {
			f.RevokedAt = &now
			f.UpdatedAt = now
			r.s.families[id] = f
		}
	}
	return nil
}

func (r *RefreshFamilyRepository) CountExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, f := range r.s.families {
		if f.ExpiresAt.Before(before) {
			n++
		}
	}
	return n, nil
}

func (r *RefreshFamilyRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, f := range r.s.families {
		if f.ExpiresAt.Before(before) {
			delete(r.s.families, id)
			n++
		}
	}
	return n, nil
}

type RegistrationRepository struct{ s *Store }

var _ model.RegistrationStore = (*RegistrationRepository)(nil)

func (r *RegistrationRepository) CreatePending(_ context.Context, principal model.Principal, token model.VerificationToken) (model.Principal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	principal.IsActive = false
	created, err := r.s.insertPrincipal(principal)
	if err != nil {
		return model.Principal{}, err
	}
	token.PrincipalID = created.ID
	token.Purpose = model.PurposeActivation
	token.TokenHash = bytes.Clone(token.TokenHash)
	r.s.tokens[string(token.TokenHash)] = token
	return created, nil
}

func (r *RegistrationRepository) Complete(_ context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (model.Principal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.s.consumeToken(tokenHash, model.PurposeActivation, now)
	if err != nil {
		return model.Principal{}, err
	}
	p.IsActive = true
	p.CredentialHash = bytes.Clone(credentialHash)
	p.UpdatedAt = now
	r.s.principals[p.ID] = p
	return p, nil
}

func (r *RegistrationRepository) CountExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, t := range r.s.tokens {
		if t.ExpiresAt.Before(before) {
			n++
		}
	}
	return n, nil
}

func (r *RegistrationRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for key, t := range r.s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.s.tokens, key)
			n++
		}
	}
	return n, nil
}

// consumeToken marks a token of the given purpose consumed and returns its
// principal. The caller holds the write lock.
func (s *Store) consumeToken(tokenHash []byte, purpose model.TokenPurpose, now time.Time) (model.Principal, error) {
	token, ok := s.tokens[string(tokenHash)]
	if !ok || token.Purpose != purpose {
		return model.Principal{}, model.ErrVerificationInvalid
	}
	if token.ConsumedAt != nil {
		return model.Principal{}, model.ErrVerificationConsumed
	}
	if !now.Before(token.ExpiresAt) {
		return model.Principal{}, model.ErrVerificationExpired
	}
	p, ok := s.principals[token.PrincipalID]
	if !ok {
		return model.Principal{}, model.ErrVerificationInvalid
	}
	token.ConsumedAt = &now
	s.tokens[string(tokenHash)] = token
	return p, nil
}

type PasswordResetRepository struct{ s *Store }

var _ model.PasswordResetStore = (*PasswordResetRepository)(nil)

func (r *PasswordResetRepository) CreateReset(_ context.Context, email string, token model.VerificationToken) (model.Principal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byEmail[normalize(email)]
	if !ok {
		return model.Principal{}, model.ErrNotFound
	}
	p := r.s.principals[id]
	if !p.IsActive || p.DeactivatedAt != nil {
		return model.Principal{}, model.ErrNotFound
	}
	token.PrincipalID = p.ID
	token.Purpose = model.PurposePasswordReset
	token.TokenHash = bytes.Clone(token.TokenHash)
	r.s.tokens[string(token.TokenHash)] = token
	return p, nil
}

func (r *PasswordResetRepository) CompleteReset(_ context.Context, tokenHash []byte, credentialHash []byte, now time.Time) (model.Principal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.s.consumeToken(tokenHash, model.PurposePasswordReset, now)
	if err != nil {
		return model.Principal{}, err
	}
	if !p.IsActive || p.DeactivatedAt != nil {
		return model.Principal{}, model.ErrVerificationInvalid
	}
	p.CredentialHash = bytes.Clone(credentialHash)
	p.UpdatedAt = now
	r.s.principals[p.ID] = p
	return p, nil
}
