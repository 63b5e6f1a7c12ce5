// Package memory implements the store ports in process memory. It backs
// tests and the "memory" database driver and mirrors the Postgres
// constraints: one update per (tenant, source URL) and one alert per update.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

type updateKey struct {
	tenantID  string
	sourceURL string
}

// Store keeps every collection behind a single mutex.
type Store struct {
	mu sync.RWMutex

	processed map[string]time.Time
	profiles  map[string]domain.TenantProfile
	updates   map[uuid.UUID]domain.RegulatoryUpdate
	byURL     map[updateKey]uuid.UUID
	alerts    map[uuid.UUID]domain.ComplianceAlert
	byUpdate  map[uuid.UUID]uuid.UUID

	now func() time.Time
}

var _ ports.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		processed: make(map[string]time.Time),
		profiles:  make(map[string]domain.TenantProfile),
		updates:   make(map[uuid.UUID]domain.RegulatoryUpdate),
		byURL:     make(map[updateKey]uuid.UUID),
		alerts:    make(map[uuid.UUID]domain.ComplianceAlert),
		byUpdate:  make(map[uuid.UUID]uuid.UUID),
		now:       time.Now,
	}
}

// FilterNew drops candidates whose identity is already in the ledger.
func (s *Store) FilterNew(_ context.Context, items []domain.CandidateItem) ([]domain.CandidateItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fresh := make([]domain.CandidateItem, 0, len(items))
	for _, item := range items {
		if _, ok := s.processed[item.Identity]; !ok {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

// MarkProcessed records identities; existing entries keep their first timestamp.
func (s *Store) MarkProcessed(_ context.Context, identities []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	for _, id := range identities {
		if _, ok := s.processed[id]; !ok {
			s.processed[id] = now
		}
	}
	return nil
}

// Processed lists ledger entries sorted by identity.
func (s *Store) Processed() []domain.ProcessedIdentity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProcessedIdentity, 0, len(s.processed))
	for id, at := range s.processed {
		out = append(out, domain.ProcessedIdentity{Identity: id, ProcessedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// GetProfile loads one tenant profile.
func (s *Store) GetProfile(_ context.Context, tenantID string) (domain.TenantProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[tenantID]
	if !ok {
		return domain.TenantProfile{}, domain.ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

// SaveProfile replaces the tenant profile.
func (s *Store) SaveProfile(_ context.Context, profile domain.TenantProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.TenantID] = cloneProfile(profile)
	return nil
}

// ListProfiles returns every profile ordered by tenant id.
func (s *Store) ListProfiles(_ context.Context) ([]domain.TenantProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TenantProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// RecordUpdate stores the update and its alert together, or nothing when the
// tenant already has the source URL.
func (s *Store) RecordUpdate(_ context.Context, update domain.RegulatoryUpdate, alert *domain.ComplianceAlert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := updateKey{tenantID: update.TenantID, sourceURL: update.SourceURL}
	if _, exists := s.byURL[key]; exists {
		return false, nil
	}

	s.updates[update.ID] = update
	s.byURL[key] = update.ID
	if alert != nil {
		s.alerts[alert.ID] = *alert
		s.byUpdate[update.ID] = alert.ID
	}
	return true, nil
}

// ListUpdates returns the newest updates of a tenant first.
func (s *Store) ListUpdates(_ context.Context, tenantID string, limit int) ([]domain.RegulatoryUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.RegulatoryUpdate
	for _, u := range s.updates {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DetectedAt.Equal(out[j].DetectedAt) {
			return out[i].DetectedAt.After(out[j].DetectedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListAlerts returns a tenant's alerts, earliest due date first.
func (s *Store) ListAlerts(_ context.Context, tenantID string) ([]domain.ComplianceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ComplianceAlert
	for _, a := range s.alerts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// CompleteAlert flips a pending alert to completed; completed alerts are returned unchanged.
func (s *Store) CompleteAlert(_ context.Context, alertID uuid.UUID, tenantID string, now time.Time) (domain.ComplianceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[alertID]
	if !ok || a.TenantID != tenantID {
		return domain.ComplianceAlert{}, domain.ErrNotFound
	}
	if a.Status == domain.AlertCompleted {
		return a, nil
	}

	completedAt := now
	a.Status = domain.AlertCompleted
	a.CompletedAt = &completedAt
	s.alerts[alertID] = a
	return a, nil
}

// AlertForUpdate returns the alert attached to an update, if any.
func (s *Store) AlertForUpdate(updateID uuid.UUID) (domain.ComplianceAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUpdate[updateID]
	if !ok {
		return domain.ComplianceAlert{}, false
	}
	return s.alerts[id], true
}

func cloneProfile(p domain.TenantProfile) domain.TenantProfile {
	if p.Embedding != nil {
		p.Embedding = append([]float32(nil), p.Embedding...)
	}
	if p.Attributes.Keywords != nil {
		p.Attributes.Keywords = append([]string(nil), p.Attributes.Keywords...)
	}
	return p
}
