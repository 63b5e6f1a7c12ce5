package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

// DefaultUpdatesLimit caps ListUpdates when the caller passes no limit.
const DefaultUpdatesLimit = 50

// DeriveAlert builds the pending alert a High or Medium update carries.
// ok is false for Low impact.
func DeriveAlert(update domain.RegulatoryUpdate) (*domain.ComplianceAlert, bool) {
	if !update.ImpactLevel.RequiresAlert() {
		return nil, false
	}
	window, _ := domain.DueWindow(update.ImpactLevel)

	return &domain.ComplianceAlert{
		ID:             uuid.New(),
		TenantID:       update.TenantID,
		UpdateID:       update.ID,
		Status:         domain.AlertPending,
		ActionRequired: actionRequired(update),
		DueDate:        update.DetectedAt.Add(window),
		CreatedAt:      update.DetectedAt,
	}, true
}

func actionRequired(update domain.RegulatoryUpdate) string {
	return fmt.Sprintf("Review %q and implement the required changes: %s",
		strings.TrimSpace(update.Title), strings.TrimSpace(update.Summary))
}

// ComplianceService is the tenant-facing read API over updates and alerts.
type ComplianceService struct {
	updates ports.UpdateRepository
	alerts  ports.AlertRepository
	now     func() time.Time
}

// NewComplianceService wires repositories; a nil clock means time.Now.
func NewComplianceService(updates ports.UpdateRepository, alerts ports.AlertRepository, now func() time.Time) *ComplianceService {
	if now == nil {
		now = time.Now
	}
	return &ComplianceService{updates: updates, alerts: alerts, now: now}
}

// ListUpdates returns the tenant's updates, newest first.
func (s *ComplianceService) ListUpdates(ctx context.Context, tenantID string, limit int) ([]domain.RegulatoryUpdate, error) {
	if limit <= 0 {
		limit = DefaultUpdatesLimit
	}
	updates, err := s.updates.ListUpdates(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list updates for %s: %w", tenantID, err)
	}
	return updates, nil
}

// ListAlerts returns the tenant's alerts by due date with the overdue flag
// evaluated now.
func (s *ComplianceService) ListAlerts(ctx context.Context, tenantID string) ([]domain.AlertView, error) {
	alerts, err := s.alerts.ListAlerts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list alerts for %s: %w", tenantID, err)
	}

	now := s.now()
	views := make([]domain.AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, domain.NewAlertView(a, now))
	}
	return views, nil
}

// CompleteAlert marks the alert done. Completing twice keeps the first
// completion time; an unknown or foreign alert is domain.ErrNotFound.
func (s *ComplianceService) CompleteAlert(ctx context.Context, alertID uuid.UUID, tenantID string) (domain.AlertView, error) {
	now := s.now()
	alert, err := s.alerts.CompleteAlert(ctx, alertID, tenantID, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AlertView{}, domain.ErrNotFound
		}
		return domain.AlertView{}, fmt.Errorf("complete alert %s: %w", alertID, err)
	}
	return domain.NewAlertView(alert, now), nil
}
