package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertStatus is the stored state of a compliance alert. Overdue is never
// stored; see AlertView.
type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertCompleted AlertStatus = "completed"
	AlertOverdue   AlertStatus = "overdue"
)

const (
	highImpactWindow   = 7 * 24 * time.Hour
	mediumImpactWindow = 14 * 24 * time.Hour
)

// DueWindow returns the time a tenant has to act on an update of the given
// impact. ok is false when the impact never raises an alert.
func DueWindow(level ImpactLevel) (time.Duration, bool) {
	switch level {
	case ImpactHigh:
		return highImpactWindow, true
	case ImpactMedium:
		return mediumImpactWindow, true
	default:
		return 0, false
	}
}

// ComplianceAlert is the obligation derived from a High or Medium update.
type ComplianceAlert struct {
	ID             uuid.UUID
	TenantID       string
	UpdateID       uuid.UUID
	Status         AlertStatus
	ActionRequired string
	DueDate        time.Time
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// IsOverdue derives the overdue flag at read time.
func (a ComplianceAlert) IsOverdue(now time.Time) bool {
	return a.Status == AlertPending && a.DueDate.Before(now)
}

// AlertView is the read-side projection handed to tenants.
type AlertView struct {
	ComplianceAlert
	Overdue bool
}

// EffectiveStatus folds the derived overdue flag into the reported status.
func (v AlertView) EffectiveStatus() AlertStatus {
	if v.Overdue {
		return AlertOverdue
	}
	return v.Status
}

// NewAlertView projects an alert for a reader at time now.
func NewAlertView(a ComplianceAlert, now time.Time) AlertView {
	return AlertView{ComplianceAlert: a, Overdue: a.IsOverdue(now)}
}
