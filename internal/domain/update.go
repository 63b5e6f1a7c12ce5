package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImpactLevel grades how strongly an update affects a tenant.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "High"
	ImpactMedium ImpactLevel = "Medium"
	ImpactLow    ImpactLevel = "Low"
)

// ParseImpactLevel normalizes oracle output; ok is false for unknown values.
func ParseImpactLevel(raw string) (ImpactLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return ImpactHigh, true
	case "medium":
		return ImpactMedium, true
	case "low":
		return ImpactLow, true
	default:
		return "", false
	}
}

// RequiresAlert reports whether an update of this impact must carry an alert.
func (l ImpactLevel) RequiresAlert() bool {
	return l == ImpactHigh || l == ImpactMedium
}

// DefaultCategory is used when the oracle omits the category.
const DefaultCategory = "Other"

// RegulatoryUpdate is an announcement recorded as relevant for one tenant.
// It never changes after insertion.
type RegulatoryUpdate struct {
	ID                 uuid.UUID
	TenantID           string
	Title              string
	SourceURL          string
	SourceName         string
	Summary            string
	ImpactLevel        ImpactLevel
	Category           string
	ContentFingerprint string
	DetectedAt         time.Time
	RawClassification  json.RawMessage
}
