package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProfileAttributes are the structured facts the oracle extracts from a
// tenant's business description.
type ProfileAttributes struct {
	Industry     string   `json:"industry"`
	BusinessType string   `json:"business_type"`
	LegalForm    string   `json:"legal_form"`
	Location     string   `json:"location"`
	Keywords     []string `json:"keywords"`
}

// IsZero reports whether no attribute was extracted.
func (a ProfileAttributes) IsZero() bool {
	return a.Industry == "" && a.BusinessType == "" && a.LegalForm == "" &&
		a.Location == "" && len(a.Keywords) == 0
}

// ContextString renders the attributes in a fixed order so the same profile
// always embeds the same text.
func (a ProfileAttributes) ContextString() string {
	parts := make([]string, 0, 5)
	add := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", key, value))
		}
	}
	add("industry", a.Industry)
	add("business_type", a.BusinessType)
	add("legal_form", a.LegalForm)
	add("location", a.Location)
	add("keywords", strings.Join(a.Keywords, ", "))
	return strings.Join(parts, ", ")
}

// TenantProfile describes one tenant business. Embedding stays nil until the
// first successful profile update.
type TenantProfile struct {
	TenantID    string
	Description string
	Attributes  ProfileAttributes
	Embedding   []float32
	UpdatedAt   time.Time
}

// HasEmbedding reports whether the profile can be ranked against candidates.
func (p TenantProfile) HasEmbedding() bool {
	return len(p.Embedding) > 0
}
