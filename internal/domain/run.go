package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to another tenant.
	ErrNotFound = errors.New("not found")
	// ErrProfileNotFound is returned when a tenant has no profile yet.
	ErrProfileNotFound = errors.New("tenant profile not found")
	// ErrScanInProgress is returned when another run holds the scan lock.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrInvalidDescription rejects blank business descriptions.
	ErrInvalidDescription = errors.New("business description is empty")
)

// SourceFailure records a source skipped during a run.
type SourceFailure struct {
	Source string
	Err    string
}

// RunSummary reports what a single scan did.
type RunSummary struct {
	RunID           uuid.UUID
	StartedAt       time.Time
	FinishedAt      time.Time
	Fetched         int
	New             int
	TenantsScanned  int
	TenantsSkipped  int
	UpdatesRecorded int
	AlertsCreated   int
	Discarded       int
	Marked          int
	SourceFailures  []SourceFailure
}

// FetchResult is what the source reader produced for one run.
type FetchResult struct {
	Items    []CandidateItem
	Failures []SourceFailure
}
