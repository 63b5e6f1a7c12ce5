package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"RegulatoryRadar/internal/domain"
)

// CandidateSource pulls announcements from every configured source.
type CandidateSource interface {
	Fetch(ctx context.Context) (domain.FetchResult, error)
}

// FullTextFetcher replaces short feed bodies with the readable page text.
type FullTextFetcher interface {
	Enrich(ctx context.Context, items []domain.CandidateItem) []domain.CandidateItem
}

// Ledger remembers every identity that has been fully handled.
type Ledger interface {
	FilterNew(ctx context.Context, items []domain.CandidateItem) ([]domain.CandidateItem, error)
	MarkProcessed(ctx context.Context, identities []string) error
}

// ProfileRepository stores tenant business profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error)
	SaveProfile(ctx context.Context, profile domain.TenantProfile) error
	ListProfiles(ctx context.Context) ([]domain.TenantProfile, error)
}

// UpdateRepository persists recorded updates. RecordUpdate writes the update
// and its alert (if any) atomically and reports false when the (tenant,
// source URL) pair already exists.
type UpdateRepository interface {
	RecordUpdate(ctx context.Context, update domain.RegulatoryUpdate, alert *domain.ComplianceAlert) (bool, error)
	ListUpdates(ctx context.Context, tenantID string, limit int) ([]domain.RegulatoryUpdate, error)
}

// AlertRepository reads alerts and applies the completion action.
type AlertRepository interface {
	ListAlerts(ctx context.Context, tenantID string) ([]domain.ComplianceAlert, error)
	CompleteAlert(ctx context.Context, alertID uuid.UUID, tenantID string, now time.Time) (domain.ComplianceAlert, error)
}

// Store bundles all durable collections.
type Store interface {
	Ledger
	ProfileRepository
	UpdateRepository
	AlertRepository
}

// EmbeddingGateway turns text into vectors.
type EmbeddingGateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ClassificationOracle judges whether a candidate matters to a tenant.
type ClassificationOracle interface {
	Classify(ctx context.Context, profile domain.TenantProfile, item domain.CandidateItem) (domain.Verdict, error)
}

// ProfileExtractor derives structured attributes from a free-text description.
type ProfileExtractor interface {
	ExtractAttributes(ctx context.Context, description string) (domain.ProfileAttributes, error)
}

// RunLocker guarantees that at most one scan runs against the ledger.
type RunLocker interface {
	TryLock(ctx context.Context) (release func(), acquired bool, err error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// ScanObserver receives pipeline events for metrics.
type ScanObserver interface {
	SourceFailed(source string)
	CandidatesSeen(stage string, n int)
	VerdictObserved(kind domain.VerdictKind)
	UpdateRecorded(impact domain.ImpactLevel, alertCreated bool)
	RunFinished(outcome string, duration time.Duration)
}
