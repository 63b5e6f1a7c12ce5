package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

const (
	tableIdentities = "processed_identities"
	tableProfiles   = "tenant_profiles"
	tableUpdates    = "regulatory_updates"
	tableAlerts     = "compliance_alerts"
)

var (
	psql = sqrl.StatementBuilder.PlaceholderFormat(sqrl.Dollar)

	updateColumns = []string{
		"id", "tenant_id", "title", "source_url", "source_name", "summary", "impact_level",
		"category", "content_fingerprint", "detected_at", "raw_classification",
	}
	alertColumns = []string{
		"id", "tenant_id", "update_id", "status", "action_required", "due_date", "created_at", "completed_at",
	}
	profileColumns = []string{"tenant_id", "description", "attributes", "embedding", "updated_at"}
)

// PostgresRepository persists the ledger, profiles, updates and alerts into Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

var _ ports.Store = (*PostgresRepository)(nil)

// Open connects to Postgres through lib/pq and pings it.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sqlx.DB implementation.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FilterNew drops candidates whose identity is already in the ledger.
func (r *PostgresRepository) FilterNew(ctx context.Context, items []domain.CandidateItem) ([]domain.CandidateItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Identity)
	}

	query, args, err := psql.Select("identity").From(tableIdentities).
		Where("identity = ANY(?)", pq.StringArray(ids)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build filter query: %w", err)
	}

	var processed []string
	if err := r.db.SelectContext(ctx, &processed, query, args...); err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	seen := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		seen[id] = struct{}{}
	}

	fresh := make([]domain.CandidateItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Identity]; !ok {
			fresh = append(fresh, item)
		}
	}
	return fresh, nil
}

// MarkProcessed records identities; existing entries are left untouched.
func (r *PostgresRepository) MarkProcessed(ctx context.Context, identities []string) error {
	if len(identities) == 0 {
		return nil
	}

	query := `INSERT INTO ` + tableIdentities + ` (identity, processed_at)
              SELECT id, $2 FROM unnest($1::text[]) AS id
              ON CONFLICT (identity) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, pq.StringArray(identities), time.Now().UTC()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

type profileRow struct {
	TenantID    string          `db:"tenant_id"`
	Description string          `db:"description"`
	Attributes  []byte          `db:"attributes"`
	Embedding   pq.Float64Array `db:"embedding"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

func (p profileRow) toDomain() (domain.TenantProfile, error) {
	profile := domain.TenantProfile{
		TenantID:    p.TenantID,
		Description: p.Description,
		UpdatedAt:   p.UpdatedAt,
	}
	if len(p.Attributes) > 0 {
		if err := json.Unmarshal(p.Attributes, &profile.Attributes); err != nil {
			return domain.TenantProfile{}, fmt.Errorf("decode attributes for %s: %w", p.TenantID, err)
		}
	}
	if len(p.Embedding) > 0 {
		profile.Embedding = make([]float32, len(p.Embedding))
		for i, v := range p.Embedding {
			profile.Embedding[i] = float32(v)
		}
	}
	return profile, nil
}

// GetProfile loads one tenant profile.
func (r *PostgresRepository) GetProfile(ctx context.Context, tenantID string) (domain.TenantProfile, error) {
	query, args, err := psql.Select(profileColumns...).From(tableProfiles).
		Where(sqrl.Eq{"tenant_id": tenantID}).ToSql()
	if err != nil {
		return domain.TenantProfile{}, fmt.Errorf("build profile query: %w", err)
	}

	var row profileRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TenantProfile{}, domain.ErrProfileNotFound
		}
		return domain.TenantProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return row.toDomain()
}

// SaveProfile upserts the profile with its (possibly nil) embedding.
func (r *PostgresRepository) SaveProfile(ctx context.Context, profile domain.TenantProfile) error {
	attrs, err := json.Marshal(profile.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}

	var embedding pq.Float64Array
	if len(profile.Embedding) > 0 {
		embedding = make(pq.Float64Array, len(profile.Embedding))
		for i, v := range profile.Embedding {
			embedding[i] = float64(v)
		}
	}

	query, args, err := psql.Insert(tableProfiles).Columns(profileColumns...).
		Values(profile.TenantID, profile.Description, string(attrs), embedding, profile.UpdatedAt).
		Suffix(`ON CONFLICT (tenant_id) DO UPDATE
              SET description = EXCLUDED.description,
                  attributes = EXCLUDED.attributes,
                  embedding = EXCLUDED.embedding,
                  updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build profile upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// ListProfiles returns every tenant profile ordered by tenant id.
func (r *PostgresRepository) ListProfiles(ctx context.Context) ([]domain.TenantProfile, error) {
	query, args, err := psql.Select(profileColumns...).From(tableProfiles).OrderBy("tenant_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build profiles query: %w", err)
	}

	var rows []profileRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	profiles := make([]domain.TenantProfile, 0, len(rows))
	for _, row := range rows {
		p, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

type updateRow struct {
	ID                 uuid.UUID `db:"id"`
	TenantID           string    `db:"tenant_id"`
	Title              string    `db:"title"`
	SourceURL          string    `db:"source_url"`
	SourceName         string    `db:"source_name"`
	Summary            string    `db:"summary"`
	ImpactLevel        string    `db:"impact_level"`
	Category           string    `db:"category"`
	ContentFingerprint string    `db:"content_fingerprint"`
	DetectedAt         time.Time `db:"detected_at"`
	RawClassification  []byte    `db:"raw_classification"`
}

func (u updateRow) toDomain() domain.RegulatoryUpdate {
	return domain.RegulatoryUpdate{
		ID:                 u.ID,
		TenantID:           u.TenantID,
		Title:              u.Title,
		SourceURL:          u.SourceURL,
		SourceName:         u.SourceName,
		Summary:            u.Summary,
		ImpactLevel:        domain.ImpactLevel(u.ImpactLevel),
		Category:           u.Category,
		ContentFingerprint: u.ContentFingerprint,
		DetectedAt:         u.DetectedAt,
		RawClassification:  json.RawMessage(u.RawClassification),
	}
}

// RecordUpdate inserts the update and its alert in one transaction. It
// reports false without writing anything when the tenant already has an
// update for the same source URL.
func (r *PostgresRepository) RecordUpdate(ctx context.Context, update domain.RegulatoryUpdate, alert *domain.ComplianceAlert) (inserted bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if !inserted || err != nil {
			_ = tx.Rollback()
		}
	}()

	var raw interface{}
	if len(update.RawClassification) > 0 {
		raw = string(update.RawClassification)
	}

	query, args, err := psql.Insert(tableUpdates).Columns(updateColumns...).
		Values(update.ID, update.TenantID, update.Title, update.SourceURL, update.SourceName, update.Summary,
			string(update.ImpactLevel), update.Category, update.ContentFingerprint, update.DetectedAt, raw).
		Suffix("ON CONFLICT (tenant_id, source_url) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update insert: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if alert != nil {
		query, args, err = psql.Insert(tableAlerts).Columns(alertColumns...).
			Values(alert.ID, alert.TenantID, alert.UpdateID, string(alert.Status), alert.ActionRequired,
				alert.DueDate, alert.CreatedAt, alert.CompletedAt).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("build alert insert: %w", err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return false, fmt.Errorf("alert for update %s already exists: %w", alert.UpdateID, err)
			}
			return false, fmt.Errorf("insert alert: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// ListUpdates returns the newest updates of a tenant first.
func (r *PostgresRepository) ListUpdates(ctx context.Context, tenantID string, limit int) ([]domain.RegulatoryUpdate, error) {
	builder := psql.Select(updateColumns...).From(tableUpdates).
		Where(sqrl.Eq{"tenant_id": tenantID}).
		OrderBy("detected_at DESC", "id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build updates query: %w", err)
	}

	var rows []updateRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}

	updates := make([]domain.RegulatoryUpdate, 0, len(rows))
	for _, row := range rows {
		updates = append(updates, row.toDomain())
	}
	return updates, nil
}

type alertRow struct {
	ID             uuid.UUID  `db:"id"`
	TenantID       string     `db:"tenant_id"`
	UpdateID       uuid.UUID  `db:"update_id"`
	Status         string     `db:"status"`
	ActionRequired string     `db:"action_required"`
	DueDate        time.Time  `db:"due_date"`
	CreatedAt      time.Time  `db:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"`
}

func (a alertRow) toDomain() domain.ComplianceAlert {
	return domain.ComplianceAlert{
		ID:             a.ID,
		TenantID:       a.TenantID,
		UpdateID:       a.UpdateID,
		Status:         domain.AlertStatus(a.Status),
		ActionRequired: a.ActionRequired,
		DueDate:        a.DueDate,
		CreatedAt:      a.CreatedAt,
		CompletedAt:    a.CompletedAt,
	}
}

// ListAlerts returns a tenant's alerts, earliest due date first.
func (r *PostgresRepository) ListAlerts(ctx context.Context, tenantID string) ([]domain.ComplianceAlert, error) {
	query, args, err := psql.Select(alertColumns...).From(tableAlerts).
		Where(sqrl.Eq{"tenant_id": tenantID}).
		OrderBy("due_date ASC", "created_at ASC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build alerts query: %w", err)
	}

	var rows []alertRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	alerts := make([]domain.ComplianceAlert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, row.toDomain())
	}
	return alerts, nil
}

// CompleteAlert flips a pending alert to completed. An alert that is already
// completed is returned unchanged; a missing or foreign alert is ErrNotFound.
func (r *PostgresRepository) CompleteAlert(ctx context.Context, alertID uuid.UUID, tenantID string, now time.Time) (domain.ComplianceAlert, error) {
	query, args, err := psql.Update(tableAlerts).
		Set("status", string(domain.AlertCompleted)).
		Set("completed_at", now).
		Where(sqrl.Eq{"id": alertID, "tenant_id": tenantID, "status": string(domain.AlertPending)}).
		Suffix("RETURNING " + strings.Join(alertColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.ComplianceAlert{}, fmt.Errorf("build complete query: %w", err)
	}

	var row alertRow
	err = r.db.GetContext(ctx, &row, query, args...)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.ComplianceAlert{}, fmt.Errorf("complete alert: %w", err)
	}

	query, args, err = psql.Select(alertColumns...).From(tableAlerts).
		Where(sqrl.Eq{"id": alertID, "tenant_id": tenantID}).ToSql()
	if err != nil {
		return domain.ComplianceAlert{}, fmt.Errorf("build alert query: %w", err)
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ComplianceAlert{}, domain.ErrNotFound
		}
		return domain.ComplianceAlert{}, fmt.Errorf("get alert: %w", err)
	}
	return row.toDomain(), nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
