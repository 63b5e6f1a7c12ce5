package storage

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/infrastructure/storage/migrations"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "postgres")), mock
}

func sampleUpdate() domain.RegulatoryUpdate {
	return domain.RegulatoryUpdate{
		ID:                 uuid.New(),
		TenantID:           "t1",
		Title:              "VAT",
		SourceURL:          "https://example.org/vat",
		SourceName:         "garant",
		Summary:            "VAT rises",
		ImpactLevel:        domain.ImpactHigh,
		Category:           "Tax",
		ContentFingerprint: domain.Fingerprint("body"),
		DetectedAt:         time.Date(2025, 11, 8, 10, 0, 0, 0, time.UTC),
		RawClassification:  []byte(`{"relevant":true}`),
	}
}

func sampleAlert(u domain.RegulatoryUpdate) *domain.ComplianceAlert {
	return &domain.ComplianceAlert{
		ID:             uuid.New(),
		TenantID:       u.TenantID,
		UpdateID:       u.ID,
		Status:         domain.AlertPending,
		ActionRequired: "Review",
		DueDate:        u.DetectedAt.Add(7 * 24 * time.Hour),
		CreatedAt:      u.DetectedAt,
	}
}

func TestFilterNew(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT identity FROM processed_identities WHERE identity = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"identity"}).AddRow("u1"))

	fresh, err := repo.FilterNew(context.Background(), []domain.CandidateItem{{Identity: "u1"}, {Identity: "u2"}})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "u2", fresh[0].Identity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterNewEmptySkipsQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	fresh, err := repo.FilterNew(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessed(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO processed_identities").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.MarkProcessed(context.Background(), []string{"u1", "u2"}))
	require.NoError(t, repo.MarkProcessed(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUpdateWritesUpdateAndAlert(t *testing.T) {
	repo, mock := newMockRepo(t)
	update := sampleUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO regulatory_updates .* ON CONFLICT \\(tenant_id, source_url\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO compliance_alerts").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := repo.RecordUpdate(context.Background(), update, sampleAlert(update))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUpdateExistingIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	update := sampleUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO regulatory_updates").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	inserted, err := repo.RecordUpdate(context.Background(), update, sampleAlert(update))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUpdateRollsBackOnAlertFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	update := sampleUpdate()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO regulatory_updates").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO compliance_alerts").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	inserted, err := repo.RecordUpdate(context.Background(), update, sampleAlert(update))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordUpdateLowImpactWithoutAlert(t *testing.T) {
	repo, mock := newMockRepo(t)
	update := sampleUpdate()
	update.ImpactLevel = domain.ImpactLow

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO regulatory_updates").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inserted, err := repo.RecordUpdate(context.Background(), update, nil)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfile(t *testing.T) {
	repo, mock := newMockRepo(t)
	updated := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT tenant_id, description, attributes, embedding, updated_at FROM tenant_profiles WHERE tenant_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("t1", "cafe", []byte(`{"industry":"food","keywords":["alcohol"]}`), "{0.5,1}", updated))

	p, err := repo.GetProfile(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "food", p.Attributes.Industry)
	assert.Equal(t, []string{"alcohol"}, p.Attributes.Keywords)
	assert.Equal(t, []float32{0.5, 1}, p.Embedding)
	assert.Equal(t, updated, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM tenant_profiles").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(profileColumns))

	_, err := repo.GetProfile(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveProfileUpserts(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO tenant_profiles .* ON CONFLICT \\(tenant_id\\) DO UPDATE").
		WithArgs("t1", "cafe", `{"industry":"food","business_type":"","legal_form":"","location":"","keywords":null}`,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProfile(context.Background(), domain.TenantProfile{
		TenantID:    "t1",
		Description: "cafe",
		Attributes:  domain.ProfileAttributes{Industry: "food"},
		Embedding:   []float32{1, 0},
		UpdatedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUpdatesOrdersNewestFirst(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := sampleUpdate()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tenant_id = $1 ORDER BY detected_at DESC, id LIMIT 50")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(updateColumns).AddRow(
			u.ID.String(), u.TenantID, u.Title, u.SourceURL, u.SourceName, u.Summary, "High",
			u.Category, u.ContentFingerprint, u.DetectedAt, []byte(`{"relevant":true}`)))

	updates, err := repo.ListUpdates(context.Background(), "t1", 50)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, u.ID, updates[0].ID)
	assert.Equal(t, domain.ImpactHigh, updates[0].ImpactLevel)
	assert.JSONEq(t, `{"relevant":true}`, string(updates[0].RawClassification))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAlerts(t *testing.T) {
	repo, mock := newMockRepo(t)
	u := sampleUpdate()
	a := sampleAlert(u)
	done := u.DetectedAt.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY due_date ASC, created_at ASC, id")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(alertColumns).
			AddRow(a.ID.String(), a.TenantID, a.UpdateID.String(), "pending", a.ActionRequired, a.DueDate, a.CreatedAt, nil).
			AddRow(uuid.NewString(), a.TenantID, uuid.NewString(), "completed", "x", a.DueDate.Add(time.Hour), a.CreatedAt, done))

	alerts, err := repo.ListAlerts(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Nil(t, alerts[0].CompletedAt)
	require.NotNil(t, alerts[1].CompletedAt)
	assert.Equal(t, done, *alerts[1].CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAlertPending(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAlert(sampleUpdate())
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE compliance_alerts SET status = $1, completed_at = $2 WHERE")).
		WillReturnRows(sqlmock.NewRows(alertColumns).
			AddRow(a.ID.String(), a.TenantID, a.UpdateID.String(), "completed", a.ActionRequired, a.DueDate, a.CreatedAt, now))

	got, err := repo.CompleteAlert(context.Background(), a.ID, "t1", now)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertCompleted, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAlertAlreadyCompletedIsIdempotent(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAlert(sampleUpdate())
	first := time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE compliance_alerts").
		WillReturnRows(sqlmock.NewRows(alertColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM compliance_alerts WHERE id = $1 AND tenant_id = $2")).
		WillReturnRows(sqlmock.NewRows(alertColumns).
			AddRow(a.ID.String(), a.TenantID, a.UpdateID.String(), "completed", a.ActionRequired, a.DueDate, a.CreatedAt, first))

	got, err := repo.CompleteAlert(context.Background(), a.ID, "t1", first.Add(48*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, first, *got.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAlertNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE compliance_alerts").WillReturnRows(sqlmock.NewRows(alertColumns))
	mock.ExpectQuery("FROM compliance_alerts").WillReturnRows(sqlmock.NewRows(alertColumns))

	_, err := repo.CompleteAlert(context.Background(), uuid.New(), "other", time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteAlertPropagatesDriverErrors(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("UPDATE compliance_alerts").WillReturnError(errors.New("connection reset"))

	_, err := repo.CompleteAlert(context.Background(), uuid.New(), "t1", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesPendingVersions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"001_initial.up.sql":   {Data: []byte("CREATE TABLE a (id INT)")},
		"001_initial.down.sql": {Data: []byte("DROP TABLE a")},
		"002_more.up.sql":      {Data: []byte("CREATE TABLE b (id INT)")},
	}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, migrate(context.Background(), sqlx.NewDb(db, "postgres"), fsys))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := fs.ReadDir(migrations.FS, ".")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "001_initial.up.sql")
	assert.Contains(t, names, "001_initial.down.sql")
}
