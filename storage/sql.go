package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"grants/dataloader/appcontext"
	"grants/dataloader/datalake/model"
)

// Dialect describes the SQL flavour of a database/sql driver.
type Dialect struct {
	Name          string
	DriverName    string
	TimestampType string
	numbered      bool
}

var (
	Postgres = Dialect{Name: "postgres", DriverName: "pgx", TimestampType: "TIMESTAMPTZ", numbered: true}
	SQLite   = Dialect{Name: "sqlite", DriverName: "sqlite", TimestampType: "TIMESTAMP"}
)

// bind rewrites ? placeholders to $n for dialects that number them.
func (d Dialect) bind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var grantColumns = []string{
	"opportunity_id", "opportunity_number", "title", "agency_code", "agency_name",
	"category", "opportunity_category", "funding_instrument_type", "description",
	"eligible_applicants", "eligibility_text", "post_date", "close_date",
	"last_updated_date", "award_ceiling", "award_floor", "estimated_funding",
	"expected_awards", "additional_info_url", "contact_email", "last_synced_at", "is_active",
}

const syncColumns = `id, file_name, status, extracted_date, file_size, checksum,
	records_processed, records_deleted, records_skipped, error_message, started_at, completed_at`

func schemaStatements(d Dialect) []string {
	ts := d.TimestampType
	return []string{
		`CREATE TABLE IF NOT EXISTS grants (
			opportunity_id TEXT PRIMARY KEY,
			opportunity_number TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			agency_code TEXT NOT NULL DEFAULT '',
			agency_name TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			opportunity_category TEXT NOT NULL DEFAULT '',
			funding_instrument_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			eligible_applicants TEXT NOT NULL DEFAULT '',
			eligibility_text TEXT NOT NULL DEFAULT '',
			post_date ` + ts + `,
			close_date ` + ts + `,
			last_updated_date ` + ts + `,
			award_ceiling DOUBLE PRECISION,
			award_floor DOUBLE PRECISION,
			estimated_funding DOUBLE PRECISION,
			expected_awards BIGINT,
			additional_info_url TEXT NOT NULL DEFAULT '',
			contact_email TEXT NOT NULL DEFAULT '',
			last_synced_at ` + ts + ` NOT NULL,
			is_active BOOLEAN NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grants_close_date ON grants (close_date)`,
		`CREATE TABLE IF NOT EXISTS grant_syncs (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			extracted_date ` + ts + `,
			file_size TEXT NOT NULL DEFAULT '',
			checksum TEXT NOT NULL DEFAULT '',
			records_processed BIGINT NOT NULL DEFAULT 0,
			records_deleted BIGINT NOT NULL DEFAULT 0,
			records_skipped BIGINT NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			started_at ` + ts + ` NOT NULL,
			completed_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_grant_syncs_status ON grant_syncs (status)`,
	}
}

// SQLRepository implements the repository.Repository interface on
// database/sql for Postgres and SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	upsert  string
}

// NewSQLRepository wraps an open database handle.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, upsert: dialect.bind(upsertGrantQuery())}
}

// OpenSQL opens and pings the database at dsn.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLRepository, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Opening SQL database", "dialect", dialect.Name)

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database: %w", dialect.Name, err)
	}
	if dialect.Name == SQLite.Name {
		// one writer; also keeps a ":memory:" database on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to reach %s database: %w", dialect.Name, err)
	}

	logger.InfoContext(ctx, "Successfully established connection to SQL database", "dialect", dialect.Name)
	return NewSQLRepository(db, dialect), nil
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func upsertGrantQuery() string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(grantColumns)), ", ")

	updates := make([]string, 0, len(grantColumns)-1)
	for _, col := range grantColumns[1:] {
		updates = append(updates, col+" = excluded."+col)
	}

	return "INSERT INTO grants (" + strings.Join(grantColumns, ", ") + ") VALUES (" + placeholders +
		") ON CONFLICT (opportunity_id) DO UPDATE SET " + strings.Join(updates, ", ")
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (r *SQLRepository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

// UpsertGrants writes grants in a single transaction.
func (r *SQLRepository) UpsertGrants(ctx context.Context, grants []model.Grant) (int64, error) {
	if len(grants) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.upsert)
	if err != nil {
		return 0, fmt.Errorf("error preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, g := range grants {
		if _, err := stmt.ExecContext(ctx, grantArgs(g)...); err != nil {
			return 0, fmt.Errorf("error upserting grant %s: %w", g.OpportunityID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing upsert: %w", err)
	}

	return int64(len(grants)), nil
}

func grantArgs(g model.Grant) []any {
	return []any{
		g.OpportunityID, g.OpportunityNumber, g.Title, g.AgencyCode, g.AgencyName,
		g.Category, g.OpportunityCategory, g.FundingInstrumentType, g.Description,
		strings.Join(g.EligibleApplicants, ","), g.EligibilityText,
		nullTime(g.PostDate), nullTime(g.CloseDate), nullTime(g.LastUpdatedDate),
		nullFloat(g.AwardCeiling), nullFloat(g.AwardFloor), nullFloat(g.EstimatedFunding),
		nullInt(g.ExpectedAwards), g.AdditionalInfoURL, g.ContactEmail,
		g.LastSyncedAt.UTC(), g.IsActive,
	}
}

// DeleteExpiredGrants removes grants that closed before cutoff.
func (r *SQLRepository) DeleteExpiredGrants(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.dialect.bind(`DELETE FROM grants WHERE close_date IS NOT NULL AND close_date < ?`)

	result, err := r.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("error deleting expired grants: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting deleted grants: %w", err)
	}
	return deleted, nil
}

// CountGrants returns the number of stored grants.
func (r *SQLRepository) CountGrants(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting grants: %w", err)
	}
	return count, nil
}

// CompletedFileNames returns the names of the files already ingested.
func (r *SQLRepository) CompletedFileNames(ctx context.Context) ([]string, error) {
	query := r.dialect.bind(`SELECT file_name FROM grant_syncs WHERE status = ? ORDER BY file_name`)

	rows, err := r.db.QueryContext(ctx, query, string(model.SyncCompleted))
	if err != nil {
		return nil, fmt.Errorf("error querying completed syncs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("error scanning completed sync: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// StartSync creates or resets the sync record for sync.FileName.
func (r *SQLRepository) StartSync(ctx context.Context, sync *model.GrantSync) error {
	if sync.ID == "" {
		sync.ID = uuid.NewString()
	}
	sync.Status = model.SyncProcessing
	sync.RecordsProcessed, sync.RecordsDeleted, sync.RecordsSkipped = 0, 0, 0
	sync.ErrorMessage = ""
	sync.CompletedAt = nil

	query := r.dialect.bind(`
	INSERT INTO grant_syncs (id, file_name, status, extracted_date, file_size, checksum, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (file_name) DO UPDATE SET
		status = excluded.status,
		extracted_date = excluded.extracted_date,
		file_size = excluded.file_size,
		checksum = excluded.checksum,
		records_processed = 0,
		records_deleted = 0,
		records_skipped = 0,
		error_message = '',
		started_at = excluded.started_at,
		completed_at = NULL
	RETURNING id`)

	var id string
	err := r.db.QueryRowContext(ctx, query,
		sync.ID, sync.FileName, string(sync.Status), nullTime(sync.ExtractedDate),
		sync.FileSize, sync.Checksum, sync.StartedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("error starting sync for %s: %w", sync.FileName, err)
	}

	sync.ID = id
	return nil
}

// FinishSync records the outcome of a sync started with StartSync.
func (r *SQLRepository) FinishSync(ctx context.Context, sync model.GrantSync) error {
	query := r.dialect.bind(`
	UPDATE grant_syncs
	SET status = ?,
		checksum = ?,
		records_processed = ?,
		records_deleted = ?,
		records_skipped = ?,
		error_message = ?,
		completed_at = ?
	WHERE file_name = ?`)

	result, err := r.db.ExecContext(ctx, query,
		string(sync.Status), sync.Checksum, sync.RecordsProcessed, sync.RecordsDeleted,
		sync.RecordsSkipped, sync.ErrorMessage, nullTime(sync.CompletedAt), sync.FileName)
	if err != nil {
		return fmt.Errorf("error finishing sync for %s: %w", sync.FileName, err)
	}

	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error finishing sync for %s: %w", sync.FileName, err)
	}
	if updated == 0 {
		return SyncNotFoundError(sync.FileName)
	}
	return nil
}

// RecentSyncs returns up to limit sync records, newest first.
func (r *SQLRepository) RecentSyncs(ctx context.Context, limit int) ([]model.GrantSync, error) {
	query := `SELECT ` + syncColumns + ` FROM grant_syncs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying syncs: %w", err)
	}
	defer rows.Close()

	var syncs []model.GrantSync
	for rows.Next() {
		var (
			s           model.GrantSync
			status      string
			extracted   sql.NullTime
			completedAt sql.NullTime
		)
		err := rows.Scan(&s.ID, &s.FileName, &status, &extracted, &s.FileSize, &s.Checksum,
			&s.RecordsProcessed, &s.RecordsDeleted, &s.RecordsSkipped, &s.ErrorMessage,
			&s.StartedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning sync: %w", err)
		}
		s.Status = model.SyncStatus(status)
		s.ExtractedDate = timePtr(extracted)
		s.CompletedAt = timePtr(completedAt)
		s.StartedAt = s.StartedAt.UTC()
		syncs = append(syncs, s)
	}
	return syncs, rows.Err()
}

// GetGrant loads one grant by opportunity ID.
func (r *SQLRepository) GetGrant(ctx context.Context, opportunityID string) (*model.Grant, error) {
	query := r.dialect.bind(`SELECT ` + strings.Join(grantColumns, ", ") + ` FROM grants WHERE opportunity_id = ?`)

	var (
		g                            model.Grant
		applicants                   string
		postDate, closeDate, updated sql.NullTime
		ceiling, floor, estimated    sql.NullFloat64
		expected                     sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, opportunityID).Scan(
		&g.OpportunityID, &g.OpportunityNumber, &g.Title, &g.AgencyCode, &g.AgencyName,
		&g.Category, &g.OpportunityCategory, &g.FundingInstrumentType, &g.Description,
		&applicants, &g.EligibilityText, &postDate, &closeDate, &updated,
		&ceiling, &floor, &estimated, &expected, &g.AdditionalInfoURL, &g.ContactEmail,
		&g.LastSyncedAt, &g.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading grant %s: %w", opportunityID, err)
	}

	if applicants != "" {
		g.EligibleApplicants = strings.Split(applicants, ",")
	}
	g.PostDate, g.CloseDate, g.LastUpdatedDate = timePtr(postDate), timePtr(closeDate), timePtr(updated)
	g.AwardCeiling, g.AwardFloor, g.EstimatedFunding = floatPtr(ceiling), floatPtr(floor), floatPtr(estimated)
	if expected.Valid {
		g.ExpectedAwards = &expected.Int64
	}
	g.LastSyncedAt = g.LastSyncedAt.UTC()

	return &g, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
