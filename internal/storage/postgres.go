package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"hostelmon/internal/classify"
	"hostelmon/internal/complaint"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const complaintColumns = `id, reporter_handle, raw_text, facility, sub_unit, category, priority,
	summary, route_address, confidence, status, resolution_note, resolve_token, created_at, resolved_at`

const schema = `
CREATE TABLE IF NOT EXISTS complaints (
	id              TEXT PRIMARY KEY,
	reporter_handle TEXT NOT NULL,
	raw_text        TEXT NOT NULL,
	facility        TEXT,
	sub_unit        TEXT,
	category        TEXT NOT NULL,
	priority        TEXT NOT NULL,
	summary         TEXT NOT NULL,
	route_address   TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	resolution_note TEXT,
	resolve_token   TEXT NOT NULL UNIQUE,
	created_at      TIMESTAMPTZ NOT NULL,
	resolved_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS complaints_created_at_idx ON complaints (created_at DESC);`

// columnNames whitelists the fields that may appear in a WHERE or ORDER BY.
var columnNames = map[complaint.Field]string{
	complaint.FieldID:             "id",
	complaint.FieldResolveToken:   "resolve_token",
	complaint.FieldReporterHandle: "reporter_handle",
	complaint.FieldStatus:         "status",
	complaint.FieldCategory:       "category",
	complaint.FieldCreatedAt:      "created_at",
}

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Postgres stores complaints in the complaints table.
type Postgres struct {
	db  *sql.DB
	log *zap.Logger
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, log *zap.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

// Migrate creates the complaints table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate complaints table: %w", err)
	}
	return nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Insert(ctx context.Context, c complaint.Complaint) (complaint.Complaint, error) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO complaints (`+complaintColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.ReporterHandle, c.RawText, nullString(c.Facility), nullString(c.SubUnit),
		string(c.Category), string(c.Priority), c.Summary, c.RouteAddress, c.Confidence,
		string(c.Status), nullString(c.ResolutionNote), c.ResolveToken, c.CreatedAt, nullTime(c),
	)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return complaint.Complaint{}, ErrDuplicate
		}
		return complaint.Complaint{}, fmt.Errorf("insert complaint: %w", err)
	}
	return c, nil
}

// UpdateWhere is a single conditional UPDATE; the status predicate makes
// it a compare-and-swap.
func (p *Postgres) UpdateWhere(ctx context.Context, field complaint.Field, value string, from complaint.Status, patch complaint.Patch) (complaint.Complaint, error) {
	col, err := column(field)
	if err != nil {
		return complaint.Complaint{}, err
	}

	row := p.db.QueryRowContext(ctx, `
		UPDATE complaints
		SET status = $1, resolved_at = $2, resolution_note = $3
		WHERE `+col+` = $4 AND status = $5
		RETURNING `+complaintColumns,
		string(patch.Status), patch.ResolvedAt, patch.ResolutionNote, value, string(from),
	)

	c, err := scanComplaint(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return complaint.Complaint{}, complaint.ErrNoMatch
	}
	if err != nil {
		return complaint.Complaint{}, fmt.Errorf("update complaint: %w", err)
	}
	return c, nil
}

func (p *Postgres) FindOne(ctx context.Context, field complaint.Field, value string) (*complaint.Complaint, error) {
	col, err := column(field)
	if err != nil {
		return nil, err
	}

	row := p.db.QueryRowContext(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		WHERE `+col+` = $1
		ORDER BY created_at
		LIMIT 1`, value)

	c, err := scanComplaint(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find complaint: %w", err)
	}
	return &c, nil
}

func (p *Postgres) FindAll(ctx context.Context, orderBy complaint.Field, desc bool) ([]complaint.Complaint, error) {
	col, err := column(orderBy)
	if err != nil {
		return nil, err
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+complaintColumns+`
		FROM complaints
		ORDER BY `+col+` `+direction+`, id `+direction)
	if err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	defer rows.Close()

	var all []complaint.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan complaint: %w", err)
		}
		all = append(all, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return all, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(r rowScanner) (complaint.Complaint, error) {
	var (
		c                          complaint.Complaint
		facility, subUnit, note    sql.NullString
		category, priority, status string
		resolvedAt                 sql.NullTime
	)
	err := r.Scan(
		&c.ID, &c.ReporterHandle, &c.RawText, &facility, &subUnit, &category, &priority,
		&c.Summary, &c.RouteAddress, &c.Confidence, &status, &note, &c.ResolveToken,
		&c.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return complaint.Complaint{}, err
	}

	c.Category = classify.ParseCategory(category)
	c.Priority = classify.ParsePriority(priority)
	c.Status = complaint.Status(status)
	if facility.Valid {
		c.Facility = &facility.String
	}
	if subUnit.Valid {
		c.SubUnit = &subUnit.String
	}
	if note.Valid {
		c.ResolutionNote = &note.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		c.ResolvedAt = &t
	}
	return c, nil
}

func column(f complaint.Field) (string, error) {
	col, ok := columnNames[f]
	if !ok {
		return "", fmt.Errorf("unknown complaint field %q", f)
	}
	return col, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(c complaint.Complaint) sql.NullTime {
	if c.ResolvedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *c.ResolvedAt, Valid: true}
}
