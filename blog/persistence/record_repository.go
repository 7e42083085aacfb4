package persistence

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dfryer1193/spacetraveling/blog/domain"
	"github.com/dfryer1193/spacetraveling/shared/db"
)

var _ domain.RecordRepository = (*SQLiteRecordRepository)(nil)

const defaultPageSize = 20

// SQLiteRecordRepository implements domain.RecordRepository on a local SQLite database.
// It answers the same queries a hosted content store would, so the page pipeline
// cannot tell the two apart.
type SQLiteRecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a new SQLiteRecordRepository from a standard sql.DB
func NewRecordRepository(db *sql.DB) *SQLiteRecordRepository {
	return &SQLiteRecordRepository{
		db: db,
	}
}

// recordRow is the database representation of a record
// Publication dates are stored as Unix seconds, the precision of TimestampLayout.
type recordRow struct {
	ID                   string
	UID                  string
	Type                 string
	FirstPublicationDate int64
	LastPublicationDate  int64
	Data                 string
}

func (r *recordRow) toDomain() (*domain.RawRecord, error) {
	var data domain.RecordData
	if err := json.Unmarshal([]byte(r.Data), &data); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", r.ID, err)
	}

	return &domain.RawRecord{
		ID:                 r.ID,
		UID:                r.UID,
		Type:               r.Type,
		FirstPublicationAt: domain.FormatTimestamp(time.Unix(r.FirstPublicationDate, 0)),
		LastPublicationAt:  domain.FormatTimestamp(time.Unix(r.LastPublicationDate, 0)),
		Data:               data,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*recordRow, error) {
	var row recordRow
	err := s.Scan(
		&row.ID,
		&row.UID,
		&row.Type,
		&row.FirstPublicationDate,
		&row.LastPublicationDate,
		&row.Data,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

const recordColumns = `id, uid, type, first_publication_date, last_publication_date, data`

const upsertRecordQuery = `
	INSERT INTO records (id, uid, type, first_publication_date, last_publication_date, data, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		uid = excluded.uid,
		type = excluded.type,
		first_publication_date = excluded.first_publication_date,
		last_publication_date = excluded.last_publication_date,
		data = excluded.data,
		updated_at = excluded.updated_at
`

// UpsertRecord inserts or replaces a record by id
func (r *SQLiteRecordRepository) UpsertRecord(ctx context.Context, rec *domain.RawRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	if rec.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}

	if rec.UID == "" {
		return fmt.Errorf("record %s has no uid", rec.ID)
	}

	first, err := domain.ParseTimestamp(rec.FirstPublicationAt)
	if err != nil {
		return fmt.Errorf("record %s first_publication_date: %w", rec.ID, err)
	}

	last := first
	if rec.LastPublicationAt != "" {
		last, err = domain.ParseTimestamp(rec.LastPublicationAt)
		if err != nil {
			return fmt.Errorf("record %s last_publication_date: %w", rec.ID, err)
		}
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}

	docType := rec.Type
	if docType == "" {
		docType = domain.PostType
	}

	now := time.Now().UTC()
	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		executor := db.GetExecutor(txCtx, r.db)
		_, err := executor.ExecContext(txCtx, upsertRecordQuery,
			rec.ID,
			rec.UID,
			docType,
			first.Unix(),
			last.Unix(),
			string(data),
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record: %w", err)
		}
		return nil
	})
}

const getRecordByIDQuery = `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

// GetByID retrieves a single record by document id
func (r *SQLiteRecordRepository) GetByID(ctx context.Context, id string) (*domain.RawRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("record ID cannot be empty")
	}

	executor := db.GetExecutor(ctx, r.db)
	row, err := scanRecord(executor.QueryRowContext(ctx, getRecordByIDQuery, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, &domain.TransportError{Op: "get record", Err: err}
	}

	return row.toDomain()
}

const getRecordByUIDQuery = `SELECT ` + recordColumns + ` FROM records WHERE type = ? AND uid = ?`

// GetByUID retrieves a single record by type and uid
func (r *SQLiteRecordRepository) GetByUID(ctx context.Context, docType string, uid string) (*domain.RawRecord, error) {
	row, err := scanRecord(r.db.QueryRowContext(ctx, getRecordByUIDQuery, docType, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", docType, uid, domain.ErrNotFound)
	}
	if err != nil {
		return nil, &domain.TransportError{Op: "get by uid", Err: err}
	}

	return row.toDomain()
}

const deleteRecordQuery = `DELETE FROM records WHERE id = ?`

// DeleteRecord removes a record and returns the uid it was published under
func (r *SQLiteRecordRepository) DeleteRecord(ctx context.Context, id string) (string, error) {
	var uid string
	err := db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		existing, err := r.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		uid = existing.UID

		executor := db.GetExecutor(txCtx, r.db)
		if _, err := executor.ExecContext(txCtx, deleteRecordQuery, id); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return uid, nil
}

const getAnchorQuery = `SELECT first_publication_date, uid FROM records WHERE id = ?`

// Query returns one page of records of the requested type in publication order
func (r *SQLiteRecordRepository) Query(ctx context.Context, opts domain.QueryOptions) (*domain.QueryResponse, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.Ordering.Field != "" && opts.Ordering.Field != domain.OrderByPublication {
		return nil, fmt.Errorf("unsupported ordering field %q", opts.Ordering.Field)
	}

	var (
		where = []string{"type = ?"}
		args  = []any{opts.Type}
	)

	if opts.After != "" {
		var anchorAt int64
		var anchorUID string
		err := r.db.QueryRowContext(ctx, getAnchorQuery, opts.After).Scan(&anchorAt, &anchorUID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("after document %s: %w", opts.After, domain.ErrNotFound)
		}
		if err != nil {
			return nil, &domain.TransportError{Op: "query", Err: err}
		}

		cmp := ">"
		if opts.Ordering.Desc {
			cmp = "<"
		}
		where = append(where, "(first_publication_date "+cmp+" ? OR (first_publication_date = ? AND uid > ?))")
		args = append(args, anchorAt, anchorAt, anchorUID)
	}

	direction := "ASC"
	if opts.Ordering.Desc {
		direction = "DESC"
	}

	// One extra row tells us whether a next page exists.
	query := `SELECT ` + recordColumns + ` FROM records WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY first_publication_date ` + direction + `, uid ASC LIMIT ? OFFSET ?`
	args = append(args, opts.PageSize+1, (opts.Page-1)*opts.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.TransportError{Op: "query", Err: err}
	}
	defer rows.Close()

	results := make([]domain.RawRecord, 0, opts.PageSize)
	hasMore := false
	for rows.Next() {
		if len(results) == opts.PageSize {
			hasMore = true
			break
		}
		row, err := scanRecord(rows)
		if err != nil {
			return nil, &domain.TransportError{Op: "query", Err: err}
		}
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, project(*rec, opts.Fields))
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.TransportError{Op: "query", Err: err}
	}

	resp := &domain.QueryResponse{Results: results}
	if hasMore {
		next := opts
		next.Page++
		cursor, err := encodeCursor(next)
		if err != nil {
			return nil, err
		}
		resp.NextCursor = cursor
	}
	return resp, nil
}

// FetchCursor continues a query from a cursor issued by Query
func (r *SQLiteRecordRepository) FetchCursor(ctx context.Context, cursor domain.Cursor) (*domain.QueryResponse, error) {
	opts, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	return r.Query(ctx, opts)
}

// project keeps only the requested data fields. Fields are named "<type>.<field>";
// an empty list keeps the whole record.
func project(rec domain.RawRecord, fields []string) domain.RawRecord {
	if len(fields) == 0 {
		return rec
	}

	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		if _, name, ok := strings.Cut(f, "."); ok {
			keep[name] = true
		}
	}

	full := rec.Data
	rec.Data = domain.RecordData{}
	if keep["title"] {
		rec.Data.Title = full.Title
	}
	if keep["subtitle"] {
		rec.Data.Subtitle = full.Subtitle
	}
	if keep["author"] {
		rec.Data.Author = full.Author
	}
	if keep["banner"] {
		rec.Data.Banner = full.Banner
	}
	if keep["content"] {
		rec.Data.Content = full.Content
	}
	return rec
}

func encodeCursor(opts domain.QueryOptions) (domain.Cursor, error) {
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode cursor: %w", err)
	}
	return domain.Cursor(base64.RawURLEncoding.EncodeToString(b)), nil
}

func decodeCursor(cursor domain.Cursor) (domain.QueryOptions, error) {
	var opts domain.QueryOptions
	b, err := base64.RawURLEncoding.DecodeString(string(cursor))
	if err != nil {
		return opts, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}
	if err := json.Unmarshal(b, &opts); err != nil {
		return opts, fmt.Errorf("%w: %v", domain.ErrInvalidCursor, err)
	}
	if opts.Page < 2 || opts.Type == "" {
		return opts, domain.ErrInvalidCursor
	}
	return opts, nil
}
