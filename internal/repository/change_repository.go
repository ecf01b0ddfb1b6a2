package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lewtec/dupclassifier/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ChangeRepository implements domain.ChangeRepository on SQLite
type ChangeRepository struct {
	db querier
}

// NewChangeRepository creates a new ChangeRepository
func NewChangeRepository(db *sql.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// NewChangeRepositoryWithTx creates a new ChangeRepository with a transaction
func NewChangeRepositoryWithTx(tx *sql.Tx) *ChangeRepository {
	return &ChangeRepository{db: tx}
}

const changeColumns = `id, service, camera, difference, threshold, sha256, width, height, mime_type, object_key, detected_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanChange(row scanner) (*domain.Change, error) {
	var (
		c          domain.Change
		detectedAt int64
	)
	err := row.Scan(&c.ID, &c.Service, &c.Camera, &c.Difference, &c.Threshold, &c.SHA256, &c.Width, &c.Height, &c.MimeType, &c.ObjectKey, &detectedAt)
	if err != nil {
		return nil, err
	}
	c.DetectedAt = time.Unix(0, detectedAt).UTC()
	return &c, nil
}

func (r *ChangeRepository) queryChanges(ctx context.Context, query string, args ...any) ([]*domain.Change, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*domain.Change{}
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Create stores a change
func (r *ChangeRepository) Create(ctx context.Context, c *domain.Change) error {
	if c.DetectedAt.IsZero() {
		c.DetectedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
insert into changes (`+changeColumns+`) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Service, c.Camera, c.Difference, c.Threshold, c.SHA256, c.Width, c.Height, c.MimeType, c.ObjectKey, c.DetectedAt.UnixNano(),
	)
	return err
}

// Get retrieves a change by ID
func (r *ChangeRepository) Get(ctx context.Context, id string) (*domain.Change, error) {
	row := r.db.QueryRowContext(ctx, `select `+changeColumns+` from changes where id = ?`, id)
	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// GetBySHA256 retrieves the changes of a frame hash, oldest first
func (r *ChangeRepository) GetBySHA256(ctx context.Context, sha256 string) ([]*domain.Change, error) {
	return r.queryChanges(ctx, `select `+changeColumns+` from changes where sha256 = ? order by detected_at asc`, sha256)
}

// List retrieves changes newest first
func (r *ChangeRepository) List(ctx context.Context, camera string, limit, offset int) ([]*domain.Change, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`select ` + changeColumns + ` from changes`)
	if camera != "" {
		query.WriteString(` where camera = ?`)
		args = append(args, camera)
	}
	query.WriteString(` order by detected_at desc, id`)
	if limit <= 0 {
		limit = -1
	}
	query.WriteString(` limit ? offset ?`)
	args = append(args, limit, offset)
	return r.queryChanges(ctx, query.String(), args...)
}

// Count returns the number of changes
func (r *ChangeRepository) Count(ctx context.Context, camera string) (int64, error) {
	var count int64
	var err error
	if camera == "" {
		err = r.db.QueryRowContext(ctx, `select count(*) from changes`).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `select count(*) from changes where camera = ?`, camera).Scan(&count)
	}
	return count, err
}

// Stats returns change statistics, restricted to camera when it is set
func (r *ChangeRepository) Stats(ctx context.Context, camera string) (*domain.ChangeStats, error) {
	var (
		stats      domain.ChangeStats
		mean       sql.NullFloat64
		lastDetect sql.NullInt64
	)
	query := `select count(*), count(distinct camera), avg(difference), max(detected_at) from changes`
	var args []any
	if camera != "" {
		query += ` where camera = ?`
		args = append(args, camera)
	}
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&stats.TotalChanges, &stats.Cameras, &mean, &lastDetect)
	if err != nil {
		return nil, err
	}
	stats.MeanDifference = mean.Float64
	if lastDetect.Valid {
		stats.LastDetectedAt = time.Unix(0, lastDetect.Int64).UTC()
	}
	return &stats, nil
}

// DeleteBefore removes changes detected before t
func (r *ChangeRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `delete from changes where detected_at < ?`, t.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Verify that ChangeRepository implements domain.ChangeRepository
var _ domain.ChangeRepository = (*ChangeRepository)(nil)
