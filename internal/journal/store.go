// Package journal keeps a local history of image actions in SQLite.
//
// The controller calls Record after every action, successful or not, so
// operators can see what changed and when with `oneimage history`.
package journal

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jbweber/oneimage/internal/image"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// timeLayout has fixed width so started_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store records actions. It satisfies image.Recorder.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the journal at path and applies the schema.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Debug("journal_open", "db_path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open journal")
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create journal schema")
	}
	return &Store{db: db, log: log}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores rec. A negative ImageID is stored as NULL.
func (s *Store) Record(ctx context.Context, rec image.ActionRecord) error {
	var imageID sql.NullInt64
	if rec.ImageID >= 0 {
		imageID = sql.NullInt64{Int64: int64(rec.ImageID), Valid: true}
	}
	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}

	query := `
		INSERT INTO actions (id, action, image, image_id, changed, outcome, error_message, driver_url, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, query,
		id, rec.Action, rec.Image, imageID, rec.Changed, rec.Outcome, errMsg,
		rec.DriverURL, rec.StartedAt.UTC().Format(timeLayout), rec.Duration.Milliseconds())
	if err != nil {
		return errors.Wrapf(err, "failed to record %s of image '%s'", rec.Action, rec.Image)
	}

	s.log.Debug("journal_recorded", "id", id, "action", rec.Action, "image_name", rec.Image, "outcome", rec.Outcome)
	return nil
}

// List returns the most recent entries first. An empty name lists every
// image; limit <= 0 uses DefaultLimit.
func (s *Store) List(ctx context.Context, name string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, action, image, image_id, changed, outcome, error_message, driver_url, started_at, duration_ms
		FROM actions
		WHERE (? = '' OR image = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, name, name, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query journal")
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			imageID sql.NullInt64
			errMsg  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Image, &imageID, &e.Changed, &e.Outcome,
			&errMsg, &e.DriverURL, &e.StartedAt, &e.Duration); err != nil {
			return nil, errors.Wrap(err, "failed to scan journal entry")
		}
		e.ImageID = -1
		if imageID.Valid {
			e.ImageID = int(imageID.Int64)
		}
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read journal")
	}
	return entries, nil
}
