package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"hazardcam/internal/dto"
	"hazardcam/internal/model"
)

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new SQLite capture repository.
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

// Upsert stores a capture and its detections, replacing any existing row for
// the same filename.
func (r *CaptureRepository) Upsert(c *model.Capture, detections []model.CaptureDetection) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM capture_detections
		WHERE capture_id IN (SELECT id FROM captures WHERE filename = ?)
	`, c.Filename); err != nil {
		return 0, fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM captures WHERE filename = ?`, c.Filename); err != nil {
		return 0, fmt.Errorf("failed to delete capture: %w", err)
	}

	result, err := tx.Exec(`
		INSERT INTO captures (filename, timestamp, filepath, filesize, source)
		VALUES (?, ?, ?, ?, ?)
	`, c.Filename, c.Timestamp.UTC().Truncate(time.Second), c.FilePath, c.FileSize, c.Source)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get capture id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO capture_detections (capture_id, label, confidence, x1, y1, x2, y2, dangerous)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(id, det.Label, det.Confidence, det.X1, det.Y1, det.X2, det.Y2, det.Dangerous); err != nil {
			return 0, fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit capture: %w", err)
	}
	return id, nil
}

// GetByFilename retrieves a capture by its filename. It returns nil, nil when
// no row exists.
func (r *CaptureRepository) GetByFilename(filename string) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var c model.Capture
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, timestamp, filepath, filesize, source
		FROM captures WHERE filename = ?
	`, filename).Scan(&c.ID, &c.Filename, &c.Timestamp, &c.FilePath, &c.FileSize, &c.Source)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	c.Timestamp = c.Timestamp.Local()
	return &c, nil
}

// whereClause builds the shared filter for GetAll and GetTotalCount.
func whereClause(filter dto.CaptureFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if filter.Class != "" {
		query += " AND c.id IN (SELECT capture_id FROM capture_detections WHERE label = ?)"
		args = append(args, filter.Class)
	}
	if !filter.DateAfter.IsZero() {
		query += " AND c.timestamp >= ?"
		args = append(args, startOfDay(filter.DateAfter).UTC())
	}
	if !filter.DateBefore.IsZero() {
		query += " AND c.timestamp < ?"
		args = append(args, startOfDay(filter.DateBefore).AddDate(0, 0, 1).UTC())
	}
	return query, args
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// GetAll retrieves captures matching filter, newest first.
func (r *CaptureRepository) GetAll(filter dto.CaptureFilter) ([]model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT c.id, c.filename, c.timestamp, c.filepath, c.filesize, c.source FROM captures c` +
		where + " ORDER BY c.timestamp DESC, c.filename DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	captures := []model.Capture{}
	for rows.Next() {
		var c model.Capture
		if err := rows.Scan(&c.ID, &c.Filename, &c.Timestamp, &c.FilePath, &c.FileSize, &c.Source); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		c.Timestamp = c.Timestamp.Local()
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate captures: %w", err)
	}
	return captures, nil
}

// GetTotalCount returns the number of captures matching filter, ignoring
// limit and offset.
func (r *CaptureRepository) GetTotalCount(filter dto.CaptureFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM captures c`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return count, nil
}

// DeleteByFilename removes a capture and its detections. Missing rows are not
// an error.
func (r *CaptureRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var id int64
	err := r.db.Conn().QueryRow(`SELECT id FROM captures WHERE filename = ?`, filename).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get capture id: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM capture_detections WHERE capture_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM captures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}

// DeleteAll removes all captures and their detections.
func (r *CaptureRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM capture_detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM captures`); err != nil {
		return fmt.Errorf("failed to delete captures: %w", err)
	}
	return nil
}
