package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mayankSinghx/QuickShow/internal/element"
)

// Store is the persistence boundary: rooms, the authoritative element
// collection per room, and the append-only element_versions audit trail.
type Store struct {
	db *sql.DB
}

type Room struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS elements (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		type TEXT NOT NULL,
		x REAL NOT NULL DEFAULT 0,
		y REAL NOT NULL DEFAULT 0,
		width REAL NOT NULL DEFAULT 0,
		height REAL NOT NULL DEFAULT 0,
		rotation REAL NOT NULL DEFAULT 0,
		stroke_color TEXT NOT NULL DEFAULT '',
		fill_color TEXT NOT NULL DEFAULT '',
		stroke_width REAL NOT NULL DEFAULT 0,
		points TEXT,
		text TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_elements_room_id ON elements(room_id);

	CREATE TABLE IF NOT EXISTS element_versions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		element_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		type TEXT NOT NULL,
		x REAL NOT NULL DEFAULT 0,
		y REAL NOT NULL DEFAULT 0,
		width REAL NOT NULL DEFAULT 0,
		height REAL NOT NULL DEFAULT 0,
		rotation REAL NOT NULL DEFAULT 0,
		stroke_color TEXT NOT NULL DEFAULT '',
		fill_color TEXT NOT NULL DEFAULT '',
		stroke_width REAL NOT NULL DEFAULT 0,
		points TEXT,
		text TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_element_versions_element_id ON element_versions(element_id);
	CREATE INDEX IF NOT EXISTS idx_element_versions_room_id ON element_versions(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Room operations

// CreateRoomIfAbsent ensures the room row exists. INSERT OR IGNORE makes
// this safe under two simultaneous joins to a new room.
func (s *Store) CreateRoomIfAbsent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO rooms (id) VALUES (?)",
		id,
	)
	return err
}

func (s *Store) GetRoom(ctx context.Context, id string) (*Room, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, updated_at FROM rooms WHERE id = ?",
		id,
	)

	var room Room
	err := row.Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) ListRooms(ctx context.Context, limit, offset int) ([]Room, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, updated_at FROM rooms ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	return err
}

// Element operations

const elementColumns = "id, type, x, y, width, height, rotation, stroke_color, fill_color, stroke_width, points, text, version, updated_at"

func scanElement(row interface{ Scan(...any) error }) (*element.Element, error) {
	var el element.Element
	var points sql.NullString
	err := row.Scan(
		&el.ID, &el.Type, &el.X, &el.Y, &el.Width, &el.Height, &el.Rotation,
		&el.StrokeColor, &el.FillColor, &el.StrokeWidth,
		&points, &el.Text, &el.Version, &el.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if points.Valid && points.String != "" {
		if err := json.Unmarshal([]byte(points.String), &el.Points); err != nil {
			return nil, fmt.Errorf("decode points for element %s: %w", el.ID, err)
		}
	}
	return &el, nil
}

func encodePoints(points []element.Point) (any, error) {
	if points == nil {
		return nil, nil
	}
	data, err := json.Marshal(points)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GetElement returns the stored state for id, or nil when absent.
func (s *Store) GetElement(ctx context.Context, id string) (*element.Element, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+elementColumns+" FROM elements WHERE id = ?",
		id,
	)

	el, err := scanElement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return el, nil
}

// RoomElements returns the full element snapshot for a room.
func (s *Store) RoomElements(ctx context.Context, roomID string) ([]element.Element, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+elementColumns+" FROM elements WHERE room_id = ? ORDER BY updated_at ASC, id ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var elements []element.Element
	for rows.Next() {
		el, err := scanElement(rows)
		if err != nil {
			return nil, err
		}
		elements = append(elements, *el)
	}
	return elements, rows.Err()
}

// ApplyElementMutation stores an accepted commit: the element upsert and
// the audit record are written in one transaction so no partial write is
// ever observable.
func (s *Store) ApplyElementMutation(ctx context.Context, roomID string, el element.Element) error {
	points, err := encodePoints(el.Points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO elements (id, room_id, type, x, y, width, height, rotation, stroke_color, fill_color, stroke_width, points, text, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			x = excluded.x,
			y = excluded.y,
			width = excluded.width,
			height = excluded.height,
			rotation = excluded.rotation,
			stroke_color = excluded.stroke_color,
			fill_color = excluded.fill_color,
			stroke_width = excluded.stroke_width,
			points = excluded.points,
			text = excluded.text,
			version = excluded.version,
			updated_at = excluded.updated_at
	`, el.ID, roomID, el.Type, el.X, el.Y, el.Width, el.Height, el.Rotation,
		el.StrokeColor, el.FillColor, el.StrokeWidth, points, el.Text, el.Version, el.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO element_versions (element_id, room_id, type, x, y, width, height, rotation, stroke_color, fill_color, stroke_width, points, text, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, el.ID, roomID, el.Type, el.X, el.Y, el.Width, el.Height, el.Rotation,
		el.StrokeColor, el.FillColor, el.StrokeWidth, points, el.Text, el.Version, el.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE rooms SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		roomID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Audit trail

// ElementVersions lists the audit records for an element, newest first.
func (s *Store) ElementVersions(ctx context.Context, elementID string, limit, offset int) ([]element.Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, element_id, type, x, y, width, height, rotation, stroke_color, fill_color, stroke_width, points, text, version, updated_at
		FROM element_versions
		WHERE element_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, elementID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []element.Version
	for rows.Next() {
		var v element.Version
		var points sql.NullString
		err := rows.Scan(
			&v.ID, &v.ElementID, &v.Type, &v.X, &v.Y, &v.Width, &v.Height, &v.Rotation,
			&v.StrokeColor, &v.FillColor, &v.StrokeWidth,
			&points, &v.Text, &v.Version, &v.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		v.Element.ID = v.ElementID
		if points.Valid && points.String != "" {
			if err := json.Unmarshal([]byte(points.String), &v.Points); err != nil {
				return nil, fmt.Errorf("decode points for version %d: %w", v.ID, err)
			}
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *Store) ElementVersionCount(ctx context.Context, elementID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM element_versions WHERE element_id = ?",
		elementID,
	).Scan(&count)
	return count, err
}

// Stats

func (s *Store) Stats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var roomCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var elementCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM elements").Scan(&elementCount); err != nil {
		return nil, err
	}
	stats["element_count"] = elementCount

	var versionCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM element_versions").Scan(&versionCount); err != nil {
		return nil, err
	}
	stats["version_count"] = versionCount

	return stats, nil
}
