package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jotapp/jot/internal/model"
)

// NoteStore persists full note records keyed by id. Records are stored as
// JSON blobs with the updated/deleted columns extracted for indexed queries.
// Reserved records (meta, draft) live in the same table as ordinary notes.
type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

// Get returns the record with the given id, or nil if absent.
func (s *NoteStore) Get(id string) (*model.Note, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM notes WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}

	var n model.Note
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		return nil, fmt.Errorf("decode note %s: %w", id, err)
	}
	return &n, nil
}

// Put inserts or replaces the full record. There is no partial-field update;
// callers supply a complete note.
func (s *NoteStore) Put(n *model.Note) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode note %s: %w", n.ID, err)
	}

	var deleted sql.NullInt64
	if n.Deleted != nil {
		deleted = sql.NullInt64{Int64: *n.Deleted, Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO notes (id, data, updated, deleted) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated = excluded.updated, deleted = excluded.deleted`,
		n.ID, string(data), n.Updated, deleted,
	)
	if err != nil {
		return fmt.Errorf("put note %s: %w", n.ID, err)
	}
	return nil
}

// Delete physically removes a record. Normal deletion is a tombstone write
// through Put; this is only used by storage reset and draft cleanup.
func (s *NoteStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	return nil
}

// ListAll returns every stored record, reserved ids and tombstones included.
// Filtering is the caller's responsibility.
func (s *NoteStore) ListAll() ([]model.Note, error) {
	rows, err := s.db.Query(`SELECT data FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListSince returns records with updated > since, newest first, excluding the
// reserved ids. Tombstones are included only when includeDeleted is set.
// since = 0 returns the full collection.
func (s *NoteStore) ListSince(since int64, includeDeleted bool) ([]model.Note, error) {
	q := `SELECT data FROM notes WHERE id NOT IN (?, ?) AND updated > ?`
	if !includeDeleted {
		q += ` AND deleted IS NULL`
	}
	q += ` ORDER BY updated DESC`

	rows, err := s.db.Query(q, model.MetaID, model.DraftID, since)
	if err != nil {
		return nil, fmt.Errorf("list notes since %d: %w", since, err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// Reset removes every record in the collection.
func (s *NoteStore) Reset() error {
	_, err := s.db.Exec(`DELETE FROM notes`)
	if err != nil {
		return fmt.Errorf("reset notes: %w", err)
	}
	return nil
}

func scanNotes(rows *sql.Rows) ([]model.Note, error) {
	var notes []model.Note
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		var n model.Note
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			return nil, fmt.Errorf("decode note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
