package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Note types.
const (
	TypeNote     = "note"
	TypeTasklist = "tasklist"
)

// Reserved record ids. Both live in the same collection as ordinary notes
// and must be filtered out of every user-facing listing.
const (
	MetaID  = "meta"  // sync bookkeeping singleton
	DraftID = "draft" // in-progress unsaved note
)

// Reserved reports whether id is one of the bookkeeping ids.
func Reserved(id string) bool {
	return id == MetaID || id == DraftID
}

// Now returns the current time in milliseconds since the epoch, the unit
// used for all note timestamps and the sync watermark.
func Now() int64 {
	return time.Now().UnixMilli()
}

// TaskItem is a single entry of a tasklist note.
type TaskItem struct {
	Checked bool   `json:"checked"`
	Content string `json:"content"`
}

// Content holds a note body. On the wire it is either a JSON string (free
// text) or a JSON array of task items (tasklist); Tasks being non-nil decides
// which form is written.
type Content struct {
	Text  string
	Tasks []TaskItem
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Tasks != nil {
		return json.Marshal(c.Tasks)
	}
	return json.Marshal(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = Content{}
		return nil
	}
	if trimmed[0] == '[' {
		tasks := []TaskItem{}
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return fmt.Errorf("unmarshal tasklist content: %w", err)
		}
		*c = Content{Tasks: tasks}
		return nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return fmt.Errorf("unmarshal note content: %w", err)
	}
	*c = Content{Text: text}
	return nil
}

// Equal compares two bodies item for item.
func (c Content) Equal(o Content) bool {
	if (c.Tasks == nil) != (o.Tasks == nil) {
		return false
	}
	if c.Tasks == nil {
		return c.Text == o.Text
	}
	if len(c.Tasks) != len(o.Tasks) {
		return false
	}
	for i := range c.Tasks {
		if c.Tasks[i] != o.Tasks[i] {
			return false
		}
	}
	return true
}

// Reminder is an optional alert attached to a note.
type Reminder struct {
	Enabled     bool   `json:"enabled"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	RepeatCount int    `json:"repeatCount,omitempty"`
	RepeatUnit  string `json:"repeatUnit,omitempty"`
}

// Note is the central record. Created is set once; Updated is bumped on every
// content-affecting mutation and doubles as the sync watermark. Deleted is a
// tombstone timestamp: tombstoned records are retained so the deletion can
// reach the remote before any local cleanup.
//
// LastSync is only populated on the reserved meta record.
type Note struct {
	ID       string    `json:"id"`
	Type     string    `json:"type,omitempty"`
	Title    string    `json:"title,omitempty"`
	Content  Content   `json:"content"`
	Reminder *Reminder `json:"reminder,omitempty"`
	Created  int64     `json:"created,omitempty"`
	Updated  int64     `json:"updated,omitempty"`
	Deleted  *int64    `json:"deleted"`
	LastSync *int64    `json:"lastSync,omitempty"`
}

// Clone returns a deep copy, so cached records cannot be mutated through
// shared pointers.
func (n *Note) Clone() *Note {
	c := *n
	if n.Content.Tasks != nil {
		c.Content.Tasks = append([]TaskItem(nil), n.Content.Tasks...)
	}
	if n.Reminder != nil {
		r := *n.Reminder
		c.Reminder = &r
	}
	if n.Deleted != nil {
		d := *n.Deleted
		c.Deleted = &d
	}
	if n.LastSync != nil {
		s := *n.LastSync
		c.LastSync = &s
	}
	return &c
}

// EqualContent reports whether every user-visible field matches: type, title,
// body, reminder, and deletion state. Timestamps and id are deliberately not
// compared; this is the equality used to decide that applying a pulled record
// would be a no-op.
func (n *Note) EqualContent(o *Note) bool {
	if n.Type != o.Type || n.Title != o.Title {
		return false
	}
	if !n.Content.Equal(o.Content) {
		return false
	}
	if (n.Deleted == nil) != (o.Deleted == nil) {
		return false
	}
	if n.Deleted != nil && *n.Deleted != *o.Deleted {
		return false
	}
	if (n.Reminder == nil) != (o.Reminder == nil) {
		return false
	}
	if n.Reminder != nil && *n.Reminder != *o.Reminder {
		return false
	}
	return true
}

// Live reports whether the note has not been tombstoned.
func (n *Note) Live() bool {
	return n.Deleted == nil
}
