package notestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jotapp/jot/internal/model"
	"github.com/jotapp/jot/internal/notify"
	"github.com/jotapp/jot/internal/remote"
	"github.com/jotapp/jot/internal/store"
)

// Pusher is the slice of the remote client the facade needs for best-effort
// pushes. The server upserts on Create, so Create covers updates too.
type Pusher interface {
	Create(ctx context.Context, n *model.Note) (*model.Note, error)
}

const pushTimeout = 10 * time.Second

// Store is the surface the UI binds to: CRUD over the local replica, a
// best-effort forward of each change to the remote, and a payload-free change
// notification after every successful mutation. Local state is always the
// source of truth; a failed push is repaired by the next sync pass.
type Store struct {
	local    *store.LocalStore
	pusher   Pusher
	notifier *notify.Broadcaster
	logger   *slog.Logger
}

// New creates a facade over local. pusher may be nil for a purely offline
// store.
func New(local *store.LocalStore, pusher Pusher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		local:    local,
		pusher:   pusher,
		notifier: notify.New(),
		logger:   logger,
	}
}

// Notifier returns the change broadcast subscribers listen on.
func (s *Store) Notifier() *notify.Broadcaster {
	return s.notifier
}

// Add assigns identity and timestamps, persists the note locally, forwards it
// to the remote without waiting, and notifies.
func (s *Store) Add(n *model.Note) (*model.Note, error) {
	now := model.Now()

	entry := n.Clone()
	entry.ID = "id_" + uuid.NewString()
	entry.Created = now
	entry.Updated = now
	entry.Deleted = nil
	if entry.Type == "" {
		entry.Type = model.TypeNote
	}

	if err := s.local.Put(entry); err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}

	s.pushAsync(entry)
	s.notifier.Notify()
	return entry.Clone(), nil
}

// Update persists a full replacement record. With suppressNetwork the write
// is bookkeeping (draft, pulled records): the updated timestamp is left
// alone, nothing is forwarded to the remote, and no notification fires.
func (s *Store) Update(n *model.Note, suppressNetwork bool) error {
	entry := n.Clone()
	if !suppressNetwork {
		entry.Updated = model.Now()
	}

	if err := s.local.Put(entry); err != nil {
		return fmt.Errorf("update note: %w", err)
	}

	if !suppressNetwork {
		s.pushAsync(entry)
		s.notifier.Notify()
	}
	return nil
}

// Remove tombstones the note. The record stays in the store so the deletion
// can reach the remote; it only disappears from listings.
func (s *Store) Remove(n *model.Note) error {
	entry := n.Clone()
	now := model.Now()
	entry.Deleted = &now
	return s.Update(entry, false)
}

// Get returns the note with the given id, or nil if absent.
func (s *Store) Get(id string) (*model.Note, error) {
	return s.local.Get(id)
}

// All lists notes with updated > since, newest first. Reserved records are
// always excluded; tombstones only appear when includeDeleted is set.
func (s *Store) All(since int64, includeDeleted bool) ([]model.Note, error) {
	notes, err := s.local.ListAll()
	if err != nil {
		return nil, err
	}

	out := notes[:0]
	for _, n := range notes {
		if model.Reserved(n.ID) {
			continue
		}
		if !includeDeleted && !n.Live() {
			continue
		}
		if since > 0 && n.Updated <= since {
			continue
		}
		out = append(out, n)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	return out, nil
}

// Draft returns the in-progress unsaved note, or nil if there is none.
func (s *Store) Draft() (*model.Note, error) {
	return s.local.Get(model.DraftID)
}

// SetDraft persists the composer state under the reserved draft id so a
// restart does not lose it. Never synced.
func (s *Store) SetDraft(n *model.Note) error {
	entry := n.Clone()
	entry.ID = model.DraftID
	return s.Update(entry, true)
}

// ClearDraft discards the saved composer state.
func (s *Store) ClearDraft() error {
	return s.local.Delete(model.DraftID)
}

// Reset wipes the local collection. Sync bookkeeping goes with it, so the
// next pass is a full sync.
func (s *Store) Reset() error {
	if err := s.local.Reset(); err != nil {
		return err
	}
	s.notifier.Notify()
	return nil
}

// pushAsync forwards a record to the remote without blocking the caller.
// Failure is absorbed: the record is already durable locally and the next
// sync pass will carry it.
func (s *Store) pushAsync(n *model.Note) {
	if s.pusher == nil {
		return
	}
	entry := n.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()

		if _, err := s.pusher.Create(ctx, entry); err != nil {
			if errors.Is(err, remote.ErrUnavailable) {
				s.logger.Debug("push skipped, remote unavailable", "id", entry.ID)
			} else {
				s.logger.Warn("push failed", "id", entry.ID, "error", err)
			}
		}
	}()
}
