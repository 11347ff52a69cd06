package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jotapp/jot/internal/model"
	"github.com/jotapp/jot/internal/remote"
	"github.com/jotapp/jot/internal/store"
)

// Remote is the slice of the server client the coordinator needs. The push
// operation is Create because the server upserts by id.
type Remote interface {
	List(ctx context.Context, since int64, includeDeleted bool) ([]model.Note, error)
	Create(ctx context.Context, n *model.Note) (*model.Note, error)
}

// Coordinator reconciles the local replica with the remote store. A pass is
// push, then pull, then apply, then commit; the watermark only advances when
// push and pull both succeeded, so a half-completed pass is indistinguishable
// from no pass at all.
type Coordinator struct {
	mu      sync.Mutex
	running bool

	local  *store.LocalStore
	remote Remote
	notify func()
	logger *slog.Logger
}

// New creates a coordinator. notify is called after any pass that changed
// local state; it may be nil.
func New(local *store.LocalStore, r Remote, notify func(), logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if notify == nil {
		notify = func() {}
	}
	return &Coordinator{local: local, remote: r, notify: notify, logger: logger}
}

// Sync runs one reconciliation pass. A pass that finds another pass already
// in flight returns immediately; concurrent passes racing on the watermark
// would lose updates. Network loss aborts the pass with remote.ErrUnavailable
// and the watermark untouched.
func (c *Coordinator) Sync(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logger.Debug("sync already in flight, skipping")
		return nil
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	meta, err := c.meta()
	if err != nil {
		return err
	}
	var lastSync int64
	if meta.LastSync != nil {
		lastSync = *meta.LastSync
	}

	// Captured before any work: records updated while the pass runs fall
	// after this mark and are picked up next time.
	start := model.Now()

	pushed, err := c.push(ctx, lastSync)
	if err != nil {
		return err
	}

	pulled, err := c.remote.List(ctx, lastSync, true)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}

	applied := 0
	for i := range pulled {
		ok, err := c.apply(&pulled[i])
		if err != nil {
			return err
		}
		if ok {
			applied++
		}
	}

	meta.LastSync = &start
	if err := c.local.Put(meta); err != nil {
		return fmt.Errorf("commit watermark: %w", err)
	}

	c.logger.Debug("sync pass complete", "pushed", pushed, "pulled", len(pulled), "applied", applied, "watermark", start)

	if applied > 0 {
		c.notify()
	}
	return nil
}

// push sends every local record newer than the watermark, tombstones
// included, reserved rows excluded. The first unavailable response aborts:
// a half-completed push must not look like success.
func (c *Coordinator) push(ctx context.Context, lastSync int64) (int, error) {
	notes, err := c.local.ListAll()
	if err != nil {
		return 0, err
	}

	pushed := 0
	for i := range notes {
		n := &notes[i]
		if model.Reserved(n.ID) || n.Updated <= lastSync {
			continue
		}
		if _, err := c.remote.Create(ctx, n); err != nil {
			return pushed, fmt.Errorf("push %s: %w", n.ID, err)
		}
		pushed++
	}
	return pushed, nil
}

// apply writes one pulled record into the local replica. The write goes
// straight to the store, never through the facade, so it cannot echo back
// out as a push. Records that are not newer than an identical local copy are
// skipped; a write that would decrease updated is never applied.
func (c *Coordinator) apply(n *model.Note) (bool, error) {
	existing, err := c.local.Get(n.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if n.Updated < existing.Updated {
			return false, nil
		}
		if n.Updated == existing.Updated && existing.EqualContent(n) {
			return false, nil
		}
	}
	if err := c.local.Put(n); err != nil {
		return false, fmt.Errorf("apply %s: %w", n.ID, err)
	}
	return true, nil
}

func (c *Coordinator) meta() (*model.Note, error) {
	meta, err := c.local.Get(model.MetaID)
	if err != nil {
		return nil, fmt.Errorf("read sync metadata: %w", err)
	}
	if meta == nil {
		meta = &model.Note{ID: model.MetaID}
	}
	return meta, nil
}

// Run performs an eager pass and then syncs on a fixed interval until ctx is
// cancelled. Unavailability is logged at debug level and waited out; the next
// tick is the retry.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	c.logSyncErr(c.Sync(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logSyncErr(c.Sync(ctx))
		}
	}
}

func (c *Coordinator) logSyncErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, remote.ErrUnavailable) {
		c.logger.Debug("sync pass aborted, remote unavailable")
		return
	}
	c.logger.Error("sync pass failed", "error", err)
}
