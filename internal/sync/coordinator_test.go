package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"

	"github.com/jotapp/jot/internal/database"
	"github.com/jotapp/jot/internal/model"
	"github.com/jotapp/jot/internal/remote"
	"github.com/jotapp/jot/internal/store"
)

// fakeRemote implements Remote in memory with switchable failure modes.
type fakeRemote struct {
	mu         stdsync.Mutex
	records    map[string]*model.Note
	failCreate bool
	failList   bool
	creates    int
	lists      int

	// when set, List blocks until the channel is closed; entered is closed
	// once List has been called.
	blockList chan struct{}
	entered   chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: map[string]*model.Note{}}
}

func (f *fakeRemote) Create(ctx context.Context, n *model.Note) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate {
		return nil, remote.ErrUnavailable
	}
	existing, ok := f.records[n.ID]
	if ok && n.Updated <= existing.Updated {
		return existing.Clone(), nil
	}
	f.records[n.ID] = n.Clone()
	return n.Clone(), nil
}

func (f *fakeRemote) List(ctx context.Context, since int64, includeDeleted bool) ([]model.Note, error) {
	f.mu.Lock()
	f.lists++
	entered := f.entered
	block := f.blockList
	fail := f.failList
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		f.mu.Lock()
		f.entered = nil
		f.mu.Unlock()
	}
	if block != nil {
		<-block
	}
	if fail {
		return nil, remote.ErrUnavailable
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var notes []model.Note
	for _, n := range f.records {
		if n.Updated <= since {
			continue
		}
		if !includeDeleted && n.Deleted != nil {
			continue
		}
		notes = append(notes, *n.Clone())
	}
	return notes, nil
}

func (f *fakeRemote) get(id string) *model.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.records[id]; ok {
		return n.Clone()
	}
	return nil
}

func setupLocal(t *testing.T) *store.LocalStore {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ls, err := store.OpenLocal(store.NewNoteStore(db), t.Name(), nil)
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	return ls
}

func lastSyncOf(t *testing.T, ls *store.LocalStore) *int64 {
	t.Helper()
	meta, err := ls.Get(model.MetaID)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta == nil {
		return nil
	}
	return meta.LastSync
}

func TestFirstSyncPushesAndCommitsWatermark(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	c := New(ls, fr, nil, nil)

	ls.Put(&model.Note{ID: "a", Type: model.TypeNote, Content: model.Content{Text: "x"}, Created: 100, Updated: 100})

	before := model.Now()
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	after := model.Now()

	if got := fr.get("a"); got == nil || got.Content.Text != "x" {
		t.Fatalf("remote copy = %+v, want pushed note", got)
	}

	ls2 := lastSyncOf(t, ls)
	if ls2 == nil {
		t.Fatal("watermark not committed")
	}
	if *ls2 < before || *ls2 > after {
		t.Errorf("watermark %d outside pass window [%d, %d]", *ls2, before, after)
	}
}

func TestSecondSyncIsQuiescent(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	c := New(ls, fr, nil, nil)

	ls.Put(&model.Note{ID: "a", Type: model.TypeNote, Content: model.Content{Text: "x"}, Created: 100, Updated: 100})

	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	creates := fr.creates

	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if fr.creates != creates {
		t.Errorf("second pass pushed %d records, want 0", fr.creates-creates)
	}
}

func TestPushFailureAbortsBeforePull(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	fr.failCreate = true
	c := New(ls, fr, nil, nil)

	ls.Put(&model.Note{ID: "a", Updated: 100})

	err := c.Sync(context.Background())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if fr.lists != 0 {
		t.Error("pull phase ran despite push failure")
	}
	if lastSyncOf(t, ls) != nil {
		t.Error("watermark advanced despite aborted pass")
	}
}

func TestPullFailureLeavesWatermarkUntouched(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	c := New(ls, fr, nil, nil)

	// Establish a watermark with one clean pass.
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("initial sync: %v", err)
	}
	committed := lastSyncOf(t, ls)
	if committed == nil {
		t.Fatal("no watermark after clean pass")
	}

	// Next pass: push succeeds (there is something to push), pull fails.
	ls.Put(&model.Note{ID: "b", Updated: *committed + 10})
	fr.failList = true

	err := c.Sync(context.Background())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if fr.get("b") == nil {
		t.Error("push phase should have completed before the pull failed")
	}

	got := lastSyncOf(t, ls)
	if got == nil || *got != *committed {
		t.Errorf("watermark = %v, want unchanged %d", got, *committed)
	}
}

func TestRemoteNewerVersionWins(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	notified := 0
	c := New(ls, fr, func() { notified++ }, nil)

	ls.Put(&model.Note{ID: "b", Type: model.TypeNote, Content: model.Content{Text: "local"}, Created: 100, Updated: 200})
	fr.records["b"] = &model.Note{ID: "b", Type: model.TypeNote, Content: model.Content{Text: "remote"}, Created: 100, Updated: 300}

	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, _ := ls.Get("b")
	if got.Content.Text != "remote" {
		t.Errorf("content = %q, want remote version to win", got.Content.Text)
	}
	if got.Updated != 300 {
		t.Errorf("updated = %d, want 300", got.Updated)
	}
	if notified != 1 {
		t.Errorf("notified %d times, want 1", notified)
	}
}

func TestStaleRemoteVersionNeverApplied(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	c := New(ls, fr, nil, nil)

	ls.Put(&model.Note{ID: "b", Type: model.TypeNote, Content: model.Content{Text: "newer"}, Created: 100, Updated: 500})
	fr.records["b"] = &model.Note{ID: "b", Type: model.TypeNote, Content: model.Content{Text: "older"}, Created: 100, Updated: 300}

	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got, _ := ls.Get("b")
	if got.Updated != 500 {
		t.Errorf("updated = %d; applying a pulled record must never decrease it", got.Updated)
	}
	if got.Content.Text != "newer" {
		t.Errorf("content = %q, local newer copy should survive", got.Content.Text)
	}
}

func TestIdempotentApply(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	notified := 0
	c := New(ls, fr, func() { notified++ }, nil)

	pulled := &model.Note{ID: "r", Type: model.TypeNote, Content: model.Content{Text: "x"}, Created: 50, Updated: 100}

	ok, err := c.apply(pulled)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !ok {
		t.Fatal("first apply should write")
	}

	// Applying the identical record again (updated unchanged) is a no-op.
	ok, err = c.apply(pulled.Clone())
	if err != nil {
		t.Fatalf("re-apply: %v", err)
	}
	if ok {
		t.Error("re-applying an identical record must not write")
	}
	if fr.creates != 0 {
		t.Errorf("apply echoed %d pushes to the remote, want 0", fr.creates)
	}

	// A full pass over the already-applied record must not notify either:
	// the remote copy is identical and the watermark is still null, so the
	// pull returns it once more and the apply skips it.
	fr.records["r"] = pulled.Clone()
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if notified != 0 {
		t.Errorf("notified %d times, re-applying an identical record must not notify", notified)
	}
}

func TestTombstonePropagation(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	c := New(ls, fr, nil, nil)

	tomb := int64(400)
	ls.Put(&model.Note{ID: "dead", Type: model.TypeNote, Created: 100, Updated: 400, Deleted: &tomb})

	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got := fr.get("dead")
	if got == nil {
		t.Fatal("tombstone was not pushed")
	}
	if got.Deleted == nil || *got.Deleted != 400 {
		t.Errorf("remote deleted = %v, want 400", got.Deleted)
	}
}

func TestReservedRecordsNeverPushed(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	c := New(ls, fr, nil, nil)

	ls.Put(&model.Note{ID: model.DraftID, Type: model.TypeNote, Content: model.Content{Text: "wip"}, Updated: model.Now()})

	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if fr.get(model.DraftID) != nil || fr.get(model.MetaID) != nil {
		t.Error("reserved records leaked to the remote")
	}
}

func TestOverlappingPassIgnored(t *testing.T) {
	ls := setupLocal(t)
	fr := newFakeRemote()
	fr.blockList = make(chan struct{})
	fr.entered = make(chan struct{})
	c := New(ls, fr, nil, nil)

	done := make(chan error, 1)
	go func() { done <- c.Sync(context.Background()) }()

	<-fr.entered // first pass is now parked inside the pull

	// A trigger firing mid-pass must be a no-op, not a concurrent pass.
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("overlapping sync: %v", err)
	}
	if fr.lists != 1 {
		t.Errorf("lists = %d, overlapping trigger must not start a second pull", fr.lists)
	}

	close(fr.blockList)
	if err := <-done; err != nil {
		t.Fatalf("first sync: %v", err)
	}
}
