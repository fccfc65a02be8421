package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"offline-gateway/internal/store"
)

// ---- Store Mock ----

type mockStore struct {
	mu      sync.Mutex
	entries []store.Entry
	listErr error
	markErr error
}

func (s *mockStore) InsertPending(ctx context.Context, text string, createdAt int64) (store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := store.Entry{
		ID:        int64(len(s.entries) + 1),
		Text:      text,
		CreatedAt: createdAt,
		Status:    store.StatusPending,
	}
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *mockStore) ListByStatus(ctx context.Context, status string) ([]store.Entry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]store.Entry, 0)
	for _, entry := range s.entries {
		if entry.Status == status {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

func (s *mockStore) MarkSynced(ctx context.Context, ids []int64) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for index, entry := range s.entries {
		if marked[entry.ID] && entry.Status == store.StatusPending {
			s.entries[index].Status = store.StatusSynced
		}
	}
	return nil
}

func (s *mockStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

// ---- Deliverer Mock ----

type mockDeliverer struct {
	mu        sync.Mutex
	rejectIDs map[int64]bool
	delivered []int64
}

func (d *mockDeliverer) Deliver(ctx context.Context, entry store.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rejectIDs[entry.ID] {
		return ErrDeliveryRejected
	}
	d.delivered = append(d.delivered, entry.ID)
	return nil
}

// ---- Notifier / Scheduler Mock ----

type mockNotifier struct {
	counts []int
}

func (n *mockNotifier) NotifySynced(ctx context.Context, count int) {
	n.counts = append(n.counts, count)
}

type mockScheduler struct {
	tags []string
	err  error
}

func (s *mockScheduler) Register(ctx context.Context, tag string) error {
	if s.err != nil {
		return s.err
	}
	s.tags = append(s.tags, tag)
	return nil
}

func seedPending(entryStore *mockStore, texts ...string) {
	for index, text := range texts {
		entryStore.InsertPending(context.Background(), text, int64(1700000000000+index))
	}
}

func TestSyncEntriesMarksDeliveredAndNotifies(t *testing.T) {
	entryStore := &mockStore{}
	seedPending(entryStore, "first", "second", "third")

	deliverer := &mockDeliverer{}
	notifier := &mockNotifier{}
	scheduler := &mockScheduler{}
	coordinator := NewCoordinator(entryStore, deliverer, notifier, scheduler, "sync-entries")

	outcome, err := coordinator.SyncEntries(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if outcome.Delivered != 3 {
		t.Fatalf("expected 3 delivered, got %d", outcome.Delivered)
	}
	if outcome.Remaining != 0 || outcome.Rescheduled {
		t.Fatalf("expected clean outcome, got %+v", outcome)
	}
	if len(notifier.counts) != 1 || notifier.counts[0] != 3 {
		t.Fatalf("expected single notification with count 3, got %v", notifier.counts)
	}
	if len(scheduler.tags) != 0 {
		t.Fatalf("no retry expected when nothing remains, got %v", scheduler.tags)
	}

	synced, _ := entryStore.ListByStatus(context.Background(), store.StatusSynced)
	if len(synced) != 3 {
		t.Fatalf("expected all entries synced, got %d", len(synced))
	}
}

func TestSyncEntriesKeepsRejectedPendingAndReschedules(t *testing.T) {
	entryStore := &mockStore{}
	seedPending(entryStore, "first", "second", "third")

	// 第二条被远端拒绝,其余照常投递
	deliverer := &mockDeliverer{rejectIDs: map[int64]bool{2: true}}
	notifier := &mockNotifier{}
	scheduler := &mockScheduler{}
	coordinator := NewCoordinator(entryStore, deliverer, notifier, scheduler, "sync-entries")

	outcome, err := coordinator.SyncEntries(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if outcome.Delivered != 2 {
		t.Fatalf("expected 2 delivered, got %d", outcome.Delivered)
	}
	if outcome.Remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", outcome.Remaining)
	}
	if !outcome.Rescheduled {
		t.Fatalf("expected retry registration for remaining entry")
	}
	if len(scheduler.tags) != 1 || scheduler.tags[0] != "sync-entries" {
		t.Fatalf("expected exactly one retry tag, got %v", scheduler.tags)
	}
	if len(notifier.counts) != 1 || notifier.counts[0] != 2 {
		t.Fatalf("expected notification with count 2, got %v", notifier.counts)
	}

	pending, _ := entryStore.ListByStatus(context.Background(), store.StatusPending)
	if len(pending) != 1 || pending[0].ID != 2 {
		t.Fatalf("expected entry 2 still pending, got %v", pending)
	}
}

func TestSyncEntriesEmptyQueueIsNoop(t *testing.T) {
	entryStore := &mockStore{}
	notifier := &mockNotifier{}
	scheduler := &mockScheduler{}
	coordinator := NewCoordinator(entryStore, &mockDeliverer{}, notifier, scheduler, "sync-entries")

	outcome, err := coordinator.SyncEntries(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if outcome.Delivered != 0 || outcome.Remaining != 0 || outcome.Rescheduled {
		t.Fatalf("expected empty outcome, got %+v", outcome)
	}
	if len(notifier.counts) != 0 {
		t.Fatalf("no notification expected on empty queue, got %v", notifier.counts)
	}
}

func TestSyncEntriesSwallowsRetryRegistrationFailure(t *testing.T) {
	entryStore := &mockStore{}
	seedPending(entryStore, "only")

	deliverer := &mockDeliverer{rejectIDs: map[int64]bool{1: true}}
	scheduler := &mockScheduler{err: errors.New("nsqd unreachable")}
	coordinator := NewCoordinator(entryStore, deliverer, &mockNotifier{}, scheduler, "sync-entries")

	outcome, err := coordinator.SyncEntries(context.Background())
	if err != nil {
		t.Fatalf("registration failure must not fail the pass: %v", err)
	}
	if outcome.Rescheduled {
		t.Fatalf("failed registration must not count as rescheduled")
	}
	if outcome.Remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", outcome.Remaining)
	}
}

func TestSyncEntriesReturnsStoreError(t *testing.T) {
	entryStore := &mockStore{listErr: errors.New("mysql down")}
	coordinator := NewCoordinator(entryStore, &mockDeliverer{}, nil, nil, "sync-entries")

	if _, err := coordinator.SyncEntries(context.Background()); err == nil {
		t.Fatalf("expected error when pending entries cannot be drained")
	}
}

func TestSyncEntriesWorksWithoutNotifierAndScheduler(t *testing.T) {
	entryStore := &mockStore{}
	seedPending(entryStore, "first")

	coordinator := NewCoordinator(entryStore, &mockDeliverer{rejectIDs: map[int64]bool{1: true}}, nil, nil, "sync-entries")

	outcome, err := coordinator.SyncEntries(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if outcome.Remaining != 1 || outcome.Rescheduled {
		t.Fatalf("unexpected outcome without scheduler: %+v", outcome)
	}
}
