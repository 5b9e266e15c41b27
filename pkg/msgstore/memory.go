package msgstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-botbus/pkg/botmsg"
)

const (
	// maxAckAttempts bounds the acknowledgement CAS loop before the call
	// surfaces botmsg.ErrConcurrency.
	maxAckAttempts = 5
	ackRetryDelay  = 2 * time.Millisecond
)

// memoryRecord pairs a message with the version counter the acknowledgement
// CAS loop compares against, and the insertion sequence used to break
// creation-time ties in listings.
type memoryRecord struct {
	msg     botmsg.Message
	version int64
	seq     int64
}

// MemoryStore is a thread-safe, in-memory Store. It is the local and test
// counterpart of FirestoreStore; acknowledgements go through an explicit
// versioned compare-and-commit loop rather than a transaction primitive.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]memoryRecord
	watchers map[int]chan struct{}
	nextID   int
	seq      int64
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]memoryRecord),
		watchers: make(map[int]chan struct{}),
		now:      time.Now,
	}
}

// Create persists a new message with a generated id and empty
// acknowledgement fields.
func (s *MemoryStore) Create(_ context.Context, req botmsg.CreateRequest) (botmsg.Message, error) {
	if err := checkRequired(req); err != nil {
		return botmsg.Message{}, err
	}

	msg := botmsg.Message{
		ID:              uuid.NewString(),
		Description:     req.Description,
		Target:          req.Target,
		Acknowledgement: []string{},
		CreatedAt:       s.now().UTC(),
	}
	msg.Config = make(map[string]any, len(req.Config))
	for k, v := range req.Config {
		msg.Config[k] = v
	}

	s.mu.Lock()
	s.seq++
	s.records[msg.ID] = memoryRecord{msg: cloneMessage(msg), seq: s.seq}
	s.mu.Unlock()
	s.notify()

	return msg, nil
}

// GetByID returns a copy of the message or botmsg.ErrNotFound.
func (s *MemoryStore) GetByID(_ context.Context, id string) (botmsg.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return botmsg.Message{}, fmt.Errorf("message %s: %w", id, botmsg.ErrNotFound)
	}
	return cloneMessage(rec.msg), nil
}

// List returns all messages, newest first.
func (s *MemoryStore) List(_ context.Context) ([]botmsg.Message, error) {
	s.mu.RLock()
	recs := make([]memoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].msg.CreatedAt.Equal(recs[j].msg.CreatedAt) {
			return recs[i].msg.CreatedAt.After(recs[j].msg.CreatedAt)
		}
		return recs[i].seq > recs[j].seq
	})

	out := make([]botmsg.Message, 0, len(recs))
	for _, rec := range recs {
		out = append(out, cloneMessage(rec.msg))
	}
	return out, nil
}

// Delete removes the record. Deleting an absent id is a no-op success.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	_, existed := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()
	if existed {
		s.notify()
	}
	return nil
}

// ApplyAcknowledgement records a worker's acknowledgement at most once. The
// read-check-write runs as a compare-and-commit on the record's version, so
// only writers contending on the same message id ever retry.
func (s *MemoryStore) ApplyAcknowledgement(ctx context.Context, id string, workerID string) (botmsg.Message, error) {
	for attempt := 0; attempt < maxAckAttempts; attempt++ {
		s.mu.RLock()
		rec, ok := s.records[id]
		s.mu.RUnlock()
		if !ok {
			return botmsg.Message{}, fmt.Errorf("message %s: %w", id, botmsg.ErrNotFound)
		}
		if rec.msg.AcknowledgedBy(workerID) {
			// Duplicate delivery of the broadcast; nothing to record.
			return cloneMessage(rec.msg), nil
		}

		updated := cloneMessage(rec.msg)
		updated.Acknowledgement = append(updated.Acknowledgement, workerID)
		updated.AcknowledgementCount = len(updated.Acknowledgement)

		s.mu.Lock()
		current, ok := s.records[id]
		if !ok {
			s.mu.Unlock()
			return botmsg.Message{}, fmt.Errorf("message %s: %w", id, botmsg.ErrNotFound)
		}
		if current.version == rec.version {
			s.records[id] = memoryRecord{msg: updated, version: rec.version + 1, seq: rec.seq}
			s.mu.Unlock()
			s.notify()
			return cloneMessage(updated), nil
		}
		// Another writer committed between our read and this commit point.
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return botmsg.Message{}, ctx.Err()
		case <-time.After(ackRetryDelay * time.Duration(attempt+1)):
		}
	}
	return botmsg.Message{}, fmt.Errorf("message %s, worker %s: %w", id, workerID, botmsg.ErrConcurrency)
}

// Watch registers a change listener. The returned channel receives a signal
// whenever any message is created, deleted or acknowledged; signals coalesce,
// so a reader observes the latest state rather than every intermediate one.
// The cancel func is safe to call more than once.
func (s *MemoryStore) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *MemoryStore) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending; the watcher will see this change
			// when it reads current state.
		}
	}
}
