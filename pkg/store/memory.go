package store

import (
	"context"
	"sync"

	"github.com/livekit/tutor-room/pkg/rtc/types"
)

// MemoryStore keeps session records for the lifetime of the process.
type MemoryStore struct {
	lock    sync.RWMutex
	records map[string]types.StoredSessionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]types.StoredSessionRecord),
	}
}

func (s *MemoryStore) List(_ context.Context) ([]types.StoredSessionRecord, error) {
	s.lock.RLock()
	records := make([]types.StoredSessionRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.lock.RUnlock()

	sortRecords(records)
	return records, nil
}

func (s *MemoryStore) Upsert(_ context.Context, record types.StoredSessionRecord) error {
	if record.RoomID == "" {
		return ErrRoomIDRequired
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.records[record.RoomID] = record
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, roomID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.records, roomID)
	return nil
}
