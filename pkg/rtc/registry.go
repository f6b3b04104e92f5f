package rtc

import (
	"sort"
	"sync"
)

// Registry tracks the live sessions of the process by room. A manager registers its session
// on join and removes it on leave or failure.
type Registry struct {
	lock     sync.RWMutex
	sessions map[string]*RoomSession
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*RoomSession),
	}
}

func (r *Registry) Add(s *RoomSession) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[s.RoomID] = s
}

func (r *Registry) Get(roomID string) *RoomSession {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.sessions[roomID]
}

// Remove deletes s from the registry unless another session has replaced it since.
func (r *Registry) Remove(s *RoomSession) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.sessions[s.RoomID] == s {
		delete(r.sessions, s.RoomID)
	}
}

func (r *Registry) RoomIDs() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}
