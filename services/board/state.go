package board

import "sync"

// EntryUIState is the transient per-entry view state. It is never persisted.
type EntryUIState struct {
	MenuOpen bool `json:"menuOpen"`
	Expanded bool `json:"expanded"`
	Selected bool `json:"selected"`
}

// EntryState keeps the UI state of every entry in one place instead of on the
// rendered rows, keyed by entry id.
type EntryState struct {
	mu     sync.RWMutex
	states map[string]EntryUIState
}

func NewEntryState() *EntryState {
	return &EntryState{states: make(map[string]EntryUIState)}
}

// Get returns the state of id; unknown ids read as the zero state.
func (s *EntryState) Get(id string) EntryUIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[id]
}

// Update applies fn to the state of id and returns the result. Opening a menu
// closes every other entry's menu.
func (s *EntryState) Update(id string, fn func(*EntryUIState)) EntryUIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.states[id]
	fn(&st)
	if st.MenuOpen {
		for other, o := range s.states {
			if other != id && o.MenuOpen {
				o.MenuOpen = false
				s.states[other] = o
			}
		}
	}
	if st == (EntryUIState{}) {
		delete(s.states, id)
	} else {
		s.states[id] = st
	}
	return st
}

// Snapshot copies every non-zero state.
func (s *EntryState) Snapshot() map[string]EntryUIState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]EntryUIState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

// Retain forgets the state of entries that are no longer on the board.
func (s *EntryState) Retain(live map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.states {
		if _, ok := live[id]; !ok {
			delete(s.states, id)
		}
	}
}

func (s *EntryState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]EntryUIState)
}
