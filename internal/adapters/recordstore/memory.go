package recordstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/veloclub/sortie/internal/domain/model"
)

// MemoryStore implements Store with in-process maps. It backs tests, the
// dev server and the importer's dry runs.
type MemoryStore struct {
	mu         sync.RWMutex
	members    map[string]*model.Member
	events     map[string]*model.Event
	attendance map[string]*model.AttendanceRecord // keyed by event id
	closed     bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:    make(map[string]*model.Member),
		events:     make(map[string]*model.Event),
		attendance: make(map[string]*model.AttendanceRecord),
	}
}

func (s *MemoryStore) ListMembers(_ context.Context) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, *m.Clone())
	}
	// Stable order keeps listings reproducible for handlers and tests.
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetMember(_ context.Context, id string) (model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return model.Member{}, ErrNotFound
	}
	return *m.Clone(), nil
}

func (s *MemoryStore) CreateMember(_ context.Context, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.ParticipationCount = len(m.AttendedDates)
	s.members[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) UpdateMember(_ context.Context, m *model.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[m.ID]; !ok {
		return ErrNotFound
	}
	s.members[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) DeleteMember(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; !ok {
		return ErrNotFound
	}
	delete(s.members, id)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISODate < out[j].ISODate })
	return out, nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, ErrNotFound
	}
	return *e.Clone(), nil
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, existing := range s.events {
		if existing.ISODate == e.ISODate {
			return ErrDuplicateDate
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.events[e.ID] = e.Clone()
	return nil
}

func (s *MemoryStore) UpdateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		return ErrNotFound
	}
	s.events[e.ID] = e.Clone()
	return nil
}

func (s *MemoryStore) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	delete(s.attendance, id)
	return nil
}

func (s *MemoryStore) GetAttendance(_ context.Context, eventID string) (model.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attendance[eventID]
	if !ok {
		return model.AttendanceRecord{}, ErrNotFound
	}
	return *cloneAttendance(rec), nil
}

func (s *MemoryStore) PutAttendance(_ context.Context, rec *model.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.attendance[rec.EventID] = cloneAttendance(rec)
	return nil
}

func (s *MemoryStore) DeleteAttendance(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attendance, eventID)
	return nil
}

// Close marks the store closed; later writes fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneAttendance(rec *model.AttendanceRecord) *model.AttendanceRecord {
	c := &model.AttendanceRecord{
		EventID: rec.EventID,
		ISODate: rec.ISODate,
		Entries: make(map[string]model.AttendanceEntry, len(rec.Entries)),
	}
	for k, v := range rec.Entries {
		c.Entries[k] = v
	}
	return c
}
