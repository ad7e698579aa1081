package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
)

type dayKey struct {
	subjectID string
	day       time.Time
}

// MemoryStore is an in-process template store and event sink, used for
// offline replay and tests. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	subjects map[string]*models.Subject
	refs     map[string][]models.Descriptor
	events   []models.AttendanceEvent
	byDay    map[dayKey]struct{}
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects: make(map[string]*models.Subject),
		refs:     make(map[string][]models.Descriptor),
		byDay:    make(map[dayKey]struct{}),
		now:      time.Now,
	}
}

func (m *MemoryStore) AddReferences(_ context.Context, subjectID, displayName string, refs []models.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subjects[subjectID]
	if !ok {
		sub = &models.Subject{SubjectID: subjectID, CreatedAt: m.now()}
		m.subjects[subjectID] = sub
	}
	sub.DisplayName = displayName
	for _, r := range refs {
		m.refs[subjectID] = append(m.refs[subjectID], slices.Clone(r))
	}
	sub.ReferenceCount = len(m.refs[subjectID])
	return nil
}

func (m *MemoryStore) ListEnrolled(_ context.Context) ([]models.EnrollmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]models.EnrollmentRecord, 0, len(m.subjects))
	for id, sub := range m.subjects {
		refs := m.refs[id]
		if len(refs) == 0 {
			continue
		}
		records = append(records, models.EnrollmentRecord{
			SubjectID:   id,
			DisplayName: sub.DisplayName,
			References:  slices.Clone(refs),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].SubjectID < records[j].SubjectID })
	return records, nil
}

func (m *MemoryStore) ListSubjects(_ context.Context) ([]models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subjects := make([]models.Subject, 0, len(m.subjects))
	for _, sub := range m.subjects {
		subjects = append(subjects, *sub)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].DisplayName != subjects[j].DisplayName {
			return subjects[i].DisplayName < subjects[j].DisplayName
		}
		return subjects[i].SubjectID < subjects[j].SubjectID
	})
	return subjects, nil
}

func (m *MemoryStore) HasEventForDay(_ context.Context, subjectID string, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byDay[dayKey{subjectID, day}]
	return ok, nil
}

// Record appends ev unless the subject already has an event that day.
func (m *MemoryStore) Record(_ context.Context, ev *models.AttendanceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey{ev.SubjectID, ev.Day}
	if _, ok := m.byDay[k]; ok {
		return ErrDuplicateEvent
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = m.now()
	m.byDay[k] = struct{}{}
	m.events = append(m.events, *ev)
	return nil
}

func (m *MemoryStore) ListEvents(_ context.Context, day time.Time) ([]models.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.AttendanceEvent
	for _, ev := range m.events {
		if ev.Day.Equal(day) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetEvent(_ context.Context, id uuid.UUID) (*models.AttendanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ev := range m.events {
		if ev.ID == id {
			ev := ev
			return &ev, nil
		}
	}
	return nil, ErrNotFound
}

// MemorySnapshots is an in-process snapshot store.
type MemorySnapshots struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{objs: make(map[string][]byte)}
}

func (m *MemorySnapshots) PutSnapshot(_ context.Context, key string, jpeg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[key] = slices.Clone(jpeg)
	return nil
}

func (m *MemorySnapshots) GetSnapshot(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *MemorySnapshots) DeleteSnapshot(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

// Keys returns the stored snapshot keys in sorted order.
func (m *MemorySnapshots) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objs))
	for k := range m.objs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
