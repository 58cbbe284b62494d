package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rollcall/internal/roster"
)

// memStore is an in-memory stand-in for the Postgres repository. It mimics
// the schema's uniqueness behavior: one ACTIVE session per course and one
// record per (session, student).
type memStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	records  map[string]Record
	seq      int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]Session),
		records:  make(map[string]Record),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) CreateSession(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.CourseID == s.CourseID && existing.Status == SessionActive {
			return Session{}, ErrActiveSessionExists
		}
	}
	if s.ID == "" {
		s.ID = m.nextID("sess")
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	s.Status = SessionActive
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *memStore) CloseSession(_ context.Context, id string, endTime time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.Status != SessionActive {
		return Session{}, ErrSessionClosed
	}
	s.Status = SessionClosed
	s.EndTime = &endTime
	m.sessions[id] = s
	return s, nil
}

func (m *memStore) ListSessionsByCourse(_ context.Context, courseID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) CountClosedSessions(_ context.Context, courseID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.CourseID == courseID && s.Status == SessionClosed {
			n++
		}
	}
	return n, nil
}

func recordKey(sessionID, studentID string) string {
	return sessionID + "|" + studentID
}

func (m *memStore) InsertRecord(_ context.Context, rec Record) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey(rec.SessionID, rec.StudentID)
	if existing, ok := m.records[key]; ok {
		return existing, false, nil
	}
	if rec.ID == "" {
		rec.ID = m.nextID("rec")
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	m.records[key] = rec
	return rec, true, nil
}

func (m *memStore) GetRecord(_ context.Context, sessionID, studentID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.records[recordKey(sessionID, studentID)]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memStore) ListRecords(_ context.Context, sessionID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) CountPresent(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.SessionID == sessionID && rec.Status == StatusPresent {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountStudentPresentInClosed(_ context.Context, courseID, studentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.StudentID != studentID || rec.Status != StatusPresent {
			continue
		}
		sess, ok := m.sessions[rec.SessionID]
		if ok && sess.CourseID == courseID && sess.Status == SessionClosed {
			n++
		}
	}
	return n, nil
}

// memRoster implements CourseStore and ReportStore over fixed fixtures.
type memRoster struct {
	courses  map[string]roster.Course
	students []roster.Student
}

func newMemRoster() *memRoster {
	return &memRoster{courses: make(map[string]roster.Course)}
}

func (m *memRoster) addCourse(c roster.Course) {
	m.courses[c.ID] = c
}

func (m *memRoster) GetCourse(_ context.Context, id string) (*roster.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, roster.ErrCourseNotFound
	}
	return &c, nil
}

func (m *memRoster) GetOwnedCourse(_ context.Context, id, teacherID string) (*roster.Course, error) {
	c, ok := m.courses[id]
	if !ok || c.TeacherID != teacherID {
		return nil, roster.ErrCourseNotFound
	}
	return &c, nil
}

func (m *memRoster) CountCohort(_ context.Context, department string, year int, section string) (int, error) {
	n := 0
	for _, st := range m.students {
		if st.Department == department && st.Year == year && st.Section == section {
			n++
		}
	}
	return n, nil
}

func (m *memRoster) ListCohort(_ context.Context, department string, year int, section string) ([]roster.Student, error) {
	var out []roster.Student
	for _, st := range m.students {
		if st.Department == department && st.Year == year && st.Section == section {
			out = append(out, st)
		}
	}
	return out, nil
}

// fixedPool resolves every course to the same candidate pool.
type fixedPool struct {
	pool roster.Pool
	err  error
}

func (f fixedPool) Resolve(context.Context, roster.Course) (roster.Pool, error) {
	return f.pool, f.err
}

// jsonCodec "decrypts" blobs that are plain JSON vectors; anything else
// fails like a tampered ciphertext would.
type jsonCodec struct{}

func (jsonCodec) Decrypt(blob string) ([]float64, error) {
	var vec []float64
	if err := json.Unmarshal([]byte(blob), &vec); err != nil {
		return nil, fmt.Errorf("bad blob: %w", err)
	}
	return vec, nil
}

func mustBlob(vec []float64) string {
	b, err := json.Marshal(vec)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// capturingPublisher records published audit events.
type capturingPublisher struct {
	events []RecognitionEvent
}

func (p *capturingPublisher) Publish(_ context.Context, evt RecognitionEvent) error {
	p.events = append(p.events, evt)
	return nil
}
