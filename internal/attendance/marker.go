package attendance

import (
	"context"
	"time"
)

// RecordStore is the record slice of the repository.
type RecordStore interface {
	InsertRecord(ctx context.Context, rec Record) (Record, bool, error)
	GetRecord(ctx context.Context, sessionID, studentID string) (*Record, error)
	ListRecords(ctx context.Context, sessionID string) ([]Record, error)
	CountPresent(ctx context.Context, sessionID string) (int, error)
	CountStudentPresentInClosed(ctx context.Context, courseID, studentID string) (int, error)
}

// Marker writes PRESENT records idempotently. Repeated recognitions of an
// already-present student return the existing record with created=false;
// the (session, student) unique constraint keeps a race between two
// near-simultaneous recognitions from producing two rows.
type Marker struct {
	records RecordStore
}

// NewMarker creates a marker over the given store.
func NewMarker(records RecordStore) *Marker {
	return &Marker{records: records}
}

// Mark records the student PRESENT in the session.
func (m *Marker) Mark(ctx context.Context, sessionID, studentID string) (bool, Record, error) {
	rec, created, err := m.records.InsertRecord(ctx, Record{
		SessionID: sessionID,
		StudentID: studentID,
		MarkedAt:  time.Now().UTC(),
		Status:    StatusPresent,
		Method:    MethodAuto,
	})
	if err != nil {
		return false, Record{}, err
	}
	return created, rec, nil
}
