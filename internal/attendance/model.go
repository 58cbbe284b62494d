package attendance

import (
	"errors"
	"time"
)

// Session states. There is no third state and no reopening: ACTIVE sessions
// close exactly once.
const (
	SessionActive = "ACTIVE"
	SessionClosed = "CLOSED"
)

// Record statuses. ABSENT is synthesized at read time and never stored; the
// matching path only ever persists PRESENT. LATE exists for manual marking.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
	StatusLate    = "LATE"
)

// Marking methods. Recognition writes AUTO; MANUAL is the extension point
// for teacher overrides.
const (
	MethodAuto   = "AUTO"
	MethodManual = "MANUAL"
)

// Domain errors surfaced to callers with specific messages.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrSessionClosed       = errors.New("session is already closed")
	ErrActiveSessionExists = errors.New("active session already exists for this course")
	ErrInvalidEmbedding    = errors.New("valid embedding array is required")
)

// Session is one bounded attendance window for a course.
type Session struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course_id"`
	TeacherID string     `json:"teacher_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Status    string     `json:"status"`
}

// Record marks one student present in one session. Records are immutable
// once written.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	MarkedAt  time.Time `json:"marked_at"`
	Status    string    `json:"status"`
	Method    string    `json:"method"`
}

// RecognitionEvent is the audit trail of one recognition attempt, kept for
// threshold tuning. Written asynchronously by the worker.
type RecognitionEvent struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Recognized bool      `json:"recognized"`
	StudentID  string    `json:"student_id,omitempty"`
	BestScore  float64   `json:"best_score"`
	OccurredAt time.Time `json:"occurred_at"`
}
