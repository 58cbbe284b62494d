package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// Repository persists sessions, records and recognition events in Postgres.
// The two core invariants live in the schema: a partial unique index on
// (course_id) WHERE status = 'ACTIVE' and a unique (session_id, student_id)
// pair on records. Application code only translates the resulting conflicts.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateSession inserts a new ACTIVE session. Two concurrent starts for the
// same course race on the partial unique index; the loser gets
// ErrActiveSessionExists.
func (r *Repository) CreateSession(ctx context.Context, s Session) (Session, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartTime.IsZero() {
		s.StartTime = time.Now().UTC()
	}
	s.Status = SessionActive
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_sessions (id, course_id, teacher_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, NULL, $5)
	`, s.ID, s.CourseID, s.TeacherID, s.StartTime, s.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return Session{}, ErrActiveSessionExists
		}
		return Session{}, err
	}
	return s, nil
}

// GetSession returns a session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, teacher_id, start_time, end_time, status
		FROM attendance_sessions WHERE id = $1
	`, id)
	var s Session
	if err := row.Scan(&s.ID, &s.CourseID, &s.TeacherID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// CloseSession transitions ACTIVE -> CLOSED. The guard on status means a
// second close updates zero rows and is reported as ErrSessionClosed.
func (r *Repository) CloseSession(ctx context.Context, id string, endTime time.Time) (Session, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET status = $2, end_time = $3
		WHERE id = $1 AND status = $4
	`, id, SessionClosed, endTime, SessionActive)
	if err != nil {
		return Session{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Session{}, err
	}
	if affected == 0 {
		if _, err := r.GetSession(ctx, id); err != nil {
			return Session{}, err
		}
		return Session{}, ErrSessionClosed
	}
	return r.GetSession(ctx, id)
}

// ListSessionsByCourse returns a course's sessions, newest first.
func (r *Repository) ListSessionsByCourse(ctx context.Context, courseID string) ([]Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, course_id, teacher_id, start_time, end_time, status
		FROM attendance_sessions
		WHERE course_id = $1
		ORDER BY start_time DESC
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.CourseID, &s.TeacherID, &s.StartTime, &s.EndTime, &s.Status); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CountClosedSessions counts the CLOSED sessions of a course.
func (r *Repository) CountClosedSessions(ctx context.Context, courseID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_sessions
		WHERE course_id = $1 AND status = $2
	`, courseID, SessionClosed).Scan(&n)
	return n, err
}

// CloseExpired closes every ACTIVE session older than maxAge and returns how
// many it closed. Used by the worker's abandonment sweeper.
func (r *Repository) CloseExpired(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_sessions
		SET status = $1, end_time = $2
		WHERE status = $3 AND start_time < $4
	`, SessionClosed, now, SessionActive, now.Add(-maxAge))
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// InsertRecord writes a record for (session, student) and reports whether it
// created one. ON CONFLICT DO NOTHING makes near-simultaneous recognitions
// of the same student converge on a single row; the losing call re-reads and
// returns the winner's record.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, marked_at, status, method)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, rec.ID, rec.SessionID, rec.StudentID, rec.MarkedAt, rec.Status, rec.Method)
	if err != nil {
		return Record{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, err
	}
	if affected == 0 {
		existing, err := r.GetRecord(ctx, rec.SessionID, rec.StudentID)
		if err != nil {
			return Record{}, false, err
		}
		return *existing, false, nil
	}
	return rec, true, nil
}

// GetRecord returns the record for (session, student), or nil.
func (r *Repository) GetRecord(ctx context.Context, sessionID, studentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, student_id, marked_at, status, method
		FROM attendance_records
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.MarkedAt, &rec.Status, &rec.Method); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns all records of a session.
func (r *Repository) ListRecords(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, marked_at, status, method
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY marked_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.MarkedAt, &rec.Status, &rec.Method); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountPresent counts a session's PRESENT records.
func (r *Repository) CountPresent(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_records
		WHERE session_id = $1 AND status = $2
	`, sessionID, StatusPresent).Scan(&n)
	return n, err
}

// CountStudentPresentInClosed counts a student's PRESENT records across the
// CLOSED sessions of a course.
func (r *Repository) CountStudentPresentInClosed(ctx context.Context, courseID, studentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM attendance_records rec
		JOIN attendance_sessions s ON s.id = rec.session_id
		WHERE s.course_id = $1 AND s.status = $2
		  AND rec.student_id = $3 AND rec.status = $4
	`, courseID, SessionClosed, studentID, StatusPresent).Scan(&n)
	return n, err
}

// InsertRecognitionEvent stores one audit event. Called by the worker.
func (r *Repository) InsertRecognitionEvent(ctx context.Context, evt RecognitionEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	var studentID any
	if evt.StudentID != "" {
		studentID = evt.StudentID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recognition_events (id, session_id, recognized, student_id, best_score, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, evt.ID, evt.SessionID, evt.Recognized, studentID, evt.BestScore, evt.OccurredAt)
	return err
}
