package attendance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/roster"
)

// SessionStore is the session slice of the repository.
type SessionStore interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	CloseSession(ctx context.Context, id string, endTime time.Time) (Session, error)
	ListSessionsByCourse(ctx context.Context, courseID string) ([]Session, error)
	CountClosedSessions(ctx context.Context, courseID string) (int, error)
}

// CourseStore resolves courses and ownership.
type CourseStore interface {
	GetCourse(ctx context.Context, id string) (*roster.Course, error)
	GetOwnedCourse(ctx context.Context, id, teacherID string) (*roster.Course, error)
}

// SessionService is the session state machine: ACTIVE -> CLOSED, nothing
// else. Ownership is checked here; uniqueness of the ACTIVE session is the
// store's job.
type SessionService struct {
	sessions SessionStore
	courses  CourseStore
	logger   *zap.Logger
}

// NewSessionService wires the state machine.
func NewSessionService(sessions SessionStore, courses CourseStore, logger *zap.Logger) *SessionService {
	return &SessionService{sessions: sessions, courses: courses, logger: logger}
}

// Start opens a new ACTIVE session for a course the teacher owns. Fails with
// ErrActiveSessionExists when the course already has one running, and with
// roster.ErrCourseNotFound when the course is missing or owned by someone
// else, so the caller learns nothing about other teachers' courses.
func (s *SessionService) Start(ctx context.Context, courseID, teacherID string) (Session, error) {
	course, err := s.courses.GetOwnedCourse(ctx, courseID, teacherID)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.sessions.CreateSession(ctx, Session{
		CourseID:  course.ID,
		TeacherID: teacherID,
		StartTime: time.Now().UTC(),
	})
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("course_id", course.ID),
		zap.String("course_code", course.Code))
	return sess, nil
}

// Close transitions the session to CLOSED. Closing twice is an explicit
// ErrSessionClosed, not a no-op.
func (s *SessionService) Close(ctx context.Context, sessionID, teacherID string) (Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if sess.TeacherID != teacherID {
		return Session{}, ErrSessionNotFound
	}
	closed, err := s.sessions.CloseSession(ctx, sessionID, time.Now().UTC())
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("session closed",
		zap.String("session_id", closed.ID),
		zap.String("course_id", closed.CourseID))
	return closed, nil
}

// Get returns a session the caller may see: the owning teacher, or anyone
// when teacherID is empty (admin callers).
func (s *SessionService) Get(ctx context.Context, sessionID, teacherID string) (Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	if teacherID != "" && sess.TeacherID != teacherID {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}
