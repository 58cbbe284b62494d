package attendance

import (
	"context"
	"math"
	"time"

	"rollcall/internal/roster"
)

// ReportStore is the roster slice the reporter needs: course lookup plus the
// structural population queries. Percentages always divide by the eligible
// population, never by an enrollment count, so reporting stays consistent
// with who could have been recognized.
type ReportStore interface {
	CourseStore
	CountCohort(ctx context.Context, department string, year int, section string) (int, error)
	ListCohort(ctx context.Context, department string, year int, section string) ([]roster.Student, error)
}

// SessionStats summarizes one session against its course population.
type SessionStats struct {
	ID            string     `json:"id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Status        string     `json:"status"`
	TotalStudents int        `json:"total_students"`
	PresentCount  int        `json:"present_count"`
	AbsentCount   int        `json:"absent_count"`
	Percentage    float64    `json:"attendance_percentage"`
}

// CourseSessions is the stats list for every session of a course.
type CourseSessions struct {
	TotalStudents int            `json:"total_students"`
	Sessions      []SessionStats `json:"sessions"`
}

// StudentAttendance is one roster row in a session detail view. Status is
// ABSENT when no record exists; that value is synthesized here and never
// stored.
type StudentAttendance struct {
	ID        string     `json:"id"`
	StudentNo string     `json:"student_id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	MarkedAt  *time.Time `json:"marked_at,omitempty"`
	Method    string     `json:"method,omitempty"`
}

// SessionDetail is the full per-student view of one session.
type SessionDetail struct {
	Session    Session             `json:"session"`
	CourseCode string              `json:"course_code"`
	CourseName string              `json:"course_name"`
	Students   []StudentAttendance `json:"students"`
	Stats      SessionStats        `json:"stats"`
}

// StudentCourseStats is a student's standing in one course, counted over
// CLOSED sessions only.
type StudentCourseStats struct {
	CourseID      string  `json:"course_id"`
	StudentID     string  `json:"student_id"`
	TotalSessions int     `json:"total_sessions"`
	Attended      int     `json:"attended"`
	Percentage    float64 `json:"percentage"`
}

// Reporter derives attendance statistics from stored records. Pure read
// path: nothing here mutates state.
type Reporter struct {
	sessions SessionStore
	records  RecordStore
	rosters  ReportStore
}

// NewReporter wires a reporter.
func NewReporter(sessions SessionStore, records RecordStore, rosters ReportStore) *Reporter {
	return &Reporter{sessions: sessions, records: records, rosters: rosters}
}

// percentage rounds part/total*100 to one decimal; 0 when total is 0.
func percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// CourseSessions lists a course's sessions with per-session stats. The
// course must be owned by teacherID.
func (r *Reporter) CourseSessions(ctx context.Context, courseID, teacherID string) (CourseSessions, error) {
	course, err := r.rosters.GetOwnedCourse(ctx, courseID, teacherID)
	if err != nil {
		return CourseSessions{}, err
	}
	population, err := r.rosters.CountCohort(ctx, course.Department, course.Year, course.Section)
	if err != nil {
		return CourseSessions{}, err
	}
	sessions, err := r.sessions.ListSessionsByCourse(ctx, courseID)
	if err != nil {
		return CourseSessions{}, err
	}
	out := CourseSessions{TotalStudents: population, Sessions: make([]SessionStats, 0, len(sessions))}
	for _, sess := range sessions {
		present, err := r.records.CountPresent(ctx, sess.ID)
		if err != nil {
			return CourseSessions{}, err
		}
		out.Sessions = append(out.Sessions, SessionStats{
			ID:            sess.ID,
			StartTime:     sess.StartTime,
			EndTime:       sess.EndTime,
			Status:        sess.Status,
			TotalStudents: population,
			PresentCount:  present,
			AbsentCount:   population - present,
			Percentage:    percentage(present, population),
		})
	}
	return out, nil
}

// SessionDetail returns the per-student roster of one session, synthesizing
// ABSENT for students without a record.
func (r *Reporter) SessionDetail(ctx context.Context, sessionID, teacherID string) (SessionDetail, error) {
	sess, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	course, err := r.rosters.GetOwnedCourse(ctx, sess.CourseID, teacherID)
	if err != nil {
		return SessionDetail{}, err
	}
	cohort, err := r.rosters.ListCohort(ctx, course.Department, course.Year, course.Section)
	if err != nil {
		return SessionDetail{}, err
	}
	records, err := r.records.ListRecords(ctx, sessionID)
	if err != nil {
		return SessionDetail{}, err
	}
	byStudent := make(map[string]Record, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	detail := SessionDetail{
		Session:    sess,
		CourseCode: course.Code,
		CourseName: course.Name,
		Students:   make([]StudentAttendance, 0, len(cohort)),
	}
	present := 0
	for _, st := range cohort {
		row := StudentAttendance{
			ID:        st.ID,
			StudentNo: st.StudentNo,
			Name:      st.Name,
			Email:     st.Email,
			Status:    StatusAbsent,
		}
		if rec, ok := byStudent[st.ID]; ok {
			row.Status = rec.Status
			markedAt := rec.MarkedAt
			row.MarkedAt = &markedAt
			row.Method = rec.Method
			if rec.Status == StatusPresent {
				present++
			}
		}
		detail.Students = append(detail.Students, row)
	}
	total := len(cohort)
	detail.Stats = SessionStats{
		ID:            sess.ID,
		StartTime:     sess.StartTime,
		EndTime:       sess.EndTime,
		Status:        sess.Status,
		TotalStudents: total,
		PresentCount:  present,
		AbsentCount:   total - present,
		Percentage:    percentage(present, total),
	}
	return detail, nil
}

// StudentCourseStats computes a student's attendance rate over a course's
// CLOSED sessions. Caller decides who may ask; no ownership check here.
func (r *Reporter) StudentCourseStats(ctx context.Context, courseID, studentID string) (StudentCourseStats, error) {
	if _, err := r.rosters.GetCourse(ctx, courseID); err != nil {
		return StudentCourseStats{}, err
	}
	total, err := r.sessions.CountClosedSessions(ctx, courseID)
	if err != nil {
		return StudentCourseStats{}, err
	}
	attended, err := r.records.CountStudentPresentInClosed(ctx, courseID, studentID)
	if err != nil {
		return StudentCourseStats{}, err
	}
	return StudentCourseStats{
		CourseID:      courseID,
		StudentID:     studentID,
		TotalSessions: total,
		Attended:      attended,
		Percentage:    percentage(attended, total),
	}, nil
}
