package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"rollcall/internal/roster"
)

func newReportFixture(t *testing.T, cohortSize int) (*Reporter, *memStore, *memRoster) {
	t.Helper()
	store := newMemStore()
	rosters := newMemRoster()
	rosters.addCourse(roster.Course{
		ID: "course-1", Code: "CS101", Name: "Algorithms",
		Department: "CS", Year: 2, Section: "A", TeacherID: "teacher-1",
	})
	for i := 0; i < cohortSize; i++ {
		rosters.students = append(rosters.students, roster.Student{
			ID:         fmt.Sprintf("stu-%d", i),
			StudentNo:  fmt.Sprintf("2024CS%03d", i),
			Name:       fmt.Sprintf("Student %d", i),
			Email:      fmt.Sprintf("s%d@example.edu", i),
			Department: "CS", Year: 2, Section: "A",
		})
	}
	return NewReporter(store, store, rosters), store, rosters
}

// closedSession creates a session and immediately closes it, after optionally
// recording the given students as present.
func closedSession(t *testing.T, store *memStore, present ...string) Session {
	t.Helper()
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, Session{CourseID: "course-1", TeacherID: "teacher-1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range present {
		if _, _, err := store.InsertRecord(ctx, Record{
			SessionID: sess.ID, StudentID: id, Status: StatusPresent, Method: MethodAuto,
		}); err != nil {
			t.Fatal(err)
		}
	}
	sess, err = store.CloseSession(ctx, sess.ID, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestPercentageRounding(t *testing.T) {
	cases := []struct {
		part, total int
		want        float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{2, 3, 66.7},
		{1, 3, 33.3},
		{10, 10, 100},
		{1, 8, 12.5},
	}
	for _, tc := range cases {
		if got := percentage(tc.part, tc.total); got != tc.want {
			t.Errorf("percentage(%d, %d) = %v, want %v", tc.part, tc.total, got, tc.want)
		}
	}
}

func TestStudentCourseStats(t *testing.T) {
	reporter, store, _ := newReportFixture(t, 10)
	closedSession(t, store, "stu-0")
	closedSession(t, store, "stu-0", "stu-1")
	closedSession(t, store, "stu-1")

	stats, err := reporter.StudentCourseStats(context.Background(), "course-1", "stu-0")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 3 || stats.Attended != 2 {
		t.Fatalf("stats = %+v, want 2 of 3 attended", stats)
	}
	if math.Abs(stats.Percentage-66.7) > 1e-9 {
		t.Fatalf("percentage = %v, want 66.7", stats.Percentage)
	}
}

func TestStudentCourseStatsIgnoresActiveSessions(t *testing.T) {
	reporter, store, _ := newReportFixture(t, 10)
	closedSession(t, store, "stu-0")

	// An open session with the student present must not count yet.
	ctx := context.Background()
	sess, err := store.CreateSession(ctx, Session{CourseID: "course-1", TeacherID: "teacher-1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := store.InsertRecord(ctx, Record{
		SessionID: sess.ID, StudentID: "stu-0", Status: StatusPresent, Method: MethodAuto,
	}); err != nil {
		t.Fatal(err)
	}

	stats, err := reporter.StudentCourseStats(ctx, "course-1", "stu-0")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 1 || stats.Attended != 1 || stats.Percentage != 100 {
		t.Fatalf("stats = %+v, want 1 of 1 over closed sessions only", stats)
	}
}

func TestStudentCourseStatsNoClosedSessions(t *testing.T) {
	reporter, _, _ := newReportFixture(t, 10)

	stats, err := reporter.StudentCourseStats(context.Background(), "course-1", "stu-0")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalSessions != 0 || stats.Percentage != 0 {
		t.Fatalf("stats = %+v, want zeroes without division error", stats)
	}
}

func TestStudentCourseStatsUnknownCourse(t *testing.T) {
	reporter, _, _ := newReportFixture(t, 10)

	if _, err := reporter.StudentCourseStats(context.Background(), "missing", "stu-0"); !errors.Is(err, roster.ErrCourseNotFound) {
		t.Fatalf("got %v, want ErrCourseNotFound", err)
	}
}

func TestCourseSessionsStats(t *testing.T) {
	reporter, store, _ := newReportFixture(t, 10)
	sess := closedSession(t, store, "stu-0", "stu-1", "stu-2")

	out, err := reporter.CourseSessions(context.Background(), "course-1", "teacher-1")
	if err != nil {
		t.Fatal(err)
	}
	if out.TotalStudents != 10 {
		t.Fatalf("TotalStudents = %d, want 10", out.TotalStudents)
	}
	if len(out.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(out.Sessions))
	}
	got := out.Sessions[0]
	if got.ID != sess.ID || got.Status != SessionClosed {
		t.Fatalf("session row = %+v", got)
	}
	if got.PresentCount != 3 || got.AbsentCount != 7 || got.Percentage != 30 {
		t.Fatalf("stats = %+v, want 3 present, 7 absent, 30%%", got)
	}
}

func TestCourseSessionsRequiresOwnership(t *testing.T) {
	reporter, store, _ := newReportFixture(t, 10)
	closedSession(t, store)

	if _, err := reporter.CourseSessions(context.Background(), "course-1", "someone-else"); !errors.Is(err, roster.ErrCourseNotFound) {
		t.Fatalf("got %v, want ErrCourseNotFound for non-owner", err)
	}
}

func TestSessionDetailSynthesizesAbsent(t *testing.T) {
	reporter, store, _ := newReportFixture(t, 4)
	sess := closedSession(t, store, "stu-1", "stu-3")

	detail, err := reporter.SessionDetail(context.Background(), sess.ID, "teacher-1")
	if err != nil {
		t.Fatal(err)
	}
	if detail.CourseCode != "CS101" || detail.CourseName != "Algorithms" {
		t.Fatalf("course fields = %q %q", detail.CourseCode, detail.CourseName)
	}
	if len(detail.Students) != 4 {
		t.Fatalf("got %d roster rows, want 4", len(detail.Students))
	}
	byID := make(map[string]StudentAttendance, len(detail.Students))
	for _, row := range detail.Students {
		byID[row.ID] = row
	}
	for _, id := range []string{"stu-1", "stu-3"} {
		row := byID[id]
		if row.Status != StatusPresent || row.MarkedAt == nil || row.Method != MethodAuto {
			t.Fatalf("%s row = %+v, want stored PRESENT", id, row)
		}
	}
	for _, id := range []string{"stu-0", "stu-2"} {
		row := byID[id]
		if row.Status != StatusAbsent || row.MarkedAt != nil {
			t.Fatalf("%s row = %+v, want synthesized ABSENT", id, row)
		}
	}
	if detail.Stats.PresentCount != 2 || detail.Stats.AbsentCount != 2 || detail.Stats.Percentage != 50 {
		t.Fatalf("stats = %+v", detail.Stats)
	}
}

func TestSessionDetailEmptyCohort(t *testing.T) {
	reporter, store, _ := newReportFixture(t, 0)
	sess := closedSession(t, store)

	detail, err := reporter.SessionDetail(context.Background(), sess.ID, "teacher-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.Students) != 0 || detail.Stats.Percentage != 0 {
		t.Fatalf("detail = %+v, want empty roster and zero percentage", detail)
	}
}
