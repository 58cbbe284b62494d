package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Not-found sentinels. Handlers map these to 404 without revealing whether
// the entity exists for someone else.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrStudentNotFound = errors.New("student record not found")
	ErrCourseNotFound  = errors.New("course not found or access denied")
)

// User is an authenticated account. Only login and name lookup live here;
// account management is out of scope for this service.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student is the identity a face template belongs to. The (department, year,
// section) triple decides which courses the student is eligible for.
type Student struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	StudentNo  string    `json:"student_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Section    string    `json:"section"`
	CreatedAt  time.Time `json:"created_at"`
}

// Course defines an eligible population via its cohort triple, not via the
// enrollment table.
type Course struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Year       int       `json:"year"`
	Section    string    `json:"section"`
	TeacherID  string    `json:"teacher_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FaceTemplate is the only durable biometric artifact: an encrypted
// embedding plus the extraction model that produced it.
type FaceTemplate struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Encrypted string    `json:"-"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Candidate is one comparison target: a student with a registered template,
// still encrypted. Decryption happens during the recognition scan so a
// corrupt blob only costs that one candidate.
type Candidate struct {
	StudentID string
	StudentNo string
	Name      string
	Encrypted string
}

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetUserByEmail returns the account for a login attempt.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE email = $1
	`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

const studentColumns = `
	s.id, s.user_id, s.student_id, u.name, u.email,
	s.department, s.year, s.section, s.created_at`

func scanStudent(row interface{ Scan(...any) error }) (*Student, error) {
	var st Student
	if err := row.Scan(&st.ID, &st.UserID, &st.StudentNo, &st.Name, &st.Email,
		&st.Department, &st.Year, &st.Section, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &st, nil
}

// GetStudent returns a student by primary id.
func (r *Repository) GetStudent(ctx context.Context, id string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, `
		SELECT`+studentColumns+`
		FROM students s JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`, id))
}

// GetStudentByUserID resolves the student record owned by a user account.
func (r *Repository) GetStudentByUserID(ctx context.Context, userID string) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, `
		SELECT`+studentColumns+`
		FROM students s JOIN users u ON u.id = s.user_id
		WHERE s.user_id = $1
	`, userID))
}

// GetCourse returns a course by id.
func (r *Repository) GetCourse(ctx context.Context, id string) (*Course, error) {
	return r.courseQuery(ctx, `WHERE id = $1`, id)
}

// GetOwnedCourse returns a course only when the given teacher owns it.
func (r *Repository) GetOwnedCourse(ctx context.Context, id, teacherID string) (*Course, error) {
	return r.courseQuery(ctx, `WHERE id = $1 AND teacher_id = $2`, id, teacherID)
}

func (r *Repository) courseQuery(ctx context.Context, where string, args ...any) (*Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, department, year, section, teacher_id, created_at
		FROM courses `+where, args...)
	var c Course
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Department, &c.Year, &c.Section, &c.TeacherID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CountCohort returns the eligible population size for a cohort triple.
func (r *Repository) CountCohort(ctx context.Context, department string, year int, section string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students
		WHERE department = $1 AND year = $2 AND section = $3
	`, department, year, section).Scan(&n)
	return n, err
}

// ListCohort returns every student in a cohort, template or not.
func (r *Repository) ListCohort(ctx context.Context, department string, year int, section string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+studentColumns+`
		FROM students s JOIN users u ON u.id = s.user_id
		WHERE s.department = $1 AND s.year = $2 AND s.section = $3
		ORDER BY s.student_id
	`, department, year, section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

// ListCandidates returns the subset of a cohort with a registered face
// template. Read fresh on every recognition request so a template registered
// seconds ago is already comparable.
func (r *Repository) ListCandidates(ctx context.Context, department string, year int, section string) ([]Candidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.student_id, u.name, f.embedding_encrypted
		FROM students s
		JOIN users u ON u.id = s.user_id
		JOIN face_templates f ON f.student_id = s.id
		WHERE s.department = $1 AND s.year = $2 AND s.section = $3
		ORDER BY s.student_id
	`, department, year, section)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.StudentID, &c.StudentNo, &c.Name, &c.Encrypted); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// UpsertTemplate registers or atomically replaces a student's face template.
func (r *Repository) UpsertTemplate(ctx context.Context, studentID, encrypted, model string) (FaceTemplate, error) {
	now := time.Now().UTC()
	tpl := FaceTemplate{StudentID: studentID, Encrypted: encrypted, Model: model}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO face_templates (id, student_id, embedding_encrypted, model, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (student_id) DO UPDATE SET
			embedding_encrypted = EXCLUDED.embedding_encrypted,
			model = EXCLUDED.model,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`, uuid.NewString(), studentID, encrypted, model, now)
	if err := row.Scan(&tpl.ID, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		return FaceTemplate{}, err
	}
	return tpl, nil
}

// GetTemplate returns a student's template metadata, or nil when none is
// registered.
func (r *Repository) GetTemplate(ctx context.Context, studentID string) (*FaceTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, embedding_encrypted, model, created_at, updated_at
		FROM face_templates WHERE student_id = $1
	`, studentID)
	var tpl FaceTemplate
	if err := row.Scan(&tpl.ID, &tpl.StudentID, &tpl.Encrypted, &tpl.Model, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tpl, nil
}

// Enroll records administrative enrollment bookkeeping. The recognition path
// never consults this table; eligibility is structural.
func (r *Repository) Enroll(ctx context.Context, courseID, studentID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, course_id, student_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (course_id, student_id) DO NOTHING
	`, uuid.NewString(), courseID, studentID, time.Now().UTC())
	return err
}

// ListEnrollments lists the students administratively enrolled in a course.
func (r *Repository) ListEnrollments(ctx context.Context, courseID string) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT`+studentColumns+`
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		JOIN users u ON u.id = s.user_id
		WHERE e.course_id = $1
		ORDER BY s.student_id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}
