package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/roster"
)

// Handler exposes the attendance engine over HTTP. Role enforcement happens
// in the routing middleware; handlers trust the (subject, role) claims they
// receive.
type Handler struct {
	sessions   *attendance.SessionService
	recognizer *attendance.Recognizer
	reporter   *attendance.Reporter
	registrar  *roster.Registrar
	rosters    *roster.Repository

	jwtKey       string
	jwtIssuer    string
	accessTTL    time.Duration
	embeddingDim int
	logger       *zap.Logger
}

// New wires a handler.
func New(sessions *attendance.SessionService, recognizer *attendance.Recognizer,
	reporter *attendance.Reporter, registrar *roster.Registrar, rosters *roster.Repository,
	jwtKey, jwtIssuer string, accessTTL time.Duration, embeddingDim int, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:     sessions,
		recognizer:   recognizer,
		reporter:     reporter,
		registrar:    registrar,
		rosters:      rosters,
		jwtKey:       jwtKey,
		jwtIssuer:    jwtIssuer,
		accessTTL:    accessTTL,
		embeddingDim: embeddingDim,
		logger:       logger,
	}
}

// statusFor maps domain errors onto HTTP statuses: validation 400, state
// conflicts 409, resolution failures 404. Unknown errors are 500 and the
// message is not forwarded.
func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrInvalidEmbedding):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrActiveSessionExists),
		errors.Is(err, attendance.ErrSessionClosed),
		errors.Is(err, attendance.ErrSessionNotActive):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrSessionNotFound),
		errors.Is(err, roster.ErrCourseNotFound),
		errors.Is(err, roster.ErrStudentNotFound),
		errors.Is(err, roster.ErrUserNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) validEmbedding(embedding []float64) bool {
	if len(embedding) == 0 {
		return false
	}
	return h.embeddingDim <= 0 || len(embedding) == h.embeddingDim
}

// ---------- Auth ----------

// Login verifies credentials and issues an access token.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.rosters.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, roster.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.fail(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	token, exp, err := auth.Issue(user.ID, user.Role, h.jwtIssuer, h.jwtKey, h.accessTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_at":   exp.Unix(),
		"user":         gin.H{"id": user.ID, "name": user.Name, "email": user.Email, "role": user.Role},
	})
}

// ---------- Sessions ----------

// StartSession opens an attendance session for a course the caller owns.
func (h *Handler) StartSession(c *gin.Context) {
	var req struct {
		CourseID string `json:"course_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.FromContext(c)
	sess, err := h.sessions.Start(c.Request.Context(), req.CourseID, claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// CloseSession ends an ACTIVE session; closing twice is a 409.
func (h *Handler) CloseSession(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	sess, err := h.sessions.Close(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// GetSession returns session status. Admins see any session, teachers only
// their own.
func (h *Handler) GetSession(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	teacherID := claims.Subject
	if claims.Role == auth.RoleAdmin {
		teacherID = ""
	}
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"), teacherID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// ---------- Recognition ----------

// Recognize matches a probe embedding against the session's course pool and
// marks the matched student present. No-match and already-marked are normal
// 200 responses, never errors.
func (h *Handler) Recognize(c *gin.Context) {
	var req struct {
		SessionID string    `json:"session_id" binding:"required"`
		Embedding []float64 `json:"embedding" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": attendance.ErrInvalidEmbedding.Error()})
		return
	}
	res, err := h.recognizer.Recognize(c.Request.Context(), req.SessionID, req.Embedding)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"recognized": res.Recognized, "bestSimilarity": res.BestSimilarity}
	if res.Message != "" {
		body["message"] = res.Message
	}
	if res.Recognized {
		body["student"] = res.Student
		body["similarity"] = res.Similarity
		if !res.AlreadyMarked {
			body["timestamp"] = res.MarkedAt
		}
	}
	c.JSON(http.StatusOK, body)
}

// ---------- Face registration ----------

type registerFaceRequest struct {
	Embedding []float64 `json:"embedding" binding:"required"`
	Model     string    `json:"model"`
}

func (h *Handler) registerFace(c *gin.Context, userID string) {
	var req registerFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil || !h.validEmbedding(req.Embedding) {
		c.JSON(http.StatusBadRequest, gin.H{"error": attendance.ErrInvalidEmbedding.Error()})
		return
	}
	tpl, err := h.registrar.Register(c.Request.Context(), userID, req.Embedding, req.Model)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "face template registered",
		"face_template_id": tpl.ID,
	})
}

// RegisterFace stores the caller's own face template (atomic upsert).
func (h *Handler) RegisterFace(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	h.registerFace(c, claims.Subject)
}

// RegisterFaceFor is the admin variant taking an explicit target user id.
func (h *Handler) RegisterFaceFor(c *gin.Context) {
	h.registerFace(c, c.Param("userID"))
}

// FaceStatus reports whether the caller has a registered template.
func (h *Handler) FaceStatus(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	registered, tpl, err := h.registrar.Status(c.Request.Context(), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	body := gin.H{"registered": registered}
	if tpl != nil {
		body["registered_at"] = tpl.UpdatedAt
		body["model"] = tpl.Model
	}
	c.JSON(http.StatusOK, body)
}

// ---------- Reporting ----------

// CourseSessions lists a course's sessions with per-session stats.
func (h *Handler) CourseSessions(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	out, err := h.reporter.CourseSessions(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SessionDetail returns the per-student roster of a session, with ABSENT
// synthesized for students without a record.
func (h *Handler) SessionDetail(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	detail, err := h.reporter.SessionDetail(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// StudentCourseStats returns a student's standing in a course. Teachers must
// own the course, students may only ask about themselves.
func (h *Handler) StudentCourseStats(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	courseID, studentID := c.Param("id"), c.Param("studentID")

	switch claims.Role {
	case auth.RoleTeacher:
		if _, err := h.rosters.GetOwnedCourse(c.Request.Context(), courseID, claims.Subject); err != nil {
			h.fail(c, err)
			return
		}
	case auth.RoleStudent:
		self, err := h.rosters.GetStudentByUserID(c.Request.Context(), claims.Subject)
		if err != nil {
			h.fail(c, err)
			return
		}
		if self.ID != studentID {
			c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
	}

	stats, err := h.reporter.StudentCourseStats(c.Request.Context(), courseID, studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ---------- Enrollment bookkeeping ----------

// Enroll records an administrative enrollment. The recognition path never
// reads this; eligibility stays structural.
func (h *Handler) Enroll(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.FromContext(c)
	course, err := h.rosters.GetOwnedCourse(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	if _, err := h.rosters.GetStudent(c.Request.Context(), req.StudentID); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.rosters.Enroll(c.Request.Context(), course.ID, req.StudentID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"enrolled": true})
}

// ListEnrollments lists a course's administrative enrollments.
func (h *Handler) ListEnrollments(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	course, err := h.rosters.GetOwnedCourse(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	students, err := h.rosters.ListEnrollments(c.Request.Context(), course.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}
