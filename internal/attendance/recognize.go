package attendance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"rollcall/internal/match"
	"rollcall/internal/roster"
)

// Messages surfaced to the client on non-error negative outcomes.
const (
	msgNoRegisteredFaces = "No registered faces found for this course"
	msgNoMatch           = "No matching face found"
	msgAlreadyMarked     = "Student already marked present"
)

// PoolResolver supplies the candidate set for a course.
type PoolResolver interface {
	Resolve(ctx context.Context, course roster.Course) (roster.Pool, error)
}

// Decrypter opens stored template blobs.
type Decrypter interface {
	Decrypt(blob string) ([]float64, error)
}

// EventPublisher receives the audit event of each attempt. Publishing is
// best-effort; a down queue never fails a recognition.
type EventPublisher interface {
	Publish(ctx context.Context, evt RecognitionEvent) error
}

// MatchedStudent identifies the recognized student in a result.
type MatchedStudent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

// Result is the outcome of one recognition attempt. A best score below the
// threshold is a normal negative result, not an error; BestSimilarity is
// reported either way so operators can tune the threshold.
type Result struct {
	Recognized     bool
	AlreadyMarked  bool
	Student        *MatchedStudent
	Similarity     float64
	BestSimilarity float64
	MarkedAt       time.Time
	Message        string
}

// Recognizer runs the full matching pass: session gate, pool resolution,
// decrypt-and-scan, threshold check, idempotent mark. The scan is a
// sequential pass over the candidates; classroom populations are bounded by
// section size, so linear latency is acceptable.
type Recognizer struct {
	sessions  SessionStore
	courses   CourseStore
	resolver  PoolResolver
	codec     Decrypter
	marker    *Marker
	events    EventPublisher
	threshold float64
	dim       int
	logger    *zap.Logger
}

// NewRecognizer wires a recognizer. threshold gates acceptance; dim, when
// positive, is the expected probe length (0 disables the check, leaving
// mismatches to score 0 against every candidate). events may be nil.
func NewRecognizer(sessions SessionStore, courses CourseStore, resolver PoolResolver,
	codec Decrypter, marker *Marker, events EventPublisher,
	threshold float64, dim int, logger *zap.Logger) *Recognizer {
	return &Recognizer{
		sessions:  sessions,
		courses:   courses,
		resolver:  resolver,
		codec:     codec,
		marker:    marker,
		events:    events,
		threshold: threshold,
		dim:       dim,
		logger:    logger,
	}
}

// Recognize matches one probe embedding against the session's course pool
// and marks the best candidate present when the score clears the threshold.
func (r *Recognizer) Recognize(ctx context.Context, sessionID string, embedding []float64) (Result, error) {
	if len(embedding) == 0 || (r.dim > 0 && len(embedding) != r.dim) {
		return Result{}, ErrInvalidEmbedding
	}

	sess, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if sess.Status != SessionActive {
		return Result{}, ErrSessionNotActive
	}

	course, err := r.courses.GetCourse(ctx, sess.CourseID)
	if err != nil {
		return Result{}, err
	}

	pool, err := r.resolver.Resolve(ctx, *course)
	if err != nil {
		return Result{}, err
	}
	if len(pool.Candidates) == 0 {
		res := Result{Message: msgNoRegisteredFaces}
		r.finish(ctx, sessionID, res, outcomeNoFaces)
		return res, nil
	}

	// Decrypt each candidate in isolation: one corrupt template costs that
	// candidate, never the whole pass.
	byStudent := make(map[string]roster.Candidate, len(pool.Candidates))
	decrypted := make([]match.Candidate, 0, len(pool.Candidates))
	for _, cand := range pool.Candidates {
		vec, err := r.codec.Decrypt(cand.Encrypted)
		if err != nil {
			templatesSkipped.Inc()
			r.logger.Warn("skipping undecryptable face template",
				zap.String("student_id", cand.StudentID),
				zap.Error(err))
			continue
		}
		byStudent[cand.StudentID] = cand
		decrypted = append(decrypted, match.Candidate{StudentID: cand.StudentID, Embedding: vec})
	}
	if len(decrypted) == 0 {
		res := Result{Message: msgNoMatch}
		r.finish(ctx, sessionID, res, outcomeNoMatch)
		return res, nil
	}

	best, score := match.Best(embedding, decrypted)
	if best == nil || score < r.threshold {
		res := Result{BestSimilarity: score, Message: msgNoMatch}
		r.finish(ctx, sessionID, res, outcomeNoMatch)
		return res, nil
	}

	created, rec, err := r.marker.Mark(ctx, sessionID, best.StudentID)
	if err != nil {
		return Result{}, err
	}
	matched := byStudent[best.StudentID]
	res := Result{
		Recognized:     true,
		AlreadyMarked:  !created,
		Similarity:     score,
		BestSimilarity: score,
		MarkedAt:       rec.MarkedAt,
		Student: &MatchedStudent{
			ID:        matched.StudentID,
			Name:      matched.Name,
			StudentID: matched.StudentNo,
		},
	}
	outcome := outcomeRecognized
	if res.AlreadyMarked {
		res.Message = msgAlreadyMarked
		outcome = outcomeAlreadyMarked
	}
	r.finish(ctx, sessionID, res, outcome)
	return res, nil
}

func (r *Recognizer) finish(ctx context.Context, sessionID string, res Result, outcome string) {
	recognitionAttempts.WithLabelValues(outcome).Inc()
	recognitionBestScore.Observe(res.BestSimilarity)
	if r.events == nil {
		return
	}
	evt := RecognitionEvent{
		SessionID:  sessionID,
		Recognized: res.Recognized,
		BestScore:  res.BestSimilarity,
		OccurredAt: time.Now().UTC(),
	}
	if res.Student != nil {
		evt.StudentID = res.Student.ID
	}
	if err := r.events.Publish(ctx, evt); err != nil {
		r.logger.Warn("recognition event publish failed", zap.Error(err))
	}
}
