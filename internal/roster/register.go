package roster

import (
	"context"

	"go.uber.org/zap"
)

// DefaultModel names the browser-side extraction model templates default to.
const DefaultModel = "face-api.js-resnet"

// TemplateStore is the registration slice of the repository.
type TemplateStore interface {
	GetStudentByUserID(ctx context.Context, userID string) (*Student, error)
	UpsertTemplate(ctx context.Context, studentID, encrypted, model string) (FaceTemplate, error)
	GetTemplate(ctx context.Context, studentID string) (*FaceTemplate, error)
}

// Encrypter seals an embedding for storage.
type Encrypter interface {
	Encrypt(embedding []float64) (string, error)
}

// Registrar handles face template registration. Registration is an atomic
// upsert: re-registering replaces the previous template whole, and the
// cleartext vector never touches storage.
type Registrar struct {
	store  TemplateStore
	codec  Encrypter
	logger *zap.Logger
}

// NewRegistrar wires a registrar.
func NewRegistrar(store TemplateStore, codec Encrypter, logger *zap.Logger) *Registrar {
	return &Registrar{store: store, codec: codec, logger: logger}
}

// Register encrypts and stores the embedding for the student owned by
// userID. model may be empty; DefaultModel is assumed.
func (r *Registrar) Register(ctx context.Context, userID string, embedding []float64, model string) (FaceTemplate, error) {
	student, err := r.store.GetStudentByUserID(ctx, userID)
	if err != nil {
		return FaceTemplate{}, err
	}
	if model == "" {
		model = DefaultModel
	}
	encrypted, err := r.codec.Encrypt(embedding)
	if err != nil {
		return FaceTemplate{}, err
	}
	tpl, err := r.store.UpsertTemplate(ctx, student.ID, encrypted, model)
	if err != nil {
		return FaceTemplate{}, err
	}
	r.logger.Info("face template registered",
		zap.String("student_id", student.ID),
		zap.String("model", model))
	return tpl, nil
}

// Status reports whether the user's student record carries a template.
func (r *Registrar) Status(ctx context.Context, userID string) (registered bool, tpl *FaceTemplate, err error) {
	student, err := r.store.GetStudentByUserID(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	tpl, err = r.store.GetTemplate(ctx, student.ID)
	if err != nil {
		return false, nil, err
	}
	return tpl != nil, tpl, nil
}
