package consultation

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by GetByID when no consultation has the id.
var ErrNotFound = errors.New("consultation not found")

type ConsultationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
}

type LabRepository interface {
	ListRecommended(ctx context.Context, consultationID uuid.UUID) ([]LabOrder, error)
	ListPerformed(ctx context.Context, consultationID uuid.UUID) ([]LabResultPanel, error)
}

type InvestigationRepository interface {
	ListRecommended(ctx context.Context, kind InvestigationKind, consultationID uuid.UUID) ([]InvestigationOrder, error)
	ListPerformed(ctx context.Context, kind InvestigationKind, consultationID uuid.UUID) ([]InvestigationResult, error)
}
