package ports

import (
	"context"
	"time"

	"github.com/georisk/georisk/internal/core/domain"
)

// AssessmentRepository persists the audit trail of settled assessments.
type AssessmentRepository interface {
	Insert(ctx context.Context, a *domain.Assessment) error
	CountByOutcome(ctx context.Context, since time.Time) (map[string]int, error)
}
