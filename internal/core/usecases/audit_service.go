package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/georisk/georisk/internal/core/domain"
	"github.com/georisk/georisk/internal/core/ports"
	"github.com/georisk/georisk/internal/pkg/metrics"
)

// AuditService stores settled assessment events.
type AuditService struct {
	repo ports.AssessmentRepository
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo ports.AssessmentRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record validates and persists one assessment event.
func (s *AuditService) Record(ctx context.Context, a *domain.Assessment) error {
	if a == nil || a.ID == "" || a.SessionID == "" {
		return fmt.Errorf("record assessment: missing id or session")
	}
	switch a.Outcome {
	case domain.OutcomeSuccess:
		if a.Result == nil {
			return fmt.Errorf("record assessment %s: success without result", a.ID)
		}
	case domain.OutcomeFailed:
	default:
		return fmt.Errorf("record assessment %s: unknown outcome %q", a.ID, a.Outcome)
	}
	if a.SettledAt.IsZero() {
		a.SettledAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, a); err != nil {
		return fmt.Errorf("insert assessment %s: %w", a.ID, err)
	}
	metrics.AssessmentsRecorded.WithLabelValues(a.Outcome).Inc()
	return nil
}

// Summary counts stored assessments per outcome since the given time.
func (s *AuditService) Summary(ctx context.Context, since time.Time) (map[string]int, error) {
	return s.repo.CountByOutcome(ctx, since)
}
