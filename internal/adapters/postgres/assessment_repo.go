package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georisk/georisk/internal/core/domain"
)

// AssessmentRepo implements ports.AssessmentRepository.
type AssessmentRepo struct {
	db *DB
}

func NewAssessmentRepo(db *DB) *AssessmentRepo {
	return &AssessmentRepo{db: db}
}

// Insert stores one settled assessment. Redelivered events with a known ID
// are ignored.
func (r *AssessmentRepo) Insert(ctx context.Context, a *domain.Assessment) error {
	var (
		level     *string
		waterBody *string
		distance  *float64
		drop      *float64
		narrative *string
		errKind   *string
		errText   *string
	)
	if res := a.Result; res != nil {
		l := string(res.Level)
		level = &l
		waterBody = &res.NearestWaterBody
		distance = &res.DistanceToWaterMeters
		drop = res.RelativeDropMeters
		narrative = &res.Narrative
	}
	if a.ErrorKind != "" {
		errKind = &a.ErrorKind
	}
	if a.Error != "" {
		errText = &a.Error
	}

	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO assessments (
			id, session_id, generation, lat, lng, radius_m, outcome,
			risk_level, nearest_water_body, distance_to_water_m, relative_drop_m, narrative,
			error_kind, error, settled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.SessionID, int64(a.Generation), a.Center.Lat, a.Center.Lng, a.RadiusMeters, a.Outcome,
		level, waterBody, distance, drop, narrative,
		errKind, errText, a.SettledAt)
	if err != nil {
		return fmt.Errorf("insert assessment %s: %w", a.ID, err)
	}
	return nil
}

// CountByOutcome counts assessments settled at or after since, per outcome.
func (r *AssessmentRepo) CountByOutcome(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT outcome, COUNT(*)
		FROM assessments
		WHERE settled_at >= $1
		GROUP BY outcome
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[outcome] = int(n)
	}
	return counts, rows.Err()
}
