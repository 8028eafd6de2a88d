package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/repository"
	"github.com/gradewise/gradewise-backend/internal/scoring"
	"github.com/jackc/pgx/v5"
)

// StatisticsStore is the read-side dependency of the aggregator.
type StatisticsStore interface {
	CountEnrolled(ctx context.Context, assessmentID uuid.UUID) (int, error)
	CountAttempted(ctx context.Context, assessmentID uuid.UUID) (students, attempts int, err error)
	ListSubmitted(ctx context.Context, assessmentID uuid.UUID) ([]repository.SubmittedAttemptSummary, error)
}

// AttemptLister pages through an assessment's attempts for instructors.
type AttemptLister interface {
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]repository.AttemptResult, int64, error)
}

// ScoreBucket is one 10-point histogram bucket. Buckets with zero attempts
// are omitted from the distribution.
type ScoreBucket struct {
	Bucket int    `json:"bucket"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// AssessmentStatistics aggregates submitted attempts only. In-progress and
// expired attempts never influence averages or the distribution.
type AssessmentStatistics struct {
	AssessmentID       uuid.UUID     `json:"assessment_id"`
	TotalEnrolled      int           `json:"total_enrolled"`
	TotalAttempted     int           `json:"total_attempted"`
	TotalAttempts      int           `json:"total_attempts"`
	SubmittedCount     int           `json:"submitted_count"`
	AverageScore       float64       `json:"average_score"`
	MinScore           float64       `json:"min_score"`
	MaxScore           float64       `json:"max_score"`
	AverageTimeSeconds int           `json:"average_time_seconds"`
	ScoreDistribution  []ScoreBucket `json:"score_distribution"`
}

// StatisticsService computes instructor-facing aggregates. Aggregation runs
// in Go over the submitted summaries so the bucketing rule lives in one
// tested place instead of SQL.
type StatisticsService struct {
	stats       StatisticsStore
	attempts    AttemptLister
	assessments AssessmentStore
}

// NewStatisticsService creates a new StatisticsService.
func NewStatisticsService(stats StatisticsStore, attempts AttemptLister, assessments AssessmentStore) *StatisticsService {
	return &StatisticsService{stats: stats, attempts: attempts, assessments: assessments}
}

// GetAssessmentStatistics computes the aggregate view for one assessment.
// Zero submitted attempts yields zeroed aggregates and an empty
// distribution, never an error.
func (s *StatisticsService) GetAssessmentStatistics(ctx context.Context, assessmentID uuid.UUID) (*AssessmentStatistics, error) {
	if _, err := s.assessments.GetByID(ctx, assessmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	enrolled, err := s.stats.CountEnrolled(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("count enrolled: %w", err)
	}
	attempted, totalAttempts, err := s.stats.CountAttempted(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("count attempted: %w", err)
	}
	submitted, err := s.stats.ListSubmitted(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list submitted: %w", err)
	}

	out := &AssessmentStatistics{
		AssessmentID:      assessmentID,
		TotalEnrolled:     enrolled,
		TotalAttempted:    attempted,
		TotalAttempts:     totalAttempts,
		SubmittedCount:    len(submitted),
		ScoreDistribution: []ScoreBucket{},
	}
	if len(submitted) == 0 {
		return out, nil
	}

	var sumScore float64
	var sumTime int
	min, max := submitted[0].Percentage, submitted[0].Percentage
	counts := [10]int{}

	for _, a := range submitted {
		sumScore += a.Percentage
		sumTime += a.TimeTakenSeconds
		if a.Percentage < min {
			min = a.Percentage
		}
		if a.Percentage > max {
			max = a.Percentage
		}
		counts[bucketFor(a.Percentage)]++
	}

	out.AverageScore = scoring.RoundPercentage(sumScore / float64(len(submitted)))
	out.MinScore = min
	out.MaxScore = max
	out.AverageTimeSeconds = sumTime / len(submitted)

	for i, n := range counts {
		if n == 0 {
			continue
		}
		out.ScoreDistribution = append(out.ScoreDistribution, ScoreBucket{
			Bucket: i,
			Label:  bucketLabel(i),
			Count:  n,
		})
	}
	return out, nil
}

// ListAssessmentAttempts returns one page of an assessment's attempts with
// the total row count for pagination.
func (s *StatisticsService) ListAssessmentAttempts(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]repository.AttemptResult, int64, error) {
	if _, err := s.assessments.GetByID(ctx, assessmentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrAssessmentNotFound
		}
		return nil, 0, fmt.Errorf("get assessment: %w", err)
	}
	return s.attempts.ListByAssessment(ctx, assessmentID, page, perPage)
}

// bucketFor maps a percentage onto its 10-point bucket. 100% lands in the
// top bucket with the 90s.
func bucketFor(percentage float64) int {
	b := int(percentage / 10)
	if b > 9 {
		b = 9
	}
	if b < 0 {
		b = 0
	}
	return b
}

func bucketLabel(bucket int) string {
	if bucket == 9 {
		return "90-100%"
	}
	return fmt.Sprintf("%d-%d%%", bucket*10, bucket*10+9)
}

// Compile-time wiring checks against the concrete repositories.
var (
	_ StatisticsStore = (*repository.StatisticsRepository)(nil)
	_ AttemptLister   = (*repository.AttemptRepository)(nil)
	_ AttemptStore    = (*repository.AttemptRepository)(nil)
	_ AnswerStore     = (*repository.AnswerRepository)(nil)
	_ QuestionStore   = (*repository.QuestionRepository)(nil)
	_ AssessmentStore = (*repository.AssessmentRepository)(nil)
	_ EnrollmentStore = (*repository.EnrollmentRepository)(nil)
)
