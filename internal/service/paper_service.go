package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gradewise/gradewise-backend/internal/clock"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/rs/zerolog"
)

// PaperCache caches rendered student papers.
type PaperCache interface {
	SetAssessmentPaper(ctx context.Context, assessmentID uuid.UUID, payload []byte) error
	GetAssessmentPaper(ctx context.Context, assessmentID uuid.UUID) ([]byte, bool, error)
}

// PaperService renders the student-facing question paper. Answer keys are
// stripped before anything leaves this service; the rendered payload is
// cached in Redis since every enrolled student requests the same bytes.
type PaperService struct {
	questions QuestionStore
	gate      *EnrollmentGate
	cache     PaperCache
	clock     clock.Clock
	log       zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(questions QuestionStore, gate *EnrollmentGate, cache PaperCache, clk clock.Clock, log zerolog.Logger) *PaperService {
	return &PaperService{
		questions: questions,
		gate:      gate,
		cache:     cache,
		clock:     clk,
		log:       log.With().Str("component", "paper_service").Logger(),
	}
}

// GetPaper returns the question paper for an enrolled student. The gate
// applies the same checks as begin, so a paper is never served outside a
// startable window.
func (s *PaperService) GetPaper(ctx context.Context, assessmentID uuid.UUID, studentID int) (*model.AssessmentPayload, error) {
	assessment, err := s.gate.CanStart(ctx, assessmentID, studentID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	if raw, ok, cacheErr := s.cache.GetAssessmentPaper(ctx, assessmentID); cacheErr == nil && ok {
		payload := &model.AssessmentPayload{}
		if err := json.Unmarshal(raw, payload); err == nil {
			return payload, nil
		}
		s.log.Warn().Str("assessment_id", assessmentID.String()).Msg("Corrupt cached paper, rebuilding")
	} else if cacheErr != nil {
		s.log.Warn().Err(cacheErr).Msg("Paper cache read failed, using database")
	}

	questions, err := s.questions.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	payload := &model.AssessmentPayload{
		AssessmentID:    assessment.ID,
		Title:           assessment.Title,
		DurationMinutes: assessment.DurationMinutes,
		Questions:       make([]model.QuestionForStudent, 0, len(questions)),
	}
	for i := range questions {
		q := &questions[i]
		payload.Questions = append(payload.Questions, model.QuestionForStudent{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Marks:        q.Marks,
			OrderNum:     q.OrderNum,
		})
	}

	if raw, err := json.Marshal(payload); err == nil {
		if err := s.cache.SetAssessmentPaper(ctx, assessmentID, raw); err != nil {
			s.log.Warn().Err(err).Msg("Failed to cache paper")
		}
	}
	return payload, nil
}
