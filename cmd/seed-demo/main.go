package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gradewise/gradewise-backend/internal/config"
	"github.com/gradewise/gradewise-backend/internal/database"
	"github.com/gradewise/gradewise-backend/internal/logger"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/gradewise/gradewise-backend/internal/repository"
	"github.com/gradewise/gradewise-backend/internal/service"
)

// Seeds a demo instructor, three students, one published assessment with
// every question type, and enrollments. Prints ready-to-use API tokens.
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	assessmentRepo := repository.NewAssessmentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	tokenService := service.NewTokenService(cfg)

	hash, err := tokenService.HashPassword("password123")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	instructor := &model.User{
		Name: "Demo Instructor", Email: "instructor@gradewise.test",
		PasswordHash: hash, Role: model.RoleInstructor,
	}
	if err := userRepo.Create(ctx, instructor); err != nil {
		log.Fatal().Err(err).Msg("Failed to create instructor")
	}

	students := []*model.User{
		{Name: "Ada Student", Email: "ada@gradewise.test", PasswordHash: hash, Role: model.RoleStudent},
		{Name: "Ben Student", Email: "ben@gradewise.test", PasswordHash: hash, Role: model.RoleStudent},
		{Name: "Cy Student", Email: "cy@gradewise.test", PasswordHash: hash, Role: model.RoleStudent},
	}
	for _, s := range students {
		if err := userRepo.Create(ctx, s); err != nil {
			log.Fatal().Err(err).Str("email", s.Email).Msg("Failed to create student")
		}
	}

	assessment := &model.Assessment{
		Title:           "Intro to Go: Midterm",
		InstructorID:    instructor.ID,
		DurationMinutes: 60,
		IsPublished:     true,
	}
	if err := assessmentRepo.Create(ctx, assessment); err != nil {
		log.Fatal().Err(err).Msg("Failed to create assessment")
	}

	mcOptions, _ := json.Marshal([]map[string]string{
		{"id": "a", "text": "A slice header"},
		{"id": "b", "text": "A pointer to an array"},
		{"id": "c", "text": "A linked list"},
	})
	tfOptions, _ := json.Marshal([]map[string]string{
		{"id": "true", "text": "True"},
		{"id": "false", "text": "False"},
	})

	questions := []*model.Question{
		{
			AssessmentID: assessment.ID, OrderNum: 1, Marks: 2,
			QuestionType: model.QuestionTypeMultipleChoice,
			QuestionText: "What does a Go slice value contain?",
			Options:      mcOptions, CorrectOptions: []string{"a"},
		},
		{
			AssessmentID: assessment.ID, OrderNum: 2, Marks: 1,
			QuestionType: model.QuestionTypeTrueFalse,
			QuestionText: "A nil map can be read from without panicking.",
			Options:      tfOptions, CorrectOptions: []string{"true"},
		},
		{
			AssessmentID: assessment.ID, OrderNum: 3, Marks: 2,
			QuestionType: model.QuestionTypeShortAnswer,
			QuestionText: "Which keyword starts a new goroutine?",
			CorrectText:  "go",
		},
		{
			AssessmentID: assessment.ID, OrderNum: 4, Marks: 5,
			QuestionType: model.QuestionTypeEssay,
			QuestionText: "Explain when you would choose channels over mutexes.",
		},
	}
	for _, q := range questions {
		if err := questionRepo.Create(ctx, q); err != nil {
			log.Fatal().Err(err).Int("order", q.OrderNum).Msg("Failed to create question")
		}
	}

	for _, s := range students {
		if err := enrollmentRepo.Create(ctx, assessment.ID, s.ID); err != nil {
			log.Fatal().Err(err).Str("email", s.Email).Msg("Failed to enroll student")
		}
	}

	fmt.Println("=== Demo data seeded ===")
	fmt.Printf("Assessment: %s (%s)\n\n", assessment.Title, assessment.ID)

	instructorToken, _ := tokenService.IssueToken(instructor.ID, model.RoleInstructor)
	fmt.Printf("Instructor token (%s):\n%s\n\n", instructor.Email, instructorToken)

	for _, s := range students {
		token, _ := tokenService.IssueToken(s.ID, model.RoleStudent)
		fmt.Printf("Student token (%s):\n%s\n\n", s.Email, token)
	}
}
