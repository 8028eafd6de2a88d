package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/gradewise/gradewise-backend/internal/config"
	"github.com/gradewise/gradewise-backend/internal/database"
	"github.com/gradewise/gradewise-backend/internal/logger"
	"github.com/gradewise/gradewise-backend/internal/model"
	"github.com/gradewise/gradewise-backend/internal/repository"
	"github.com/gradewise/gradewise-backend/internal/service"
	"golang.org/x/term"
)

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
	tokenService := service.NewTokenService(cfg)

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Instructor ===")

	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	fmt.Print("Enter Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	hash, err := tokenService.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	instructor := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleInstructor,
	}
	if err := userRepo.Create(ctx, instructor); err != nil {
		log.Fatal().Err(err).Msg("Failed to create instructor")
	}

	token, err := tokenService.IssueToken(instructor.ID, model.RoleInstructor)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue token")
	}

	fmt.Printf("\nSuccess! Instructor '%s' (%s) created with ID: %d\n", instructor.Name, instructor.Email, instructor.ID)
	fmt.Printf("API token (valid %s):\n%s\n", cfg.JWTExpiry, token)
}
