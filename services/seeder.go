package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/interviewhelper/backend/models"
	"github.com/interviewhelper/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.GORMRepository
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// DefaultQuestionCategories mirrors the skill categories used for running evaluations
var DefaultQuestionCategories = []models.QuestionCategory{
	{Name: models.SkillCategoryProgramming, Description: "Языки программирования, фреймворки и архитектура", IsActive: true},
	{Name: models.SkillCategoryDatabase, Description: "SQL, моделирование данных и работа с базами данных", IsActive: true},
	{Name: models.SkillCategoryAlgorithms, Description: "Алгоритмы и структуры данных", IsActive: true},
	{Name: models.SkillCategoryTesting, Description: "Тестирование и обеспечение качества", IsActive: true},
	{Name: models.SkillCategorySoftSkills, Description: "Коммуникация и работа в команде", IsActive: true},
}

// SeedDatabase seeds the database with initial data (idempotent)
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	for _, category := range DefaultQuestionCategories {
		if err := s.seedCategory(ctx, category); err != nil {
			return err
		}
	}

	// Hash default password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	demo := models.User{
		Username:         "demo",
		Email:            "demo@example.com",
		PasswordHash:     string(hashedPassword),
		SubscriptionTier: "free",
	}
	if err := s.seedUser(ctx, demo); err != nil {
		slog.Error("Failed to seed user", "email", demo.Email, "error", err)
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

func (s *DatabaseSeeder) seedCategory(ctx context.Context, category models.QuestionCategory) error {
	existing, err := s.repo.GetQuestionCategoryByName(ctx, category.Name)
	if err != nil {
		return fmt.Errorf("error checking category %s: %w", category.Name, err)
	}
	if existing != nil {
		return nil
	}
	if err := s.repo.CreateQuestionCategory(ctx, &category); err != nil {
		return fmt.Errorf("failed to create category %s: %w", category.Name, err)
	}
	return nil
}

// seedUser seeds a single user (idempotent)
func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}

	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	slog.Info("Created user", "email", user.Email)
	return nil
}
