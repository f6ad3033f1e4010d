package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/interviewhelper/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(models.All()...)
}

// Transaction runs fn against a repository bound to a single database
// transaction. Returning an error from fn rolls every write back.
func (r *GORMRepository) Transaction(ctx context.Context, fn func(tx *GORMRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GORMRepository{db: tx})
	})
}

// Ping checks that the underlying connection pool is reachable
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql db: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by username", "error", err, "username", username)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

// Interview operations
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err, "user_id", interview.UserID)
		return err
	}
	slog.Info("Interview created", "interview_id", interview.ID, "user_id", interview.UserID)
	return nil
}

func (r *GORMRepository) GetInterview(ctx context.Context, id uint) (*models.Interview, error) {
	var interview models.Interview
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&interview).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview", "error", err, "interview_id", id)
		return nil, err
	}
	return &interview, nil
}

// SaveInterview writes every column of the interview, including zero values
func (r *GORMRepository) SaveInterview(ctx context.Context, interview *models.Interview) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(interview).Error; err != nil {
		slog.Error("Failed to save interview", "error", err, "interview_id", interview.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) ListInterviewsByUser(ctx context.Context, userID uint) ([]models.Interview, error) {
	var interviews []models.Interview
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&interviews).Error
	if err != nil {
		slog.Error("Failed to list interviews", "error", err, "user_id", userID)
		return nil, err
	}
	return interviews, nil
}

// GetInterviewDetails loads an interview with its questions and answers in
// turn order, its final skill evaluations and its study topics.
func (r *GORMRepository) GetInterviewDetails(ctx context.Context, id uint) (*models.Interview, error) {
	var interview models.Interview
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("turn_number ASC")
		}).
		Preload("Questions.Response").
		Preload("SkillEvaluations", "is_final = ?", true).
		Preload("StudyTopics", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("id = ?", id).
		First(&interview).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get interview details", "error", err, "interview_id", id)
		return nil, err
	}
	return &interview, nil
}

// TimeoutStaleInterviews moves in-progress interviews untouched since cutoff
// to the timeout status and returns their ids.
func (r *GORMRepository) TimeoutStaleInterviews(ctx context.Context, cutoff time.Time) ([]uint, error) {
	var ids []uint
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		if err := tx.db.Model(&models.Interview{}).
			Where("status = ? AND updated_at < ?", models.InterviewStatusInProgress, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.db.Model(&models.Interview{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     models.InterviewStatusTimeout,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		slog.Error("Failed to time out stale interviews", "error", err)
		return nil, fmt.Errorf("failed to time out stale interviews: %w", err)
	}
	if len(ids) > 0 {
		slog.Info("Stale interviews timed out", "count", len(ids))
	}
	return ids, nil
}

// Question category operations
func (r *GORMRepository) GetQuestionCategoryByName(ctx context.Context, name string) (*models.QuestionCategory, error) {
	var category models.QuestionCategory
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&category).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get question category", "error", err, "name", name)
		return nil, err
	}
	return &category, nil
}

func (r *GORMRepository) CreateQuestionCategory(ctx context.Context, category *models.QuestionCategory) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		slog.Error("Failed to create question category", "error", err, "name", category.Name)
		return err
	}
	slog.Info("Question category created", "category_id", category.ID, "name", category.Name)
	return nil
}
