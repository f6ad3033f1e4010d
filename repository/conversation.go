package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/interviewhelper/backend/models"
	"gorm.io/gorm"
)

// Question and answer operations. Together the rows form the interview
// transcript that a session context is rebuilt from.

func (r *GORMRepository) CreateQuestion(ctx context.Context, question *models.InterviewQuestion) error {
	if err := r.db.WithContext(ctx).Create(question).Error; err != nil {
		slog.Error("Failed to create question", "error", err, "interview_id", question.InterviewID)
		return fmt.Errorf("failed to create question: %w", err)
	}
	slog.Info("Question created", "question_id", question.ID, "interview_id", question.InterviewID, "turn", question.TurnNumber)
	return nil
}

func (r *GORMRepository) GetQuestion(ctx context.Context, id uint) (*models.InterviewQuestion, error) {
	var question models.InterviewQuestion
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get question", "error", err, "question_id", id)
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// MaxTurnNumber returns the highest turn number asked so far, or 0
func (r *GORMRepository) MaxTurnNumber(ctx context.Context, interviewID uint) (int, error) {
	var maxTurn sql.NullInt64
	row := r.db.WithContext(ctx).
		Model(&models.InterviewQuestion{}).
		Where("interview_id = ?", interviewID).
		Select("MAX(turn_number)").
		Row()
	if err := row.Scan(&maxTurn); err != nil {
		slog.Error("Failed to get max turn number", "error", err, "interview_id", interviewID)
		return 0, fmt.Errorf("failed to get max turn number: %w", err)
	}
	return int(maxTurn.Int64), nil
}

// ListConversation returns every question of the interview in the order it
// was asked, each with its answer preloaded when there is one.
func (r *GORMRepository) ListConversation(ctx context.Context, interviewID uint) ([]models.InterviewQuestion, error) {
	var questions []models.InterviewQuestion
	err := r.db.WithContext(ctx).
		Preload("Response").
		Where("interview_id = ?", interviewID).
		Order("asked_at ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		slog.Error("Failed to list conversation", "error", err, "interview_id", interviewID)
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	return questions, nil
}

func (r *GORMRepository) HasResponse(ctx context.Context, questionID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserResponse{}).
		Where("question_id = ?", questionID).
		Count(&count).Error
	if err != nil {
		slog.Error("Failed to check response", "error", err, "question_id", questionID)
		return false, fmt.Errorf("failed to check response: %w", err)
	}
	return count > 0, nil
}

// CreateResponse inserts an answer. A second answer to the same question
// yields ErrDuplicate.
func (r *GORMRepository) CreateResponse(ctx context.Context, response *models.UserResponse) error {
	if err := r.db.WithContext(ctx).Create(response).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		slog.Error("Failed to create response", "error", err, "question_id", response.QuestionID)
		return fmt.Errorf("failed to create response: %w", err)
	}
	slog.Info("Response saved", "response_id", response.ID, "question_id", response.QuestionID)
	return nil
}

func (r *GORMRepository) CountResponses(ctx context.Context, interviewID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserResponse{}).
		Where("interview_id = ?", interviewID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}
