package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/interviewhelper/backend/models"
	"gorm.io/gorm"
)

// ListRunningSkillEvaluations returns the non-final evaluations of an interview
func (r *GORMRepository) ListRunningSkillEvaluations(ctx context.Context, interviewID uint) ([]models.SkillEvaluation, error) {
	var evaluations []models.SkillEvaluation
	err := r.db.WithContext(ctx).
		Where("interview_id = ? AND is_final = ?", interviewID, false).
		Order("id ASC").
		Find(&evaluations).Error
	if err != nil {
		slog.Error("Failed to list skill evaluations", "error", err, "interview_id", interviewID)
		return nil, fmt.Errorf("failed to list skill evaluations: %w", err)
	}
	return evaluations, nil
}

// FindRunningSkillEvaluation looks a running evaluation up by skill name, ignoring case
func (r *GORMRepository) FindRunningSkillEvaluation(ctx context.Context, interviewID uint, skillName string) (*models.SkillEvaluation, error) {
	var evaluation models.SkillEvaluation
	err := r.db.WithContext(ctx).
		Where("interview_id = ? AND is_final = ? AND LOWER(skill_name) = LOWER(?)", interviewID, false, skillName).
		First(&evaluation).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to find skill evaluation", "error", err, "interview_id", interviewID, "skill", skillName)
		return nil, fmt.Errorf("failed to find skill evaluation: %w", err)
	}
	return &evaluation, nil
}

// SaveSkillEvaluation inserts a new evaluation or updates an existing one
func (r *GORMRepository) SaveSkillEvaluation(ctx context.Context, evaluation *models.SkillEvaluation) error {
	if err := r.db.WithContext(ctx).Save(evaluation).Error; err != nil {
		slog.Error("Failed to save skill evaluation", "error", err, "interview_id", evaluation.InterviewID, "skill", evaluation.SkillName)
		return fmt.Errorf("failed to save skill evaluation: %w", err)
	}
	return nil
}

func (r *GORMRepository) CreateSkillEvaluations(ctx context.Context, evaluations []models.SkillEvaluation) error {
	if len(evaluations) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&evaluations).Error; err != nil {
		slog.Error("Failed to create skill evaluations", "error", err, "count", len(evaluations))
		return fmt.Errorf("failed to create skill evaluations: %w", err)
	}
	slog.Info("Skill evaluations created", "interview_id", evaluations[0].InterviewID, "count", len(evaluations))
	return nil
}

func (r *GORMRepository) CreateStudyTopics(ctx context.Context, topics []models.StudyTopic) error {
	if len(topics) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&topics).Error; err != nil {
		slog.Error("Failed to create study topics", "error", err, "count", len(topics))
		return fmt.Errorf("failed to create study topics: %w", err)
	}
	slog.Info("Study topics created", "user_id", topics[0].UserID, "count", len(topics))
	return nil
}

func (r *GORMRepository) ListStudyTopics(ctx context.Context, interviewID uint) ([]models.StudyTopic, error) {
	var topics []models.StudyTopic
	if err := r.db.WithContext(ctx).Where("interview_id = ?", interviewID).Order("id ASC").Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("failed to list study topics: %w", err)
	}
	return topics, nil
}

// Statistics operations
func (r *GORMRepository) GetUserStatistic(ctx context.Context, userID uint) (*models.UserStatistic, error) {
	var stat models.UserStatistic
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stat).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get user statistic", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user statistic: %w", err)
	}
	return &stat, nil
}

func (r *GORMRepository) SaveUserStatistic(ctx context.Context, stat *models.UserStatistic) error {
	if err := r.db.WithContext(ctx).Save(stat).Error; err != nil {
		slog.Error("Failed to save user statistic", "error", err, "user_id", stat.UserID)
		return fmt.Errorf("failed to save user statistic: %w", err)
	}
	slog.Info("User statistic updated", "user_id", stat.UserID, "completed", stat.CompletedInterviews)
	return nil
}
