package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Skill categories used for SkillEvaluation.SkillCategory and the seeded QuestionCategory rows
const (
	SkillCategoryProgramming = "programming"
	SkillCategoryDatabase    = "database"
	SkillCategoryAlgorithms  = "algorithms"
	SkillCategoryTesting     = "testing"
	SkillCategorySoftSkills  = "soft_skills"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// SkillNameMaxLength is the width of skill_name columns. Names come from
// model output and are cut to fit before saving.
const SkillNameMaxLength = 100

// SkillEvaluation is either a running (IsFinal=false) score that is averaged as
// answers arrive, or a final snapshot written when the interview completes.
type SkillEvaluation struct {
	ID                     uint            `gorm:"primaryKey" json:"id"`
	InterviewID            uint            `gorm:"not null;uniqueIndex:idx_skill_eval_unique,priority:1" json:"interview_id"`
	SkillName              string          `gorm:"size:100;not null;uniqueIndex:idx_skill_eval_unique,priority:2" json:"skill_name"`
	SkillCategory          string          `gorm:"size:50;not null;default:'programming'" json:"skill_category"`
	Score                  decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"score"`
	ConfidenceScore        decimal.Decimal `gorm:"type:decimal(3,2);not null;default:1.00" json:"confidence_score"`
	Evidence               string          `gorm:"type:text" json:"evidence,omitempty"`
	ImprovementSuggestions string          `gorm:"type:text" json:"improvement_suggestions,omitempty"`
	IsFinal                bool            `gorm:"not null;default:false;uniqueIndex:idx_skill_eval_unique,priority:3" json:"is_final"`
	EvaluatedAt            time.Time       `gorm:"not null" json:"evaluated_at"`
}

// StudyTopic is a recommendation produced when an interview completes
type StudyTopic struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	InterviewID *uint          `gorm:"index" json:"interview_id,omitempty"`
	SkillName   string         `gorm:"size:100;not null" json:"skill_name"`
	TopicName   string         `gorm:"size:200;not null" json:"topic_name"`
	Priority    string         `gorm:"size:10;not null;default:'medium'" json:"priority"`
	Reason      string         `gorm:"type:text" json:"reason,omitempty"`
	Resources   datatypes.JSON `json:"resources,omitempty"`
	IsCompleted bool           `gorm:"not null;default:false" json:"is_completed"`
	AddedAt     time.Time      `gorm:"not null" json:"added_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
