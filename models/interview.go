package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Interview statuses. Anything other than in_progress is terminal.
const (
	InterviewStatusInProgress = "in_progress"
	InterviewStatusCompleted  = "completed"
	InterviewStatusCancelled  = "cancelled"
	InterviewStatusTimeout    = "timeout"
)

const (
	QuestionTypeTechnical = "technical"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Interview is one mock-interview attempt by a user
type Interview struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	UserID              uint             `gorm:"not null;index" json:"user_id"`
	JobTitle            string           `gorm:"size:200;not null" json:"job_title"`
	JobDescription      string           `gorm:"type:text" json:"job_description"`
	JobLevel            string           `gorm:"size:20;not null;default:'middle'" json:"job_level"`
	Status              string           `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	TotalScore          *decimal.Decimal `gorm:"type:decimal(5,2)" json:"total_score,omitempty"`
	QuestionsCount      int              `gorm:"not null;default:0" json:"questions_count"`
	CorrectAnswersCount int              `gorm:"not null;default:0" json:"correct_answers_count"`
	StartedAt           time.Time        `gorm:"not null" json:"started_at"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
	DurationSeconds     *int             `json:"duration_seconds,omitempty"`
	AIFeedbackSummary   string           `gorm:"type:text" json:"ai_feedback_summary,omitempty"`
	Recommendations     string           `gorm:"type:text" json:"recommendations,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`

	// Relationships
	Questions        []InterviewQuestion `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	SkillEvaluations []SkillEvaluation   `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"skill_evaluations,omitempty"`
	StudyTopics      []StudyTopic        `gorm:"foreignKey:InterviewID" json:"study_topics,omitempty"`
}

// IsActive reports whether the interview still accepts answers
func (i *Interview) IsActive() bool {
	return i.Status == InterviewStatusInProgress
}

// InterviewQuestion is a single generated question. Rows are never updated after insert.
type InterviewQuestion struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	InterviewID     uint      `gorm:"not null;index:idx_question_interview_turn,priority:1" json:"interview_id"`
	CategoryID      *uint     `gorm:"index" json:"category_id,omitempty"`
	QuestionText    string    `gorm:"type:text;not null" json:"question_text"`
	QuestionType    string    `gorm:"size:20;not null;default:'technical'" json:"question_type"`
	DifficultyLevel string    `gorm:"size:20;not null;default:'medium'" json:"difficulty_level"`
	TurnNumber      int       `gorm:"not null;index:idx_question_interview_turn,priority:2" json:"turn_number"`
	AskedAt         time.Time `gorm:"not null" json:"asked_at"`

	// Relationships
	Category *QuestionCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Response *UserResponse     `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"response,omitempty"`
}

// UserResponse is the answer to a question. The unique index on question_id
// keeps a question from being answered twice.
type UserResponse struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	QuestionID          uint           `gorm:"not null;uniqueIndex" json:"question_id"`
	InterviewID         uint           `gorm:"not null;index" json:"interview_id"`
	UserAnswer          string         `gorm:"type:text;not null" json:"user_answer"`
	ResponseTimeSeconds *int           `json:"response_time_seconds,omitempty"`
	AIAnalysis          datatypes.JSON `json:"ai_analysis,omitempty"`
	AIComment           string         `gorm:"type:text" json:"ai_comment,omitempty"`
	DetectedSkills      datatypes.JSON `json:"detected_skills,omitempty"`
	AnsweredAt          time.Time      `gorm:"not null" json:"answered_at"`
}

// QuestionCategory is seeded reference data, one row per skill category
type QuestionCategory struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	Name             string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description      string `gorm:"type:text" json:"description,omitempty"`
	ParentCategoryID *uint  `json:"parent_category_id,omitempty"`
	IsActive         bool   `gorm:"not null;default:true" json:"is_active"`
}
