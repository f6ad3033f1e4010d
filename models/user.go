package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account that owns interviews. Email and username are both unique.
type User struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Username              string     `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email                 string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash          string     `gorm:"size:255;not null" json:"-"`
	SubscriptionTier      string     `gorm:"size:20;not null;default:'free'" json:"subscription_tier"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`

	// Relationships
	Interviews []Interview    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Statistic  *UserStatistic `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// UserStatistic aggregates a user's completed interviews. One row per user,
// created on the first completion and updated incrementally after that.
type UserStatistic struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	UserID              uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalInterviews     int             `gorm:"not null;default:0" json:"total_interviews"`
	CompletedInterviews int             `gorm:"not null;default:0" json:"completed_interviews"`
	AvgTotalScore       decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"avg_total_score"`
	BestScore           decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"best_score"`
	AvgDurationSeconds  int             `gorm:"not null;default:0" json:"avg_duration_seconds"`
	StrongestSkill      string          `gorm:"size:100" json:"strongest_skill,omitempty"`
	WeakestSkill        string          `gorm:"size:100" json:"weakest_skill,omitempty"`
	LastInterviewDate   *time.Time      `json:"last_interview_date,omitempty"`
	UpdatedAt           time.Time       `json:"updated_at"`
}
