package models

import "github.com/shopspring/decimal"

// This file serves as the central export point for all database models.
//
// Database schema overview:
// 1. users - accounts with bcrypt password hashes
// 2. interviews - one row per interview attempt, owned by a user
// 3. interview_questions - generated questions ordered by turn_number
// 4. user_responses - at most one answer per question
// 5. skill_evaluations - running and final per-skill scores
// 6. study_topics - recommendations written on completion
// 7. user_statistics - per-user aggregate of completed interviews
// 8. question_categories - seeded skill categories

func init() {
	// Scores are rendered as JSON numbers, not quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// All returns every model in migration order
func All() []any {
	return []any{
		&User{},
		&UserStatistic{},
		&QuestionCategory{},
		&Interview{},
		&InterviewQuestion{},
		&UserResponse{},
		&SkillEvaluation{},
		&StudyTopic{},
	}
}
