package services

import (
	"strings"
	"time"

	"github.com/interviewhelper/backend/models"
	"github.com/shopspring/decimal"
)

// MaxQuestions is the turn budget. The answer to the tenth question completes the interview.
const MaxQuestions = 10

var (
	correctAnswerThreshold = decimal.NewFromInt(7)
	hardThreshold          = decimal.NewFromInt(8)
	mediumThreshold        = decimal.NewFromInt(5)
	decimalTwo             = decimal.NewFromInt(2)
)

// DifficultyForScore picks the difficulty of the next question from the last answer's score
func DifficultyForScore(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(hardThreshold):
		return models.DifficultyHard
	case score.GreaterThanOrEqual(mediumThreshold):
		return models.DifficultyMedium
	default:
		return models.DifficultyEasy
	}
}

// IsCorrectAnswer reports whether a score counts toward CorrectAnswersCount
func IsCorrectAnswer(score decimal.Decimal) bool {
	return score.GreaterThanOrEqual(correctAnswerThreshold)
}

var skillCategoryKeywords = []struct {
	category string
	keywords []string
}{
	{models.SkillCategoryDatabase, []string{"sql", "database", "бд", "баз данных"}},
	{models.SkillCategorySoftSkills, []string{"коммуникац", "общени", "communication"}},
	{models.SkillCategoryAlgorithms, []string{"алгоритм", "структур данных", "algorithm"}},
	{models.SkillCategoryTesting, []string{"тестирован", "qa", "testing"}},
}

// SkillCategory classifies a detected skill by keyword. Unknown skills are programming.
func SkillCategory(skill string) string {
	lower := strings.ToLower(skill)
	for _, group := range skillCategoryKeywords {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return group.category
			}
		}
	}
	return models.SkillCategoryProgramming
}

// MergeSkillScore averages an existing running score with new evidence
func MergeSkillScore(existing, incoming decimal.Decimal) decimal.Decimal {
	return existing.Add(incoming).Div(decimalTwo).Round(2)
}

// MergeEvidence appends feedback to the evidence already collected for a skill
func MergeEvidence(existing, feedback string) string {
	if existing == "" {
		return feedback
	}
	return existing + "; " + feedback
}

// CompletedInterview is what the statistics need to know about a finished interview
type CompletedInterview struct {
	Score           decimal.Decimal
	DurationSeconds int
	StrongestSkill  string
	WeakestSkill    string
	CompletedAt     time.Time
}

// ApplyCompletion folds a completed interview into the user's statistics.
// A nil stat starts a new aggregate.
func ApplyCompletion(stat *models.UserStatistic, userID uint, done CompletedInterview) *models.UserStatistic {
	if stat == nil {
		stat = &models.UserStatistic{UserID: userID}
	}

	stat.TotalInterviews++
	stat.CompletedInterviews++
	n := int64(stat.CompletedInterviews)

	if n == 1 {
		stat.AvgTotalScore = done.Score.Round(2)
		stat.BestScore = done.Score.Round(2)
		stat.AvgDurationSeconds = done.DurationSeconds
	} else {
		count := decimal.NewFromInt(n)
		stat.AvgTotalScore = stat.AvgTotalScore.
			Mul(decimal.NewFromInt(n - 1)).
			Add(done.Score).
			Div(count).
			Round(2)
		if done.Score.GreaterThan(stat.BestScore) {
			stat.BestScore = done.Score.Round(2)
		}
		stat.AvgDurationSeconds = int((int64(stat.AvgDurationSeconds)*(n-1) + int64(done.DurationSeconds)) / n)
	}

	if done.StrongestSkill != "" {
		stat.StrongestSkill = done.StrongestSkill
	}
	if done.WeakestSkill != "" {
		stat.WeakestSkill = done.WeakestSkill
	}
	completedAt := done.CompletedAt
	stat.LastInterviewDate = &completedAt
	return stat
}

// SkillExtremes returns the highest and lowest scored skill names
func SkillExtremes(evaluations []models.SkillEvaluation) (strongest, weakest string) {
	var best, worst decimal.Decimal
	for i, evaluation := range evaluations {
		if i == 0 || evaluation.Score.GreaterThan(best) {
			best = evaluation.Score
			strongest = evaluation.SkillName
		}
		if i == 0 || evaluation.Score.LessThan(worst) {
			worst = evaluation.Score
			weakest = evaluation.SkillName
		}
	}
	return strongest, weakest
}
