package services

import (
	"strings"
	"time"

	"github.com/interviewhelper/backend/models"
	"github.com/shopspring/decimal"
)

// MaxHistoryLength bounds the conversation kept in a context
const MaxHistoryLength = 10

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type DialogTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SkillScore is the in-memory running evaluation of one skill
type SkillScore struct {
	SkillName   string          `json:"skillName"`
	Score       decimal.Decimal `json:"score"`
	Evidence    string          `json:"evidence"`
	EvaluatedAt time.Time       `json:"evaluatedAt"`
}

// InterviewContext is the live working state of an active interview. It is
// never persisted directly and can always be rebuilt from the database.
type InterviewContext struct {
	InterviewID         uint
	UserID              uint
	JobTitle            string
	JobLevel            string
	JobDescription      string
	ConversationHistory []DialogTurn
	SkillEvaluations    []SkillScore
	StartedAt           time.Time
	CompletedAt         *time.Time
}

// NewInterviewContext builds an empty context for a freshly created interview
func NewInterviewContext(interview *models.Interview) *InterviewContext {
	level := interview.JobLevel
	if level == "" {
		level = DefaultJobLevel
	}
	return &InterviewContext{
		InterviewID:    interview.ID,
		UserID:         interview.UserID,
		JobTitle:       interview.JobTitle,
		JobLevel:       level,
		JobDescription: interview.JobDescription,
		StartedAt:      interview.StartedAt,
	}
}

// RebuildInterviewContext replays persisted questions, answers and running
// evaluations into a context equivalent to the one that was cached.
func RebuildInterviewContext(interview *models.Interview, questions []models.InterviewQuestion, running []models.SkillEvaluation) *InterviewContext {
	ictx := NewInterviewContext(interview)
	for _, q := range questions {
		ictx.addTurn(RoleAssistant, q.QuestionText, q.AskedAt)
		if q.Response != nil {
			ictx.addTurn(RoleUser, q.Response.UserAnswer, q.Response.AnsweredAt)
		}
	}
	for _, evaluation := range running {
		ictx.SkillEvaluations = append(ictx.SkillEvaluations, SkillScore{
			SkillName:   evaluation.SkillName,
			Score:       evaluation.Score,
			Evidence:    evaluation.Evidence,
			EvaluatedAt: evaluation.EvaluatedAt,
		})
	}
	return ictx
}

// AddMessage appends a turn, dropping the oldest once the history is full
func (c *InterviewContext) AddMessage(role, content string) {
	c.addTurn(role, content, time.Now().UTC())
}

func (c *InterviewContext) addTurn(role, content string, at time.Time) {
	c.ConversationHistory = append(c.ConversationHistory, DialogTurn{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
	if over := len(c.ConversationHistory) - MaxHistoryLength; over > 0 {
		c.ConversationHistory = append([]DialogTurn(nil), c.ConversationHistory[over:]...)
	}
}

// RecentHistory returns up to n of the latest turns
func (c *InterviewContext) RecentHistory(n int) []DialogTurn {
	if n >= len(c.ConversationHistory) {
		return c.ConversationHistory
	}
	return c.ConversationHistory[len(c.ConversationHistory)-n:]
}

// FormattedHistory renders the history as "role: content" lines
func (c *InterviewContext) FormattedHistory() string {
	var b strings.Builder
	for _, turn := range c.ConversationHistory {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// MergeEvaluation folds the detected skills of an answer into the running
// evaluations, matching names case-insensitively.
func (c *InterviewContext) MergeEvaluation(evaluation *AnswerEvaluation) {
	now := time.Now().UTC()
	for _, skill := range evaluation.DetectedSkills {
		merged := false
		for i := range c.SkillEvaluations {
			existing := &c.SkillEvaluations[i]
			if strings.EqualFold(existing.SkillName, skill) {
				existing.Score = MergeSkillScore(existing.Score, evaluation.Score)
				existing.Evidence = MergeEvidence(existing.Evidence, evaluation.Feedback)
				existing.EvaluatedAt = now
				merged = true
				break
			}
		}
		if !merged {
			c.SkillEvaluations = append(c.SkillEvaluations, SkillScore{
				SkillName:   skill,
				Score:       evaluation.Score,
				Evidence:    evaluation.Feedback,
				EvaluatedAt: now,
			})
		}
	}
}

// AverageScore is the mean running skill score rounded to one decimal place, or zero
func (c *InterviewContext) AverageScore() decimal.Decimal {
	if len(c.SkillEvaluations) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, s := range c.SkillEvaluations {
		sum = sum.Add(s.Score)
	}
	return sum.Div(decimal.NewFromInt(int64(len(c.SkillEvaluations)))).Round(1)
}

// Duration is the time from start to completion, or to now while still running
func (c *InterviewContext) Duration() time.Duration {
	end := time.Now().UTC()
	if c.CompletedAt != nil {
		end = *c.CompletedAt
	}
	return end.Sub(c.StartedAt)
}

func (c *InterviewContext) countRole(role string) int {
	n := 0
	for _, turn := range c.ConversationHistory {
		if turn.Role == role {
			n++
		}
	}
	return n
}

// TotalQuestions counts the questions still held in the bounded history
func (c *InterviewContext) TotalQuestions() int { return c.countRole(RoleAssistant) }

// TotalAnswers counts the answers still held in the bounded history
func (c *InterviewContext) TotalAnswers() int { return c.countRole(RoleUser) }

// Clone returns a deep copy so cached state is only changed through the cache
func (c *InterviewContext) Clone() *InterviewContext {
	clone := *c
	clone.ConversationHistory = append([]DialogTurn(nil), c.ConversationHistory...)
	clone.SkillEvaluations = append([]SkillScore(nil), c.SkillEvaluations...)
	if c.CompletedAt != nil {
		completedAt := *c.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}
