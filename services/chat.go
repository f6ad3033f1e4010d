package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrChatProvider marks failures of the external chat completion API
var ErrChatProvider = errors.New("chat provider failure")

const (
	fallbackHint          = "Можете рассказать о вашем практическом опыте в этой области?"
	fallbackTechnology    = "технологиями"
	emptyCompletionAnswer = "Не удалось получить ответ от GigaChat"
	questionHistoryWindow = 4
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer sends one chat completion request and returns the reply text
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
	Provider() string
}

// ChatClient is what the interview orchestrator needs from the language model
type ChatClient interface {
	GenerateQuestion(ctx context.Context, jobDescription, jobTitle, jobLevel string, ictx *InterviewContext) (string, error)
	GenerateQuestionFromHint(ctx context.Context, jobDescription, jobTitle, jobLevel, hint string, ictx *InterviewContext) (string, error)
	EvaluateAnswer(ctx context.Context, question, userAnswer string, ictx *InterviewContext) (*AnswerEvaluation, error)
	GenerateSummary(ctx context.Context, ictx *InterviewContext) (*InterviewSummary, error)
	GenerateHint(ctx context.Context, question string, ictx *InterviewContext) (string, error)
}

type DetailedScores struct {
	TechnicalCorrectness decimal.Decimal `json:"technicalCorrectness"`
	DepthOfUnderstanding decimal.Decimal `json:"depthOfUnderstanding"`
	PracticalApplication decimal.Decimal `json:"practicalApplication"`
	AnswerStructure      decimal.Decimal `json:"answerStructure"`
}

type AnswerEvaluation struct {
	Score            decimal.Decimal `json:"score"`
	Feedback         string          `json:"feedback"`
	DetectedSkills   []string        `json:"detectedSkills"`
	ImprovementAreas []string        `json:"improvementAreas"`
	NextQuestionHint string          `json:"nextQuestionHint"`
	DetailedScores   DetailedScores  `json:"detailedScores"`
}

type RecommendedTopic struct {
	Topic     string   `json:"topic"`
	Priority  string   `json:"priority"`
	Resources []string `json:"resources"`
}

type InterviewSummary struct {
	FinalScore        decimal.Decimal    `json:"finalScore"`
	Strengths         []string           `json:"strengths"`
	Weaknesses        []string           `json:"weaknesses"`
	OverallFeedback   string             `json:"overallFeedback"`
	RecommendedTopics []RecommendedTopic `json:"recommendedTopics"`
	SuggestedLevel    string             `json:"suggestedLevel"`
	IsRecommended     bool               `json:"isRecommended"`
	InterviewDuration string             `json:"interviewDuration"`
}

// ChatService turns interview operations into prompts for a Completer and
// parses the replies
type ChatService struct {
	completer Completer
	devMode   bool
}

// NewChatService wraps a completer. In development mode a failed question
// generation returns a templated question instead of an error.
func NewChatService(completer Completer, devMode bool) *ChatService {
	return &ChatService{completer: completer, devMode: devMode}
}

// IsDevelopmentCredential reports whether a provider credential is a placeholder
func IsDevelopmentCredential(credential string) bool {
	return credential == "" || strings.Contains(credential, "development")
}

func (s *ChatService) complete(ctx context.Context, messages []ChatMessage) (string, error) {
	start := time.Now()
	text, err := s.completer.Complete(ctx, messages)
	observeChat(s.completer.Provider(), start, err)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrChatProvider, err)
	}
	return text, nil
}

func (s *ChatService) GenerateQuestion(ctx context.Context, jobDescription, jobTitle, jobLevel string, ictx *InterviewContext) (string, error) {
	return s.GenerateQuestionFromHint(ctx, jobDescription, jobTitle, jobLevel, "", ictx)
}

func (s *ChatService) GenerateQuestionFromHint(ctx context.Context, jobDescription, jobTitle, jobLevel, hint string, ictx *InterviewContext) (string, error) {
	slog.Info("Generating question", "job_title", jobTitle, "job_level", jobLevel, "seeded", hint != "")

	question, err := s.complete(ctx, buildQuestionPrompt(jobDescription, jobTitle, jobLevel, hint, ictx))
	if err != nil {
		slog.Error("Failed to generate question", "error", err)
		if s.devMode {
			return fallbackQuestion(jobDescription, jobTitle, jobLevel), nil
		}
		return "", fmt.Errorf("failed to generate question: %w", err)
	}
	return strings.TrimSpace(question), nil
}

func (s *ChatService) EvaluateAnswer(ctx context.Context, question, userAnswer string, ictx *InterviewContext) (*AnswerEvaluation, error) {
	slog.Info("Evaluating answer", "interview_id", ictx.InterviewID, "question", truncate(question, 50))

	reply, err := s.complete(ctx, buildEvaluationPrompt(question, userAnswer, ictx))
	if err != nil {
		slog.Error("Failed to evaluate answer", "error", err, "interview_id", ictx.InterviewID)
		return nil, fmt.Errorf("failed to evaluate answer: %w", err)
	}
	return ParseAnswerEvaluation(reply), nil
}

func (s *ChatService) GenerateSummary(ctx context.Context, ictx *InterviewContext) (*InterviewSummary, error) {
	slog.Info("Generating interview summary", "interview_id", ictx.InterviewID)

	reply, err := s.complete(ctx, buildSummaryPrompt(ictx))
	if err != nil {
		slog.Error("Failed to generate summary", "error", err, "interview_id", ictx.InterviewID)
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}
	return ParseInterviewSummary(reply, ictx.AverageScore()), nil
}

// GenerateHint nudges the candidate toward an answer. It never fails.
func (s *ChatService) GenerateHint(ctx context.Context, question string, ictx *InterviewContext) (string, error) {
	reply, err := s.complete(ctx, buildHintPrompt(question))
	if err != nil || strings.TrimSpace(reply) == "" {
		slog.Warn("Falling back to default hint", "error", err)
		return fallbackHint, nil
	}
	return strings.TrimSpace(reply), nil
}

func fallbackQuestion(jobDescription, jobTitle, jobLevel string) string {
	technology := fallbackTechnology
	if fields := strings.Fields(jobDescription); len(fields) > 0 {
		technology = fields[0]
	}
	return fmt.Sprintf("Вопрос по %s (уровень: %s): Расскажите о вашем опыте работы с %s?", jobTitle, jobLevel, technology)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
