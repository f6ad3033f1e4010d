package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/interviewhelper/backend/models"
	"github.com/interviewhelper/backend/repository"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DefaultJobLevel = "middle"

	// InterviewCompletedMessage replaces the next question once the turn budget is spent
	InterviewCompletedMessage = "Собеседование завершено. Вы можете просмотреть итоги."
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserMismatch      = errors.New("user does not match the authenticated user")
	ErrInterviewNotFound = errors.New("interview not found")
	ErrInterviewClosed   = errors.New("interview is no longer in progress")
	ErrQuestionNotFound  = errors.New("question not found in this interview")
	ErrQuestionAnswered  = errors.New("question has already been answered")
	ErrMissingQuestionID = errors.New("question id is required")
)

type StartInterviewInput struct {
	UserID         uint
	JobTitle       string
	JobDescription string
	JobLevel       string
}

type StartInterviewResult struct {
	InterviewID   uint      `json:"interviewId"`
	FirstQuestion string    `json:"firstQuestion"`
	QuestionID    uint      `json:"questionId"`
	StartedAt     time.Time `json:"startedAt"`
}

type SubmitAnswerInput struct {
	UserID              uint
	InterviewID         uint
	QuestionID          uint
	UserAnswer          string
	ResponseTimeSeconds *int
}

type SubmitAnswerResult struct {
	Score            decimal.Decimal `json:"score"`
	Feedback         string          `json:"feedback"`
	DetectedSkills   []string        `json:"detectedSkills"`
	ImprovementAreas []string        `json:"improvementAreas"`
	NextQuestionHint string          `json:"nextQuestionHint"`
	NextQuestionID   *uint           `json:"nextQuestionId,omitempty"`
	Completed        bool            `json:"completed"`
}

// InterviewService drives an interview turn by turn. Every turn runs in one
// database transaction; the session cache is written only after commit.
type InterviewService struct {
	repo     *repository.GORMRepository
	chat     ChatClient
	sessions *SessionCache
	now      func() time.Time
}

func NewInterviewService(repo *repository.GORMRepository, chat ChatClient, sessions *SessionCache) *InterviewService {
	return &InterviewService{
		repo:     repo,
		chat:     chat,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StartInterview creates the interview and its first question
func (s *InterviewService) StartInterview(ctx context.Context, input StartInterviewInput) (*StartInterviewResult, error) {
	level := strings.TrimSpace(input.JobLevel)
	if level == "" {
		level = DefaultJobLevel
	}

	var ictx *InterviewContext
	var result *StartInterviewResult
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		user, err := tx.GetUserByID(ctx, input.UserID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return ErrUserNotFound
		}

		interview := &models.Interview{
			UserID:         user.ID,
			JobTitle:       input.JobTitle,
			JobDescription: input.JobDescription,
			JobLevel:       level,
			Status:         models.InterviewStatusInProgress,
			StartedAt:      s.now(),
		}
		if err := tx.CreateInterview(ctx, interview); err != nil {
			return fmt.Errorf("failed to create interview: %w", err)
		}

		ictx = NewInterviewContext(interview)
		text, err := s.chat.GenerateQuestion(ctx, interview.JobDescription, interview.JobTitle, interview.JobLevel, ictx)
		if err != nil {
			return err
		}

		question := &models.InterviewQuestion{
			InterviewID:     interview.ID,
			QuestionText:    text,
			QuestionType:    models.QuestionTypeTechnical,
			DifficultyLevel: models.DifficultyMedium,
			TurnNumber:      1,
			AskedAt:         s.now(),
		}
		if err := tx.CreateQuestion(ctx, question); err != nil {
			return err
		}

		interview.QuestionsCount = 1
		if err := tx.SaveInterview(ctx, interview); err != nil {
			return fmt.Errorf("failed to save interview: %w", err)
		}
		ictx.AddMessage(RoleAssistant, text)

		result = &StartInterviewResult{
			InterviewID:   interview.ID,
			FirstQuestion: text,
			QuestionID:    question.ID,
			StartedAt:     interview.StartedAt,
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to start interview", "error", err, "user_id", input.UserID)
		return nil, fmt.Errorf("failed to start interview: %w", err)
	}

	s.sessions.Register(ictx)
	slog.Info("Interview started", "interview_id", result.InterviewID, "user_id", input.UserID)
	return result, nil
}

// SubmitAnswer records the answer to an open question, scores it, and either
// asks the next question or completes the interview.
func (s *InterviewService) SubmitAnswer(ctx context.Context, input SubmitAnswerInput) (*SubmitAnswerResult, error) {
	if input.QuestionID == 0 {
		return nil, ErrMissingQuestionID
	}

	var ictx *InterviewContext
	var result *SubmitAnswerResult
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		interview, question, err := s.resolveOpenQuestion(ctx, tx, input)
		if err != nil {
			return err
		}

		ictx, err = s.loadContext(ctx, tx, interview)
		if err != nil {
			return err
		}

		evaluation, err := s.chat.EvaluateAnswer(ctx, question.QuestionText, input.UserAnswer, ictx)
		if err != nil {
			return err
		}
		ictx.AddMessage(RoleUser, input.UserAnswer)
		ictx.MergeEvaluation(evaluation)

		if err := s.saveResponse(ctx, tx, interview, question, input, evaluation); err != nil {
			return err
		}
		if err := s.mergeRunningSkills(ctx, tx, interview.ID, evaluation); err != nil {
			return err
		}

		result = &SubmitAnswerResult{
			Score:            evaluation.Score,
			Feedback:         evaluation.Feedback,
			DetectedSkills:   evaluation.DetectedSkills,
			ImprovementAreas: evaluation.ImprovementAreas,
		}

		if interview.QuestionsCount < MaxQuestions {
			next, err := s.askNextQuestion(ctx, tx, interview, evaluation, ictx)
			if err != nil {
				return err
			}
			result.NextQuestionHint = next.QuestionText
			result.NextQuestionID = &next.ID
		} else {
			if err := s.completeInterview(ctx, tx, interview, ictx); err != nil {
				return err
			}
			result.NextQuestionHint = InterviewCompletedMessage
			result.Completed = true
		}

		if IsCorrectAnswer(evaluation.Score) {
			interview.CorrectAnswersCount++
		}
		if err := tx.SaveInterview(ctx, interview); err != nil {
			return fmt.Errorf("failed to save interview: %w", err)
		}
		return nil
	})
	if err != nil {
		interviewTurns.WithLabelValues("error").Inc()
		slog.Error("Failed to process response", "error", err, "interview_id", input.InterviewID, "question_id", input.QuestionID)
		return nil, fmt.Errorf("failed to process response: %w", err)
	}

	if result.Completed {
		s.sessions.Complete(input.InterviewID)
		interviewTurns.WithLabelValues("completed").Inc()
	} else {
		s.sessions.Update(ictx)
		interviewTurns.WithLabelValues("answered").Inc()
	}
	slog.Info("Response processed", "interview_id", input.InterviewID, "question_id", input.QuestionID, "score", result.Score, "completed", result.Completed)
	return result, nil
}

// resolveOpenQuestion checks ownership, that the interview still runs, that
// the question belongs to it, and that it has not been answered yet.
func (s *InterviewService) resolveOpenQuestion(ctx context.Context, tx *repository.GORMRepository, input SubmitAnswerInput) (*models.Interview, *models.InterviewQuestion, error) {
	interview, err := tx.GetInterview(ctx, input.InterviewID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get interview: %w", err)
	}
	if interview == nil || interview.UserID != input.UserID {
		return nil, nil, ErrInterviewNotFound
	}
	if !interview.IsActive() {
		return nil, nil, ErrInterviewClosed
	}

	question, err := tx.GetQuestion(ctx, input.QuestionID)
	if err != nil {
		return nil, nil, err
	}
	if question == nil || question.InterviewID != interview.ID {
		return nil, nil, ErrQuestionNotFound
	}

	answered, err := tx.HasResponse(ctx, question.ID)
	if err != nil {
		return nil, nil, err
	}
	if answered {
		return nil, nil, ErrQuestionAnswered
	}
	return interview, question, nil
}

// loadContext prefers the cached context and otherwise replays the persisted turns
func (s *InterviewService) loadContext(ctx context.Context, tx *repository.GORMRepository, interview *models.Interview) (*InterviewContext, error) {
	if ictx, ok := s.sessions.Get(interview.ID); ok {
		return ictx, nil
	}

	questions, err := tx.ListConversation(ctx, interview.ID)
	if err != nil {
		return nil, err
	}
	running, err := tx.ListRunningSkillEvaluations(ctx, interview.ID)
	if err != nil {
		return nil, err
	}

	ictx := RebuildInterviewContext(interview, questions, running)
	s.sessions.Register(ictx)
	slog.Info("Session context rebuilt from database", "interview_id", interview.ID, "questions", len(questions))
	return ictx, nil
}

func (s *InterviewService) saveResponse(ctx context.Context, tx *repository.GORMRepository, interview *models.Interview, question *models.InterviewQuestion, input SubmitAnswerInput, evaluation *AnswerEvaluation) error {
	analysis, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %w", err)
	}
	skills, err := json.Marshal(evaluation.DetectedSkills)
	if err != nil {
		return fmt.Errorf("failed to marshal detected skills: %w", err)
	}

	response := &models.UserResponse{
		QuestionID:          question.ID,
		InterviewID:         interview.ID,
		UserAnswer:          input.UserAnswer,
		ResponseTimeSeconds: input.ResponseTimeSeconds,
		AIAnalysis:          datatypes.JSON(analysis),
		AIComment:           evaluation.Feedback,
		DetectedSkills:      datatypes.JSON(skills),
		AnsweredAt:          s.now(),
	}
	if err := tx.CreateResponse(ctx, response); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrQuestionAnswered
		}
		return err
	}
	return nil
}

// mergeRunningSkills averages each detected skill into its running row, or
// starts a new one
func (s *InterviewService) mergeRunningSkills(ctx context.Context, tx *repository.GORMRepository, interviewID uint, evaluation *AnswerEvaluation) error {
	for _, skill := range evaluation.DetectedSkills {
		existing, err := tx.FindRunningSkillEvaluation(ctx, interviewID, skill)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Score = MergeSkillScore(existing.Score, evaluation.Score)
			existing.Evidence = MergeEvidence(existing.Evidence, evaluation.Feedback)
			existing.ImprovementSuggestions = strings.Join(evaluation.ImprovementAreas, "; ")
			existing.EvaluatedAt = s.now()
			if err := tx.SaveSkillEvaluation(ctx, existing); err != nil {
				return err
			}
			continue
		}

		row := &models.SkillEvaluation{
			InterviewID:            interviewID,
			SkillName:              skill,
			SkillCategory:          SkillCategory(skill),
			Score:                  evaluation.Score,
			ConfidenceScore:        decimal.NewFromInt(1),
			Evidence:               evaluation.Feedback,
			ImprovementSuggestions: strings.Join(evaluation.ImprovementAreas, "; "),
			IsFinal:                false,
			EvaluatedAt:            s.now(),
		}
		if err := tx.SaveSkillEvaluation(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *InterviewService) askNextQuestion(ctx context.Context, tx *repository.GORMRepository, interview *models.Interview, evaluation *AnswerEvaluation, ictx *InterviewContext) (*models.InterviewQuestion, error) {
	text, err := s.chat.GenerateQuestionFromHint(ctx, interview.JobDescription, interview.JobTitle, interview.JobLevel, evaluation.NextQuestionHint, ictx)
	if err != nil {
		return nil, err
	}

	maxTurn, err := tx.MaxTurnNumber(ctx, interview.ID)
	if err != nil {
		return nil, err
	}

	question := &models.InterviewQuestion{
		InterviewID:     interview.ID,
		QuestionText:    text,
		QuestionType:    models.QuestionTypeTechnical,
		DifficultyLevel: DifficultyForScore(evaluation.Score),
		TurnNumber:      maxTurn + 1,
		AskedAt:         s.now(),
	}
	if category, err := s.categoryFor(ctx, tx, evaluation); err != nil {
		return nil, err
	} else if category != nil {
		question.CategoryID = &category.ID
	}
	if err := tx.CreateQuestion(ctx, question); err != nil {
		return nil, err
	}

	ictx.AddMessage(RoleAssistant, text)
	interview.QuestionsCount++
	return question, nil
}

// categoryFor tags the next question with the category of the area the
// candidate should improve, else of the first detected skill. Categories
// are seeded reference rows; a missing row leaves the question untagged.
func (s *InterviewService) categoryFor(ctx context.Context, tx *repository.GORMRepository, evaluation *AnswerEvaluation) (*models.QuestionCategory, error) {
	var skill string
	switch {
	case len(evaluation.ImprovementAreas) > 0:
		skill = evaluation.ImprovementAreas[0]
	case len(evaluation.DetectedSkills) > 0:
		skill = evaluation.DetectedSkills[0]
	default:
		return nil, nil
	}
	return tx.GetQuestionCategoryByName(ctx, SkillCategory(skill))
}

// completeInterview closes the interview. It writes the summary, the final
// skill snapshot, the study topics and the user's statistics.
func (s *InterviewService) completeInterview(ctx context.Context, tx *repository.GORMRepository, interview *models.Interview, ictx *InterviewContext) error {
	completedAt := s.now()
	ictx.CompletedAt = &completedAt

	summary, err := s.chat.GenerateSummary(ctx, ictx)
	if err != nil {
		return err
	}

	duration := int(completedAt.Sub(interview.StartedAt).Seconds())
	score := summary.FinalScore
	interview.Status = models.InterviewStatusCompleted
	interview.CompletedAt = &completedAt
	interview.DurationSeconds = &duration
	interview.TotalScore = &score
	interview.AIFeedbackSummary = summary.OverallFeedback

	topics := summary.RecommendedTopics
	if len(topics) == 0 {
		for _, weakness := range summary.Weaknesses {
			topics = append(topics, RecommendedTopic{Topic: weakness, Priority: models.PriorityMedium})
		}
	}
	names := make([]string, 0, len(topics))
	for _, topic := range topics {
		names = append(names, topic.Topic)
	}
	interview.Recommendations = strings.Join(names, "; ")

	running, err := tx.ListRunningSkillEvaluations(ctx, interview.ID)
	if err != nil {
		return err
	}
	final := make([]models.SkillEvaluation, 0, len(running))
	for _, evaluation := range running {
		evaluation.ID = 0
		evaluation.IsFinal = true
		evaluation.EvaluatedAt = completedAt
		final = append(final, evaluation)
	}
	if err := tx.CreateSkillEvaluations(ctx, final); err != nil {
		return err
	}

	interviewID := interview.ID
	reason := fmt.Sprintf("Рекомендовано по итогам собеседования. Оценка: %s", score.StringFixed(1))
	studyTopics := make([]models.StudyTopic, 0, len(topics))
	for _, topic := range topics {
		resources, err := json.Marshal(cleanList(topic.Resources))
		if err != nil {
			return fmt.Errorf("failed to marshal resources: %w", err)
		}
		studyTopics = append(studyTopics, models.StudyTopic{
			UserID:      interview.UserID,
			InterviewID: &interviewID,
			SkillName:   topic.Topic,
			TopicName:   topic.Topic,
			Priority:    normalizePriority(topic.Priority),
			Reason:      reason,
			Resources:   datatypes.JSON(resources),
			AddedAt:     completedAt,
		})
	}
	if err := tx.CreateStudyTopics(ctx, studyTopics); err != nil {
		return err
	}

	stat, err := tx.GetUserStatistic(ctx, interview.UserID)
	if err != nil {
		return err
	}
	strongest, weakest := SkillExtremes(final)
	stat = ApplyCompletion(stat, interview.UserID, CompletedInterview{
		Score:           score,
		DurationSeconds: duration,
		StrongestSkill:  strongest,
		WeakestSkill:    weakest,
		CompletedAt:     completedAt,
	})
	if err := tx.SaveUserStatistic(ctx, stat); err != nil {
		return err
	}

	slog.Info("Interview completed", "interview_id", interview.ID, "score", score, "topics", len(studyTopics))
	return nil
}

// ListInterviews returns the user's interviews, newest first
func (s *InterviewService) ListInterviews(ctx context.Context, userID uint) ([]models.Interview, error) {
	interviews, err := s.repo.ListInterviewsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	return interviews, nil
}

// GetInterview returns one of the user's interviews with its transcript and results
func (s *InterviewService) GetInterview(ctx context.Context, userID, interviewID uint) (*models.Interview, error) {
	interview, err := s.repo.GetInterviewDetails(ctx, interviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	if interview == nil || interview.UserID != userID {
		return nil, ErrInterviewNotFound
	}
	return interview, nil
}

// Hint asks the model for a nudge on an open question
func (s *InterviewService) Hint(ctx context.Context, userID, interviewID, questionID uint) (string, error) {
	if questionID == 0 {
		return "", ErrMissingQuestionID
	}

	var question *models.InterviewQuestion
	var ictx *InterviewContext
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		interview, q, err := s.resolveOpenQuestion(ctx, tx, SubmitAnswerInput{
			UserID:      userID,
			InterviewID: interviewID,
			QuestionID:  questionID,
		})
		if err != nil {
			return err
		}
		question = q
		ictx, err = s.loadContext(ctx, tx, interview)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get hint: %w", err)
	}

	return s.chat.GenerateHint(ctx, question.QuestionText, ictx)
}

// ExpireInterviews times out interviews idle since before cutoff and drops their cached sessions
func (s *InterviewService) ExpireInterviews(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.repo.TimeoutStaleInterviews(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.sessions.Complete(id)
	}
	return len(ids), nil
}
