package services

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/interviewhelper/backend/models"
	"github.com/shopspring/decimal"
)

var errNoJSONObject = errors.New("no JSON object found in response")

const (
	defaultEvaluationHint = "Попробуйте углубиться в практические аспекты"
	defaultSuggestedLevel = "middle"
)

var (
	defaultScore = decimal.NewFromInt(5)
	maxScore     = decimal.NewFromInt(10)
)

// ExtractJSON returns the text between the first '{' and the last '}'.
// Models often wrap the object in prose or code fences.
func ExtractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// DecodeLenient extracts the outermost object from free text and decodes it
// into v. Field names match case-insensitively. v is left untouched on error.
func DecodeLenient[T any](text string, v *T) error {
	payload, ok := ExtractJSON(text)
	if !ok {
		return errNoJSONObject
	}
	var out T
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return err
	}
	*v = out
	return nil
}

// ParseAnswerEvaluation never fails: unparseable output becomes a neutral
// evaluation that carries the raw text as feedback.
func ParseAnswerEvaluation(text string) *AnswerEvaluation {
	var evaluation AnswerEvaluation
	if err := DecodeLenient(text, &evaluation); err != nil {
		return &AnswerEvaluation{
			Score:            defaultScore,
			Feedback:         text,
			DetectedSkills:   []string{},
			ImprovementAreas: []string{},
			NextQuestionHint: defaultEvaluationHint,
		}
	}

	evaluation.Score = clampScore(evaluation.Score)
	evaluation.DetectedSkills = cleanNames(evaluation.DetectedSkills, models.SkillNameMaxLength)
	evaluation.ImprovementAreas = cleanNames(evaluation.ImprovementAreas, models.SkillNameMaxLength)
	return &evaluation
}

// ParseInterviewSummary never fails. FinalScore is always replaced by the
// locally computed average.
func ParseInterviewSummary(text string, average decimal.Decimal) *InterviewSummary {
	var summary InterviewSummary
	if err := DecodeLenient(text, &summary); err != nil {
		summary = InterviewSummary{
			OverallFeedback: text,
			SuggestedLevel:  defaultSuggestedLevel,
		}
	}

	summary.FinalScore = average
	summary.Strengths = cleanList(summary.Strengths)
	// Weaknesses stand in for topics when none are recommended
	summary.Weaknesses = cleanNames(summary.Weaknesses, models.SkillNameMaxLength)
	if summary.SuggestedLevel == "" {
		summary.SuggestedLevel = defaultSuggestedLevel
	}

	topics := make([]RecommendedTopic, 0, len(summary.RecommendedTopics))
	for _, topic := range summary.RecommendedTopics {
		// The topic is stored as both skill and topic name
		topic.Topic = truncate(strings.TrimSpace(topic.Topic), models.SkillNameMaxLength)
		if topic.Topic == "" {
			continue
		}
		topic.Priority = normalizePriority(topic.Priority)
		topic.Resources = cleanList(topic.Resources)
		topics = append(topics, topic)
	}
	summary.RecommendedTopics = topics
	return &summary
}

func clampScore(score decimal.Decimal) decimal.Decimal {
	if score.IsNegative() {
		return decimal.Zero
	}
	if score.GreaterThan(maxScore) {
		return maxScore
	}
	return score
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// cleanNames is cleanList with every item cut to the column width
func cleanNames(items []string, limit int) []string {
	out := cleanList(items)
	for i, item := range out {
		out[i] = truncate(item, limit)
	}
	return out
}

func normalizePriority(priority string) string {
	switch p := strings.ToLower(strings.TrimSpace(priority)); p {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return p
	default:
		return models.PriorityMedium
	}
}
