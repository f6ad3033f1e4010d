package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/interviewhelper/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"wrapped in prose", "Вот оценка: {\"a\":1} Удачи!", `{"a":1}`, true},
		{"code fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"no braces", "просто текст", "", false},
		{"reversed braces", "} {", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeLenientLeavesTargetOnError(t *testing.T) {
	target := struct{ A int }{A: 7}
	err := DecodeLenient("{not json}", &target)
	assert.Error(t, err)
	assert.Equal(t, 7, target.A)

	err = DecodeLenient("no object here", &target)
	assert.ErrorIs(t, err, errNoJSONObject)
}

func TestParseAnswerEvaluation(t *testing.T) {
	t.Run("valid JSON inside prose", func(t *testing.T) {
		text := `Конечно! {"score": 8.5, "feedback": "Хорошо", "detectedSkills": ["Go", " ", "SQL"],
			"improvementAreas": ["Тесты"], "nextQuestionHint": "Спросить про индексы",
			"detailedScores": {"technicalCorrectness": 9}} Надеюсь, это поможет.`
		evaluation := ParseAnswerEvaluation(text)

		assert.True(t, dec("8.5").Equal(evaluation.Score))
		assert.Equal(t, "Хорошо", evaluation.Feedback)
		assert.Equal(t, []string{"Go", "SQL"}, evaluation.DetectedSkills)
		assert.Equal(t, []string{"Тесты"}, evaluation.ImprovementAreas)
		assert.Equal(t, "Спросить про индексы", evaluation.NextQuestionHint)
		assert.True(t, dec("9").Equal(evaluation.DetailedScores.TechnicalCorrectness))
	})

	t.Run("score is clamped", func(t *testing.T) {
		assert.True(t, dec("10").Equal(ParseAnswerEvaluation(`{"score": 14}`).Score))
		assert.True(t, dec("0").Equal(ParseAnswerEvaluation(`{"score": -3}`).Score))
	})

	t.Run("malformed output falls back", func(t *testing.T) {
		text := "Ответ неплохой, но без примеров"
		evaluation := ParseAnswerEvaluation(text)

		assert.True(t, dec("5").Equal(evaluation.Score))
		assert.Equal(t, text, evaluation.Feedback)
		assert.Empty(t, evaluation.DetectedSkills)
		assert.NotNil(t, evaluation.DetectedSkills)
		assert.Empty(t, evaluation.ImprovementAreas)
		assert.Equal(t, defaultEvaluationHint, evaluation.NextQuestionHint)
	})
}

func TestParseInterviewSummary(t *testing.T) {
	t.Run("final score is always the local average", func(t *testing.T) {
		text := `{"finalScore": 9.9, "strengths": ["Go"], "weaknesses": ["SQL"],
			"overallFeedback": "Сильный кандидат", "suggestedLevel": "senior", "isRecommended": true,
			"recommendedTopics": [
				{"topic": "Индексы", "priority": "HIGH", "resources": ["docs"]},
				{"topic": "  ", "priority": "low"},
				{"topic": "Транзакции", "priority": "urgent"}
			]}`
		summary := ParseInterviewSummary(text, dec("7.3"))

		assert.True(t, dec("7.3").Equal(summary.FinalScore))
		assert.Equal(t, "senior", summary.SuggestedLevel)
		assert.True(t, summary.IsRecommended)
		require.Len(t, summary.RecommendedTopics, 2)
		assert.Equal(t, models.PriorityHigh, summary.RecommendedTopics[0].Priority)
		assert.Equal(t, []string{"docs"}, summary.RecommendedTopics[0].Resources)
		assert.Equal(t, models.PriorityMedium, summary.RecommendedTopics[1].Priority)
	})

	t.Run("malformed output falls back", func(t *testing.T) {
		summary := ParseInterviewSummary("Итоги: всё хорошо", dec("6"))

		assert.Equal(t, "Итоги: всё хорошо", summary.OverallFeedback)
		assert.Equal(t, defaultSuggestedLevel, summary.SuggestedLevel)
		assert.True(t, dec("6").Equal(summary.FinalScore))
		assert.Empty(t, summary.RecommendedTopics)
	})
}

func TestParseCutsNamesToColumnWidth(t *testing.T) {
	long := strings.Repeat("я", models.SkillNameMaxLength+20)

	evaluation := ParseAnswerEvaluation(`{"score": 7, "detectedSkills": ["` + long + `", "Go"], "improvementAreas": ["` + long + `"]}`)
	require.Len(t, evaluation.DetectedSkills, 2)
	assert.Equal(t, models.SkillNameMaxLength, utf8.RuneCountInString(evaluation.DetectedSkills[0]))
	assert.Equal(t, "Go", evaluation.DetectedSkills[1])
	assert.Equal(t, models.SkillNameMaxLength, utf8.RuneCountInString(evaluation.ImprovementAreas[0]))

	summary := ParseInterviewSummary(`{"weaknesses": ["`+long+`"], "recommendedTopics": [{"topic": "`+long+`", "priority": "high"}]}`, dec("6"))
	require.Len(t, summary.RecommendedTopics, 1)
	assert.Equal(t, models.SkillNameMaxLength, utf8.RuneCountInString(summary.RecommendedTopics[0].Topic))
	assert.Equal(t, models.SkillNameMaxLength, utf8.RuneCountInString(summary.Weaknesses[0]))
}
