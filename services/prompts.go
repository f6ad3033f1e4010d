package services

import (
	"fmt"
	"strings"
)

const questionSystemPrompt = `Ты - опытный рекрутер с 10+ годами опыта в IT.
Проводишь собеседование на позицию: %s (%s уровень).

Описание вакансии:
%s

Правила:
1. Задавай только ОДИН технический/поведенческий вопрос
2. Вопрос должен быть релевантен вакансии и уровню
3. Фокусируйся на практическом опыте, а не теории
4. Адаптируй сложность на основе истории диалога
5. Вопрос должен проверить конкретный навык или опыт
6. Верни ТОЛЬКО вопрос, без пояснений

Примеры хороших вопросов:
- Как вы обычно деплоите FastAPI приложение в прод?
- Расскажите о вашем опыте оптимизации SQL запросов
- Как вы отлаживаете проблему с памятью в продакшене?
- Опишите ваш опыт работы с микросервисной архитектурой`

const evaluationSystemPrompt = `Ты - технический рекрутер. Оцени ответ кандидата.

Контекст:
- Должность: %s
- Уровень: %s

Критерии оценки (0-10):
1. Техническая точность (0-3)
2. Глубина понимания (0-3)
3. Практический опыт (0-2)
4. Четкость изложения (0-2)

ВЕРНИ ТОЛЬКО JSON:
{
    "score": 0-10,
    "feedback": "конструктивный фидбек",
    "detectedSkills": ["навык1", "навык2"],
    "improvementAreas": ["область1", "область2"],
    "nextQuestionHint": "подсказка в формате рекрутера, например: 'Можете рассказать о...' или 'Что вы думаете о...'",
    "detailedScores": {
        "technicalCorrectness": 0-3,
        "depthOfUnderstanding": 0-3,
        "practicalApplication": 0-2,
        "answerStructure": 0-2
    }
}

Вопрос: %s
Ответ: %s`

const summarySystemPrompt = `Ты - старший рекрутер. Подведи итоги собеседования.

Контекст:
- Должность: %s
- Уровень: %s
- Средний балл: %s/10

ВЕРНИ ТОЛЬКО JSON:
{
    "finalScore": 0-10,
    "strengths": ["сильная сторона1", "сильная сторона2"],
    "weaknesses": ["слабая сторона1", "слабая сторона2"],
    "overallFeedback": "общий фидбэк",
    "recommendedTopics": [
        {
            "topic": "тема",
            "priority": "high/medium/low",
            "resources": ["ресурс1", "ресурс2"]
        }
    ],
    "suggestedLevel": "junior/middle/senior",
    "isRecommended": true/false,
    "interviewDuration": "примерно X минут"
}

История: %s`

const hintSystemPrompt = `Ты - рекрутер. Дай небольшую подсказку кандидату для вопроса: '%s'. ` +
	`Формат: 'Можете рассказать о...' или 'Что вы думаете о...' или 'Как вы обычно...'. ` +
	`Не давай полный ответ, только направление. Верни только подсказку, 1-2 предложения.`

const (
	nextQuestionInstruction = "Задай следующий вопрос для собеседования."
	hintedQuestionTemplate  = "Задай следующий вопрос для собеседования. Направление: %s"
)

func buildQuestionPrompt(jobDescription, jobTitle, jobLevel, hint string, ictx *InterviewContext) []ChatMessage {
	messages := []ChatMessage{{
		Role:    RoleSystem,
		Content: fmt.Sprintf(questionSystemPrompt, jobTitle, jobLevel, jobDescription),
	}}

	if ictx != nil {
		for _, turn := range ictx.RecentHistory(questionHistoryWindow) {
			messages = append(messages, ChatMessage{Role: turn.Role, Content: turn.Content})
		}
	}

	instruction := nextQuestionInstruction
	if hint = strings.TrimSpace(hint); hint != "" {
		instruction = fmt.Sprintf(hintedQuestionTemplate, hint)
	}
	return append(messages, ChatMessage{Role: RoleUser, Content: instruction})
}

func buildEvaluationPrompt(question, userAnswer string, ictx *InterviewContext) []ChatMessage {
	return []ChatMessage{{
		Role:    RoleSystem,
		Content: fmt.Sprintf(evaluationSystemPrompt, ictx.JobTitle, ictx.JobLevel, question, userAnswer),
	}}
}

func buildSummaryPrompt(ictx *InterviewContext) []ChatMessage {
	return []ChatMessage{{
		Role:    RoleSystem,
		Content: fmt.Sprintf(summarySystemPrompt, ictx.JobTitle, ictx.JobLevel, ictx.AverageScore().String(), ictx.FormattedHistory()),
	}}
}

func buildHintPrompt(question string) []ChatMessage {
	return []ChatMessage{{
		Role:    RoleSystem,
		Content: fmt.Sprintf(hintSystemPrompt, question),
	}}
}
