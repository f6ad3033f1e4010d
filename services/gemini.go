package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient is a Completer backed by the Gemini API
type GeminiClient struct {
	genaiClient *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float64, maxTokens int) (*GeminiClient, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		genaiClient: genaiClient,
		model:       model,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
	}, nil
}

func (g *GeminiClient) Provider() string { return "gemini" }

func (g *GeminiClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	system, contents := toGeminiContents(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		slog.Error("Gemini API error", "error", err, "model", g.model)
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := result.Text()
	if text == "" {
		return emptyCompletionAnswer, nil
	}
	return text, nil
}

// toGeminiContents folds system messages into one instruction and maps the
// assistant role to the model role. A prompt made only of system text is sent
// as a single user turn because the API needs at least one content.
func toGeminiContents(messages []ChatMessage) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	instruction := strings.Join(system, "\n\n")
	if len(contents) == 0 {
		return "", []*genai.Content{genai.NewContentFromText(instruction, genai.RoleUser)}
	}
	return instruction, contents
}
