package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"visamate-backend/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// maxPromptChars bounds the prompt sent to the model
const maxPromptChars = 30000

var ErrEmptyResponse = errors.New("model returned empty content")

// Refiner rewrites a rendered draft according to free-form instructions
type Refiner interface {
	Refine(ctx context.Context, kind models.DocumentKind, draft, instructions string) (string, error)
}

// GeminiRefiner refines documents with a Gemini model
type GeminiRefiner struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiRefiner creates a Gemini client for the given model
func NewGeminiRefiner(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiRefiner, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiRefiner{
		client: client,
		model:  model,
		logger: logger.With(slog.String("component", "gemini_refiner")),
	}, nil
}

// Close releases the underlying client
func (g *GeminiRefiner) Close() error {
	return g.client.Close()
}

// Refine sends the draft and instructions to the model and returns its rewrite
func (g *GeminiRefiner) Refine(ctx context.Context, kind models.DocumentKind, draft, instructions string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0.4)

	prompt := BuildPrompt(kind, draft, instructions)
	if len(prompt) > maxPromptChars {
		g.logger.Warn("prompt too long, truncating", slog.Int("chars", len(prompt)))
		prompt = prompt[:maxPromptChars]
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return g.responseText(resp)
}

// BuildPrompt assembles the refinement prompt
func BuildPrompt(kind models.DocumentKind, draft, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are editing a %s for a U.S. immigration petition.\n", strings.ReplaceAll(string(kind), "_", " "))
	b.WriteString("Keep every factual statement. Do not invent achievements, names, dates or numbers.\n")
	b.WriteString("Return only the revised document as plain text.\n\n")
	if instructions = strings.TrimSpace(instructions); instructions != "" {
		b.WriteString("INSTRUCTIONS:\n")
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}
	b.WriteString("DOCUMENT:\n")
	b.WriteString(draft)
	return b.String()
}

func (g *GeminiRefiner) responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}

	var out strings.Builder
	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonUnspecified && cand.FinishReason != genai.FinishReasonStop {
			g.logger.Warn("candidate finished early",
				slog.Int("candidate", i),
				slog.String("reason", cand.FinishReason.String()),
			)
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}

	result := strings.TrimSpace(out.String())
	if result == "" {
		return "", ErrEmptyResponse
	}
	return result, nil
}
