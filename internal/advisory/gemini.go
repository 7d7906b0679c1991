package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// Schema describes a flat JSON object the model must answer with.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

type Property struct {
	Type        string // STRING, NUMBER, INTEGER
	Description string
}

// Generator produces text for a prompt. A non-nil schema asks for a JSON answer.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *Schema) (string, error)
}

type GeminiGenerator struct {
	svc    *generativelanguage.Service
	model  string
	logger *zerolog.Logger
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, logger *zerolog.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &GeminiGenerator{svc: svc, model: model, logger: logger}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, schema *Schema) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}
	if schema != nil {
		req.GenerationConfig = &generativelanguage.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema.toAPI(),
		}
	}

	resp, err := g.svc.Models.GenerateContent(g.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	g.logger.Debug().Str("model", g.model).Int("chars", sb.Len()).Msg("gemini response received")
	return sb.String(), nil
}

func (s *Schema) toAPI() *generativelanguage.Schema {
	props := make(map[string]generativelanguage.Schema, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = generativelanguage.Schema{Type: p.Type, Description: p.Description}
	}
	return &generativelanguage.Schema{
		Type:       "OBJECT",
		Properties: props,
		Required:   s.Required,
	}
}
