package genai

import (
	"context"
	"fmt"
	"strings"

	gai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator 内容生成抽象，便于测试时替换
type Generator interface {
	Generate(ctx context.Context, modelName, prompt string) (string, error)
	Close() error
}

// GeminiGenerator Google Gemini 实现
type GeminiGenerator struct {
	client *gai.Client
}

func NewGeminiGenerator(ctx context.Context, apiKey string) (*GeminiGenerator, error) {
	client, err := gai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client}, nil
}

// Generate 调用指定模型生成文本
func (g *GeminiGenerator) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	model := g.client.GenerativeModel(modelName)

	resp, err := model.GenerateContent(ctx, gai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// extractText 拼接候选结果中的文本片段
func extractText(resp *gai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(gai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return sb.String()
}
