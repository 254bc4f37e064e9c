package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIService turns a raw greeting message into a production plan: a
// polished spoken script plus a scene description for video generation.
// It is optional — when unconfigured, the worker uses the raw message as
// both script and scene.
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(apiKey, model string) *OpenAIService {
	if model == "" {
		model = "gpt-5-mini"
	}
	return &OpenAIService{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// GreetingPlan is the structured planning output.
type GreetingPlan struct {
	Script      string `json:"script"`      // what the narrator speaks
	Environment string `json:"environment"` // the visual scene for generation
	Mood        string `json:"mood"`        // one-word emotional register
}

const planSystemPrompt = `You are a creative director for short personalized video greetings.

Given a sender's raw message, produce a JSON object with exactly these fields:
- "script": the message rewritten as warm, natural spoken narration. Keep the sender's meaning and any names intact. Short sentences, conversational, 1-4 sentences total. Never empty.
- "environment": a vivid one-paragraph visual scene for an AI video model: setting, lighting, atmosphere, and gentle motion that suits the message. Describe no on-screen text and no identifiable real people. Never empty.
- "mood": a single word for the emotional register (e.g. "joyful", "tender", "festive"). Never empty.

The video is silent; narration is a separate audio track. Respond with JSON only.`

// GeneratePlan plans one greeting via JSON-mode chat completion.
func (s *OpenAIService) GeneratePlan(ctx context.Context, message string) (*GreetingPlan, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: planSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Plan a video greeting for this message: %q", message),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content

	var plan GreetingPlan
	if err := json.Unmarshal([]byte(rawContent), &plan); err != nil {
		log.Printf("[OpenAI plan] parse failed: %v (raw: %.500s)", err, rawContent)
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if plan.Script == "" || plan.Environment == "" {
		log.Printf("[OpenAI plan] incomplete plan: %+v", plan)
		return nil, fmt.Errorf("plan missing required fields")
	}

	log.Printf("[OpenAI plan] scriptLen=%d mood=%q", len(plan.Script), plan.Mood)
	return &plan, nil
}
