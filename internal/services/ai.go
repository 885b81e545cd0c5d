package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// AIService drafts template tasks with an OpenAI chat model.
type AIService struct {
	client *openai.Client
	model  string
}

// SuggestRequest describes the plan to turn into template tasks.
type SuggestRequest struct {
	RoleName string
	Text     string
	MaxTasks int
}

// SuggestedTask is a draft blueprint row. OffsetDays is relative to project start.
type SuggestedTask struct {
	Description string `json:"description"`
	OffsetDays  int    `json:"offset_days"`
	IsCritical  bool   `json:"is_critical"`
	IsRecurring bool   `json:"is_recurring"`
}

func NewAIService(apiKey, model string) *AIService {
	return NewAIServiceWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewAIServiceWithConfig allows pointing the client at another base URL.
func NewAIServiceWithConfig(cfg openai.ClientConfig, model string) *AIService {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &AIService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// SuggestTemplateTasks asks the model for a JSON object {"tasks": [...]}.
func (s *AIService) SuggestTemplateTasks(ctx context.Context, req SuggestRequest) ([]SuggestedTask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	role := req.RoleName
	if role == "" {
		role = "any role"
	}
	prompt := fmt.Sprintf(`You turn rollout plans into checklist templates.

Role: %s

Plan:
%s

Return a JSON object of the form
{"tasks": [{"description": "...", "offset_days": -14, "is_critical": true, "is_recurring": false}]}

Rules:
- at most %d tasks
- offset_days is the number of calendar days relative to the project start date, negative before the start
- descriptions are short imperative sentences
- return {"tasks": []} when the plan contains no tasks`, role, req.Text, req.MaxTasks)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var parsed struct {
		Tasks []SuggestedTask `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	return parsed.Tasks, nil
}
