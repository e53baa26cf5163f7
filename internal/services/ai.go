package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// chatCompleter is the slice of the OpenAI client the AI service needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type AIService struct {
	client chatCompleter
	model  string
}

// GeneratedSchedule is one occurrence proposed by the model.
type GeneratedSchedule struct {
	DueDate string `json:"due_date"`
	From    string `json:"from"`
	To      string `json:"to"`
}

// GeneratedTask is one task proposed by the model.
type GeneratedTask struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Schedules   []GeneratedSchedule `json:"schedules"`
}

func NewAIService(apiKey string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4o,
	}
}

// GenerateTasksFromText asks the model to turn free text into task drafts.
// now is rendered in the caller's time zone so relative dates resolve
// against the right calendar day.
func (s *AIService) GenerateTasksFromText(ctx context.Context, text string, now time.Time) ([]GeneratedTask, error) {
	if s.client == nil {
		return nil, fmt.Errorf("OpenAI client not initialized")
	}

	prompt := fmt.Sprintf(`You extract recurring personal tasks from free text.

Current time: %s (%s)

Text:
%s

Reply with a JSON array only, no prose:
[
  {
    "name": "short task name",
    "description": "optional details",
    "schedules": [
      {"due_date": "YYYY-MM-DD", "from": "HH:MM:SS", "to": "HH:MM:SS"}
    ]
  }
]

Rules:
- Return [] when the text contains no task.
- Turn relative dates ("tomorrow", "every day this week") into explicit dates, one schedule per day.
- Omit "from" and "to" when no time window is given.
- Never schedule dates in the past.`, now.Format("2006-01-02 15:04:05"), now.Location(), text)

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
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)

	var tasks []GeneratedTask
	if err := json.Unmarshal([]byte(content), &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	return tasks, nil
}

// stripCodeFence removes a surrounding ```json fence if the model added one.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
