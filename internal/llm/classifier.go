// Package llm is the remote complaint classifier: an OpenAI-compatible chat
// completion endpoint (Groq by default) asked to return the complaint
// fields as JSON.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hostelmon/internal/complaint"
	apperrors "hostelmon/internal/errors"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	provider     = "groq"
	systemPrompt = "You extract structured hostel complaint data."
	temperature  = 0.2
)

const userPrompt = `You are a hostel complaint classifier.

Extract structured information from this complaint:

MESSAGE: %s

Return ONLY JSON:

{
  "hostel_name": string or null,
  "room_number": string or null,
  "category": "PLUMBING" | "ELECTRICAL" | "CLEANLINESS" | "SECURITY" | "WIFI" | "FOOD" | "FURNITURE" | "OTHER",
  "priority": "LOW" | "MEDIUM" | "HIGH" | "URGENT",
  "summary": string
}
`

// Classifier implements complaint.RemoteClassifier.
type Classifier struct {
	http   *resty.Client
	apiKey string
	model  string
	log    *zap.Logger
}

// New returns a Classifier. http must have its base URL set to the API root
// (for Groq, https://api.groq.com/openai/v1).
func New(http *resty.Client, apiKey, model string, log *zap.Logger) *Classifier {
	return &Classifier{http: http, apiKey: apiKey, model: model, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// extraction is the JSON object the model is asked for.
type extraction struct {
	HostelName *string `json:"hostel_name"`
	RoomNumber *string `json:"room_number"`
	Category   string  `json:"category"`
	Priority   string  `json:"priority"`
	Summary    string  `json:"summary"`
}

// Classify asks the model for the complaint fields. Every failure is a
// *errors.ClassifierError.
func (c *Classifier) Classify(ctx context.Context, text string) (complaint.RemoteResult, error) {
	req := chatRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPrompt, text)},
		},
	}

	var (
		out    chatResponse
		failed apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		SetError(&failed).
		Post("/chat/completions")
	if err != nil {
		return complaint.RemoteResult{}, apperrors.NewClassifierError(provider, err)
	}
	if resp.IsError() {
		return complaint.RemoteResult{}, apperrors.NewClassifierError(provider,
			fmt.Errorf("status %d: %s", resp.StatusCode(), failed.Error.Message))
	}
	if len(out.Choices) == 0 {
		return complaint.RemoteResult{}, apperrors.NewClassifierError(provider, fmt.Errorf("no choices in response"))
	}

	result, err := Parse(out.Choices[0].Message.Content)
	if err != nil {
		return complaint.RemoteResult{}, apperrors.NewClassifierError(provider, err)
	}

	c.log.Debug("Remote classifier answered",
		zap.String("category", result.Category),
		zap.String("priority", result.Priority))
	return result, nil
}

// Parse decodes a model answer, tolerating a surrounding markdown code
// fence.
func Parse(content string) (complaint.RemoteResult, error) {
	var e extraction
	if err := json.Unmarshal([]byte(stripFence(content)), &e); err != nil {
		return complaint.RemoteResult{}, fmt.Errorf("decode model answer: %w", err)
	}
	return complaint.RemoteResult{
		Facility: e.HostelName,
		SubUnit:  e.RoomNumber,
		Category: e.Category,
		Priority: e.Priority,
		Summary:  e.Summary,
	}, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
