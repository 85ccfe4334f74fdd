// Package compose turns a customer review into reply text via an
// OpenAI-compatible chat-completions endpoint. Generation has no fallback:
// when the call fails, the caller records a failed attempt for that review.
package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/replyhero/backend/internal/gbp"
)

type Composer struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
}

func New(apiKey, model, baseURL string) *Composer {
	return &Composer{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateReply produces reply text for one review. Low-rating replies get
// the tenant's contact string so upset customers have somewhere to go.
func (c *Composer) GenerateReply(ctx context.Context, review gbp.Review, tenantName, contact string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY is not configured")
	}

	system := fmt.Sprintf(
		"You write short, warm, professional replies to customer reviews on behalf of %s. "+
			"Never offer discounts. Two sentences maximum.", tenantName)
	user := fmt.Sprintf("Rating: %d/5\nReviewer: %s\nReview: %s", review.Rating, review.ReviewerName, review.Comment)
	if review.Rating <= 3 && contact != "" {
		user += fmt.Sprintf("\nInvite the customer to reach out directly at %s.", contact)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		MaxTokens:   200,
		Temperature: 0.7,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}
	return text, nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
