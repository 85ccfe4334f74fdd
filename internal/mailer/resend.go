// Package mailer delivers campaign email through the Resend HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one outbound campaign email. The unsubscribe link and compliance
// footer are embedded in Body by the caller before Send.
type Message struct {
	To         string
	Subject    string
	Body       string
	TenantName string
	ReplyTo    string // set only when the tenant contact looks like an email
}

// Sender is implemented by Resend and by test fakes.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Resend struct {
	APIKey  string
	BaseURL string
	From    string // bare address; the tenant name becomes the display name
	Client  *http.Client
}

func NewResend(apiKey, baseURL, from string) *Resend {
	return &Resend{
		APIKey:  apiKey,
		BaseURL: baseURL,
		From:    from,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo []string `json:"reply_to,omitempty"`
}

type sendEmailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (r *Resend) Send(ctx context.Context, msg Message) error {
	if r.APIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is not configured")
	}

	from := r.From
	if msg.TenantName != "" {
		from = fmt.Sprintf("%s <%s>", msg.TenantName, r.From)
	}
	payload := sendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.Body,
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = []string{msg.ReplyTo}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.APIKey)

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var apiErr sendEmailResponse
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Message != "" {
			return fmt.Errorf("resend: status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("resend: status %d", resp.StatusCode)
	}
	return nil
}
