// Package alerts sends best-effort operator notifications. Alert failures are
// swallowed: an alert is never allowed to break the loop that raised it.
package alerts

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier is a fire-and-forget operator alert channel.
type Notifier interface {
	Notify(ctx context.Context, subject, detail string)
}

// Twilio sends alert SMS to the operator phone number.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
	To         string
	BaseURL    string
	Client     *http.Client
}

func NewTwilio(accountSID, authToken, from, to, baseURL string) *Twilio {
	return &Twilio{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		To:         to,
		BaseURL:    baseURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Twilio) Notify(ctx context.Context, subject, detail string) {
	if t.AccountSID == "" || t.AuthToken == "" || t.To == "" {
		return
	}

	body := subject
	if detail != "" {
		body += ": " + detail
	}
	if len(body) > 300 {
		body = body[:300]
	}

	form := url.Values{}
	form.Set("To", t.To)
	form.Set("From", t.From)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, url.PathEscape(t.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("[Alerts] build request error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.AccountSID, t.AuthToken)

	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("[Alerts] send error: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
		log.Printf("[Alerts] send failed status=%d body=%s", resp.StatusCode, string(raw))
	}
}

// Nop discards alerts; used when Twilio is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) {}
