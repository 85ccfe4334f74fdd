// Package gbp is a thin client for the Google Business Profile reviews API:
// list a location's reviews (with pagination) and post a reply to one review.
package gbp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Review is one customer review in the shape the reply loop consumes.
type Review struct {
	ID           string
	Rating       int // 1..5
	Comment      string
	ReviewerName string
	HasReply     bool
}

// TokenFunc resolves the bearer token for one tenant's account. Token refresh
// lives with the OAuth layer, not here.
type TokenFunc func(ctx context.Context, accountID string) (string, error)

// StaticToken returns a TokenFunc that always yields tok, the single-token
// setup used by the legacy fallback configuration.
func StaticToken(tok string) TokenFunc {
	return func(context.Context, string) (string, error) {
		if tok == "" {
			return "", fmt.Errorf("no Google access token configured")
		}
		return tok, nil
	}
}

type Client struct {
	BaseURL string
	Token   TokenFunc
	Client  *http.Client
	Limiter *rate.Limiter
}

func NewClient(baseURL string, token TokenFunc, rps float64, burst int) *Client {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 2
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 20 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// The API reports ratings as words.
var starRatings = map[string]int{
	"ONE": 1, "TWO": 2, "THREE": 3, "FOUR": 4, "FIVE": 5,
}

type apiReview struct {
	ReviewID   string `json:"reviewId"`
	StarRating string `json:"starRating"`
	Comment    string `json:"comment"`
	Reviewer   struct {
		DisplayName string `json:"displayName"`
	} `json:"reviewer"`
	ReviewReply *struct {
		Comment string `json:"comment"`
	} `json:"reviewReply"`
}

type listReviewsResponse struct {
	Reviews       []apiReview `json:"reviews"`
	NextPageToken string      `json:"nextPageToken"`
}

// ListReviews fetches the full review list for one location, following
// nextPageToken until exhausted.
func (c *Client) ListReviews(ctx context.Context, accountID, locationID string) ([]Review, error) {
	tok, err := c.Token(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var out []Review
	pageToken := ""
	for {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		u := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews?pageSize=50",
			c.BaseURL, url.PathEscape(accountID), url.PathEscape(locationID))
		if pageToken != "" {
			u += "&pageToken=" + url.QueryEscape(pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("list reviews %s/%s: status %d: %s", accountID, locationID, resp.StatusCode, truncate(string(body), 300))
		}

		var page listReviewsResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("list reviews %s/%s: %w", accountID, locationID, err)
		}
		for _, r := range page.Reviews {
			out = append(out, Review{
				ID:           r.ReviewID,
				Rating:       starRatings[r.StarRating],
				Comment:      r.Comment,
				ReviewerName: r.Reviewer.DisplayName,
				HasReply:     r.ReviewReply != nil && r.ReviewReply.Comment != "",
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// PostReply publishes (or overwrites) the business reply on one review.
func (c *Client) PostReply(ctx context.Context, accountID, locationID, reviewID, text string) error {
	tok, err := c.Token(ctx, accountID)
	if err != nil {
		return err
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews/%s/reply",
		c.BaseURL, url.PathEscape(accountID), url.PathEscape(locationID), url.PathEscape(reviewID))
	payload, err := json.Marshal(map[string]string{"comment": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("post reply %s: status %d: %s", reviewID, resp.StatusCode, truncate(string(body), 300))
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
