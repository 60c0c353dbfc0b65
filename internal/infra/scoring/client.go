package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quiz-session-engine/internal/domain"
)

// Client talks to the external scoring service, which owns correctness and
// attempt numbering. The engine only ships responses and reads back the
// attempt handle.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Score posts a finished attempt and returns the scoring service's receipt.
func (c *Client) Score(ctx context.Context, sub domain.Submission) (domain.Receipt, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return domain.Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses/submit_quiz/", bytes.NewReader(body))
	if err != nil {
		return domain.Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("scoring request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Receipt{}, fmt.Errorf("%w: status %d", domain.ErrScoringFailed, resp.StatusCode)
	}

	var receipt domain.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return domain.Receipt{}, fmt.Errorf("decode receipt: %w", err)
	}
	return receipt, nil
}
