package coaching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RemoteError ответ удаленного сервиса с кодом не 2xx
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("coaching backend returned %d: %s", e.StatusCode, e.Message)
}

// RemoteBackend HTTP-клиент внешнего сервиса AI-коучинга
type RemoteBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteBackend создает клиент; вызовы не повторяются, таймаут задается конфигом
func NewRemoteBackend(baseURL string, timeout time.Duration) *RemoteBackend {
	return &RemoteBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *RemoteBackend) SubmitFeedback(ctx context.Context, gameID string, req FeedbackRequest) (*FeedbackResponse, error) {
	var resp FeedbackResponse
	if err := c.post(ctx, "/games/"+url.PathEscape(gameID)+"/feedback", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to submit feedback: %w", err)
	}
	return &resp, nil
}

func (c *RemoteBackend) CreateReport(ctx context.Context, gameID, teamID string) (*ReportResponse, error) {
	body := struct {
		TeamID string `json:"teamId"`
	}{TeamID: teamID}

	var resp ReportResponse
	if err := c.post(ctx, "/games/"+url.PathEscape(gameID)+"/report", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	if resp.GameID == "" {
		resp.GameID = gameID
	}
	if resp.TeamID == "" {
		resp.TeamID = teamID
	}
	return &resp, nil
}

func (c *RemoteBackend) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage достает текст ошибки из {"error":{"message"}}, {"message"} или сырого тела
func errorMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(raw) == 0 {
		return http.StatusText(resp.StatusCode)
	}

	var body struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
