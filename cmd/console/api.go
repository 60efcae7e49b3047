package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/pixel-quest/pkg/state"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type Theme struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type actionResponse struct {
	State     *state.GameState `json:"state"`
	FromCache bool             `json:"from_cache"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Message)
}

// APIClient talks to the Pixel Quest HTTP API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	return &APIClient{baseURL: baseURL, client: client}
}

func (c *APIClient) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *APIClient) Themes(ctx context.Context) ([]Theme, error) {
	var themes []Theme
	if err := c.do(ctx, http.MethodGet, "/v1/themes", nil, http.StatusOK, &themes); err != nil {
		return nil, err
	}
	return themes, nil
}

func (c *APIClient) CreateSession(ctx context.Context, theme string) (*state.GameState, error) {
	var gs state.GameState
	body := map[string]string{"theme": theme}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", body, http.StatusCreated, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (c *APIClient) GetSession(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	var gs state.GameState
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+id.String(), nil, http.StatusOK, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (c *APIClient) SubmitAction(ctx context.Context, id uuid.UUID, choiceID string) (*state.GameState, bool, error) {
	var resp actionResponse
	body := map[string]string{"choice_id": choiceID}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/actions", body, http.StatusOK, &resp); err != nil {
		return nil, false, err
	}
	return resp.State, resp.FromCache, nil
}

func (c *APIClient) ResetSession(ctx context.Context, id uuid.UUID) (*state.GameState, error) {
	var gs state.GameState
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+id.String()+"/reset", nil, http.StatusOK, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errorResp ErrorResponse
		if err := json.Unmarshal(data, &errorResp); err != nil || errorResp.Error == "" {
			return &APIError{Status: resp.StatusCode, Message: string(data)}
		}
		return &APIError{Status: resp.StatusCode, Message: errorResp.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
