// Package api is the HTTP client for the external companion backend. The
// backend owns authentication and the chat assistant; this package only
// mirrors its wire shapes and never retries.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
	chatPath     = "/api/chat"

	defaultTimeout = 30 * time.Second
)

// ErrLoginFailed covers every non-2xx login response; the backend does not
// distinguish causes on this endpoint.
var ErrLoginFailed = errors.New("login failed")

// ActionLogExpense is the one structured action the chat assistant can emit.
const ActionLogExpense = "log_expense"

type (
	// ChatAction is an optional structured instruction attached to a chat
	// reply. When Type is "log_expense" with a positive amount, the caller
	// synthesizes a transaction from it.
	ChatAction struct {
		Type        string  `json:"type"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category,omitempty"`
		Description string  `json:"description,omitempty"`
	}

	ChatResponse struct {
		Text   string      `json:"text"`
		Mood   string      `json:"mood"`
		Action *ChatAction `json:"action,omitempty"`
	}

	chatRequest struct {
		Message     string `json:"message"`
		HealthScore int    `json:"healthScore"`
	}

	registerRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginResponse struct {
		AccessToken string `json:"access_token"`
	}

	errorDetail struct {
		Detail string `json:"detail"`
	}
)

// Client talks to one backend base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the given base URL (scheme://host[:port], no
// trailing slash required).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Login exchanges credentials for a bearer token. The username field carries
// the email; the endpoint expects form encoding.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ErrLoginFailed
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if body.AccessToken == "" {
		return "", ErrLoginFailed
	}
	return body.AccessToken, nil
}

// Register creates an account. A failure surfaces the backend's detail
// message when one is present.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	payload, err := json.Marshal(registerRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("marshal register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+registerPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("register request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var detail errorDetail
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		return fmt.Errorf("registration failed: %s", detail.Detail)
	}
	return fmt.Errorf("registration failed: status %d", resp.StatusCode)
}

// Chat sends a message together with the current health score and returns
// the assistant's reply.
func (c *Client) Chat(ctx context.Context, message string, healthScore int) (ChatResponse, error) {
	payload, err := json.Marshal(chatRequest{Message: message, HealthScore: healthScore})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ChatResponse{}, fmt.Errorf("chat failed: status %d", resp.StatusCode)
	}

	var body ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ChatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}
	return body, nil
}

// ShouldLogExpense reports whether a chat response carries an applicable
// log_expense action.
func (r ChatResponse) ShouldLogExpense() bool {
	return r.Action != nil && r.Action.Type == ActionLogExpense && r.Action.Amount > 0
}
