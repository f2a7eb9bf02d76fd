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
	"strconv"
	"time"
)

// ErrUnauthorized is returned when the backend rejects the stored
// credentials. Callers are expected to clear the local session and ask
// the user to log in again.
var ErrUnauthorized = errors.New("unauthorized")

// CredentialSource supplies the tokens attached to every request.
// An empty token means the request goes out unauthenticated.
type CredentialSource interface {
	Credentials() (token, sessionToken string)
}

// Client talks to the remote mail backend.
type Client struct {
	baseURL    string
	creds      CredentialSource
	httpClient *http.Client
}

// NewClient creates a client for the given base URL. creds may be nil for
// pre-login calls.
func NewClient(baseURL string, creds CredentialSource, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// request performs an HTTP request and decodes the backend's response
// envelope. result receives the envelope's data field when non-nil.
func (c *Client) request(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		token, sessionToken := c.creds.Credentials()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if sessionToken != "" {
			req.Header.Set("X-Session-Token", sessionToken)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %s", msg)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}

	return nil
}

// Login authenticates and returns the tokens and user profile.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.request(ctx, http.MethodPost, "/login.php", LoginRequest{Email: email, Password: password}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout terminates the current server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.request(ctx, http.MethodDelete, "/sessions.php", map[string]any{"logout_all": false}, nil)
}

// GetProfile fetches the authenticated user's profile.
func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	var res struct {
		User User `json:"user"`
	}
	if err := c.request(ctx, http.MethodGet, "/user.php", nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// UpdateProfile updates profile fields.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) error {
	body := map[string]any{"action": "update_profile"}
	if req.Name != "" {
		body["name"] = req.Name
	}
	if req.Email != "" {
		body["email"] = req.Email
	}
	return c.request(ctx, http.MethodPost, "/user.php", body, nil)
}

// ChangePassword changes the account password.
func (c *Client) ChangePassword(ctx context.Context, current, updated string) error {
	body := map[string]string{"current_password": current, "new_password": updated}
	return c.request(ctx, http.MethodPost, "/change-password.php", body, nil)
}

// ListAccounts returns the user's sending accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]SendingAccount, error) {
	var res struct {
		Accounts []SendingAccount `json:"accounts"`
	}
	if err := c.request(ctx, http.MethodGet, "/email-accounts.php", nil, &res); err != nil {
		return nil, err
	}
	return res.Accounts, nil
}

// AddAccount registers a new sending account with the backend.
func (c *Client) AddAccount(ctx context.Context, req AccountRequest) error {
	return c.request(ctx, http.MethodPost, "/email-accounts.php", req, nil)
}

// UpdateAccount updates an existing sending account.
func (c *Client) UpdateAccount(ctx context.Context, req AccountRequest) error {
	return c.request(ctx, http.MethodPut, "/email-accounts.php", req, nil)
}

// DeleteAccount removes a sending account.
func (c *Client) DeleteAccount(ctx context.Context, id int64) error {
	return c.request(ctx, http.MethodDelete, "/email-accounts.php?id="+strconv.FormatInt(id, 10), nil, nil)
}

// ListTemplates returns system and user templates, optionally filtered.
func (c *Client) ListTemplates(ctx context.Context, category, search string) (*TemplateList, error) {
	path := "/templates.php"
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if search != "" {
		params.Set("search", search)
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var res TemplateList
	if err := c.request(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateTemplate creates a user template.
func (c *Client) CreateTemplate(ctx context.Context, req TemplateRequest) error {
	return c.request(ctx, http.MethodPost, "/user-templates.php", req, nil)
}

// UpdateTemplate updates a user template.
func (c *Client) UpdateTemplate(ctx context.Context, req TemplateRequest) error {
	return c.request(ctx, http.MethodPut, "/user-templates.php", req, nil)
}

// DeleteTemplate deletes a user template.
func (c *Client) DeleteTemplate(ctx context.Context, id int64) error {
	return c.request(ctx, http.MethodDelete, "/user-templates.php?id="+strconv.FormatInt(id, 10), nil, nil)
}

// SendEmail dispatches a single email through the backend. Any non-2xx
// response or transport error counts as a failed send.
func (c *Client) SendEmail(ctx context.Context, req SendEmailRequest) error {
	return c.request(ctx, http.MethodPost, "/send-email.php", req, nil)
}

// GetStatistics fetches the dashboard statistics for a period
// (e.g. "7d", "30d").
func (c *Client) GetStatistics(ctx context.Context, period string) (*Statistics, error) {
	path := "/statistics.php"
	if period != "" {
		path += "?period=" + url.QueryEscape(period)
	}
	var res Statistics
	if err := c.request(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListNotifications returns the user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var res struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.request(ctx, http.MethodGet, "/notifications.php", nil, &res); err != nil {
		return nil, err
	}
	return res.Notifications, nil
}

// DeleteNotification removes one notification.
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	body := map[string]any{"action": "delete", "id": id}
	return c.request(ctx, http.MethodPost, "/notifications.php", body, nil)
}

// ClearNotifications removes all notifications.
func (c *Client) ClearNotifications(ctx context.Context) error {
	body := map[string]any{"action": "clear_all"}
	return c.request(ctx, http.MethodPost, "/notifications.php", body, nil)
}
