package api

import (
	"encoding/json"
	"time"
)

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// User is the authenticated user's profile.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan,omitempty"`
}

// LoginRequest is the body for POST /login.php.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult carries the tokens and profile returned by a successful login.
type LoginResult struct {
	Token        string `json:"token"`
	SessionToken string `json:"session_token"`
	User         User   `json:"user"`
}

// SendingAccount is a remote-configured SMTP identity. Capacity tracking
// (daily_limit, emails_sent_today) is owned server-side and is display-only
// here; the dispatch loop never enforces it.
type SendingAccount struct {
	ID              int64  `json:"id"`
	DisplayName     string `json:"display_name"`
	EmailAddress    string `json:"email_address"`
	Provider        string `json:"provider,omitempty"`
	SMTPHost        string `json:"smtp_host,omitempty"`
	SMTPPort        int    `json:"smtp_port,omitempty"`
	DailyLimit      int    `json:"daily_limit"`
	EmailsSentToday int    `json:"emails_sent_today"`
	IsActive        bool   `json:"is_active"`
}

// AccountRequest is the body for creating or updating a sending account.
type AccountRequest struct {
	ID           int64  `json:"id,omitempty"`
	DisplayName  string `json:"display_name"`
	EmailAddress string `json:"email_address"`
	Provider     string `json:"provider,omitempty"`
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	Password     string `json:"password,omitempty"`
}

// Template is an email template, either system-provided or user-owned.
type Template struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
}

// TemplateList groups the two template collections the backend returns.
type TemplateList struct {
	SystemTemplates []Template `json:"system_templates"`
	UserTemplates   []Template `json:"user_templates"`
}

// TemplateRequest is the body for creating or updating a user template.
type TemplateRequest struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`
}

// SendEmailRequest is the body for POST /send-email.php: one recipient,
// one rendered message, attributed to one sending account.
type SendEmailRequest struct {
	To        string `json:"to"`
	Name      string `json:"name"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	FromName  string `json:"from_name"`
	AccountID int64  `json:"account_id"`
}

// UpdateProfileRequest is the body for updating profile fields.
type UpdateProfileRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Notification is a server-side user notification.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountStat is a per-account slice of the statistics report.
type AccountStat struct {
	AccountID    int64  `json:"account_id"`
	EmailAddress string `json:"email_address"`
	Sent         int    `json:"sent"`
	Opened       int    `json:"opened"`
}

// DailyStat is one day of send volume.
type DailyStat struct {
	Date string `json:"date"`
	Sent int    `json:"sent"`
}

// Statistics is the dashboard statistics report for a period.
type Statistics struct {
	TotalSent    int           `json:"total_sent"`
	TotalOpened  int           `json:"total_opened"`
	OpenRate     float64       `json:"open_rate"`
	AccountStats []AccountStat `json:"account_stats"`
	Daily        []DailyStat   `json:"daily"`
}
