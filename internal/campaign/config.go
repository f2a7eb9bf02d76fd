// Package campaign implements the dispatch pipeline: the configuration
// a user assembles between importing recipients and sending, the wizard
// state machine gating the steps, and the sequential dispatch loop.
package campaign

import (
	"errors"

	"github.com/mailcannon/mailcannon/internal/api"
)

var (
	ErrNoAccounts   = errors.New("no sending account selected")
	ErrNoSubject    = errors.New("subject is empty")
	ErrNoBody       = errors.New("email body is empty")
	ErrNoRecipients = errors.New("no recipients loaded")
)

// Config holds the user-chosen campaign settings. It lives only in
// memory for the session; leaving the wizard discards it.
type Config struct {
	// AccountIDs is the ordered account selection. Order determines the
	// round-robin rotation: first selected, first used.
	AccountIDs []int64

	TemplateID int64
	Subject    string
	SenderName string
	HTMLBody   string

	// MultiAccount enables toggle-style selection of several accounts.
	MultiAccount bool
}

// SelectAccount replaces the selection with a single account
// (single-select mode).
func (c *Config) SelectAccount(id int64) {
	c.AccountIDs = []int64{id}
}

// ToggleAccount adds or removes an account from the ordered selection
// (multi-select mode). Insertion order is preserved.
func (c *Config) ToggleAccount(id int64) {
	for i, existing := range c.AccountIDs {
		if existing == id {
			c.AccountIDs = append(c.AccountIDs[:i], c.AccountIDs[i+1:]...)
			return
		}
	}
	c.AccountIDs = append(c.AccountIDs, id)
}

// ApplyTemplate overwrites subject and body from a template. The
// account selection is never touched.
func (c *Config) ApplyTemplate(t *api.Template) {
	c.TemplateID = t.ID
	c.Subject = t.Subject
	c.HTMLBody = t.HTMLContent
}

// Validate is the dispatch transition guard. It is re-checked
// immediately before dispatch starts, not only when the user advances
// through the wizard.
func (c *Config) Validate(recipientCount int) error {
	if recipientCount == 0 {
		return ErrNoRecipients
	}
	if len(c.AccountIDs) == 0 {
		return ErrNoAccounts
	}
	if c.Subject == "" {
		return ErrNoSubject
	}
	if c.HTMLBody == "" {
		return ErrNoBody
	}
	return nil
}
