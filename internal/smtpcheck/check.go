// Package smtpcheck verifies sending-account credentials by
// authenticating against the provider's SMTP endpoint. No message is
// sent; the session ends right after AUTH.
package smtpcheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Checker authenticates against remote SMTP servers
type Checker struct {
	timeout time.Duration
	logger  *slog.Logger
}

func New(timeout time.Duration, logger *slog.Logger) *Checker {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Checker{
		timeout: timeout,
		logger:  logger.With("component", "smtpcheck"),
	}
}

// Verify connects to host:port and performs a PLAIN authentication with
// the given credentials. Port 465 uses implicit TLS, everything else
// upgrades via STARTTLS when the server offers it. A nil return means
// the credentials were accepted.
func (c *Checker) Verify(ctx context.Context, host string, port int, username, password string) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connection failed to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	if port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}

	client := smtp.NewClient(conn)
	defer client.Close()

	if err := client.Hello("mailcannon.local"); err != nil {
		return fmt.Errorf("HELO failed: %w", err)
	}

	if port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		} else {
			c.logger.Warn("server does not offer STARTTLS, authenticating in the clear", "host", host)
		}
	}

	if err := client.Auth(sasl.NewPlainClient("", username, password)); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	c.logger.Debug("SMTP credentials verified", "host", host, "user", username)
	return client.Quit()
}
