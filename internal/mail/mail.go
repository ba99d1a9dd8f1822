// Package mail delivers password-reset tokens. The real transport is an
// external service; the log mailer below is the development stand-in.
package mail

import (
	"context"
	"time"

	"tribuna.org/internal/obs"
)

// LogMailer writes reset deliveries to the structured log instead of
// sending email. Do not enable outside development: the token lands in
// the log stream.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	obs.LogRequest(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "info",
		"msg":   "password_reset_mail",
		"email": email,
		"token": token,
	})
	return nil
}
