// Package notify delivers user notifications through sendgrid.
package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Error reports a failed delivery attempt, distinguishable from a
// domain rejection.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("notifications service responded %d: %s", e.StatusCode, e.Body)
}

// Collaborator names the failing service.
func (e *Error) Collaborator() string { return "notifications" }

// Config configures the sendgrid sender.
type Config struct {
	APIKey      string
	FromName    string
	FromAddress string
	Subject     string
}

// Sendgrid sends cart notifications by email. The recipient address is
// resolved from the users table at send time.
type Sendgrid struct {
	cfg Config
	sg  *sendgrid.Client
	db  *sqlx.DB
}

func NewSendgrid(cfg Config, db *sqlx.DB) *Sendgrid {
	return &Sendgrid{
		cfg: cfg,
		sg:  sendgrid.NewSendClient(cfg.APIKey),
		db:  db,
	}
}

func (s *Sendgrid) Send(ctx context.Context, userID int, text string) error {
	const q = `SELECT name, email FROM users WHERE user_id = $1`

	var user struct {
		Name  string `db:"name"`
		Email string `db:"email"`
	}
	if err := s.db.GetContext(ctx, &user, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %d has no email on file", userID)
		}
		return fmt.Errorf("fetching user email: %w", err)
	}

	msg := mail.NewSingleEmail(
		mail.NewEmail(s.cfg.FromName, s.cfg.FromAddress),
		s.cfg.Subject,
		mail.NewEmail(user.Name, user.Email),
		text,
		"",
	)

	res, err := s.sg.SendWithContext(ctx, msg)
	if err != nil {
		return &Error{Body: err.Error()}
	}
	if res.StatusCode >= 400 {
		return &Error{StatusCode: res.StatusCode, Body: res.Body}
	}
	return nil
}
