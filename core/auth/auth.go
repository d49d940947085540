package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gocart/gocart/core/claims"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrInvalidAuthData is returned before any cart is touched when the
	// credential cannot be resolved to a user.
	ErrInvalidAuthData = errors.New("invalid auth data")

	// ErrForbidden is returned by CheckForAdmin for non-admin callers.
	ErrForbidden = errors.New("operation requires admin role")
)

// System resolves an opaque credential to an identity. Implementations are
// injected into the use cases; nothing in this service holds a global
// token table.
type System interface {
	Resolve(ctx context.Context, credential string) (claims.Claims, error)
	CheckForAdmin(ctx context.Context, credential string) error
}

// Tokens resolves "Bearer <token>" credentials against the api_tokens
// table.
type Tokens struct {
	db *sqlx.DB
}

func NewTokens(db *sqlx.DB) *Tokens {
	return &Tokens{db: db}
}

func (t *Tokens) Resolve(ctx context.Context, credential string) (claims.Claims, error) {
	token, err := bearer(credential)
	if err != nil {
		return claims.Claims{}, err
	}

	var row struct {
		UserID int    `db:"user_id"`
		Role   string `db:"role"`
	}

	const q = `
	SELECT u.user_id, u.role
	FROM api_tokens t
	JOIN users u ON u.user_id = t.user_id
	WHERE t.token = $1`

	if err := sqlx.GetContext(ctx, t.db, &row, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return claims.Claims{}, ErrInvalidAuthData
		}
		return claims.Claims{}, fmt.Errorf("resolving token: %w", err)
	}

	return claims.Claims{UserID: row.UserID, Role: row.Role}, nil
}

func (t *Tokens) CheckForAdmin(ctx context.Context, credential string) error {
	clm, err := t.Resolve(ctx, credential)
	if err != nil {
		return err
	}
	if !clm.Admin() {
		return ErrForbidden
	}
	return nil
}

func bearer(credential string) (string, error) {
	token, found := strings.CutPrefix(credential, "Bearer ")
	if !found || token == "" {
		return "", ErrInvalidAuthData
	}
	return token, nil
}
