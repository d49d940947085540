package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gocart/gocart/core/claims"
)

// OIDC resolves credentials as bearer ID tokens issued by an OIDC
// provider. The token must carry the custom "uid" claim with the numeric
// user id; admins are recognized by the "roles" claim.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDC(ctx context.Context, issuer string, clientID string) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discovering oidc provider: %w", err)
	}

	return &OIDC{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (o *OIDC) Resolve(ctx context.Context, credential string) (claims.Claims, error) {
	raw, err := bearer(credential)
	if err != nil {
		return claims.Claims{}, err
	}

	token, err := o.verifier.Verify(ctx, raw)
	if err != nil {
		return claims.Claims{}, ErrInvalidAuthData
	}

	var payload struct {
		UID   int      `json:"uid"`
		Roles []string `json:"roles"`
	}
	if err := token.Claims(&payload); err != nil {
		return claims.Claims{}, ErrInvalidAuthData
	}
	if payload.UID == 0 {
		return claims.Claims{}, ErrInvalidAuthData
	}

	role := claims.RoleCustomer
	for _, r := range payload.Roles {
		if r == "admin" {
			role = claims.RoleAdmin
		}
	}

	return claims.Claims{UserID: payload.UID, Role: role}, nil
}

func (o *OIDC) CheckForAdmin(ctx context.Context, credential string) error {
	clm, err := o.Resolve(ctx, credential)
	if err != nil {
		return err
	}
	if !clm.Admin() {
		return ErrForbidden
	}
	return nil
}
