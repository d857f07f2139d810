package services

import (
	"context"
	"time"

	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// TokenSvcFacade issues the API access tokens.
type TokenSvcFacade interface {
	GenerateAccessToken(ctx context.Context, operator *domain.Operator) (string, time.Time, error)
}

// OperatorAuthSvc checks operator credentials.
type OperatorAuthSvc interface {
	// Authenticate returns the operator for a valid username/password pair and apperrors.ErrUnauthorized otherwise.
	Authenticate(ctx context.Context, username, password string) (*domain.Operator, error)
}

// GoogleOAuthHandlerSvcFacade defines the interface for Google OAuth operations.
type GoogleOAuthHandlerSvcFacade interface {
	// GenerateStateString creates a secure random string to be used as a CSRF token for OAuth flow.
	GenerateStateString(ctx context.Context) (string, error)
	// GetGoogleLoginURL returns the URL to redirect the user to for Google login.
	GetGoogleLoginURL(ctx context.Context, state string) string
	// ExchangeCodeForToken exchanges an OAuth authorization code for a token.
	ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error)
	// ValidateGoogleIDToken validates an ID token string from Google and returns its payload.
	ValidateGoogleIDToken(ctx context.Context, idTokenString string) (*idtoken.Payload, error)
	// OperatorFromIDToken maps a validated payload to an operator, enforcing the allowed email domains.
	OperatorFromIDToken(ctx context.Context, payload *idtoken.Payload) (*domain.Operator, error)
}
