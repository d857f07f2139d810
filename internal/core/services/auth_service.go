package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	portssvc "github.com/SscSPs/accounts_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/accounts_reconciliation/internal/platform/config"
	"github.com/SscSPs/accounts_reconciliation/internal/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

// tokenService implements the TokenSvcFacade for issuing operator JWTs.
type tokenService struct {
	cfg *config.Config
}

// NewTokenService creates a new instance of tokenService.
func NewTokenService(cfg *config.Config) portssvc.TokenSvcFacade {
	return &tokenService{cfg: cfg}
}

// GenerateAccessToken creates a new JWT access token for the given operator.
func (s *tokenService) GenerateAccessToken(ctx context.Context, operator *domain.Operator) (string, time.Time, error) {
	expiryTime := time.Now().Add(s.cfg.JWTExpiryDuration)

	accessToken, err := utils.GenerateJWT(operator.OperatorID, s.cfg.JWTSecret, s.cfg.JWTExpiryDuration, s.cfg.JWTIssuer)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return accessToken, expiryTime, nil
}

// operatorAuthService checks passwords against the operators configured in OPERATORS.
type operatorAuthService struct {
	BaseService
	operators map[string]string
}

// NewOperatorAuthService creates an OperatorAuthSvc over username -> bcrypt hash entries.
func NewOperatorAuthService(operators map[string]string) portssvc.OperatorAuthSvc {
	return &operatorAuthService{operators: operators}
}

func (s *operatorAuthService) Authenticate(ctx context.Context, username, password string) (*domain.Operator, error) {
	username = strings.TrimSpace(username)
	hash, ok := s.operators[username]
	if !ok || !utils.CheckPasswordHash(password, hash) {
		s.GetLogger(ctx).Warn("Operator login failed", slog.String("username", username))
		return nil, apperrors.ErrUnauthorized
	}
	return &domain.Operator{
		OperatorID:   username,
		Name:         username,
		Provider:     domain.ProviderPassword,
		PasswordHash: hash,
	}, nil
}

// --- GoogleOAuthHandlerSvcFacade Implementation ---

// googleOAuthHandlerService implements the GoogleOAuthHandlerSvcFacade.
type googleOAuthHandlerService struct {
	cfg *config.Config
	// oauth2Config is configured at initialization time
	oauth2Config *oauth2.Config
}

// NewGoogleOAuthHandlerService creates a new instance of googleOAuthHandlerService.
func NewGoogleOAuthHandlerService(cfg *config.Config) portssvc.GoogleOAuthHandlerSvcFacade {
	return &googleOAuthHandlerService{
		cfg: cfg,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{"openid", "https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

// GenerateStateString creates a secure random string to be used as a CSRF token for OAuth flow.
func (s *googleOAuthHandlerService) GenerateStateString(ctx context.Context) (string, error) {
	state, err := utils.GenerateSecureRandomString(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate state string for OAuth: %w", err)
	}
	return state, nil
}

// GetGoogleLoginURL returns the URL to redirect the operator to for Google login.
func (s *googleOAuthHandlerService) GetGoogleLoginURL(ctx context.Context, state string) string {
	return s.oauth2Config.AuthCodeURL(state)
}

// ExchangeCodeForToken exchanges an OAuth authorization code for a token.
func (s *googleOAuthHandlerService) ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code for token: %w", err)
	}
	return token, nil
}

// ValidateGoogleIDToken validates an ID token received from Google and returns the payload if valid.
func (s *googleOAuthHandlerService) ValidateGoogleIDToken(ctx context.Context, idTokenString string) (*idtoken.Payload, error) {
	if s.cfg.GoogleClientID == "" {
		return nil, errors.New("google client ID is not configured in the application")
	}

	payload, err := idtoken.Validate(ctx, idTokenString, s.cfg.GoogleClientID)
	if err != nil {
		return nil, fmt.Errorf("google ID token validation failed: %w", err)
	}
	return payload, nil
}

// OperatorFromIDToken accepts only verified emails from GOOGLE_ALLOWED_DOMAINS. The email becomes the operator id.
func (s *googleOAuthHandlerService) OperatorFromIDToken(ctx context.Context, payload *idtoken.Payload) (*domain.Operator, error) {
	if payload == nil {
		return nil, apperrors.ErrUnauthorized
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	if email == "" || !verified {
		return nil, fmt.Errorf("%w: google account has no verified email", apperrors.ErrUnauthorized)
	}

	_, domainPart, _ := strings.Cut(strings.ToLower(email), "@")
	allowed := slices.ContainsFunc(s.cfg.GoogleAllowedDomains, func(d string) bool { return strings.EqualFold(d, domainPart) })
	if !allowed {
		return nil, fmt.Errorf("%w: email domain %q is not allowed", apperrors.ErrForbidden, domainPart)
	}

	name, _ := payload.Claims["name"].(string)
	if name == "" {
		name = email
	}
	return &domain.Operator{
		OperatorID: strings.ToLower(email),
		Name:       name,
		Email:      email,
		Provider:   domain.ProviderGoogle,
	}, nil
}
