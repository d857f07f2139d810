package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	portssvc "github.com/SscSPs/accounts_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/accounts_reconciliation/internal/dto"
	"github.com/SscSPs/accounts_reconciliation/internal/middleware"
)

// authHandler issues API tokens for operators, either from a password or from a Google sign-in.
type authHandler struct {
	operatorAuth portssvc.OperatorAuthSvc
	tokenService portssvc.TokenSvcFacade
	googleOAuth  portssvc.GoogleOAuthHandlerSvcFacade
}

// registerAuthRoutes sets up the public authentication routes. Both are limited per client IP.
func registerAuthRoutes(r *gin.Engine, loginLimiter *limiter.Limiter, services *portssvc.ServiceContainer) {
	h := &authHandler{
		operatorAuth: services.OperatorAuth,
		tokenService: services.TokenService,
		googleOAuth:  services.GoogleOAuthHandler,
	}

	auth := r.Group("/api/v1/auth", middleware.GinMiddlewarize(loginLimiter))
	{
		auth.POST("/login", h.login)
		auth.POST("/google/exchange-code", h.exchangeCodeGoogle)
	}
}

// login godoc
// @Summary Operator login
// @Description Authenticates a configured operator and returns a JWT.
// @Tags auth
// @Accept json
// @Produce json
// @Param login body dto.LoginRequest true "Login Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *authHandler) login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}
	operator, err := h.operatorAuth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid username or password"})
		return
	}
	h.respondWithToken(c, operator)
}

// exchangeCodeGoogle godoc
// @Summary Exchange a Google authorization code for an API token
// @Description The Google account needs a verified email in one of the allowed domains.
// @Tags auth
// @Accept  json
// @Produce  json
// @Param   code body dto.ExchangeCodeRequest true "Authorization code"
// @Success 200 {object} dto.LoginResponse
// @Failure 400 {object} ErrorResponse "Invalid authorization code"
// @Failure 401 {object} ErrorResponse "Invalid Google ID token"
// @Failure 403 {object} ErrorResponse "Email domain not allowed"
// @Failure 504 {object} ErrorResponse "Google unreachable"
// @Router /auth/google/exchange-code [post]
func (h *authHandler) exchangeCodeGoogle(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.GetLoggerFromCtx(ctx)

	var req dto.ExchangeCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperrors.NewBadRequestError("Invalid request payload: " + err.Error())
		c.JSON(appErr.Code, ErrorResponse{Error: appErr.Message})
		return
	}

	oauth2Token, err := h.googleOAuth.ExchangeCodeForToken(ctx, req.Code)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to exchange authorization code with Google", slog.String("error", err.Error()))
		appErr := apperrors.NewGatewayTimeoutError("Failed to communicate with Google OAuth service.")
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "bad request") {
			appErr = apperrors.NewBadRequestError("Invalid or expired authorization code provided by Google.")
		}
		c.JSON(appErr.Code, ErrorResponse{Error: appErr.Message})
		return
	}

	idTokenString, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idTokenString == "" {
		logger.ErrorContext(ctx, "ID token not found in Google's token response")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve ID token from Google."})
		return
	}

	payload, err := h.googleOAuth.ValidateGoogleIDToken(ctx, idTokenString)
	if err != nil {
		logger.WarnContext(ctx, "Google ID token validation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid Google ID token"})
		return
	}

	operator, err := h.googleOAuth.OperatorFromIDToken(ctx, payload)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, apperrors.ErrForbidden) {
			status = http.StatusForbidden
		}
		logger.WarnContext(ctx, "Google account rejected", slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	h.respondWithToken(c, operator)
}

func (h *authHandler) respondWithToken(c *gin.Context, operator *domain.Operator) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	token, expiresAt, err := h.tokenService.GenerateAccessToken(c.Request.Context(), operator)
	if err != nil {
		logger.Error("Failed to generate access token", slog.String("operator_id", operator.OperatorID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate token"})
		return
	}
	logger.Info("Access token issued", slog.String("operator_id", operator.OperatorID))
	c.JSON(http.StatusOK, dto.LoginResponse{Token: token, ExpiresAt: expiresAt})
}
