package services

import (
	portsrepo "github.com/SscSPs/accounts_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/accounts_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/accounts_reconciliation/internal/core/reconcile"
	"github.com/SscSPs/accounts_reconciliation/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies.
// analytics may be nil.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, analytics AnalyticsSink) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	options := []ReconciliationOption{WithMatcherDefaults(MatcherDefaultsFromConfig(cfg))}
	if analytics != nil {
		options = append(options, WithAnalytics(analytics))
	}
	container.Reconciliation = NewReconciliationService(repos.ReconciliationRepo, options...)

	container.OperatorAuth = NewOperatorAuthService(cfg.Operators)
	container.TokenService = NewTokenService(cfg)
	container.GoogleOAuthHandler = NewGoogleOAuthHandlerService(cfg)

	return container
}

// MatcherDefaultsFromConfig builds the server-wide matcher configuration.
func MatcherDefaultsFromConfig(cfg *config.Config) reconcile.MatcherConfig {
	return reconcile.MatcherConfig{
		DateToleranceDays:   cfg.MatchDateToleranceDays,
		AmountTolerance:     cfg.MatchAmountTolerance,
		ToleranceWindowDays: cfg.MatchWindowDays,
	}
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.ReconciliationSvcFacade     = (*reconciliationService)(nil)
	_ portssvc.OperatorAuthSvc             = (*operatorAuthService)(nil)
	_ portssvc.TokenSvcFacade              = (*tokenService)(nil)
	_ portssvc.GoogleOAuthHandlerSvcFacade = (*googleOAuthHandlerService)(nil)
)
