package services

import (
	"context"
	"io"

	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/dto"
)

// ReconciliationReaderSvc defines read operations for reconciliation sessions.
type ReconciliationReaderSvc interface {
	// GetSession returns the full view of a session, records and pairs included.
	GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error)

	// ListSessions retrieves a paginated list of sessions of an account.
	ListSessions(ctx context.Context, params dto.ListSessionsParams) (*dto.ListSessionsResponse, error)

	// GetStats derives the reconciliation summary of a session.
	GetStats(ctx context.Context, sessionID string) (*domain.ReconciliationStats, error)
}

// ReconciliationWriterSvc defines operations that create sessions or move them through their lifecycle.
type ReconciliationWriterSvc interface {
	// CreateSession normalizes raw rows, opens a session, runs the matcher and persists the result.
	CreateSession(ctx context.Context, req dto.CreateSessionRequest, operatorID string) (*dto.SessionResponse, error)

	// ImportCSV is CreateSession fed from a bank statement export and a ledger export.
	ImportCSV(ctx context.Context, form dto.ImportSessionForm, bankCSV, bookCSV io.Reader, operatorID string) (*dto.SessionResponse, error)

	// RunAutoMatch re-runs the matcher over the records that are still unmatched.
	RunAutoMatch(ctx context.Context, sessionID string, req dto.AutoMatchRequest, operatorID string) (*dto.SessionResponse, error)

	// Confirm closes the session and hands it over to the archive.
	Confirm(ctx context.Context, sessionID string, operatorID string) (*dto.SessionResponse, error)
}

// ReconciliationPairingSvc defines manual re-matching.
type ReconciliationPairingSvc interface {
	ManualPair(ctx context.Context, sessionID string, req dto.ManualPairRequest, operatorID string) (*dto.SessionResponse, error)
	Unpair(ctx context.Context, sessionID string, pairID string, operatorID string) (*dto.SessionResponse, error)
}

// DiscrepancyResolverSvc defines the operator actions on discrepancy pairs.
type DiscrepancyResolverSvc interface {
	Accept(ctx context.Context, sessionID string, pairID string, operatorID string) (*dto.SessionResponse, error)
	Adjust(ctx context.Context, sessionID string, pairID string, req dto.AdjustPairRequest, operatorID string) (*dto.SessionResponse, error)
	Escalate(ctx context.Context, sessionID string, pairID string, req dto.EscalatePairRequest, operatorID string) (*dto.SessionResponse, error)
}

// ReconciliationSvcFacade combines all reconciliation service interfaces.
// This is a facade for clients that need access to all operations
type ReconciliationSvcFacade interface {
	ReconciliationReaderSvc
	ReconciliationWriterSvc
	ReconciliationPairingSvc
	DiscrepancyResolverSvc
}
