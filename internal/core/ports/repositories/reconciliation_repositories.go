package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
)

// ReconciliationReader defines read operations for reconciliation sessions.
type ReconciliationReader interface {
	// FindSessionByID loads a full session snapshot, records and pairs included.
	// Returns apperrors.ErrNotFound when the session does not exist.
	FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error)

	// ListSessionsByAccount retrieves a page of session headers (no records or pairs) for an account,
	// newest period first. It returns the sessions, a token for the next page, and an error.
	ListSessionsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.ReconciliationSession, *string, error)
}

// ReconciliationWriter defines write operations for reconciliation sessions.
type ReconciliationWriter interface {
	// SaveSession inserts a new session (Version 0) or replaces a stored one whose version still matches.
	// A stale version yields apperrors.ErrConflict. On success session.Version holds the stored version.
	SaveSession(ctx context.Context, session *domain.ReconciliationSession) error

	// ArchiveSession marks a confirmed session as handed over to the archive.
	ArchiveSession(ctx context.Context, sessionID string, archivedAt time.Time, archivedBy string) error
}

// ReconciliationRepositoryFacade combines all reconciliation repository interfaces.
type ReconciliationRepositoryFacade interface {
	ReconciliationReader
	ReconciliationWriter
}

// ReconciliationRepositoryWithTx extends ReconciliationRepositoryFacade with transaction capabilities.
type ReconciliationRepositoryWithTx interface {
	ReconciliationRepositoryFacade
	TransactionManager
}
