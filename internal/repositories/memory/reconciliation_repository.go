// Package memory keeps reconciliation sessions in process memory. It backs the server when no
// PGSQL_URL is configured and gives tests a repository with the same semantics as the Postgres one.
package memory

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/accounts_reconciliation/internal/core/ports/repositories"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/pagination"
)

type archiveStamp struct {
	at time.Time
	by string
}

// ReconciliationRepository is a map of session snapshots guarded by an RWMutex.
type ReconciliationRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.ReconciliationSession
	archived map[string]archiveStamp
}

func NewReconciliationRepository() *ReconciliationRepository {
	return &ReconciliationRepository{
		sessions: make(map[string]domain.ReconciliationSession),
		archived: make(map[string]archiveStamp),
	}
}

var _ portsrepo.ReconciliationRepositoryFacade = (*ReconciliationRepository)(nil)

// NewRepositoryProvider wires the in-memory repositories.
func NewRepositoryProvider() portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		ReconciliationRepo: NewReconciliationRepository(),
	}
}

func (r *ReconciliationRepository) SaveSession(ctx context.Context, session *domain.ReconciliationSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[session.SessionID]
	switch {
	case session.Version == 0 && exists:
		return fmt.Errorf("session %s: %w", session.SessionID, apperrors.ErrDuplicate)
	case session.Version != 0 && !exists:
		return fmt.Errorf("session %s: %w", session.SessionID, apperrors.ErrNotFound)
	case exists && stored.Version != session.Version:
		return fmt.Errorf("session %s was modified concurrently (version %d): %w", session.SessionID, session.Version, apperrors.ErrConflict)
	}

	session.Version++
	r.sessions[session.SessionID] = cloneSession(*session)
	return nil
}

func (r *ReconciliationRepository) FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := cloneSession(s)
	return &out, nil
}

func (r *ReconciliationRepository) ListSessionsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.ReconciliationSession, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	var all []domain.ReconciliationSession
	for _, s := range r.sessions {
		if s.AccountID == accountID {
			all = append(all, header(s))
		}
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return after(all[i], all[j].PeriodEnd, all[j].CreatedAt, all[j].SessionID) })

	if nextToken != nil && *nextToken != "" {
		lastEnd, lastCreatedAt, lastID, err := pagination.DecodeSessionToken(*nextToken)
		if err != nil {
			return nil, nil, apperrors.NewAppError(http.StatusBadRequest, "invalid nextToken", err)
		}
		start := len(all)
		for i, s := range all {
			if !after(s, lastEnd, lastCreatedAt, lastID) {
				start = i
				break
			}
		}
		all = all[start:]
	}

	var next *string
	if len(all) > limit {
		last := all[limit-1]
		token := pagination.EncodeSessionToken(last.PeriodEnd, last.CreatedAt, last.SessionID)
		next = &token
		all = all[:limit]
	}
	return all, next, nil
}

func (r *ReconciliationRepository) ArchiveSession(ctx context.Context, sessionID string, archivedAt time.Time, archivedBy string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.Status != domain.SessionConfirmed {
		return fmt.Errorf("no confirmed session %s to archive: %w", sessionID, apperrors.ErrNotFound)
	}
	r.archived[sessionID] = archiveStamp{at: archivedAt, by: archivedBy}
	return nil
}

// ArchivedAt reports when a session was archived.
func (r *ReconciliationRepository) ArchivedAt(sessionID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stamp, ok := r.archived[sessionID]
	return stamp.at, ok
}

// after reports whether s sorts before the cursor in listing order (period end, created at, id; descending).
func after(s domain.ReconciliationSession, periodEnd, createdAt time.Time, id string) bool {
	if !s.PeriodEnd.Equal(periodEnd) {
		return s.PeriodEnd.After(periodEnd)
	}
	if !s.CreatedAt.Equal(createdAt) {
		return s.CreatedAt.After(createdAt)
	}
	return s.SessionID > id
}

func header(s domain.ReconciliationSession) domain.ReconciliationSession {
	s.BankRecords, s.BookRecords, s.Pairs = nil, nil, nil
	if s.ConfirmedAt != nil {
		t := *s.ConfirmedAt
		s.ConfirmedAt = &t
	}
	return s
}

func cloneSession(s domain.ReconciliationSession) domain.ReconciliationSession {
	out := header(s)
	out.BankRecords = append([]domain.TransactionRecord(nil), s.BankRecords...)
	out.BookRecords = append([]domain.TransactionRecord(nil), s.BookRecords...)
	out.Pairs = make([]domain.MatchPair, len(s.Pairs))
	for i, p := range s.Pairs {
		if p.Resolution != nil {
			res := *p.Resolution
			p.Resolution = &res
		}
		if p.ResolvedAt != nil {
			t := *p.ResolvedAt
			p.ResolvedAt = &t
		}
		if p.Adjustments != nil {
			p.Adjustments = append([]domain.Adjustment(nil), p.Adjustments...)
		}
		out.Pairs[i] = p
	}
	return out
}
