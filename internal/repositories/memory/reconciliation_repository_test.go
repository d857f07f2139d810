package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/repositories/memory"
)

func newSession(id, account string, periodEnd time.Time) *domain.ReconciliationSession {
	res := domain.ResolutionAccepted
	return &domain.ReconciliationSession{
		SessionID:   id,
		AccountID:   account,
		PeriodStart: periodEnd.AddDate(0, -1, 0),
		PeriodEnd:   periodEnd,
		Status:      domain.SessionOpen,
		BankRecords: []domain.TransactionRecord{{ID: "B1", Source: domain.SourceBank, Amount: decimal.NewFromInt(10), MatchStatus: domain.StatusDiscrepancy, PairedWith: "K1"}},
		BookRecords: []domain.TransactionRecord{{ID: "K1", Source: domain.SourceBook, Amount: decimal.NewFromInt(9), MatchStatus: domain.StatusDiscrepancy, PairedWith: "B1"}},
		Pairs:       []domain.MatchPair{{PairID: "p1", BankRecordID: "B1", BookRecordID: "K1", Status: domain.StatusDiscrepancy, Resolution: &res}},
		AuditFields: domain.AuditFields{CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), CreatedBy: "alice"},
	}
}

func TestSaveAndFind(t *testing.T) {
	repo := memory.NewReconciliationRepository()
	ctx := context.Background()
	s := newSession("s1", "acct", time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))

	require.NoError(t, repo.SaveSession(ctx, s))
	assert.Equal(t, int64(1), s.Version)

	got, err := repo.FindSessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, *s, *got)

	// Returned snapshots are copies
	*got.Pairs[0].Resolution = domain.ResolutionEscalated
	got.BankRecords[0].Amount = decimal.NewFromInt(99)
	again, err := repo.FindSessionByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionAccepted, *again.Pairs[0].Resolution)
	assert.True(t, decimal.NewFromInt(10).Equal(again.BankRecords[0].Amount))

	_, err = repo.FindSessionByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSaveVersionChecks(t *testing.T) {
	repo := memory.NewReconciliationRepository()
	ctx := context.Background()
	s := newSession("s1", "acct", time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveSession(ctx, s))

	dup := newSession("s1", "acct", time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, repo.SaveSession(ctx, dup), apperrors.ErrDuplicate)

	first, _ := repo.FindSessionByID(ctx, "s1")
	second, _ := repo.FindSessionByID(ctx, "s1")
	require.NoError(t, repo.SaveSession(ctx, first))
	assert.Equal(t, int64(2), first.Version)
	assert.ErrorIs(t, repo.SaveSession(ctx, second), apperrors.ErrConflict)

	ghost := newSession("ghost", "acct", time.Now())
	ghost.Version = 3
	assert.ErrorIs(t, repo.SaveSession(ctx, ghost), apperrors.ErrNotFound)
}

func TestListSessionsByAccountPaginates(t *testing.T) {
	repo := memory.NewReconciliationRepository()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		s := newSession(fmt.Sprintf("s%d", i), "acct", time.Date(2026, time.Month(i), 28, 0, 0, 0, 0, time.UTC))
		require.NoError(t, repo.SaveSession(ctx, s))
	}
	require.NoError(t, repo.SaveSession(ctx, newSession("other", "acct-2", time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))))

	page, next, err := repo.ListSessionsByAccount(ctx, "acct", 2, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Len(t, page, 2)
	assert.Equal(t, []string{"s5", "s4"}, []string{page[0].SessionID, page[1].SessionID})
	assert.Nil(t, page[0].BankRecords, "list returns headers only")

	page, next, err = repo.ListSessionsByAccount(ctx, "acct", 2, next)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, []string{"s3", "s2"}, []string{page[0].SessionID, page[1].SessionID})

	page, next, err = repo.ListSessionsByAccount(ctx, "acct", 2, next)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, page, 1)
	assert.Equal(t, "s1", page[0].SessionID)

	bad := "%%%"
	_, _, err = repo.ListSessionsByAccount(ctx, "acct", 2, &bad)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.Code)
}

func TestArchiveSession(t *testing.T) {
	repo := memory.NewReconciliationRepository()
	ctx := context.Background()
	s := newSession("s1", "acct", time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repo.SaveSession(ctx, s))

	at := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	assert.ErrorIs(t, repo.ArchiveSession(ctx, "s1", at, "alice"), apperrors.ErrNotFound, "open sessions are not archived")

	s.Status = domain.SessionConfirmed
	require.NoError(t, repo.SaveSession(ctx, s))
	require.NoError(t, repo.ArchiveSession(ctx, "s1", at, "alice"))

	got, ok := repo.ArchivedAt("s1")
	assert.True(t, ok)
	assert.Equal(t, at, got)
}

func TestCancelledContext(t *testing.T) {
	repo := memory.NewReconciliationRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.SaveSession(ctx, newSession("s1", "acct", time.Now())), context.Canceled)
	_, err := repo.FindSessionByID(ctx, "s1")
	assert.ErrorIs(t, err, context.Canceled)
}
