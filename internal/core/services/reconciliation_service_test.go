package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	portssvc "github.com/SscSPs/accounts_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/accounts_reconciliation/internal/core/reconcile"
	"github.com/SscSPs/accounts_reconciliation/internal/core/services"
	"github.com/SscSPs/accounts_reconciliation/internal/dto"
)

// --- Mock ReconciliationRepository ---
type MockReconciliationRepository struct {
	mock.Mock
}

func (m *MockReconciliationRepository) FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockReconciliationRepository) ListSessionsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.ReconciliationSession, *string, error) {
	args := m.Called(ctx, accountID, limit, nextToken)
	var sessions []domain.ReconciliationSession
	if args.Get(0) != nil {
		sessions = args.Get(0).([]domain.ReconciliationSession)
	}
	var token *string
	if args.Get(1) != nil {
		token = args.Get(1).(*string)
	}
	return sessions, token, args.Error(2)
}

func (m *MockReconciliationRepository) SaveSession(ctx context.Context, session *domain.ReconciliationSession) error {
	args := m.Called(ctx, session)
	if args.Error(0) == nil {
		session.Version++
	}
	return args.Error(0)
}

func (m *MockReconciliationRepository) ArchiveSession(ctx context.Context, sessionID string, archivedAt time.Time, archivedBy string) error {
	args := m.Called(ctx, sessionID, archivedAt, archivedBy)
	return args.Error(0)
}

// --- Mock AnalyticsSink ---
type MockAnalytics struct {
	mock.Mock
}

func (m *MockAnalytics) Enqueue(distinctID string, event string, properties map[string]any) {
	m.Called(distinctID, event, properties)
}

// --- Test Suite ---
type ReconciliationServiceTestSuite struct {
	suite.Suite
	mockRepo      *MockReconciliationRepository
	mockAnalytics *MockAnalytics
	service       portssvc.ReconciliationSvcFacade
	now           time.Time
}

const operator = "alice"

func (suite *ReconciliationServiceTestSuite) SetupTest() {
	suite.mockRepo = new(MockReconciliationRepository)
	suite.mockAnalytics = new(MockAnalytics)
	suite.now = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	suite.service = services.NewReconciliationService(suite.mockRepo,
		services.WithAnalytics(suite.mockAnalytics),
		services.WithClock(func() time.Time { return suite.now }),
	)
}

func TestReconciliationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceTestSuite))
}

func header() dto.SessionHeader {
	return dto.SessionHeader{
		AccountID:               "acct-1",
		PeriodStart:             "2026-01-01",
		PeriodEnd:               "2026-01-31",
		OpeningBalance:          "1000",
		ClosingBalanceStatement: "1050",
		ClosingBalanceBook:      "1052",
	}
}

// storedSession returns a persisted, unmatched session: B1/K1 agree, B2/K2 differ by 2.00.
func (suite *ReconciliationServiceTestSuite) storedSession() *domain.ReconciliationSession {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	rec := func(id string, src domain.RecordSource, d int, amount string) domain.TransactionRecord {
		return domain.TransactionRecord{ID: id, Source: src, Date: day(d), Amount: decimal.RequireFromString(amount)}
	}
	sess, err := reconcile.NewSession(reconcile.SessionParams{
		SessionID:               "sess-1",
		AccountID:               "acct-1",
		PeriodStart:             day(1),
		PeriodEnd:               day(31),
		ClosingBalanceStatement: decimal.RequireFromString("1050"),
		ClosingBalanceBook:      decimal.RequireFromString("1052"),
		BankRecords:             []domain.TransactionRecord{rec("B1", domain.SourceBank, 5, "100"), rec("B2", domain.SourceBank, 9, "-50")},
		BookRecords:             []domain.TransactionRecord{rec("K1", domain.SourceBook, 5, "100"), rec("K2", domain.SourceBook, 20, "-48")},
		CreatedBy:               operator,
		Clock:                   func() time.Time { return suite.now },
	})
	suite.Require().NoError(err)
	snap := sess.Snapshot()
	snap.Version = 1
	return &snap
}

// --- Test Cases ---

func (suite *ReconciliationServiceTestSuite) TestCreateSession_MatchesAndSaves() {
	ctx := context.Background()
	req := dto.CreateSessionRequest{
		SessionHeader: header(),
		BankRows: []map[string]any{
			{"id": "B1", "date": "2026-01-05", "amount": "100.00", "ref": "CHQ 1"},
			{"id": "B2", "date": "2026-01-07", "amount": "-25.00"},
			{"id": "B3", "date": "not a date", "amount": "1"},
		},
		BookRows: []map[string]any{
			{"id": "K1", "date": "2026-01-05", "amount": "100.00", "ref": "chq1"},
			{"id": "K2", "date": "2026-01-07", "debit": "25.00"},
		},
	}

	suite.mockRepo.On("SaveSession", ctx, mock.MatchedBy(func(s *domain.ReconciliationSession) bool {
		return s.AccountID == "acct-1" && s.CreatedBy == operator && len(s.Pairs) == 2 && s.Version == 0
	})).Return(nil).Once()

	resp, err := suite.service.CreateSession(ctx, req, operator)

	suite.Require().NoError(err)
	suite.Require().NotNil(resp)
	suite.NotEmpty(resp.SessionID)
	suite.Equal(domain.SessionOpen, resp.Status)
	suite.Equal(int64(1), resp.Version)
	suite.Equal("2026-01-01", resp.PeriodStart)
	suite.Equal("1050.00", resp.ClosingBalanceStatement)
	suite.Require().Len(resp.Pairs, 2)
	suite.Equal(domain.RuleExact, resp.Pairs[0].Rule)
	suite.Equal(domain.RuleAmountDate, resp.Pairs[1].Rule)
	suite.Require().Len(resp.ImportErrors, 1)
	suite.Equal("date", resp.ImportErrors[0].Field)
	suite.Equal(4, resp.Stats.MatchedRecords)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestCreateSession_InvalidHeader() {
	ctx := context.Background()
	req := dto.CreateSessionRequest{SessionHeader: header()}
	req.PeriodEnd = "2025-12-01"

	resp, err := suite.service.CreateSession(ctx, req, operator)

	suite.Nil(resp)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRepo.AssertNotCalled(suite.T(), "SaveSession", mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestCreateSession_InvalidOverrides() {
	ctx := context.Background()
	req := dto.CreateSessionRequest{SessionHeader: header()}
	req.AmountTolerance = "-1"

	resp, err := suite.service.CreateSession(ctx, req, operator)

	suite.Nil(resp)
	var cfgErr *apperrors.ConfigurationError
	suite.Require().ErrorAs(err, &cfgErr)
	suite.Equal("AmountTolerance", cfgErr.Field)
	suite.mockRepo.AssertNotCalled(suite.T(), "SaveSession", mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestCreateSession_SaveError() {
	ctx := context.Background()
	suite.mockRepo.On("SaveSession", ctx, mock.Anything).Return(assert.AnError).Once()

	resp, err := suite.service.CreateSession(ctx, dto.CreateSessionRequest{SessionHeader: header()}, operator)

	suite.Nil(resp)
	suite.ErrorIs(err, assert.AnError)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestImportCSV() {
	ctx := context.Background()
	bankCSV := "Date,Description,Amount,Reference\n2026-01-05,Deposit,100.00,INV-1\n"
	bookCSV := "Txn Date,Memo,Debit,Credit,Invoice No\n2026-01-05,Invoice 1,,100.00,inv-1\n"

	suite.mockRepo.On("SaveSession", ctx, mock.MatchedBy(func(s *domain.ReconciliationSession) bool {
		return len(s.Pairs) == 1 && s.Pairs[0].Rule == domain.RuleExact
	})).Return(nil).Once()

	resp, err := suite.service.ImportCSV(ctx, dto.ImportSessionForm{SessionHeader: header()}, strings.NewReader(bankCSV), strings.NewReader(bookCSV), operator)

	suite.Require().NoError(err)
	suite.Len(resp.BankRecords, 1)
	suite.Len(resp.BookRecords, 1)
	suite.Empty(resp.ImportErrors)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestImportCSV_EmptyFile() {
	resp, err := suite.service.ImportCSV(context.Background(), dto.ImportSessionForm{SessionHeader: header()}, strings.NewReader(""), strings.NewReader(""), operator)

	suite.Nil(resp)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *ReconciliationServiceTestSuite) TestGetSession_NotFound() {
	ctx := context.Background()
	suite.mockRepo.On("FindSessionByID", ctx, "missing").Return(nil, apperrors.ErrNotFound).Once()

	resp, err := suite.service.GetSession(ctx, "missing")

	suite.Nil(resp)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestGetStats() {
	ctx := context.Background()
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(suite.storedSession(), nil).Once()

	stats, err := suite.service.GetStats(ctx, "sess-1")

	suite.Require().NoError(err)
	suite.Equal(4, stats.TotalRecords)
	suite.Equal(4, stats.UnmatchedRecords)
	suite.True(decimal.RequireFromString("-2").Equal(stats.BalanceDifference))
}

func (suite *ReconciliationServiceTestSuite) TestListSessions_DefaultLimit() {
	ctx := context.Background()
	next := "token"
	stored := suite.storedSession()
	suite.mockRepo.On("ListSessionsByAccount", ctx, "acct-1", 20, (*string)(nil)).
		Return([]domain.ReconciliationSession{*stored}, &next, nil).Once()

	resp, err := suite.service.ListSessions(ctx, dto.ListSessionsParams{AccountID: "acct-1"})

	suite.Require().NoError(err)
	suite.Require().Len(resp.Sessions, 1)
	suite.Equal("sess-1", resp.Sessions[0].SessionID)
	suite.Equal(&next, resp.NextToken)
}

func (suite *ReconciliationServiceTestSuite) TestRunAutoMatch_WithOverrides() {
	ctx := context.Background()
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(suite.storedSession(), nil).Once()
	suite.mockRepo.On("SaveSession", ctx, mock.MatchedBy(func(s *domain.ReconciliationSession) bool {
		return s.Version == 1 && len(s.Pairs) == 2
	})).Return(nil).Once()

	window := 15
	resp, err := suite.service.RunAutoMatch(ctx, "sess-1", dto.AutoMatchRequest{MatcherOverrides: dto.MatcherOverrides{
		AmountTolerance:     "5",
		ToleranceWindowDays: &window,
	}}, operator)

	suite.Require().NoError(err)
	suite.Equal(int64(2), resp.Version)
	suite.Require().Len(resp.Pairs, 2)
	suite.Equal(domain.StatusDiscrepancy, resp.Pairs[1].Status)
	suite.Equal(1, resp.Stats.UnresolvedDiscrepancies)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestManualPairThenAdjust() {
	ctx := context.Background()
	stored := suite.storedSession()
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(stored, nil).Once()
	suite.mockRepo.On("SaveSession", ctx, mock.Anything).Return(nil).Once()

	resp, err := suite.service.ManualPair(ctx, "sess-1", dto.ManualPairRequest{BankRecordID: "B2", BookRecordID: "K2"}, operator)
	suite.Require().NoError(err)
	suite.Require().Len(resp.Pairs, 1)
	pair := resp.Pairs[0]
	suite.Equal(domain.RuleManual, pair.Rule)
	suite.True(decimal.RequireFromString("-2").Equal(pair.AmountDelta))

	paired := suite.storedSession()
	sess, err := reconcile.Restore(*paired, nil)
	suite.Require().NoError(err)
	_, err = sess.ManualPair("B2", "K2", operator)
	suite.Require().NoError(err)
	snap := sess.Snapshot()
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(&snap, nil).Once()
	suite.mockRepo.On("SaveSession", ctx, mock.Anything).Return(nil).Once()

	resp, err = suite.service.Adjust(ctx, "sess-1", pair.PairID, dto.AdjustPairRequest{CorrectedAmount: "-48", Side: "BANK"}, operator)
	suite.Require().NoError(err)
	suite.Equal(domain.StatusMatched, resp.Pairs[0].Status)
	suite.Require().NotNil(resp.Pairs[0].Resolution)
	suite.Equal(domain.ResolutionAdjusted, *resp.Pairs[0].Resolution)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestAccept_UnknownPairDoesNotSave() {
	ctx := context.Background()
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(suite.storedSession(), nil).Once()

	resp, err := suite.service.Accept(ctx, "sess-1", "nope", operator)

	suite.Nil(resp)
	var notFound *apperrors.PairNotFoundError
	suite.ErrorAs(err, &notFound)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockRepo.AssertNotCalled(suite.T(), "SaveSession", mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestAdjust_InvalidAmount() {
	resp, err := suite.service.Adjust(context.Background(), "sess-1", "p", dto.AdjustPairRequest{CorrectedAmount: "abc", Side: "BANK"}, operator)

	suite.Nil(resp)
	suite.ErrorIs(err, apperrors.ErrValidation)
	suite.mockRepo.AssertNotCalled(suite.T(), "FindSessionByID", mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestConfirm_BlockedByUnmatched() {
	ctx := context.Background()
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(suite.storedSession(), nil).Once()

	resp, err := suite.service.Confirm(ctx, "sess-1", operator)

	suite.Nil(resp)
	var unresolved *apperrors.UnresolvedItemsError
	suite.Require().ErrorAs(err, &unresolved)
	suite.ElementsMatch([]string{"B1", "B2", "K1", "K2"}, unresolved.UnmatchedRecordIDs)
	suite.mockRepo.AssertNotCalled(suite.T(), "ArchiveSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	suite.mockAnalytics.AssertNotCalled(suite.T(), "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestConfirm_ArchivesAndTracks() {
	ctx := context.Background()
	sess, err := reconcile.Restore(*suite.storedSession(), nil)
	suite.Require().NoError(err)
	_, err = sess.ManualPair("B1", "K1", operator)
	suite.Require().NoError(err)
	pair, err := sess.ManualPair("B2", "K2", operator)
	suite.Require().NoError(err)
	_, err = sess.Escalate(pair.PairID, "ask the bank", operator)
	suite.Require().NoError(err)
	snap := sess.Snapshot()

	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(&snap, nil).Once()
	suite.mockRepo.On("SaveSession", ctx, mock.MatchedBy(func(s *domain.ReconciliationSession) bool {
		return s.Status == domain.SessionConfirmed && s.ConfirmedBy == operator
	})).Return(nil).Once()
	suite.mockRepo.On("ArchiveSession", ctx, "sess-1", suite.now, operator).Return(nil).Once()
	suite.mockAnalytics.On("Enqueue", operator, "reconciliation_confirmed", mock.MatchedBy(func(props map[string]any) bool {
		return props["session_id"] == "sess-1" && props["total_pairs"] == 2
	})).Return().Once()

	resp, err := suite.service.Confirm(ctx, "sess-1", operator)

	suite.Require().NoError(err)
	suite.Equal(domain.SessionConfirmed, resp.Status)
	suite.Require().NotNil(resp.ConfirmedAt)
	suite.Equal(suite.now, *resp.ConfirmedAt)
	suite.mockRepo.AssertExpectations(suite.T())
	suite.mockAnalytics.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestConfirm_ArchiveFailureStillConfirms() {
	ctx := context.Background()
	sess, err := reconcile.Restore(*suite.storedSession(), nil)
	suite.Require().NoError(err)
	_, err = sess.ManualPair("B1", "K1", operator)
	suite.Require().NoError(err)
	pair, err := sess.ManualPair("B2", "K2", operator)
	suite.Require().NoError(err)
	_, err = sess.Accept(pair.PairID, operator)
	suite.Require().NoError(err)
	snap := sess.Snapshot()

	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(&snap, nil).Once()
	suite.mockRepo.On("SaveSession", ctx, mock.Anything).Return(nil).Once()
	suite.mockRepo.On("ArchiveSession", ctx, "sess-1", mock.Anything, operator).Return(assert.AnError).Once()
	suite.mockAnalytics.On("Enqueue", operator, "reconciliation_confirmed", mock.Anything).Return().Once()

	resp, err := suite.service.Confirm(ctx, "sess-1", operator)

	suite.Require().NoError(err)
	suite.Equal(domain.SessionConfirmed, resp.Status)
	suite.mockRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestRunAutoMatch_ClosedSession() {
	ctx := context.Background()
	stored := suite.storedSession()
	stored.Status = domain.SessionConfirmed
	stored.BankRecords, stored.BookRecords = nil, nil
	suite.mockRepo.On("FindSessionByID", ctx, "sess-1").Return(stored, nil).Once()

	resp, err := suite.service.RunAutoMatch(ctx, "sess-1", dto.AutoMatchRequest{}, operator)

	suite.Nil(resp)
	var closed *apperrors.SessionClosedError
	suite.ErrorAs(err, &closed)
	suite.ErrorIs(err, apperrors.ErrConflict)
}
