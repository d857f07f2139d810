package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/accounts_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/accounts_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/accounts_reconciliation/internal/core/reconcile"
	"github.com/SscSPs/accounts_reconciliation/internal/dto"
)

const (
	defaultListLimit = 20

	eventSessionConfirmed = "reconciliation_confirmed"
)

// AnalyticsSink receives product analytics events. *utils.PosthogClientWrapper satisfies it.
type AnalyticsSink interface {
	Enqueue(distinctID string, event string, properties map[string]any)
}

// reconciliationService implements the ReconciliationSvcFacade interface
type reconciliationService struct {
	BaseService
	repo      portsrepo.ReconciliationRepositoryFacade
	defaults  reconcile.MatcherConfig
	analytics AnalyticsSink
	locks     *sessionLocker
	clock     func() time.Time
}

// ReconciliationOption is a functional option for configuring the reconciliation service
type ReconciliationOption func(*reconciliationService)

// WithMatcherDefaults sets the matcher configuration used when a request carries no overrides.
func WithMatcherDefaults(cfg reconcile.MatcherConfig) ReconciliationOption {
	return func(s *reconciliationService) {
		s.defaults = cfg
	}
}

// WithAnalytics adds the analytics sink notified on confirmation.
func WithAnalytics(sink AnalyticsSink) ReconciliationOption {
	return func(s *reconciliationService) {
		s.analytics = sink
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(clock func() time.Time) ReconciliationOption {
	return func(s *reconciliationService) {
		s.clock = clock
	}
}

// NewReconciliationService creates a new reconciliation service with the provided options
func NewReconciliationService(repo portsrepo.ReconciliationRepositoryFacade, options ...ReconciliationOption) portssvc.ReconciliationSvcFacade {
	svc := &reconciliationService{
		repo:     repo,
		defaults: reconcile.DefaultMatcherConfig(),
		locks:    newSessionLocker(),
		clock:    time.Now,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.ReconciliationSvcFacade = (*reconciliationService)(nil)

func (s *reconciliationService) CreateSession(ctx context.Context, req dto.CreateSessionRequest, operatorID string) (*dto.SessionResponse, error) {
	bank := reconcile.NormalizeRows(domain.SourceBank, toRawRows(req.BankRows))
	book := reconcile.NormalizeRows(domain.SourceBook, toRawRows(req.BookRows))
	return s.openSession(ctx, req.SessionHeader, bank, book, operatorID)
}

func (s *reconciliationService) ImportCSV(ctx context.Context, form dto.ImportSessionForm, bankCSV, bookCSV io.Reader, operatorID string) (*dto.SessionResponse, error) {
	bank, err := reconcile.ParseCSV(bankCSV, domain.SourceBank)
	if err != nil {
		s.LogWarn(ctx, err, "Rejected bank statement file")
		return nil, err
	}
	book, err := reconcile.ParseCSV(bookCSV, domain.SourceBook)
	if err != nil {
		s.LogWarn(ctx, err, "Rejected ledger file")
		return nil, err
	}
	return s.openSession(ctx, form.SessionHeader, bank, book, operatorID)
}

// openSession builds a session over normalized records, auto-matches it once and stores it.
func (s *reconciliationService) openSession(ctx context.Context, header dto.SessionHeader, bank, book reconcile.ImportResult, operatorID string) (*dto.SessionResponse, error) {
	cfg, err := s.matcherConfig(header.MatcherOverrides)
	if err != nil {
		s.LogWarn(ctx, err, "Invalid matcher overrides")
		return nil, err
	}
	params, err := sessionParams(header)
	if err != nil {
		s.LogWarn(ctx, err, "Invalid session header", slog.String("account_id", header.AccountID))
		return nil, err
	}
	params.SessionID = uuid.NewString()
	params.BankRecords = bank.Records
	params.BookRecords = book.Records
	params.CreatedBy = operatorID
	params.Clock = s.clock

	sess, err := reconcile.NewSession(params)
	if err != nil {
		s.LogWarn(ctx, err, "Failed to open reconciliation session", slog.String("account_id", header.AccountID))
		return nil, err
	}
	if err := autoMatch(sess, cfg, operatorID); err != nil {
		s.LogError(ctx, err, "Auto-match failed on a fresh session", slog.String("session_id", sess.ID()))
		return nil, err
	}

	snap := sess.Snapshot()
	if err := s.repo.SaveSession(ctx, &snap); err != nil {
		s.LogError(ctx, err, "Failed to save reconciliation session", slog.String("session_id", snap.SessionID))
		return nil, fmt.Errorf("failed to save reconciliation session: %w", err)
	}

	importErrors := append(append([]*apperrors.ImportRowError(nil), bank.Errors...), book.Errors...)
	stats := sess.Stats()
	s.LogInfo(ctx, "Reconciliation session created",
		slog.String("session_id", snap.SessionID),
		slog.String("account_id", snap.AccountID),
		slog.Int("bank_records", len(snap.BankRecords)),
		slog.Int("book_records", len(snap.BookRecords)),
		slog.Int("pairs", stats.TotalPairs),
		slog.Int("import_errors", len(importErrors)))

	resp := dto.ToSessionResponse(snap, stats, importErrors)
	return &resp, nil
}

func (s *reconciliationService) GetSession(ctx context.Context, sessionID string) (*dto.SessionResponse, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp := dto.ToSessionResponse(sess.Snapshot(), sess.Stats(), nil)
	return &resp, nil
}

func (s *reconciliationService) GetStats(ctx context.Context, sessionID string) (*domain.ReconciliationStats, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats := sess.Stats()
	return &stats, nil
}

func (s *reconciliationService) ListSessions(ctx context.Context, params dto.ListSessionsParams) (*dto.ListSessionsResponse, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	sessions, nextToken, err := s.repo.ListSessionsByAccount(ctx, params.AccountID, limit, params.NextToken)
	if err != nil {
		s.LogError(ctx, err, "Failed to list reconciliation sessions", slog.String("account_id", params.AccountID))
		return nil, fmt.Errorf("failed to list reconciliation sessions: %w", err)
	}
	resp := dto.ToListSessionsResponse(sessions, nextToken)
	return &resp, nil
}

func (s *reconciliationService) RunAutoMatch(ctx context.Context, sessionID string, req dto.AutoMatchRequest, operatorID string) (*dto.SessionResponse, error) {
	cfg, err := s.matcherConfig(req.MatcherOverrides)
	if err != nil {
		s.LogWarn(ctx, err, "Invalid matcher overrides", slog.String("session_id", sessionID))
		return nil, err
	}
	return s.mutate(ctx, sessionID, operatorID, "auto_match", func(sess *reconcile.Session) error {
		return autoMatch(sess, cfg, operatorID)
	})
}

func (s *reconciliationService) ManualPair(ctx context.Context, sessionID string, req dto.ManualPairRequest, operatorID string) (*dto.SessionResponse, error) {
	return s.mutate(ctx, sessionID, operatorID, "manual_pair", func(sess *reconcile.Session) error {
		_, err := sess.ManualPair(req.BankRecordID, req.BookRecordID, operatorID)
		return err
	})
}

func (s *reconciliationService) Unpair(ctx context.Context, sessionID string, pairID string, operatorID string) (*dto.SessionResponse, error) {
	return s.mutate(ctx, sessionID, operatorID, "unpair", func(sess *reconcile.Session) error {
		return sess.Unpair(pairID, operatorID)
	})
}

func (s *reconciliationService) Accept(ctx context.Context, sessionID string, pairID string, operatorID string) (*dto.SessionResponse, error) {
	return s.mutate(ctx, sessionID, operatorID, "accept", func(sess *reconcile.Session) error {
		_, err := sess.Accept(pairID, operatorID)
		return err
	})
}

func (s *reconciliationService) Adjust(ctx context.Context, sessionID string, pairID string, req dto.AdjustPairRequest, operatorID string) (*dto.SessionResponse, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.CorrectedAmount))
	if err != nil {
		return nil, fmt.Errorf("%w: corrected amount %q is not a number", apperrors.ErrValidation, req.CorrectedAmount)
	}
	side := domain.RecordSource(strings.ToUpper(req.Side))
	return s.mutate(ctx, sessionID, operatorID, "adjust", func(sess *reconcile.Session) error {
		_, err := sess.Adjust(pairID, amount, side, operatorID)
		return err
	})
}

func (s *reconciliationService) Escalate(ctx context.Context, sessionID string, pairID string, req dto.EscalatePairRequest, operatorID string) (*dto.SessionResponse, error) {
	return s.mutate(ctx, sessionID, operatorID, "escalate", func(sess *reconcile.Session) error {
		_, err := sess.Escalate(pairID, req.Note, operatorID)
		return err
	})
}

func (s *reconciliationService) Confirm(ctx context.Context, sessionID string, operatorID string) (*dto.SessionResponse, error) {
	resp, err := s.mutate(ctx, sessionID, operatorID, "confirm", func(sess *reconcile.Session) error {
		return sess.Confirm(operatorID)
	})
	if err != nil {
		return nil, err
	}

	archivedAt := s.clock().UTC()
	if resp.ConfirmedAt != nil {
		archivedAt = *resp.ConfirmedAt
	}
	// The session is already stored as CONFIRMED. A failed hand-over leaves it unarchived and is only logged.
	if err := s.repo.ArchiveSession(ctx, sessionID, archivedAt, operatorID); err != nil {
		s.LogError(ctx, err, "Failed to archive confirmed session", slog.String("session_id", sessionID))
	}

	if s.analytics != nil {
		s.analytics.Enqueue(operatorID, eventSessionConfirmed, map[string]any{
			"session_id":     sessionID,
			"account_id":     resp.AccountID,
			"total_records":  resp.Stats.TotalRecords,
			"total_pairs":    resp.Stats.TotalPairs,
			"adjusted_pairs": resp.Stats.AdjustedPairs,
		})
	}
	s.LogInfo(ctx, "Reconciliation session confirmed", slog.String("session_id", sessionID))
	return resp, nil
}

// mutate runs fn against the stored session under the per-session lock and saves the result.
// Nothing is saved when fn fails.
func (s *reconciliationService) mutate(ctx context.Context, sessionID, operatorID, action string, fn func(*reconcile.Session) error) (*dto.SessionResponse, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		s.LogWarn(ctx, err, "Reconciliation command rejected",
			slog.String("session_id", sessionID),
			slog.String("action", action),
			slog.String("operator_id", operatorID))
		return nil, err
	}

	snap := sess.Snapshot()
	if err := s.repo.SaveSession(ctx, &snap); err != nil {
		s.LogError(ctx, err, "Failed to save reconciliation session",
			slog.String("session_id", sessionID),
			slog.String("action", action))
		return nil, fmt.Errorf("failed to save reconciliation session: %w", err)
	}
	s.LogDebug(ctx, "Reconciliation command applied",
		slog.String("session_id", sessionID),
		slog.String("action", action),
		slog.Int64("version", snap.Version))

	resp := dto.ToSessionResponse(snap, sess.Stats(), nil)
	return &resp, nil
}

func (s *reconciliationService) load(ctx context.Context, sessionID string) (*reconcile.Session, error) {
	snap, err := s.repo.FindSessionByID(ctx, sessionID)
	if err != nil {
		s.LogWarn(ctx, err, "Failed to load reconciliation session", slog.String("session_id", sessionID))
		return nil, fmt.Errorf("failed to load reconciliation session %s: %w", sessionID, err)
	}
	sess, err := reconcile.Restore(*snap, s.clock)
	if err != nil {
		s.LogError(ctx, err, "Stored reconciliation session is corrupt", slog.String("session_id", sessionID))
		return nil, err
	}
	return sess, nil
}

// matcherConfig layers request overrides on top of the configured defaults.
func (s *reconciliationService) matcherConfig(o dto.MatcherOverrides) (reconcile.MatcherConfig, error) {
	cfg := s.defaults
	if o.DateToleranceDays != nil {
		cfg.DateToleranceDays = *o.DateToleranceDays
	}
	if o.ToleranceWindowDays != nil {
		cfg.ToleranceWindowDays = *o.ToleranceWindowDays
	}
	if o.AmountTolerance != "" {
		tol, err := decimal.NewFromString(strings.TrimSpace(o.AmountTolerance))
		if err != nil {
			return cfg, &apperrors.ConfigurationError{Field: "amountTolerance", Reason: fmt.Sprintf("not a number: %q", o.AmountTolerance)}
		}
		cfg.AmountTolerance = tol
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func autoMatch(sess *reconcile.Session, cfg reconcile.MatcherConfig, operatorID string) error {
	if sess.Status() == domain.SessionConfirmed {
		return &apperrors.SessionClosedError{SessionID: sess.ID()}
	}
	proposals, err := reconcile.Match(sess.BankRecords(), sess.BookRecords(), cfg)
	if err != nil {
		return err
	}
	if len(proposals) == 0 {
		return nil
	}
	return sess.ApplyMatcherProposals(proposals, operatorID)
}

func sessionParams(h dto.SessionHeader) (reconcile.SessionParams, error) {
	var p reconcile.SessionParams
	var err error
	p.AccountID = strings.TrimSpace(h.AccountID)
	if p.PeriodStart, err = time.Parse(time.DateOnly, h.PeriodStart); err != nil {
		return p, fmt.Errorf("%w: periodStart %q is not a YYYY-MM-DD date", apperrors.ErrValidation, h.PeriodStart)
	}
	if p.PeriodEnd, err = time.Parse(time.DateOnly, h.PeriodEnd); err != nil {
		return p, fmt.Errorf("%w: periodEnd %q is not a YYYY-MM-DD date", apperrors.ErrValidation, h.PeriodEnd)
	}
	if p.OpeningBalance, err = parseBalance("openingBalance", h.OpeningBalance); err != nil {
		return p, err
	}
	if p.ClosingBalanceStatement, err = parseBalance("closingBalanceStatement", h.ClosingBalanceStatement); err != nil {
		return p, err
	}
	if p.ClosingBalanceBook, err = parseBalance("closingBalanceBook", h.ClosingBalanceBook); err != nil {
		return p, err
	}
	return p, nil
}

func parseBalance(field, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a number", apperrors.ErrValidation, field, raw)
	}
	return d, nil
}

func toRawRows(rows []map[string]any) []reconcile.RawRow {
	out := make([]reconcile.RawRow, len(rows))
	for i, r := range rows {
		out[i] = reconcile.RawRow(r)
	}
	return out
}
