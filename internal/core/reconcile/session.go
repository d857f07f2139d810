package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/accounting"
)

// SessionParams carries everything needed to open a reconciliation session.
type SessionParams struct {
	SessionID               string
	AccountID               string
	PeriodStart             time.Time
	PeriodEnd               time.Time
	OpeningBalance          decimal.Decimal
	ClosingBalanceStatement decimal.Decimal
	ClosingBalanceBook      decimal.Decimal
	BankRecords             []domain.TransactionRecord
	BookRecords             []domain.TransactionRecord
	CreatedBy               string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Session is the aggregate owning one reconciliation's records and pairs.
// It is not safe for concurrent use; callers serialize mutations per session id.
type Session struct {
	id                      string
	accountID               string
	periodStart             time.Time
	periodEnd               time.Time
	openingBalance          decimal.Decimal
	closingBalanceStatement decimal.Decimal
	closingBalanceBook      decimal.Decimal
	status                  domain.SessionStatus
	confirmedAt             *time.Time
	confirmedBy             string
	audit                   domain.AuditFields

	bank    []domain.TransactionRecord
	book    []domain.TransactionRecord
	bankIdx map[string]int
	bookIdx map[string]int

	pairs   []domain.MatchPair
	pairIdx map[string]int

	now func() time.Time
}

// NewSession opens a session over freshly imported records. Every record starts UNMATCHED.
func NewSession(p SessionParams) (*Session, error) {
	if p.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	if p.AccountID == "" {
		return nil, fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	start, end := CivilDate(p.PeriodStart), CivilDate(p.PeriodEnd)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: period end %s is before period start %s",
			apperrors.ErrValidation, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	balances := []struct {
		name  string
		value decimal.Decimal
	}{
		{"opening balance", p.OpeningBalance},
		{"closing balance statement", p.ClosingBalanceStatement},
		{"closing balance book", p.ClosingBalanceBook},
	}
	for _, b := range balances {
		if err := accounting.CheckAmount(b.value); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrValidation, b.name, err)
		}
	}

	s := &Session{
		id:                      p.SessionID,
		accountID:               p.AccountID,
		periodStart:             start,
		periodEnd:               end,
		openingBalance:          p.OpeningBalance,
		closingBalanceStatement: p.ClosingBalanceStatement,
		closingBalanceBook:      p.ClosingBalanceBook,
		status:                  domain.SessionOpen,
		pairIdx:                 make(map[string]int),
		now:                     p.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}

	var err error
	if s.bank, s.bankIdx, err = indexRecords(p.BankRecords, domain.SourceBank, true); err != nil {
		return nil, err
	}
	if s.book, s.bookIdx, err = indexRecords(p.BookRecords, domain.SourceBook, true); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	s.audit = domain.AuditFields{CreatedAt: now, CreatedBy: p.CreatedBy, LastUpdatedAt: now, LastUpdatedBy: p.CreatedBy}
	return s, nil
}

// Restore rehydrates a session from a persisted snapshot, rejecting snapshots that break the pairing invariants.
func Restore(snap domain.ReconciliationSession, clock func() time.Time) (*Session, error) {
	s := &Session{
		id:                      snap.SessionID,
		accountID:               snap.AccountID,
		periodStart:             snap.PeriodStart,
		periodEnd:               snap.PeriodEnd,
		openingBalance:          snap.OpeningBalance,
		closingBalanceStatement: snap.ClosingBalanceStatement,
		closingBalanceBook:      snap.ClosingBalanceBook,
		status:                  snap.Status,
		confirmedBy:             snap.ConfirmedBy,
		audit:                   snap.AuditFields,
		pairIdx:                 make(map[string]int, len(snap.Pairs)),
		now:                     clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if snap.ConfirmedAt != nil {
		t := *snap.ConfirmedAt
		s.confirmedAt = &t
	}
	if s.status != domain.SessionOpen && s.status != domain.SessionConfirmed {
		return nil, corrupt(snap.SessionID, "unknown status %q", s.status)
	}

	var err error
	if s.bank, s.bankIdx, err = indexRecords(snap.BankRecords, domain.SourceBank, false); err != nil {
		return nil, corrupt(snap.SessionID, "%v", err)
	}
	if s.book, s.bookIdx, err = indexRecords(snap.BookRecords, domain.SourceBook, false); err != nil {
		return nil, corrupt(snap.SessionID, "%v", err)
	}

	inPair := make(map[string]bool, 2*len(snap.Pairs))
	for _, p := range snap.Pairs {
		bi, okB := s.bankIdx[p.BankRecordID]
		ki, okK := s.bookIdx[p.BookRecordID]
		if !okB || !okK {
			return nil, corrupt(snap.SessionID, "pair %s references unknown records", p.PairID)
		}
		if _, dup := s.pairIdx[p.PairID]; dup || inPair["B"+p.BankRecordID] || inPair["K"+p.BookRecordID] {
			return nil, corrupt(snap.SessionID, "pair %s overlaps another pair", p.PairID)
		}
		b, k := s.bank[bi], s.book[ki]
		if b.PairedWith != k.ID || k.PairedWith != b.ID || b.MatchStatus != p.Status || k.MatchStatus != p.Status {
			return nil, corrupt(snap.SessionID, "pair %s disagrees with its records", p.PairID)
		}
		inPair["B"+p.BankRecordID], inPair["K"+p.BookRecordID] = true, true
		s.pairIdx[p.PairID] = len(s.pairs)
		s.pairs = append(s.pairs, clonePair(p))
	}
	for _, r := range s.bank {
		if !inPair["B"+r.ID] && (r.IsPaired() || r.MatchStatus != domain.StatusUnmatched) {
			return nil, corrupt(snap.SessionID, "bank record %s is marked paired without a pair", r.ID)
		}
	}
	for _, r := range s.book {
		if !inPair["K"+r.ID] && (r.IsPaired() || r.MatchStatus != domain.StatusUnmatched) {
			return nil, corrupt(snap.SessionID, "book record %s is marked paired without a pair", r.ID)
		}
	}
	return s, nil
}

func corrupt(sessionID, format string, args ...any) error {
	return fmt.Errorf("%w: session %s snapshot is inconsistent: %s", apperrors.ErrInternal, sessionID, fmt.Sprintf(format, args...))
}

// indexRecords copies records, checks their source and id uniqueness, and builds an id index.
// When fresh is set the pairing state is reset to UNMATCHED.
func indexRecords(in []domain.TransactionRecord, source domain.RecordSource, fresh bool) ([]domain.TransactionRecord, map[string]int, error) {
	out := make([]domain.TransactionRecord, len(in))
	idx := make(map[string]int, len(in))
	for i, r := range in {
		if r.Source != source {
			return nil, nil, fmt.Errorf("%w: record %q has source %q, expected %s", apperrors.ErrValidation, r.ID, r.Source, source)
		}
		if r.ID == "" {
			return nil, nil, fmt.Errorf("%w: %s record at position %d has no id", apperrors.ErrValidation, source, i+1)
		}
		if _, dup := idx[r.ID]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate %s record id %q", apperrors.ErrValidation, source, r.ID)
		}
		if fresh {
			if err := accounting.CheckAmount(r.Amount); err != nil {
				return nil, nil, fmt.Errorf("%w: %s record %q: %v", apperrors.ErrValidation, source, r.ID, err)
			}
			r.Date = CivilDate(r.Date)
			r.MatchStatus = domain.StatusUnmatched
			r.PairedWith = ""
		}
		idx[r.ID] = i
		out[i] = r
	}
	return out, idx, nil
}

// ID is the session id.
func (s *Session) ID() string { return s.id }

// AccountID is the bank account under reconciliation.
func (s *Session) AccountID() string { return s.accountID }

// Status is OPEN until Confirm succeeds.
func (s *Session) Status() domain.SessionStatus { return s.status }

// Version is the persistence version the session was loaded with.
func (s *Session) Version() int64 { return s.audit.Version }

// BankRecords returns a copy of the bank side.
func (s *Session) BankRecords() []domain.TransactionRecord {
	return append([]domain.TransactionRecord(nil), s.bank...)
}

// BookRecords returns a copy of the book side.
func (s *Session) BookRecords() []domain.TransactionRecord {
	return append([]domain.TransactionRecord(nil), s.book...)
}

// Pairs returns a copy of the current pairs.
func (s *Session) Pairs() []domain.MatchPair {
	out := make([]domain.MatchPair, len(s.pairs))
	for i, p := range s.pairs {
		out[i] = clonePair(p)
	}
	return out
}

// Pair looks up a single pair by id.
func (s *Session) Pair(pairID string) (domain.MatchPair, bool) {
	i, ok := s.pairIdx[pairID]
	if !ok {
		return domain.MatchPair{}, false
	}
	return clonePair(s.pairs[i]), true
}

// Snapshot returns a deep copy of the session suitable for persistence or query output.
func (s *Session) Snapshot() domain.ReconciliationSession {
	snap := domain.ReconciliationSession{
		SessionID:               s.id,
		AccountID:               s.accountID,
		PeriodStart:             s.periodStart,
		PeriodEnd:               s.periodEnd,
		OpeningBalance:          s.openingBalance,
		ClosingBalanceStatement: s.closingBalanceStatement,
		ClosingBalanceBook:      s.closingBalanceBook,
		Status:                  s.status,
		BankRecords:             s.BankRecords(),
		BookRecords:             s.BookRecords(),
		Pairs:                   s.Pairs(),
		ConfirmedBy:             s.confirmedBy,
		AuditFields:             s.audit,
	}
	if s.confirmedAt != nil {
		t := *s.confirmedAt
		snap.ConfirmedAt = &t
	}
	return snap
}

// ApplyMatcherProposals bulk-applies matcher output. Amounts, delta and status are derived from
// the session's own records; nothing is applied unless every proposal is valid.
func (s *Session) ApplyMatcherProposals(proposals []domain.MatchPair, operatorID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	type resolved struct{ bank, book int }
	plan := make([]resolved, 0, len(proposals))
	claimed := make(map[string]bool, 2*len(proposals))
	var busy []string
	for _, p := range proposals {
		bi, ki, err := s.lookupPairRecords(p.BankRecordID, p.BookRecordID)
		if err != nil {
			return err
		}
		bankKey, bookKey := "B"+p.BankRecordID, "K"+p.BookRecordID
		if s.bank[bi].MatchStatus != domain.StatusUnmatched || claimed[bankKey] {
			busy = append(busy, p.BankRecordID)
		}
		if s.book[ki].MatchStatus != domain.StatusUnmatched || claimed[bookKey] {
			busy = append(busy, p.BookRecordID)
		}
		claimed[bankKey], claimed[bookKey] = true, true
		plan = append(plan, resolved{bank: bi, book: ki})
	}
	if len(busy) > 0 {
		return &apperrors.AlreadyPairedError{RecordIDs: busy}
	}

	for i, p := range proposals {
		rule := p.Rule
		if rule == "" {
			rule = domain.RuleManual
		}
		s.link(plan[i].bank, plan[i].book, rule, clampConfidence(p.Confidence))
	}
	s.touch(operatorID)
	return nil
}

// ManualPair pairs two UNMATCHED records chosen by an operator. Equal amounts give a MATCHED pair,
// anything else a DISCREPANCY with the delta recorded.
func (s *Session) ManualPair(bankID, bookID, operatorID string) (domain.MatchPair, error) {
	if err := s.ensureOpen(); err != nil {
		return domain.MatchPair{}, err
	}
	bi, ki, err := s.lookupPairRecords(bankID, bookID)
	if err != nil {
		return domain.MatchPair{}, err
	}
	var busy []string
	if s.bank[bi].MatchStatus != domain.StatusUnmatched {
		busy = append(busy, bankID)
	}
	if s.book[ki].MatchStatus != domain.StatusUnmatched {
		busy = append(busy, bookID)
	}
	if len(busy) > 0 {
		return domain.MatchPair{}, &apperrors.AlreadyPairedError{RecordIDs: busy}
	}

	pair := s.link(bi, ki, domain.RuleManual, confidenceExact)
	s.touch(operatorID)
	return clonePair(*pair), nil
}

// Unpair removes a pair and returns both records to UNMATCHED.
func (s *Session) Unpair(pairID, operatorID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	i, ok := s.pairIdx[pairID]
	if !ok {
		return &apperrors.PairNotFoundError{PairID: pairID}
	}
	p := s.pairs[i]
	s.setRecordState(p.BankRecordID, p.BookRecordID, domain.StatusUnmatched, true)

	s.pairs = append(s.pairs[:i], s.pairs[i+1:]...)
	delete(s.pairIdx, pairID)
	for j := i; j < len(s.pairs); j++ {
		s.pairIdx[s.pairs[j].PairID] = j
	}
	s.touch(operatorID)
	return nil
}

// Stats derives the read-only summary of the session.
func (s *Session) Stats() domain.ReconciliationStats {
	st := domain.ReconciliationStats{
		UnmatchedBankAmount:   decimal.Zero,
		UnmatchedBookAmount:   decimal.Zero,
		TotalDiscrepancyDelta: decimal.Zero,
	}
	var unmatchedBank, unmatchedBook []domain.TransactionRecord
	count := func(records []domain.TransactionRecord, unmatched *[]domain.TransactionRecord) {
		for _, r := range records {
			st.TotalRecords++
			switch r.MatchStatus {
			case domain.StatusMatched:
				st.MatchedRecords++
			case domain.StatusDiscrepancy:
				st.DiscrepancyRecords++
			default:
				st.UnmatchedRecords++
				*unmatched = append(*unmatched, r)
			}
		}
	}
	count(s.bank, &unmatchedBank)
	count(s.book, &unmatchedBook)

	st.UnmatchedBankCount = len(unmatchedBank)
	st.UnmatchedBookCount = len(unmatchedBook)
	st.UnmatchedBankAmount = accounting.SumAmounts(unmatchedBank)
	st.UnmatchedBookAmount = accounting.SumAmounts(unmatchedBook)
	st.MatchRatePercent = accounting.MatchRatePercent(st.MatchedRecords, st.TotalRecords)

	st.TotalPairs = len(s.pairs)
	for _, p := range s.pairs {
		if p.Resolution != nil {
			switch *p.Resolution {
			case domain.ResolutionAccepted:
				st.AcceptedPairs++
			case domain.ResolutionAdjusted:
				st.AdjustedPairs++
			case domain.ResolutionEscalated:
				st.EscalatedPairs++
			}
		}
		if p.Status == domain.StatusDiscrepancy {
			st.TotalDiscrepancyDelta = st.TotalDiscrepancyDelta.Add(p.AmountDelta)
			if p.Resolution == nil {
				st.UnresolvedDiscrepancies++
			}
		}
	}
	st.OutstandingItems = st.UnmatchedRecords + st.UnresolvedDiscrepancies

	figures := accounting.ReconcileBalances(s.closingBalanceStatement, s.closingBalanceBook, st.UnmatchedBankAmount, st.UnmatchedBookAmount)
	st.BalanceDifference = figures.BalanceDifference
	st.AdjustedBookBalance = figures.AdjustedBookBalance
	st.AdjustedStatementBalance = figures.AdjustedStatementBalance
	st.UnexplainedDifference = figures.UnexplainedDifference
	return st
}

// Confirm closes the session. It fails while any record is UNMATCHED or any discrepancy lacks a resolution.
func (s *Session) Confirm(operatorID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	var unmatched, unresolved []string
	for _, records := range [][]domain.TransactionRecord{s.bank, s.book} {
		for _, r := range records {
			if r.MatchStatus == domain.StatusUnmatched {
				unmatched = append(unmatched, r.ID)
			}
		}
	}
	for _, p := range s.pairs {
		if !p.IsResolved() {
			unresolved = append(unresolved, p.PairID)
		}
	}
	if len(unmatched) > 0 || len(unresolved) > 0 {
		sort.Strings(unresolved)
		return &apperrors.UnresolvedItemsError{UnmatchedRecordIDs: unmatched, UnresolvedPairIDs: unresolved}
	}

	now := s.now().UTC()
	s.status = domain.SessionConfirmed
	s.confirmedAt = &now
	s.confirmedBy = operatorID
	s.touch(operatorID)
	return nil
}

func (s *Session) ensureOpen() error {
	if s.status == domain.SessionConfirmed {
		return &apperrors.SessionClosedError{SessionID: s.id}
	}
	return nil
}

func (s *Session) lookupPairRecords(bankID, bookID string) (int, int, error) {
	bi, ok := s.bankIdx[bankID]
	if !ok {
		return 0, 0, &apperrors.UnknownRecordError{RecordID: bankID, Source: string(domain.SourceBank)}
	}
	ki, ok := s.bookIdx[bookID]
	if !ok {
		return 0, 0, &apperrors.UnknownRecordError{RecordID: bookID, Source: string(domain.SourceBook)}
	}
	return bi, ki, nil
}

// link creates the pair between two validated UNMATCHED records and updates both records.
func (s *Session) link(bi, ki int, rule domain.MatchRule, confidence float64) *domain.MatchPair {
	b, k := s.bank[bi], s.book[ki]
	delta := b.Amount.Sub(k.Amount)
	status := domain.StatusMatched
	if !delta.IsZero() {
		status = domain.StatusDiscrepancy
	}
	s.pairIdx[PairID(b.ID, k.ID)] = len(s.pairs)
	s.pairs = append(s.pairs, domain.MatchPair{
		PairID:       PairID(b.ID, k.ID),
		BankRecordID: b.ID,
		BookRecordID: k.ID,
		Rule:         rule,
		Status:       status,
		BankAmount:   b.Amount,
		BookAmount:   k.Amount,
		AmountDelta:  delta,
		Confidence:   confidence,
	})
	s.setRecordState(b.ID, k.ID, status, false)
	return &s.pairs[len(s.pairs)-1]
}

func (s *Session) setRecordState(bankID, bookID string, status domain.MatchStatus, clear bool) {
	b, k := &s.bank[s.bankIdx[bankID]], &s.book[s.bookIdx[bookID]]
	b.MatchStatus, k.MatchStatus = status, status
	if clear {
		b.PairedWith, k.PairedWith = "", ""
		return
	}
	b.PairedWith, k.PairedWith = bookID, bankID
}

func (s *Session) touch(operatorID string) {
	s.audit.LastUpdatedAt = s.now().UTC()
	s.audit.LastUpdatedBy = operatorID
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func clonePair(p domain.MatchPair) domain.MatchPair {
	if p.Resolution != nil {
		r := *p.Resolution
		p.Resolution = &r
	}
	if p.ResolvedAt != nil {
		t := *p.ResolvedAt
		p.ResolvedAt = &t
	}
	if p.Adjustments != nil {
		p.Adjustments = append([]domain.Adjustment(nil), p.Adjustments...)
	}
	return p
}
