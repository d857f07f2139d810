package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordSource tells which side of a reconciliation a record was imported from.
type RecordSource string

const (
	SourceBank RecordSource = "BANK" // Line from the bank statement
	SourceBook RecordSource = "BOOK" // Line from the organization's own ledger
)

// Opposite returns the other side of the reconciliation.
func (s RecordSource) Opposite() RecordSource {
	if s == SourceBank {
		return SourceBook
	}
	return SourceBank
}

// IsValid reports whether s is one of the known sources.
func (s RecordSource) IsValid() bool {
	return s == SourceBank || s == SourceBook
}

// MatchStatus is the pairing state of a record or a pair.
type MatchStatus string

const (
	StatusUnmatched   MatchStatus = "UNMATCHED"
	StatusMatched     MatchStatus = "MATCHED"
	StatusDiscrepancy MatchStatus = "DISCREPANCY"
)

// Resolution records how an operator handled a discrepancy pair.
type Resolution string

const (
	ResolutionAccepted  Resolution = "ACCEPTED"
	ResolutionAdjusted  Resolution = "ADJUSTED"
	ResolutionEscalated Resolution = "ESCALATED"
)

// SessionStatus is the lifecycle state of a reconciliation session.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "OPEN"
	SessionConfirmed SessionStatus = "CONFIRMED"
)

// MatchRule identifies which rule produced a pair.
type MatchRule string

const (
	RuleExact      MatchRule = "EXACT"
	RuleAmountDate MatchRule = "AMOUNT_DATE"
	RuleTolerance  MatchRule = "TOLERANCE"
	RuleManual     MatchRule = "MANUAL"
)

// TransactionRecord is one normalized ledger line from either the bank statement or the books.
// Amounts are signed: credits positive, debits negative.
type TransactionRecord struct {
	ID          string          `json:"id"`
	Source      RecordSource    `json:"source"`
	Date        time.Time       `json:"date"` // Civil date, midnight UTC
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"externalRef,omitempty"` // Cheque number, wire ref, invoice number
	MatchStatus MatchStatus     `json:"matchStatus"`
	PairedWith  string          `json:"pairedWith,omitempty"` // ID of the record on the other side, empty when unmatched
}

// IsPaired reports whether the record currently belongs to a pair.
func (r TransactionRecord) IsPaired() bool {
	return r.PairedWith != ""
}

// Adjustment captures one operator correction of a pair's amount on one side.
type Adjustment struct {
	Side            RecordSource    `json:"side"`
	PreviousAmount  decimal.Decimal `json:"previousAmount"`
	CorrectedAmount decimal.Decimal `json:"correctedAmount"`
	AdjustedBy      string          `json:"adjustedBy"`
	AdjustedAt      time.Time       `json:"adjustedAt"`
}

// MatchPair associates one bank record with one book record.
// BankAmount and BookAmount start as the records' imported amounts and change only through adjustments.
type MatchPair struct {
	PairID       string          `json:"pairID"`
	BankRecordID string          `json:"bankRecordID"`
	BookRecordID string          `json:"bookRecordID"`
	Rule         MatchRule       `json:"rule"`
	Status       MatchStatus     `json:"status"`
	BankAmount   decimal.Decimal `json:"bankAmount"`
	BookAmount   decimal.Decimal `json:"bookAmount"`
	AmountDelta  decimal.Decimal `json:"amountDelta"` // BankAmount - BookAmount
	Confidence   float64         `json:"confidence"`
	Resolution   *Resolution     `json:"resolution,omitempty"`
	ResolvedBy   string          `json:"resolvedBy,omitempty"`
	ResolvedAt   *time.Time      `json:"resolvedAt,omitempty"`
	Note         string          `json:"note,omitempty"`
	Adjustments  []Adjustment    `json:"adjustments,omitempty"`
}

// IsResolved reports whether the pair no longer blocks confirmation.
func (p MatchPair) IsResolved() bool {
	return p.Status != StatusDiscrepancy || p.Resolution != nil
}

// ReconciliationSession is a point-in-time snapshot of one reconciliation.
// It is the shape exchanged with persistence and the API layer; mutations go through reconcile.Session.
type ReconciliationSession struct {
	SessionID               string              `json:"sessionID"`
	AccountID               string              `json:"accountID"`
	PeriodStart             time.Time           `json:"periodStart"`
	PeriodEnd               time.Time           `json:"periodEnd"`
	OpeningBalance          decimal.Decimal     `json:"openingBalance"`
	ClosingBalanceStatement decimal.Decimal     `json:"closingBalanceStatement"`
	ClosingBalanceBook      decimal.Decimal     `json:"closingBalanceBook"`
	Status                  SessionStatus       `json:"status"`
	BankRecords             []TransactionRecord `json:"bankRecords"`
	BookRecords             []TransactionRecord `json:"bookRecords"`
	Pairs                   []MatchPair         `json:"pairs"`
	ConfirmedAt             *time.Time          `json:"confirmedAt,omitempty"`
	ConfirmedBy             string              `json:"confirmedBy,omitempty"`
	AuditFields
}

// ReconciliationStats is the derived, read-only summary of a session.
type ReconciliationStats struct {
	TotalRecords             int             `json:"totalRecords"`
	MatchedRecords           int             `json:"matchedRecords"`
	UnmatchedRecords         int             `json:"unmatchedRecords"`
	DiscrepancyRecords       int             `json:"discrepancyRecords"`
	UnmatchedBankCount       int             `json:"unmatchedBankCount"`
	UnmatchedBookCount       int             `json:"unmatchedBookCount"`
	UnmatchedBankAmount      decimal.Decimal `json:"unmatchedBankAmount"`
	UnmatchedBookAmount      decimal.Decimal `json:"unmatchedBookAmount"`
	MatchRatePercent         float64         `json:"matchRatePercent"`
	TotalPairs               int             `json:"totalPairs"`
	AcceptedPairs            int             `json:"acceptedPairs"`
	AdjustedPairs            int             `json:"adjustedPairs"`
	EscalatedPairs           int             `json:"escalatedPairs"`
	UnresolvedDiscrepancies  int             `json:"unresolvedDiscrepancies"`
	OutstandingItems         int             `json:"outstandingItems"`
	TotalDiscrepancyDelta    decimal.Decimal `json:"totalDiscrepancyDelta"`
	BalanceDifference        decimal.Decimal `json:"balanceDifference"`        // Statement closing - book closing
	AdjustedBookBalance      decimal.Decimal `json:"adjustedBookBalance"`      // Book closing + unmatched bank items
	AdjustedStatementBalance decimal.Decimal `json:"adjustedStatementBalance"` // Statement closing + unmatched book items
	UnexplainedDifference    decimal.Decimal `json:"unexplainedDifference"`    // AdjustedStatementBalance - AdjustedBookBalance
}
