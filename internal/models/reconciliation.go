package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationSession is a row of reconciliation_sessions.
type ReconciliationSession struct {
	SessionID               string          `json:"sessionID"`
	AccountID               string          `json:"accountID"`
	PeriodStart             time.Time       `json:"periodStart"`
	PeriodEnd               time.Time       `json:"periodEnd"`
	OpeningBalance          decimal.Decimal `json:"openingBalance"`
	ClosingBalanceStatement decimal.Decimal `json:"closingBalanceStatement"`
	ClosingBalanceBook      decimal.Decimal `json:"closingBalanceBook"`
	Status                  string          `json:"status"`
	ConfirmedAt             *time.Time      `json:"confirmedAt"` // Nullable
	ConfirmedBy             *string         `json:"confirmedBy"` // Nullable
	ArchivedAt              *time.Time      `json:"archivedAt"`  // Nullable, set once handed to the archive
	ArchivedBy              *string         `json:"archivedBy"`  // Nullable
	AuditFields
}

// TransactionRecord is a row of reconciliation_records. Position keeps import order.
type TransactionRecord struct {
	SessionID   string          `json:"sessionID"`
	Source      string          `json:"source"`
	RecordID    string          `json:"recordID"`
	Position    int             `json:"position"`
	TxnDate     time.Time       `json:"txnDate"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalRef string          `json:"externalRef"`
	MatchStatus string          `json:"matchStatus"`
	PairedWith  *string         `json:"pairedWith"` // Nullable
}

// Adjustment is stored inside the adjustments jsonb column of a pair row.
type Adjustment struct {
	Side            string          `json:"side"`
	PreviousAmount  decimal.Decimal `json:"previousAmount"`
	CorrectedAmount decimal.Decimal `json:"correctedAmount"`
	AdjustedBy      string          `json:"adjustedBy"`
	AdjustedAt      time.Time       `json:"adjustedAt"`
}

// MatchPair is a row of reconciliation_pairs.
type MatchPair struct {
	SessionID    string          `json:"sessionID"`
	PairID       string          `json:"pairID"`
	Position     int             `json:"position"`
	BankRecordID string          `json:"bankRecordID"`
	BookRecordID string          `json:"bookRecordID"`
	Rule         string          `json:"rule"`
	Status       string          `json:"status"`
	BankAmount   decimal.Decimal `json:"bankAmount"`
	BookAmount   decimal.Decimal `json:"bookAmount"`
	AmountDelta  decimal.Decimal `json:"amountDelta"`
	Confidence   float64         `json:"confidence"`
	Resolution   *string         `json:"resolution"` // Nullable
	ResolvedBy   *string         `json:"resolvedBy"` // Nullable
	ResolvedAt   *time.Time      `json:"resolvedAt"` // Nullable
	Note         string          `json:"note"`
	Adjustments  []Adjustment    `json:"adjustments"`
}
