package dto

import (
	"time"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
)

// MatcherOverrides lets a caller tune matching for one run. Unset fields fall back to the server defaults.
type MatcherOverrides struct {
	DateToleranceDays   *int   `json:"dateToleranceDays,omitempty" form:"dateToleranceDays" binding:"omitempty,gte=0,lte=366" example:"1"`
	AmountTolerance     string `json:"amountTolerance,omitempty" form:"amountTolerance" binding:"omitempty,numeric" example:"5.00"`
	ToleranceWindowDays *int   `json:"toleranceWindowDays,omitempty" form:"toleranceWindowDays" binding:"omitempty,gte=0,lte=366" example:"3"`
}

// SessionHeader holds the period and balances of a reconciliation. Amounts are decimal strings.
type SessionHeader struct {
	AccountID               string `json:"accountID" form:"accountID" binding:"required,max=100" example:"acct-operating-01"`
	PeriodStart             string `json:"periodStart" form:"periodStart" binding:"required,datetime=2006-01-02" example:"2026-01-01"`
	PeriodEnd               string `json:"periodEnd" form:"periodEnd" binding:"required,datetime=2006-01-02" example:"2026-01-31"`
	OpeningBalance          string `json:"openingBalance" form:"openingBalance" binding:"omitempty,numeric" example:"1000.00"`
	ClosingBalanceStatement string `json:"closingBalanceStatement" form:"closingBalanceStatement" binding:"required,numeric" example:"1150.00"`
	ClosingBalanceBook      string `json:"closingBalanceBook" form:"closingBalanceBook" binding:"required,numeric" example:"1148.00"`
	MatcherOverrides
}

// CreateSessionRequest opens a session from raw rows already parsed by the caller (bank API, ERP export).
type CreateSessionRequest struct {
	SessionHeader
	BankRows []map[string]any `json:"bankRows" binding:"max=50000"`
	BookRows []map[string]any `json:"bookRows" binding:"max=50000"`
}

// ImportSessionForm is the multipart form of the CSV import endpoint; the files travel alongside.
type ImportSessionForm struct {
	SessionHeader
}

// AutoMatchRequest re-runs the matcher over the records that are still unmatched.
type AutoMatchRequest struct {
	MatcherOverrides
}

// ManualPairRequest pairs two records chosen by an operator.
type ManualPairRequest struct {
	BankRecordID string `json:"bankRecordID" binding:"required" example:"B1"`
	BookRecordID string `json:"bookRecordID" binding:"required" example:"K1"`
}

// AdjustPairRequest records a corrected amount on one side of a discrepancy.
type AdjustPairRequest struct {
	CorrectedAmount string `json:"correctedAmount" binding:"required,numeric" example:"48.00"`
	Side            string `json:"side" binding:"required,oneof=BANK BOOK" example:"BANK"`
}

// EscalatePairRequest hands a discrepancy over for follow-up.
type EscalatePairRequest struct {
	Note string `json:"note" binding:"required,max=2000" example:"Bank charged twice, raised with branch"`
}

// ListSessionsParams defines query parameters for listing sessions of an account.
type ListSessionsParams struct {
	AccountID string  `form:"accountID" binding:"required"`
	Limit     int     `form:"limit" binding:"omitempty,min=1,max=100"`
	NextToken *string `form:"nextToken"`
}

// SessionResponse is the full query view of a session.
type SessionResponse struct {
	SessionID               string                      `json:"sessionID"`
	AccountID               string                      `json:"accountID"`
	PeriodStart             string                      `json:"periodStart"`
	PeriodEnd               string                      `json:"periodEnd"`
	OpeningBalance          string                      `json:"openingBalance"`
	ClosingBalanceStatement string                      `json:"closingBalanceStatement"`
	ClosingBalanceBook      string                      `json:"closingBalanceBook"`
	Status                  domain.SessionStatus        `json:"status"`
	BankRecords             []domain.TransactionRecord  `json:"bankRecords"`
	BookRecords             []domain.TransactionRecord  `json:"bookRecords"`
	Pairs                   []domain.MatchPair          `json:"pairs"`
	Stats                   domain.ReconciliationStats  `json:"stats"`
	ImportErrors            []*apperrors.ImportRowError `json:"importErrors,omitempty"`
	ConfirmedAt             *time.Time                  `json:"confirmedAt,omitempty"`
	ConfirmedBy             string                      `json:"confirmedBy,omitempty"`
	CreatedAt               time.Time                   `json:"createdAt"`
	CreatedBy               string                      `json:"createdBy"`
	LastUpdatedAt           time.Time                   `json:"lastUpdatedAt"`
	LastUpdatedBy           string                      `json:"lastUpdatedBy"`
	Version                 int64                       `json:"version"`
}

// SessionSummary is the list view of a session.
type SessionSummary struct {
	SessionID     string               `json:"sessionID"`
	AccountID     string               `json:"accountID"`
	PeriodStart   string               `json:"periodStart"`
	PeriodEnd     string               `json:"periodEnd"`
	Status        domain.SessionStatus `json:"status"`
	ConfirmedAt   *time.Time           `json:"confirmedAt,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	CreatedBy     string               `json:"createdBy"`
	LastUpdatedAt time.Time            `json:"lastUpdatedAt"`
}

// ListSessionsResponse wraps a page of sessions.
type ListSessionsResponse struct {
	Sessions  []SessionSummary `json:"sessions"`
	NextToken *string          `json:"nextToken,omitempty"`
}

// ToSessionResponse builds the query view from a snapshot and its derived stats.
func ToSessionResponse(s domain.ReconciliationSession, stats domain.ReconciliationStats, importErrors []*apperrors.ImportRowError) SessionResponse {
	return SessionResponse{
		SessionID:               s.SessionID,
		AccountID:               s.AccountID,
		PeriodStart:             s.PeriodStart.Format(time.DateOnly),
		PeriodEnd:               s.PeriodEnd.Format(time.DateOnly),
		OpeningBalance:          s.OpeningBalance.StringFixed(2),
		ClosingBalanceStatement: s.ClosingBalanceStatement.StringFixed(2),
		ClosingBalanceBook:      s.ClosingBalanceBook.StringFixed(2),
		Status:                  s.Status,
		BankRecords:             s.BankRecords,
		BookRecords:             s.BookRecords,
		Pairs:                   s.Pairs,
		Stats:                   stats,
		ImportErrors:            importErrors,
		ConfirmedAt:             s.ConfirmedAt,
		ConfirmedBy:             s.ConfirmedBy,
		CreatedAt:               s.CreatedAt,
		CreatedBy:               s.CreatedBy,
		LastUpdatedAt:           s.LastUpdatedAt,
		LastUpdatedBy:           s.LastUpdatedBy,
		Version:                 s.Version,
	}
}

// ToSessionSummary builds the list view of a session.
func ToSessionSummary(s domain.ReconciliationSession) SessionSummary {
	return SessionSummary{
		SessionID:     s.SessionID,
		AccountID:     s.AccountID,
		PeriodStart:   s.PeriodStart.Format(time.DateOnly),
		PeriodEnd:     s.PeriodEnd.Format(time.DateOnly),
		Status:        s.Status,
		ConfirmedAt:   s.ConfirmedAt,
		CreatedAt:     s.CreatedAt,
		CreatedBy:     s.CreatedBy,
		LastUpdatedAt: s.LastUpdatedAt,
	}
}

// ToListSessionsResponse converts a page of sessions.
func ToListSessionsResponse(sessions []domain.ReconciliationSession, nextToken *string) ListSessionsResponse {
	list := make([]SessionSummary, len(sessions))
	for i, s := range sessions {
		list[i] = ToSessionSummary(s)
	}
	return ListSessionsResponse{Sessions: list, NextToken: nextToken}
}
