package mapping

import (
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/models"
)

// ToModelSession converts the session header of a domain snapshot. Records and pairs are mapped separately.
func ToModelSession(d domain.ReconciliationSession) models.ReconciliationSession {
	return models.ReconciliationSession{
		SessionID:               d.SessionID,
		AccountID:               d.AccountID,
		PeriodStart:             d.PeriodStart,
		PeriodEnd:               d.PeriodEnd,
		OpeningBalance:          d.OpeningBalance,
		ClosingBalanceStatement: d.ClosingBalanceStatement,
		ClosingBalanceBook:      d.ClosingBalanceBook,
		Status:                  string(d.Status),
		ConfirmedAt:             d.ConfirmedAt,
		ConfirmedBy:             nullableString(d.ConfirmedBy),
		AuditFields:             ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainSession converts a session row. The caller attaches records and pairs.
func ToDomainSession(m models.ReconciliationSession) domain.ReconciliationSession {
	return domain.ReconciliationSession{
		SessionID:               m.SessionID,
		AccountID:               m.AccountID,
		PeriodStart:             m.PeriodStart,
		PeriodEnd:               m.PeriodEnd,
		OpeningBalance:          m.OpeningBalance,
		ClosingBalanceStatement: m.ClosingBalanceStatement,
		ClosingBalanceBook:      m.ClosingBalanceBook,
		Status:                  domain.SessionStatus(m.Status),
		ConfirmedAt:             m.ConfirmedAt,
		ConfirmedBy:             derefString(m.ConfirmedBy),
		AuditFields:             ToDomainAuditFields(m.AuditFields),
	}
}

func ToModelRecord(sessionID string, position int, d domain.TransactionRecord) models.TransactionRecord {
	return models.TransactionRecord{
		SessionID:   sessionID,
		Source:      string(d.Source),
		RecordID:    d.ID,
		Position:    position,
		TxnDate:     d.Date,
		Description: d.Description,
		Amount:      d.Amount,
		ExternalRef: d.ExternalRef,
		MatchStatus: string(d.MatchStatus),
		PairedWith:  nullableString(d.PairedWith),
	}
}

func ToDomainRecord(m models.TransactionRecord) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:          m.RecordID,
		Source:      domain.RecordSource(m.Source),
		Date:        m.TxnDate,
		Description: m.Description,
		Amount:      m.Amount,
		ExternalRef: m.ExternalRef,
		MatchStatus: domain.MatchStatus(m.MatchStatus),
		PairedWith:  derefString(m.PairedWith),
	}
}

func ToModelPair(sessionID string, position int, d domain.MatchPair) models.MatchPair {
	m := models.MatchPair{
		SessionID:    sessionID,
		PairID:       d.PairID,
		Position:     position,
		BankRecordID: d.BankRecordID,
		BookRecordID: d.BookRecordID,
		Rule:         string(d.Rule),
		Status:       string(d.Status),
		BankAmount:   d.BankAmount,
		BookAmount:   d.BookAmount,
		AmountDelta:  d.AmountDelta,
		Confidence:   d.Confidence,
		ResolvedBy:   nullableString(d.ResolvedBy),
		ResolvedAt:   d.ResolvedAt,
		Note:         d.Note,
		Adjustments:  make([]models.Adjustment, len(d.Adjustments)),
	}
	if d.Resolution != nil {
		r := string(*d.Resolution)
		m.Resolution = &r
	}
	for i, a := range d.Adjustments {
		m.Adjustments[i] = models.Adjustment{
			Side:            string(a.Side),
			PreviousAmount:  a.PreviousAmount,
			CorrectedAmount: a.CorrectedAmount,
			AdjustedBy:      a.AdjustedBy,
			AdjustedAt:      a.AdjustedAt,
		}
	}
	return m
}

func ToDomainPair(m models.MatchPair) domain.MatchPair {
	d := domain.MatchPair{
		PairID:       m.PairID,
		BankRecordID: m.BankRecordID,
		BookRecordID: m.BookRecordID,
		Rule:         domain.MatchRule(m.Rule),
		Status:       domain.MatchStatus(m.Status),
		BankAmount:   m.BankAmount,
		BookAmount:   m.BookAmount,
		AmountDelta:  m.AmountDelta,
		Confidence:   m.Confidence,
		ResolvedBy:   derefString(m.ResolvedBy),
		ResolvedAt:   m.ResolvedAt,
		Note:         m.Note,
	}
	if m.Resolution != nil {
		r := domain.Resolution(*m.Resolution)
		d.Resolution = &r
	}
	if len(m.Adjustments) > 0 {
		d.Adjustments = make([]domain.Adjustment, len(m.Adjustments))
		for i, a := range m.Adjustments {
			d.Adjustments[i] = domain.Adjustment{
				Side:            domain.RecordSource(a.Side),
				PreviousAmount:  a.PreviousAmount,
				CorrectedAmount: a.CorrectedAmount,
				AdjustedBy:      a.AdjustedBy,
				AdjustedAt:      a.AdjustedAt,
			}
		}
	}
	return d
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
