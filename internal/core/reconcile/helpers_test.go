package reconcile_test

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
)

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func bankRec(id, amount string, d int, ref string) domain.TransactionRecord {
	return domain.TransactionRecord{
		ID:          id,
		Source:      domain.SourceBank,
		Date:        day(d),
		Amount:      decimal.RequireFromString(amount),
		ExternalRef: ref,
		MatchStatus: domain.StatusUnmatched,
	}
}

func bookRec(id, amount string, d int, ref string) domain.TransactionRecord {
	r := bankRec(id, amount, d, ref)
	r.Source = domain.SourceBook
	return r
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
