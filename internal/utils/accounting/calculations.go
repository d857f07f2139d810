package accounting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
)

// AmountScale is the number of decimal places amounts are stored with.
const AmountScale = 4

// Stored amounts are NUMERIC(20, 4): at most 16 integer digits.
const (
	maxAmountExponent = 16
	minAmountExponent = -18
)

var (
	maxAmount = decimal.New(1, maxAmountExponent)

	ErrAmountOutOfRange = errors.New("amount is out of range")
	ErrAmountTooPrecise = fmt.Errorf("amount has more than %d decimal places", AmountScale)
)

// CheckAmount rejects amounts that cannot be stored exactly.
// The exponent is checked before any arithmetic so extreme inputs are cheap to refuse.
func CheckAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < minAmountExponent {
		return ErrAmountOutOfRange
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return ErrAmountTooPrecise
	}
	if amount.Abs().Cmp(maxAmount) >= 0 {
		return ErrAmountOutOfRange
	}
	return nil
}

// SignedAmount applies the canonical sign convention to an unsigned amount:
// credits are positive, debits are negative.
func SignedAmount(amount decimal.Decimal, txnType domain.TransactionType) (decimal.Decimal, error) {
	switch txnType {
	case domain.Credit:
		return amount.Abs(), nil
	case domain.Debit:
		return amount.Abs().Neg(), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown transaction type '%s'", txnType)
	}
}

// SumAmounts adds up the amounts of the given records.
func SumAmounts(records []domain.TransactionRecord) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range records {
		sum = sum.Add(r.Amount)
	}
	return sum
}

// MatchRatePercent returns matched/total*100, or 0 for an empty session.
func MatchRatePercent(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

// BalanceFigures is the classic bank reconciliation statement.
type BalanceFigures struct {
	BalanceDifference        decimal.Decimal
	AdjustedBookBalance      decimal.Decimal
	AdjustedStatementBalance decimal.Decimal
	UnexplainedDifference    decimal.Decimal
}

// ReconcileBalances brings both closing balances forward by the items only one side has seen.
// Unmatched bank lines (fees, interest, direct credits) are not yet in the books; unmatched
// book lines (outstanding cheques, deposits in transit) are not yet on the statement.
// A fully explained period ends with a zero UnexplainedDifference.
func ReconcileBalances(closingStatement, closingBook, unmatchedBank, unmatchedBook decimal.Decimal) BalanceFigures {
	adjustedBook := closingBook.Add(unmatchedBank)
	adjustedStatement := closingStatement.Add(unmatchedBook)
	return BalanceFigures{
		BalanceDifference:        closingStatement.Sub(closingBook),
		AdjustedBookBalance:      adjustedBook,
		AdjustedStatementBalance: adjustedStatement,
		UnexplainedDifference:    adjustedStatement.Sub(adjustedBook),
	}
}
