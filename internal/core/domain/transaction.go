package domain

// TransactionType indicates whether a raw statement line is a Debit or a Credit.
// Normalization turns it into the sign of TransactionRecord.Amount.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)
