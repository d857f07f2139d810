package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
)

func TestRecordSource(t *testing.T) {
	assert.Equal(t, domain.SourceBook, domain.SourceBank.Opposite())
	assert.Equal(t, domain.SourceBank, domain.SourceBook.Opposite())
	assert.True(t, domain.SourceBank.IsValid())
	assert.True(t, domain.SourceBook.IsValid())
	assert.False(t, domain.RecordSource("bank").IsValid())
	assert.False(t, domain.RecordSource("").IsValid())
}

func TestMatchPair_IsResolved(t *testing.T) {
	accepted := domain.ResolutionAccepted
	tests := []struct {
		name string
		pair domain.MatchPair
		want bool
	}{
		{
			name: "matched pair",
			pair: domain.MatchPair{Status: domain.StatusMatched},
			want: true,
		},
		{
			name: "open discrepancy",
			pair: domain.MatchPair{Status: domain.StatusDiscrepancy},
			want: false,
		},
		{
			name: "accepted discrepancy",
			pair: domain.MatchPair{Status: domain.StatusDiscrepancy, Resolution: &accepted},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pair.IsResolved())
		})
	}
}

func TestTransactionRecord_IsPaired(t *testing.T) {
	assert.False(t, domain.TransactionRecord{ID: "B1"}.IsPaired())
	assert.True(t, domain.TransactionRecord{ID: "B1", PairedWith: "K1"}.IsPaired())
}
