package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/accounting"
)

// Accept acknowledges a discrepancy as is. The pair stays DISCREPANCY but no longer blocks Confirm.
func (s *Session) Accept(pairID, operatorID string) (domain.MatchPair, error) {
	p, err := s.discrepancy(pairID)
	if err != nil {
		return domain.MatchPair{}, err
	}
	s.resolve(p, domain.ResolutionAccepted, operatorID)
	return clonePair(*p), nil
}

// Adjust records that one side of a discrepancy was corrected to correctedAmount and recomputes the delta.
// A zero delta upgrades the pair and both records to MATCHED; otherwise the pair stays DISCREPANCY.
// Either way the resolution is ADJUSTED. Imported record amounts are left untouched.
func (s *Session) Adjust(pairID string, correctedAmount decimal.Decimal, side domain.RecordSource, operatorID string) (domain.MatchPair, error) {
	if !side.IsValid() {
		return domain.MatchPair{}, fmt.Errorf("%w: side must be BANK or BOOK, got %q", apperrors.ErrValidation, side)
	}
	if err := accounting.CheckAmount(correctedAmount); err != nil {
		return domain.MatchPair{}, fmt.Errorf("%w: corrected %v", apperrors.ErrValidation, err)
	}
	p, err := s.discrepancy(pairID)
	if err != nil {
		return domain.MatchPair{}, err
	}

	previous := p.BankAmount
	if side == domain.SourceBank {
		p.BankAmount = correctedAmount
	} else {
		previous = p.BookAmount
		p.BookAmount = correctedAmount
	}
	p.AmountDelta = p.BankAmount.Sub(p.BookAmount)
	p.Adjustments = append(p.Adjustments, domain.Adjustment{
		Side:            side,
		PreviousAmount:  previous,
		CorrectedAmount: correctedAmount,
		AdjustedBy:      operatorID,
		AdjustedAt:      s.now().UTC(),
	})

	if p.AmountDelta.IsZero() {
		p.Status = domain.StatusMatched
		s.setRecordState(p.BankRecordID, p.BookRecordID, domain.StatusMatched, false)
	}
	s.resolve(p, domain.ResolutionAdjusted, operatorID)
	return clonePair(*p), nil
}

// Escalate hands a discrepancy to someone else with a note. It counts as resolved for Confirm.
func (s *Session) Escalate(pairID, note, operatorID string) (domain.MatchPair, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return domain.MatchPair{}, fmt.Errorf("%w: escalation note is required", apperrors.ErrValidation)
	}
	p, err := s.discrepancy(pairID)
	if err != nil {
		return domain.MatchPair{}, err
	}
	p.Note = note
	s.resolve(p, domain.ResolutionEscalated, operatorID)
	return clonePair(*p), nil
}

// discrepancy returns the live pair for a resolver action after the common checks.
func (s *Session) discrepancy(pairID string) (*domain.MatchPair, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	i, ok := s.pairIdx[pairID]
	if !ok {
		return nil, &apperrors.PairNotFoundError{PairID: pairID}
	}
	p := &s.pairs[i]
	if p.Status != domain.StatusDiscrepancy {
		return nil, &apperrors.NotDiscrepancyError{PairID: pairID, Status: string(p.Status)}
	}
	return p, nil
}

func (s *Session) resolve(p *domain.MatchPair, res domain.Resolution, operatorID string) {
	now := s.now().UTC()
	p.Resolution = &res
	p.ResolvedBy = operatorID
	p.ResolvedAt = &now
	s.touch(operatorID)
}
