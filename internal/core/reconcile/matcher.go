package reconcile

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/accounting"
)

const (
	confidenceExact         = 1.0
	confidenceAmountDate    = 0.8
	confidenceToleranceHigh = 0.6
	confidenceToleranceLow  = 0.2
)

// pairNamespace seeds deterministic pair ids so re-running the matcher yields identical pairs.
var pairNamespace = uuid.MustParse("6f1c9d1e-3b0a-4a51-9c55-2f0c8f3f6a10")

var validate = validator.New()

// MatcherConfig tunes the second and third matching passes.
type MatcherConfig struct {
	// DateToleranceDays is the allowed date distance for the amount+date pass.
	DateToleranceDays int `json:"dateToleranceDays" validate:"gte=0,lte=366"`
	// AmountTolerance is the largest absolute amount difference accepted by the tolerance pass.
	AmountTolerance decimal.Decimal `json:"amountTolerance"`
	// ToleranceWindowDays is the allowed date distance for the tolerance pass.
	ToleranceWindowDays int `json:"toleranceWindowDays" validate:"gte=0,lte=366"`
}

// DefaultMatcherConfig returns same-day amount+date matching, exact amounts and a three day window.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		DateToleranceDays:   0,
		AmountTolerance:     decimal.Zero,
		ToleranceWindowDays: 3,
	}
}

// Validate reports the first invalid field as a *apperrors.ConfigurationError.
func (c MatcherConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &apperrors.ConfigurationError{Field: fe.Field(), Reason: fmt.Sprintf("must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value())}
		}
		return &apperrors.ConfigurationError{Field: "config", Reason: err.Error()}
	}
	if c.AmountTolerance.IsNegative() {
		return &apperrors.ConfigurationError{Field: "AmountTolerance", Reason: fmt.Sprintf("must not be negative, got %s", c.AmountTolerance)}
	}
	if err := accounting.CheckAmount(c.AmountTolerance); err != nil {
		return &apperrors.ConfigurationError{Field: "AmountTolerance", Reason: err.Error()}
	}
	return nil
}

// PairID derives the stable id of the pair between a bank and a book record.
func PairID(bankID, bookID string) string {
	return uuid.NewSHA1(pairNamespace, []byte(bankID+"\x00"+bookID)).String()
}

type candidate struct {
	bank, book *domain.TransactionRecord
	dateDiff   int
	amountDiff decimal.Decimal
}

// Match proposes pairs between UNMATCHED bank and book records in three passes of decreasing confidence:
// exact (amount, date and reference), amount+date within DateToleranceDays when the references
// are absent or differ, and amount within
// AmountTolerance inside ToleranceWindowDays. Records that are not UNMATCHED are ignored.
//
// Match has no side effects; the same inputs and configuration always produce the same pairs in the same order.
func Match(bankRecords, bookRecords []domain.TransactionRecord, cfg MatcherConfig) ([]domain.MatchPair, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bank := unmatchedSorted(bankRecords, domain.SourceBank)
	book := unmatchedSorted(bookRecords, domain.SourceBook)
	pairedBank := make(map[string]bool, len(bank))
	pairedBook := make(map[string]bool, len(book))

	pairs := exactPass(bank, book, pairedBank, pairedBook)

	pairs = append(pairs, greedyPass(bank, book, pairedBank, pairedBook, func(b, k *domain.TransactionRecord, dateDiff int) bool {
		return dateDiff <= cfg.DateToleranceDays && b.Amount.Equal(k.Amount) && !sharesRef(b, k)
	}, func(c candidate) domain.MatchPair {
		return newPair(c, domain.RuleAmountDate, confidenceAmountDate)
	})...)

	pairs = append(pairs, greedyPass(bank, book, pairedBank, pairedBook, func(b, k *domain.TransactionRecord, dateDiff int) bool {
		return dateDiff <= cfg.ToleranceWindowDays && b.Amount.Sub(k.Amount).Abs().LessThanOrEqual(cfg.AmountTolerance)
	}, func(c candidate) domain.MatchPair {
		return newPair(c, domain.RuleTolerance, toleranceConfidence(c.amountDiff, cfg.AmountTolerance))
	})...)

	return pairs, nil
}

// exactPass pairs records sharing amount, date and a non-empty reference, but only when the
// pairing is unambiguous on both sides. Ambiguous groups are left for the later passes.
func exactPass(bank, book []*domain.TransactionRecord, pairedBank, pairedBook map[string]bool) []domain.MatchPair {
	qualifies := func(b, k *domain.TransactionRecord) bool {
		return b.ExternalRef != "" && b.ExternalRef == k.ExternalRef &&
			b.Amount.Equal(k.Amount) && b.Date.Equal(k.Date)
	}

	var pairs []domain.MatchPair
	for _, b := range bank {
		if b.ExternalRef == "" {
			continue
		}
		var match *domain.TransactionRecord
		count := 0
		for _, k := range book {
			if !pairedBook[k.ID] && qualifies(b, k) {
				match = k
				count++
			}
		}
		if count != 1 {
			continue
		}
		rivals := 0
		for _, other := range bank {
			if !pairedBank[other.ID] && qualifies(other, match) {
				rivals++
			}
		}
		if rivals != 1 {
			continue
		}
		pairedBank[b.ID] = true
		pairedBook[match.ID] = true
		pairs = append(pairs, newPair(candidate{bank: b, book: match, amountDiff: decimal.Zero}, domain.RuleExact, confidenceExact))
	}
	return pairs
}

// sharesRef reports whether both records carry the same non-empty reference.
// The amount+date pass leaves such pairs to the later passes.
func sharesRef(b, k *domain.TransactionRecord) bool {
	return b.ExternalRef != "" && b.ExternalRef == k.ExternalRef
}

// greedyPass collects every qualifying (bank, book) combination among the still unpaired records,
// orders them by the tie-break rule and takes them best first, skipping records already used.
func greedyPass(
	bank, book []*domain.TransactionRecord,
	pairedBank, pairedBook map[string]bool,
	qualifies func(b, k *domain.TransactionRecord, dateDiff int) bool,
	build func(candidate) domain.MatchPair,
) []domain.MatchPair {
	var candidates []candidate
	for _, b := range bank {
		if pairedBank[b.ID] {
			continue
		}
		for _, k := range book {
			if pairedBook[k.ID] {
				continue
			}
			dd := dayDistance(b, k)
			if qualifies(b, k, dd) {
				candidates = append(candidates, candidate{bank: b, book: k, dateDiff: dd, amountDiff: b.Amount.Sub(k.Amount).Abs()})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.dateDiff != cj.dateDiff {
			return ci.dateDiff < cj.dateDiff
		}
		if c := ci.amountDiff.Cmp(cj.amountDiff); c != 0 {
			return c < 0
		}
		if ci.bank.ID != cj.bank.ID {
			return ci.bank.ID < cj.bank.ID
		}
		return ci.book.ID < cj.book.ID
	})

	var pairs []domain.MatchPair
	for _, c := range candidates {
		if pairedBank[c.bank.ID] || pairedBook[c.book.ID] {
			continue
		}
		pairedBank[c.bank.ID] = true
		pairedBook[c.book.ID] = true
		pairs = append(pairs, build(c))
	}
	return pairs
}

func newPair(c candidate, rule domain.MatchRule, confidence float64) domain.MatchPair {
	delta := c.bank.Amount.Sub(c.book.Amount)
	status := domain.StatusMatched
	if !delta.IsZero() {
		status = domain.StatusDiscrepancy
	}
	return domain.MatchPair{
		PairID:       PairID(c.bank.ID, c.book.ID),
		BankRecordID: c.bank.ID,
		BookRecordID: c.book.ID,
		Rule:         rule,
		Status:       status,
		BankAmount:   c.bank.Amount,
		BookAmount:   c.book.Amount,
		AmountDelta:  delta,
		Confidence:   confidence,
	}
}

// toleranceConfidence scales linearly from 0.6 at a zero delta down to 0.2 at the tolerance limit.
func toleranceConfidence(absDelta, tolerance decimal.Decimal) float64 {
	if absDelta.IsZero() || tolerance.IsZero() {
		return confidenceToleranceHigh
	}
	ratio := absDelta.Div(tolerance).InexactFloat64()
	score := confidenceToleranceHigh - (confidenceToleranceHigh-confidenceToleranceLow)*ratio
	return math.Round(score*10000) / 10000
}

func dayDistance(a, b *domain.TransactionRecord) int {
	hours := CivilDate(a.Date).Sub(CivilDate(b.Date)).Hours()
	return int(math.Abs(math.Round(hours / 24)))
}

func unmatchedSorted(records []domain.TransactionRecord, source domain.RecordSource) []*domain.TransactionRecord {
	out := make([]*domain.TransactionRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		if r.Source != source || r.MatchStatus != domain.StatusUnmatched {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
