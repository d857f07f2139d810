package reconcile

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/accounting"
)

// utf8BOM is prepended to the header by spreadsheet "CSV UTF-8" exports.
const utf8BOM = "\ufeff"

// RawRow is one imported line as delivered by a file upload or bank API:
// heterogeneous field names mapped to string or numeric values.
type RawRow map[string]any

// ImportResult holds the normalized records of one source and the rows that were rejected.
type ImportResult struct {
	Records []domain.TransactionRecord
	Errors  []*apperrors.ImportRowError
}

// Field aliases, compared after canonicalKey.
var (
	idAliases          = []string{"id", "transaction_id", "trx_id", "txn_id", "reference_id", "entry_id"}
	dateAliases        = []string{"date", "transaction_date", "txn_date", "value_date", "posting_date", "booking_date"}
	descriptionAliases = []string{"description", "narration", "memo", "details", "particulars", "payee"}
	amountAliases      = []string{"amount", "value", "net_amount"}
	debitAliases       = []string{"debit", "withdrawal", "withdrawals", "dr_amount"}
	creditAliases      = []string{"credit", "deposit", "deposits", "cr_amount"}
	typeAliases        = []string{"type", "dr_cr", "direction", "transaction_type"}
	refAliases         = []string{"external_ref", "ref", "reference", "ref_no", "cheque_no", "check_number", "invoice_no", "invoice_number"}
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"20060102",
}

// NormalizeRows converts raw rows of one source into TransactionRecords.
// Rows with an unparsable date or amount, or a duplicate id, are reported in ImportResult.Errors
// and left out of Records; the remaining rows are still imported.
func NormalizeRows(source domain.RecordSource, rows []RawRow) ImportResult {
	result := ImportResult{Records: make([]domain.TransactionRecord, 0, len(rows))}
	seen := make(map[string]int, len(rows))

	for i, raw := range rows {
		rowNum := i + 1
		rec, rowErr := normalizeRow(source, rowNum, raw)
		if rowErr != nil {
			result.Errors = append(result.Errors, rowErr)
			continue
		}
		if first, dup := seen[rec.ID]; dup {
			result.Errors = append(result.Errors, &apperrors.ImportRowError{
				Source: string(source),
				Row:    rowNum,
				Field:  "id",
				Reason: fmt.Sprintf("duplicate id %q, first seen on row %d", rec.ID, first),
			})
			continue
		}
		seen[rec.ID] = rowNum
		result.Records = append(result.Records, rec)
	}
	return result
}

// ParseCSV reads a CSV export with a header row and normalizes its data rows.
// Only a malformed CSV stream fails the whole call; bad rows end up in ImportResult.Errors.
func ParseCSV(r io.Reader, source domain.RecordSource) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: reading %s CSV: %v", apperrors.ErrValidation, strings.ToLower(string(source)), err)
	}
	if len(records) == 0 {
		return ImportResult{}, fmt.Errorf("%w: %s CSV has no header row", apperrors.ErrValidation, strings.ToLower(string(source)))
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	rows := make([]RawRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlankLine(rec) {
			continue
		}
		row := make(RawRow, len(header))
		for col, name := range header {
			if col < len(rec) {
				row[name] = rec[col]
			}
		}
		rows = append(rows, row)
	}
	return NormalizeRows(source, rows), nil
}

func isBlankLine(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func normalizeRow(source domain.RecordSource, rowNum int, raw RawRow) (domain.TransactionRecord, *apperrors.ImportRowError) {
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[canonicalKey(k)] = stringify(v)
	}
	rowErr := func(field, reason string) *apperrors.ImportRowError {
		return &apperrors.ImportRowError{Source: string(source), Row: rowNum, Field: field, Reason: reason}
	}

	dateStr := lookup(fields, dateAliases)
	if dateStr == "" {
		return domain.TransactionRecord{}, rowErr("date", "missing")
	}
	date, err := parseDate(dateStr)
	if err != nil {
		return domain.TransactionRecord{}, rowErr("date", err.Error())
	}

	amount, field, err := resolveAmount(fields)
	if err != nil {
		return domain.TransactionRecord{}, rowErr(field, err.Error())
	}

	id := strings.TrimSpace(lookup(fields, idAliases))
	if id == "" {
		id = fmt.Sprintf("%s-%d", source, rowNum)
	}

	return domain.TransactionRecord{
		ID:          id,
		Source:      source,
		Date:        date,
		Description: strings.Join(strings.Fields(lookup(fields, descriptionAliases)), " "),
		Amount:      amount,
		ExternalRef: NormalizeRef(lookup(fields, refAliases)),
		MatchStatus: domain.StatusUnmatched,
	}, nil
}

// NormalizeRef canonicalizes a strong-match reference: trimmed, upper-cased, whitespace removed.
func NormalizeRef(ref string) string {
	return strings.ToUpper(strings.Join(strings.Fields(ref), ""))
}

// CivilDate truncates t to midnight UTC of its calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return CivilDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// resolveAmount applies the canonical sign convention: credits positive, debits negative.
// It returns the offending field name alongside any error.
func resolveAmount(fields map[string]string) (decimal.Decimal, string, error) {
	if amountStr := lookup(fields, amountAliases); amountStr != "" {
		amount, err := parseAmount(amountStr)
		if err != nil {
			return decimal.Zero, "amount", err
		}
		if dir := direction(lookup(fields, typeAliases)); dir != "" {
			if amount, err = accounting.SignedAmount(amount, dir); err != nil {
				return decimal.Zero, "type", err
			}
		}
		return amount, "amount", nil
	}

	debitStr, creditStr := lookup(fields, debitAliases), lookup(fields, creditAliases)
	if debitStr == "" && creditStr == "" {
		return decimal.Zero, "amount", errors.New("missing")
	}
	debit, credit := decimal.Zero, decimal.Zero
	var err error
	if debitStr != "" {
		if debit, err = parseAmount(debitStr); err != nil {
			return decimal.Zero, "debit", err
		}
	}
	if creditStr != "" {
		if credit, err = parseAmount(creditStr); err != nil {
			return decimal.Zero, "credit", err
		}
	}
	amount := credit.Abs().Sub(debit.Abs())
	if err := accounting.CheckAmount(amount); err != nil {
		return decimal.Zero, "amount", err
	}
	return amount, "amount", nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "("), ")")
	}
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '$', '€', '£', '₹', '¥':
			return -1
		}
		return r
	}, cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("unparsable amount %q", s)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable amount %q", s)
	}
	if err := accounting.CheckAmount(amount); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", err, s)
	}
	if negative {
		amount = amount.Abs().Neg()
	}
	return amount, nil
}

func direction(s string) domain.TransactionType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBIT", "DR", "D", "WITHDRAWAL":
		return domain.Debit
	case "CREDIT", "CR", "C", "DEPOSIT":
		return domain.Credit
	}
	return ""
}

func lookup(fields map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if v, ok := fields[alias]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(k, utf8BOM)))
	return strings.NewReplacer(" ", "_", "-", "_", ".", "", "#", "no").Replace(k)
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return decimal.NewFromFloat(val).String()
	case float32:
		return decimal.NewFromFloat32(val).String()
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case decimal.Decimal:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
