package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	"github.com/SscSPs/accounts_reconciliation/internal/core/reconcile"
)

const cliOperator = "recon_cli"

type matchOptions struct {
	bankPath         string
	bookPath         string
	accountID        string
	periodStart      string
	periodEnd        string
	closingStatement string
	closingBook      string
	dateTolerance    int
	amountTolerance  string
	window           int
	asJSON           bool
}

func newMatchCommand() *cobra.Command {
	var opts matchOptions
	defaults := reconcile.DefaultMatcherConfig()

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a bank statement CSV against a ledger CSV and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.bankPath, "bank", "", "bank statement CSV (required)")
	_ = cmd.MarkFlagRequired("bank")
	cmd.Flags().StringVar(&opts.bookPath, "book", "", "ledger export CSV (required)")
	_ = cmd.MarkFlagRequired("book")
	cmd.Flags().StringVar(&opts.accountID, "account", "cli", "bank account id")
	cmd.Flags().StringVar(&opts.periodStart, "period-start", "", "period start YYYY-MM-DD (default: earliest record date)")
	cmd.Flags().StringVar(&opts.periodEnd, "period-end", "", "period end YYYY-MM-DD (default: latest record date)")
	cmd.Flags().StringVar(&opts.closingStatement, "closing-statement", "0", "closing balance per statement")
	cmd.Flags().StringVar(&opts.closingBook, "closing-book", "0", "closing balance per books")
	cmd.Flags().IntVar(&opts.dateTolerance, "date-tolerance", defaults.DateToleranceDays, "date tolerance in days for the amount+date pass")
	cmd.Flags().StringVar(&opts.amountTolerance, "amount-tolerance", defaults.AmountTolerance.String(), "largest amount difference for the tolerance pass")
	cmd.Flags().IntVar(&opts.window, "window", defaults.ToleranceWindowDays, "date window in days for the tolerance pass")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the session snapshot and stats as JSON")

	return cmd
}

// matchReport is the --json output.
type matchReport struct {
	Session      domain.ReconciliationSession `json:"session"`
	Stats        domain.ReconciliationStats   `json:"stats"`
	ImportErrors []*apperrors.ImportRowError  `json:"importErrors,omitempty"`
}

func runMatch(out io.Writer, opts matchOptions) error {
	amountTolerance, err := decimal.NewFromString(opts.amountTolerance)
	if err != nil {
		return fmt.Errorf("invalid --amount-tolerance %q: %w", opts.amountTolerance, err)
	}
	cfg := reconcile.MatcherConfig{
		DateToleranceDays:   opts.dateTolerance,
		AmountTolerance:     amountTolerance,
		ToleranceWindowDays: opts.window,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	bank, err := readCSV(opts.bankPath, domain.SourceBank)
	if err != nil {
		return err
	}
	book, err := readCSV(opts.bookPath, domain.SourceBook)
	if err != nil {
		return err
	}

	params, err := sessionParams(opts, bank.Records, book.Records)
	if err != nil {
		return err
	}
	session, err := reconcile.NewSession(params)
	if err != nil {
		return err
	}
	proposals, err := reconcile.Match(session.BankRecords(), session.BookRecords(), cfg)
	if err != nil {
		return err
	}
	if err := session.ApplyMatcherProposals(proposals, cliOperator); err != nil {
		return err
	}

	report := matchReport{
		Session:      session.Snapshot(),
		Stats:        session.Stats(),
		ImportErrors: append(bank.Errors, book.Errors...),
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report)
}

func readCSV(path string, source domain.RecordSource) (reconcile.ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return reconcile.ImportResult{}, fmt.Errorf("opening %s file: %w", source, err)
	}
	defer f.Close()

	res, err := reconcile.ParseCSV(f, source)
	if err != nil {
		return reconcile.ImportResult{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return res, nil
}

func sessionParams(opts matchOptions, bank, book []domain.TransactionRecord) (reconcile.SessionParams, error) {
	p := reconcile.SessionParams{
		SessionID:   uuid.NewString(),
		AccountID:   opts.accountID,
		BankRecords: bank,
		BookRecords: book,
		CreatedBy:   cliOperator,
	}

	var err error
	if p.ClosingBalanceStatement, err = decimal.NewFromString(opts.closingStatement); err != nil {
		return p, fmt.Errorf("invalid --closing-statement: %w", err)
	}
	if p.ClosingBalanceBook, err = decimal.NewFromString(opts.closingBook); err != nil {
		return p, fmt.Errorf("invalid --closing-book: %w", err)
	}

	first, last := recordSpan(bank, book)
	if p.PeriodStart, err = dateFlag(opts.periodStart, first); err != nil {
		return p, fmt.Errorf("invalid --period-start: %w", err)
	}
	if p.PeriodEnd, err = dateFlag(opts.periodEnd, last); err != nil {
		return p, fmt.Errorf("invalid --period-end: %w", err)
	}
	return p, nil
}

// recordSpan returns the earliest and latest record dates, today for an empty import.
func recordSpan(sets ...[]domain.TransactionRecord) (time.Time, time.Time) {
	var first, last time.Time
	for _, set := range sets {
		for _, r := range set {
			if first.IsZero() || r.Date.Before(first) {
				first = r.Date
			}
			if r.Date.After(last) {
				last = r.Date
			}
		}
	}
	if first.IsZero() {
		today := reconcile.CivilDate(time.Now())
		return today, today
	}
	return first, last
}

func dateFlag(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse(time.DateOnly, value)
}

func printReport(out io.Writer, r matchReport) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "PAIRS (%d)\n", len(r.Session.Pairs))
	fmt.Fprintln(tw, "BANK\tBOOK\tRULE\tSTATUS\tDELTA\tCONFIDENCE")
	for _, p := range r.Session.Pairs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n", p.BankRecordID, p.BookRecordID, p.Rule, p.Status, p.AmountDelta.StringFixed(2), p.Confidence)
	}

	fmt.Fprintf(tw, "\nUNMATCHED (%d)\n", r.Stats.UnmatchedRecords)
	fmt.Fprintln(tw, "SOURCE\tID\tDATE\tAMOUNT\tDESCRIPTION")
	for _, set := range [][]domain.TransactionRecord{r.Session.BankRecords, r.Session.BookRecords} {
		for _, rec := range set {
			if rec.MatchStatus != domain.StatusUnmatched {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rec.Source, rec.ID, rec.Date.Format(time.DateOnly), rec.Amount.StringFixed(2), rec.Description)
		}
	}

	if len(r.ImportErrors) > 0 {
		fmt.Fprintf(tw, "\nREJECTED ROWS (%d)\n", len(r.ImportErrors))
		for _, e := range r.ImportErrors {
			fmt.Fprintf(tw, "%s\n", e.Error())
		}
	}

	s := r.Stats
	fmt.Fprintln(tw, "\nSUMMARY")
	fmt.Fprintf(tw, "records\t%d\n", s.TotalRecords)
	fmt.Fprintf(tw, "matched\t%d\n", s.MatchedRecords)
	fmt.Fprintf(tw, "discrepancies\t%d\n", s.DiscrepancyRecords)
	fmt.Fprintf(tw, "unmatched\t%d\n", s.UnmatchedRecords)
	fmt.Fprintf(tw, "unmatched bank sum\t%s\n", s.UnmatchedBankAmount.StringFixed(2))
	fmt.Fprintf(tw, "unmatched book sum\t%s\n", s.UnmatchedBookAmount.StringFixed(2))
	fmt.Fprintf(tw, "match rate\t%.2f%%\n", s.MatchRatePercent)
	fmt.Fprintf(tw, "balance difference\t%s\n", s.BalanceDifference.StringFixed(2))
	fmt.Fprintf(tw, "unexplained difference\t%s\n", s.UnexplainedDifference.StringFixed(2))

	return tw.Flush()
}
