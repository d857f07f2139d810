package pgsql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/accounts_reconciliation/internal/apperrors"
	"github.com/SscSPs/accounts_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/accounts_reconciliation/internal/core/ports/repositories"
	"github.com/SscSPs/accounts_reconciliation/internal/models"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/mapping"
	"github.com/SscSPs/accounts_reconciliation/internal/utils/pagination"
)

const pgUniqueViolation = "23505"

const sessionColumns = `
	session_id, account_id, period_start, period_end, opening_balance,
	closing_balance_statement, closing_balance_book, status, confirmed_at, confirmed_by,
	archived_at, archived_by, created_at, created_by, last_updated_at, last_updated_by, version`

type PgxReconciliationRepository struct {
	BaseRepository
}

// newPgxReconciliationRepository creates a new repository for reconciliation sessions.
func newPgxReconciliationRepository(pool *pgxpool.Pool) portsrepo.ReconciliationRepositoryWithTx {
	return &PgxReconciliationRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

// Ensure PgxReconciliationRepository implements portsrepo.ReconciliationRepositoryWithTx
var _ portsrepo.ReconciliationRepositoryWithTx = (*PgxReconciliationRepository)(nil)

// SaveSession writes the session header, its records and its pairs in one DB transaction.
// Records and pairs are replaced wholesale; a session holds at most a few thousand lines.
func (r *PgxReconciliationRepository) SaveSession(ctx context.Context, session *domain.ReconciliationSession) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx) // Will be ignored if transaction is committed successfully

	m := mapping.ToModelSession(*session)
	newVersion := m.Version + 1

	if m.Version == 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO reconciliation_sessions (`+sessionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, NULL, $11, $12, $13, $14, $15);`,
			m.SessionID, m.AccountID, m.PeriodStart, m.PeriodEnd, m.OpeningBalance,
			m.ClosingBalanceStatement, m.ClosingBalanceBook, m.Status, m.ConfirmedAt, m.ConfirmedBy,
			m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy, newVersion,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
				return fmt.Errorf("session %s: %w", m.SessionID, apperrors.ErrDuplicate)
			}
			return apperrors.NewAppError(http.StatusInternalServerError, "failed to insert session "+m.SessionID, err)
		}
	} else {
		tag, err := tx.Exec(ctx, `
			UPDATE reconciliation_sessions
			SET status = $2, confirmed_at = $3, confirmed_by = $4,
			    last_updated_at = $5, last_updated_by = $6, version = $7
			WHERE session_id = $1 AND version = $8;`,
			m.SessionID, m.Status, m.ConfirmedAt, m.ConfirmedBy,
			m.LastUpdatedAt, m.LastUpdatedBy, newVersion, m.Version,
		)
		if err != nil {
			return apperrors.NewAppError(http.StatusInternalServerError, "failed to update session "+m.SessionID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("session %s was modified concurrently (version %d): %w", m.SessionID, m.Version, apperrors.ErrConflict)
		}
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM reconciliation_pairs WHERE session_id = $1;`, m.SessionID)
	batch.Queue(`DELETE FROM reconciliation_records WHERE session_id = $1;`, m.SessionID)

	recordQuery := `
		INSERT INTO reconciliation_records (session_id, source, record_id, position, txn_date, description, amount, external_ref, match_status, paired_with)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	for _, records := range [][]domain.TransactionRecord{session.BankRecords, session.BookRecords} {
		for i, rec := range records {
			mr := mapping.ToModelRecord(m.SessionID, i, rec)
			batch.Queue(recordQuery,
				mr.SessionID, mr.Source, mr.RecordID, mr.Position, mr.TxnDate,
				mr.Description, mr.Amount, mr.ExternalRef, mr.MatchStatus, mr.PairedWith,
			)
		}
	}

	pairQuery := `
		INSERT INTO reconciliation_pairs (
			session_id, pair_id, position, bank_record_id, book_record_id, rule, status,
			bank_amount, book_amount, amount_delta, confidence, resolution, resolved_by, resolved_at, note, adjustments
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	for i, p := range session.Pairs {
		mp := mapping.ToModelPair(m.SessionID, i, p)
		batch.Queue(pairQuery,
			mp.SessionID, mp.PairID, mp.Position, mp.BankRecordID, mp.BookRecordID, mp.Rule, mp.Status,
			mp.BankAmount, mp.BookAmount, mp.AmountDelta, mp.Confidence, mp.Resolution, mp.ResolvedBy, mp.ResolvedAt,
			mp.Note, mp.Adjustments,
		)
	}

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to write records and pairs of session "+m.SessionID, err)
	}

	if err := r.Commit(ctx, tx); err != nil {
		return err
	}
	session.Version = newVersion
	return nil
}

// FindSessionByID loads the header, records and pairs of a session.
func (r *PgxReconciliationRepository) FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM reconciliation_sessions WHERE session_id = $1;`
	m, err := scanSession(r.Pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to find session by ID "+sessionID, err)
	}
	session := mapping.ToDomainSession(m)

	session.BankRecords, session.BookRecords, err = r.findRecords(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Pairs, err = r.findPairs(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *PgxReconciliationRepository) findRecords(ctx context.Context, sessionID string) ([]domain.TransactionRecord, []domain.TransactionRecord, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT session_id, source, record_id, position, txn_date, description, amount, external_ref, match_status, paired_with
		FROM reconciliation_records
		WHERE session_id = $1
		ORDER BY source, position;`, sessionID)
	if err != nil {
		return nil, nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to query records of session "+sessionID, err)
	}
	defer rows.Close()

	bank := make([]domain.TransactionRecord, 0)
	book := make([]domain.TransactionRecord, 0)
	for rows.Next() {
		var m models.TransactionRecord
		if err := rows.Scan(&m.SessionID, &m.Source, &m.RecordID, &m.Position, &m.TxnDate,
			&m.Description, &m.Amount, &m.ExternalRef, &m.MatchStatus, &m.PairedWith); err != nil {
			return nil, nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to scan record row of session "+sessionID, err)
		}
		rec := mapping.ToDomainRecord(m)
		if rec.Source == domain.SourceBank {
			bank = append(bank, rec)
		} else {
			book = append(book, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewAppError(http.StatusInternalServerError, "error iterating record rows of session "+sessionID, err)
	}
	return bank, book, nil
}

func (r *PgxReconciliationRepository) findPairs(ctx context.Context, sessionID string) ([]domain.MatchPair, error) {
	rows, err := r.Pool.Query(ctx, `
		SELECT session_id, pair_id, position, bank_record_id, book_record_id, rule, status,
		       bank_amount, book_amount, amount_delta, confidence, resolution, resolved_by, resolved_at, note, adjustments
		FROM reconciliation_pairs
		WHERE session_id = $1
		ORDER BY position;`, sessionID)
	if err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to query pairs of session "+sessionID, err)
	}
	defer rows.Close()

	pairs := make([]domain.MatchPair, 0)
	for rows.Next() {
		var m models.MatchPair
		if err := rows.Scan(&m.SessionID, &m.PairID, &m.Position, &m.BankRecordID, &m.BookRecordID, &m.Rule, &m.Status,
			&m.BankAmount, &m.BookAmount, &m.AmountDelta, &m.Confidence, &m.Resolution, &m.ResolvedBy, &m.ResolvedAt,
			&m.Note, &m.Adjustments); err != nil {
			return nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to scan pair row of session "+sessionID, err)
		}
		pairs = append(pairs, mapping.ToDomainPair(m))
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(http.StatusInternalServerError, "error iterating pair rows of session "+sessionID, err)
	}
	return pairs, nil
}

// ListSessionsByAccount pages through session headers, newest period first.
func (r *PgxReconciliationRepository) ListSessionsByAccount(ctx context.Context, accountID string, limit int, nextToken *string) ([]domain.ReconciliationSession, *string, error) {
	if limit <= 0 {
		limit = 20
	}
	// We fetch one extra item to determine if there's a next page.
	fetchLimit := limit + 1

	query := `SELECT ` + sessionColumns + ` FROM reconciliation_sessions WHERE account_id = $1`
	args := []interface{}{accountID}

	if nextToken != nil && *nextToken != "" {
		lastEnd, lastCreatedAt, lastID, decodeErr := pagination.DecodeSessionToken(*nextToken)
		if decodeErr != nil {
			return nil, nil, apperrors.NewAppError(http.StatusBadRequest, "invalid nextToken", decodeErr)
		}
		// Tuple comparison keeps the cursor consistent with the ORDER BY below
		query += ` AND (period_end, created_at, session_id) < ($2, $3, $4)`
		args = append(args, lastEnd, lastCreatedAt, lastID)
	}
	query += ` ORDER BY period_end DESC, created_at DESC, session_id DESC LIMIT $` + strconv.Itoa(len(args)+1) + `;`
	args = append(args, fetchLimit)

	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to query sessions for account "+accountID, err)
	}
	defer rows.Close()

	modelSessions := make([]models.ReconciliationSession, 0, fetchLimit)
	for rows.Next() {
		m, scanErr := scanSession(rows)
		if scanErr != nil {
			return nil, nil, apperrors.NewAppError(http.StatusInternalServerError, "failed to scan session row for account "+accountID, scanErr)
		}
		modelSessions = append(modelSessions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewAppError(http.StatusInternalServerError, "error iterating session rows for account "+accountID, err)
	}

	var nextTokenVal *string
	results := modelSessions
	if len(modelSessions) > limit {
		last := modelSessions[limit-1]
		newToken := pagination.EncodeSessionToken(last.PeriodEnd, last.CreatedAt, last.SessionID)
		nextTokenVal = &newToken
		results = modelSessions[:limit]
	}

	sessions := make([]domain.ReconciliationSession, len(results))
	for i, m := range results {
		sessions[i] = mapping.ToDomainSession(m)
	}
	return sessions, nextTokenVal, nil
}

// ArchiveSession stamps a confirmed session as handed over to the archive.
func (r *PgxReconciliationRepository) ArchiveSession(ctx context.Context, sessionID string, archivedAt time.Time, archivedBy string) error {
	tag, err := r.Pool.Exec(ctx, `
		UPDATE reconciliation_sessions
		SET archived_at = $2, archived_by = $3
		WHERE session_id = $1 AND status = $4;`,
		sessionID, archivedAt, archivedBy, string(domain.SessionConfirmed),
	)
	if err != nil {
		return apperrors.NewAppError(http.StatusInternalServerError, "failed to archive session "+sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no confirmed session %s to archive: %w", sessionID, apperrors.ErrNotFound)
	}
	return nil
}

func scanSession(row pgx.Row) (models.ReconciliationSession, error) {
	var m models.ReconciliationSession
	err := row.Scan(
		&m.SessionID, &m.AccountID, &m.PeriodStart, &m.PeriodEnd, &m.OpeningBalance,
		&m.ClosingBalanceStatement, &m.ClosingBalanceBook, &m.Status, &m.ConfirmedAt, &m.ConfirmedBy,
		&m.ArchivedAt, &m.ArchivedBy, &m.CreatedAt, &m.CreatedBy, &m.LastUpdatedAt, &m.LastUpdatedBy, &m.Version,
	)
	return m, err
}
