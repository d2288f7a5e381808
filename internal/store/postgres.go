package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/creatorhub/backend/internal/models"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

const walletColumns = `id, user_id, balance, currency, is_active, version, created_at, updated_at`

const transactionColumns = `id, seq, wallet_id, user_id, type, action, status, amount, balance_before, balance_after,
		currency, sender_id, receiver_id, reference, metadata, created_at, committed_at`

// PostgresStore implements Store on top of database/sql and lib/pq.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx runs fn in a READ COMMITTED transaction. Wallet rows are serialized
// with SELECT ... FOR UPDATE inside fn.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translate(err))
	}
	return nil
}

func (s *PostgresStore) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) ([]models.Transaction, error) {
	return queryTransactions(ctx, s.db,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 ORDER BY seq`, reference)
}

func (s *PostgresStore) ListTransactions(ctx context.Context, walletID string, limit int) ([]models.Transaction, error) {
	return queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, walletID, limit)
}

func (s *PostgresStore) WalletHistory(ctx context.Context, walletID string) ([]models.Transaction, error) {
	return queryTransactions(ctx, s.db, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY COALESCE(committed_at, created_at), seq`, walletID)
}

func (s *PostgresStore) SumIncomingByType(ctx context.Context, f IncomingFilter) (map[models.TxType]int64, error) {
	where, args := incomingWhere(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE `+where+`
		GROUP BY type`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum incoming: %w", err)
	}
	defer rows.Close()

	totals := make(map[models.TxType]int64)
	for rows.Next() {
		var txType string
		var sum int64
		if err := rows.Scan(&txType, &sum); err != nil {
			return nil, fmt.Errorf("scan incoming sum: %w", err)
		}
		totals[models.TxType(txType)] = sum
	}
	return totals, rows.Err()
}

func (s *PostgresStore) ScanIncoming(ctx context.Context, f IncomingFilter, fn func(models.Transaction) error) error {
	where, args := incomingWhere(f)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE `+where+`
		ORDER BY created_at DESC, seq DESC`, args...)
	if err != nil {
		return fmt.Errorf("scan incoming: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return err
		}
		if err := fn(*tx); err != nil {
			return err
		}
	}
	return rows.Err()
}

// pgTx implements Tx on a *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) InsertWallet(ctx context.Context, w *models.Wallet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, currency, is_active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Balance, w.Currency, w.IsActive, w.Version, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", translate(err))
	}
	return nil
}

func (t *pgTx) GetWalletForUpdate(ctx context.Context, userID string) (*models.Wallet, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	return scanWallet(row)
}

func (t *pgTx) UpdateWalletBalance(ctx context.Context, w *models.Wallet, newBalance int64) error {
	now := time.Now().UTC()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, now, w.ID, w.Version)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", translate(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: wallet %s", ErrVersionConflict, w.ID)
	}

	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = now
	return nil
}

func (t *pgTx) SetWalletActive(ctx context.Context, walletID string, active bool) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE wallets SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("set wallet active: %w", translate(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) FindByReference(ctx context.Context, reference string) ([]models.Transaction, error) {
	return queryTransactions(ctx, t.tx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 ORDER BY seq`, reference)
}

func (t *pgTx) FindByReferenceForUpdate(ctx context.Context, reference string) ([]models.Transaction, error) {
	return queryTransactions(ctx, t.tx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1 ORDER BY seq FOR UPDATE`, reference)
}

func (t *pgTx) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO transactions (id, wallet_id, user_id, type, action, status, amount, balance_before, balance_after,
			currency, sender_id, receiver_id, reference, metadata, created_at, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING seq`,
		tx.ID, tx.WalletID, tx.UserID, string(tx.Type), string(tx.Action), string(tx.Status), tx.Amount,
		tx.BalanceBefore, tx.BalanceAfter, tx.Currency,
		nullString(tx.SenderID), nullString(tx.ReceiverID), nullString(tx.Reference),
		tx.Metadata, tx.CreatedAt, tx.CommittedAt,
	).Scan(&tx.Seq)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", translate(err))
	}
	return nil
}

func (t *pgTx) SettleTransaction(ctx context.Context, id string, status models.TxStatus, before, after int64, at time.Time) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, balance_before = $2, balance_after = $3, committed_at = $4
		WHERE id = $5 AND status = 'PENDING'`,
		string(status), before, after, at, id)
	if err != nil {
		return fmt.Errorf("settle transaction: %w", translate(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotPending, id)
	}
	return nil
}

// Database helper functions

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func queryTransactions(ctx context.Context, q queryer, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.IsActive, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx                          models.Transaction
		txType, action, status      string
		sender, receiver, reference sql.NullString
		committedAt                 sql.NullTime
	)
	err := row.Scan(
		&tx.ID, &tx.Seq, &tx.WalletID, &tx.UserID, &txType, &action, &status, &tx.Amount,
		&tx.BalanceBefore, &tx.BalanceAfter, &tx.Currency, &sender, &receiver, &reference,
		&tx.Metadata, &tx.CreatedAt, &committedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", translate(err))
	}

	tx.Type = models.TxType(txType)
	tx.Action = models.TxAction(action)
	tx.Status = models.TxStatus(status)
	tx.SenderID = sender.String
	tx.ReceiverID = receiver.String
	tx.Reference = reference.String
	if committedAt.Valid {
		at := committedAt.Time
		tx.CommittedAt = &at
	}
	return &tx, nil
}

func incomingWhere(f IncomingFilter) (string, []any) {
	conditions := []string{"user_id = $1", "action = 'CREDIT'"}
	args := []any{f.ReceiverID}
	argIndex := 2

	if f.SenderID != "" {
		conditions = append(conditions, fmt.Sprintf("sender_id = $%d", argIndex))
		args = append(args, f.SenderID)
		argIndex++
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", argIndex))
		args = append(args, pq.Array(types))
		argIndex++
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argIndex))
		args = append(args, pq.Array(statuses))
		argIndex++
	}
	if !f.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIndex))
		args = append(args, f.From)
		argIndex++
	}
	if !f.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argIndex))
		args = append(args, f.To)
	}

	return strings.Join(conditions, " AND "), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrVersionConflict, pqErr.Message)
		}
	}
	return err
}

var _ Store = (*PostgresStore)(nil)
