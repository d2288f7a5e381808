package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/backend/internal/models"
)

var walletCols = []string{"id", "user_id", "balance", "currency", "is_active", "version", "created_at", "updated_at"}

var txCols = []string{"id", "seq", "wallet_id", "user_id", "type", "action", "status", "amount", "balance_before",
	"balance_after", "currency", "sender_id", "receiver_id", "reference", "metadata", "created_at", "committed_at"}

func TestPostgresStore_GetWallet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id = \\$1").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(walletCols).AddRow("w1", "alice", 5000, "USD", true, 3, now, now))

		w, err := s.GetWallet(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(5000), w.Balance)
		assert.Equal(t, 3, w.Version)
		assert.True(t, w.IsActive)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id = \\$1").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(walletCols))

		_, err := s.GetWallet(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTx(t *testing.T) {
	now := time.Now()

	t.Run("transfer unit of work commits", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := NewPostgresStore(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE user_id = \\$1 FOR UPDATE").
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(walletCols).AddRow("w1", "alice", 5000, "USD", true, 1, now, now))
		mock.ExpectExec("UPDATE wallets SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(int64(4000), sqlmock.AnyArg(), "w1", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs("tx1", "w1", "alice", "TRANSFER", "DEBIT", "COMPLETED", int64(1000), int64(5000), int64(4000), "USD",
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
		mock.ExpectCommit()

		var inserted models.Transaction
		err = s.WithTx(context.Background(), func(tx Tx) error {
			w, err := tx.GetWalletForUpdate(context.Background(), "alice")
			if err != nil {
				return err
			}
			if err := tx.UpdateWalletBalance(context.Background(), w, 4000); err != nil {
				return err
			}
			assert.Equal(t, 2, w.Version)

			inserted = models.Transaction{
				ID: "tx1", WalletID: "w1", UserID: "alice", Type: models.TxTypeTransfer, Action: models.ActionDebit,
				Status: models.StatusCompleted, Amount: 1000, BalanceBefore: 5000, BalanceAfter: 4000, Currency: "USD",
				SenderID: "alice", ReceiverID: "bob", Reference: "ref-1", CreatedAt: now, CommittedAt: &now,
			}
			return tx.InsertTransaction(context.Background(), &inserted)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), inserted.Seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := NewPostgresStore(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE wallets SET balance").
			WithArgs(int64(100), sqlmock.AnyArg(), "w1", 7).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = s.WithTx(context.Background(), func(tx Tx) error {
			return tx.UpdateWalletBalance(context.Background(), &models.Wallet{ID: "w1", Version: 7}, 100)
		})
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := NewPostgresStore(db)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_reference_action_key"})
		mock.ExpectRollback()

		err = s.WithTx(context.Background(), func(tx Tx) error {
			return tx.InsertTransaction(context.Background(), &models.Transaction{ID: "tx1", Reference: "X"})
		})
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("settle only moves pending rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		s := NewPostgresStore(db)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE transactions SET status = \\$1, balance_before = \\$2, balance_after = \\$3, committed_at = \\$4 WHERE id = \\$5 AND status = 'PENDING'").
			WithArgs("COMPLETED", int64(0), int64(1000), sqlmock.AnyArg(), "tx1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = s.WithTx(context.Background(), func(tx Tx) error {
			return tx.SettleTransaction(context.Background(), "tx1", models.StatusCompleted, 0, 1000, now)
		})
		assert.ErrorIs(t, err, ErrNotPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresStore_SumIncomingByType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db)

	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery("SELECT type, COALESCE\\(SUM\\(amount\\), 0\\) FROM transactions WHERE user_id = \\$1 AND action = 'CREDIT' AND type = ANY\\(\\$2\\) AND status = ANY\\(\\$3\\) AND created_at >= \\$4 AND created_at < \\$5 GROUP BY type").
		WithArgs("seller", sqlmock.AnyArg(), sqlmock.AnyArg(), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"type", "sum"}).
			AddRow("TIP", 500).
			AddRow("MENU_PURCHASE", 1250))

	totals, err := s.SumIncomingByType(context.Background(), IncomingFilter{
		ReceiverID: "seller",
		Types:      models.EarningTxTypes,
		Statuses:   models.SettledStatuses,
		From:       from,
		To:         to,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(500), totals[models.TxTypeTip])
	assert.Equal(t, int64(1250), totals[models.TxTypeMenuPurchase])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ScanIncoming(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db)
	now := time.Now()

	mock.ExpectQuery("FROM transactions WHERE user_id = \\$1 AND action = 'CREDIT' AND sender_id = \\$2 (.+) ORDER BY created_at DESC, seq DESC").
		WithArgs("seller", "buyer", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(txCols).
			AddRow("t2", 2, "w2", "seller", "TIP", "CREDIT", "COMPLETED", 300, 500, 800, "USD", "buyer", "seller", "r2", []byte(`{"note":"thanks"}`), now, now).
			AddRow("t1", 1, "w2", "seller", "TIP", "CREDIT", "COMPLETED", 500, 0, 500, "USD", "buyer", "seller", nil, nil, now.Add(-time.Hour), nil))

	var seen []models.Transaction
	err = s.ScanIncoming(context.Background(), IncomingFilter{
		ReceiverID: "seller",
		SenderID:   "buyer",
		Types:      models.EarningTxTypes,
		Statuses:   models.SettledStatuses,
	}, func(tx models.Transaction) error {
		seen = append(seen, tx)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "thanks", seen[0].Metadata["note"])
	assert.NotNil(t, seen[0].CommittedAt)
	assert.Empty(t, seen[1].Reference)
	assert.Nil(t, seen[1].CommittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncomingFilter_Matches(t *testing.T) {
	at := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	tx := models.Transaction{
		UserID: "seller", SenderID: "buyer", Action: models.ActionCredit,
		Type: models.TxTypeTip, Status: models.StatusCompleted, CreatedAt: at,
	}
	base := IncomingFilter{ReceiverID: "seller", Types: models.EarningTxTypes, Statuses: models.SettledStatuses}

	assert.True(t, base.Matches(tx))

	debit := tx
	debit.Action = models.ActionDebit
	assert.False(t, base.Matches(debit))

	pending := tx
	pending.Status = models.StatusPending
	assert.False(t, base.Matches(pending))

	window := base
	window.From = at
	window.To = at.AddDate(0, 1, 0)
	assert.True(t, window.Matches(tx))
	window.From = at.Add(time.Second)
	assert.False(t, window.Matches(tx))

	other := base
	other.SenderID = "someone-else"
	assert.False(t, other.Matches(tx))
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(&pq.Error{Code: "40001"}), ErrVersionConflict)
	assert.ErrorIs(t, translate(&pq.Error{Code: "40P01"}), ErrVersionConflict)
	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain))
}
