package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/store"
)

func seedWallet(t *testing.T, s *Store, userID string, balance int64) *models.Wallet {
	t.Helper()
	w := &models.Wallet{ID: "w-" + userID, UserID: userID, Balance: balance, Currency: "USD", IsActive: true}
	require.NoError(t, s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertWallet(context.Background(), w)
	}))
	return w
}

func TestStore_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedWallet(t, s, "alice", 1000)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.GetWalletForUpdate(ctx, "alice")
		require.NoError(t, err)
		require.NoError(t, tx.UpdateWalletBalance(ctx, w, 0))
		require.NoError(t, tx.InsertTransaction(ctx, &models.Transaction{ID: "t1", WalletID: w.ID, UserID: "alice", Reference: "r1", Action: models.ActionDebit}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := s.GetWallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), w.Balance)
	assert.Equal(t, 0, w.Version)

	rows, err := s.FindByReference(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_Constraints(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedWallet(t, s, "alice", 1000)

	t.Run("one wallet per user", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertWallet(ctx, &models.Wallet{ID: "other", UserID: "alice"})
		})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("one row per reference and action", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.InsertTransaction(ctx, &models.Transaction{ID: "d", Reference: "pair", Action: models.ActionDebit}); err != nil {
				return err
			}
			return tx.InsertTransaction(ctx, &models.Transaction{ID: "c", Reference: "pair", Action: models.ActionCredit})
		})
		require.NoError(t, err)

		err = s.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{ID: "c2", Reference: "pair", Action: models.ActionCredit})
		})
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})

	t.Run("single-sided rows own their reference", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{ID: "f", Reference: "solo", Type: models.TxTypeFund, Action: models.ActionCredit})
		})
		require.NoError(t, err)

		err = s.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{ID: "p", Reference: "solo", Type: models.TxTypePayout, Action: models.ActionDebit})
		})
		assert.ErrorIs(t, err, store.ErrDuplicate)

		rows, err := s.FindByReference(ctx, "solo")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("stale version", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.UpdateWalletBalance(ctx, &models.Wallet{ID: "w-alice", UserID: "alice", Version: 99}, 1)
		})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
	})

	t.Run("negative balance", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			w, _ := tx.GetWalletForUpdate(ctx, "alice")
			return tx.UpdateWalletBalance(ctx, w, -1)
		})
		assert.Error(t, err)
	})

	t.Run("settle is one-shot", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.InsertTransaction(ctx, &models.Transaction{ID: "p", WalletID: "w-alice", Status: models.StatusPending})
		})
		require.NoError(t, err)

		settle := func() error {
			return s.WithTx(ctx, func(tx store.Tx) error {
				return tx.SettleTransaction(ctx, "p", models.StatusCompleted, 1000, 1500, time.Now())
			})
		}
		require.NoError(t, settle())
		assert.ErrorIs(t, settle(), store.ErrNotPending)
	})
}

func TestStore_Ordering(t *testing.T) {
	ctx := context.Background()
	s := New()
	w := seedWallet(t, s, "alice", 0)
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	late := base.Add(time.Hour)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		rows := []models.Transaction{
			{ID: "pending-then-settled", WalletID: w.ID, CreatedAt: base, CommittedAt: &late},
			{ID: "second", WalletID: w.ID, CreatedAt: base.Add(time.Minute), CommittedAt: ptr(base.Add(time.Minute))},
			{ID: "third", WalletID: w.ID, CreatedAt: base.Add(2 * time.Minute)},
		}
		for i := range rows {
			if err := tx.InsertTransaction(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	newest, err := s.ListTransactions(ctx, w.ID, 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "third", newest[0].ID)
	assert.Equal(t, "second", newest[1].ID)

	history, err := s.WalletHistory(ctx, w.ID)
	require.NoError(t, err)
	ids := []string{history[0].ID, history[1].ID, history[2].ID}
	assert.Equal(t, []string{"second", "third", "pending-then-settled"}, ids)
}

func TestStore_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func ptr(t time.Time) *time.Time { return &t }
