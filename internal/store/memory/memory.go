// Package memory provides an in-process ledger store for tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/store"
)

// Store keeps wallets and ledger rows in memory. WithTx holds the write lock
// for the whole unit of work, so transactions are serializable.
type Store struct {
	mu      sync.RWMutex
	state   state
	nowFunc func() time.Time
}

// refKey mirrors the unique indexes. An empty Action marks the reference
// claimed by a FUND or PAYOUT row.
type refKey struct {
	Reference string
	Action    models.TxAction
}

type state struct {
	wallets map[string]models.Wallet // by user id
	txs     []models.Transaction     // in insertion order
	refs    map[refKey]bool
	seq     int64
}

func New() *Store {
	return &Store{
		state: state{
			wallets: make(map[string]models.Wallet),
			refs:    make(map[refKey]bool),
		},
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// WithTx executes fn atomically. On error the pre-call state is restored.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(&txView{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.state = snapshot
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetWallet(_ context.Context, userID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.wallet(userID)
}

func (s *Store) FindByReference(_ context.Context, reference string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.byReference(reference), nil
}

func (s *Store) ListTransactions(_ context.Context, walletID string, limit int) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Transaction{}
	for i := len(s.state.txs) - 1; i >= 0 && len(result) < limit; i-- {
		if s.state.txs[i].WalletID == walletID {
			result = append(result, copyTx(s.state.txs[i]))
		}
	}
	return result, nil
}

func (s *Store) WalletHistory(_ context.Context, walletID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.Transaction{}
	for _, tx := range s.state.txs {
		if tx.WalletID == walletID {
			result = append(result, copyTx(tx))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		ai, aj := commitTime(result[i]), commitTime(result[j])
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

func (s *Store) SumIncomingByType(_ context.Context, f store.IncomingFilter) (map[models.TxType]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[models.TxType]int64)
	for _, tx := range s.state.txs {
		if f.Matches(tx) {
			totals[tx.Type] += tx.Amount
		}
	}
	return totals, nil
}

func (s *Store) ScanIncoming(_ context.Context, f store.IncomingFilter, fn func(models.Transaction) error) error {
	s.mu.RLock()
	matched := []models.Transaction{}
	for _, tx := range s.state.txs {
		if f.Matches(tx) {
			matched = append(matched, copyTx(tx))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Seq > matched[j].Seq
	})
	for _, tx := range matched {
		if err := fn(tx); err != nil {
			return err
		}
	}
	return nil
}

// CorruptBalance overwrites a stored balance without a ledger row. Used to
// exercise drift detection.
func (s *Store) CorruptBalance(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.state.wallets[userID]
	w.Balance = balance
	s.state.wallets[userID] = w
}

// txView is the store as seen from inside WithTx. The parent lock is held.
type txView struct {
	s *Store
}

func (v *txView) InsertWallet(_ context.Context, w *models.Wallet) error {
	st := &v.s.state
	if _, exists := st.wallets[w.UserID]; exists {
		return fmt.Errorf("%w: wallets_user_id_key", store.ErrDuplicate)
	}
	st.wallets[w.UserID] = *w
	return nil
}

func (v *txView) GetWalletForUpdate(_ context.Context, userID string) (*models.Wallet, error) {
	return v.s.state.wallet(userID)
}

func (v *txView) UpdateWalletBalance(_ context.Context, w *models.Wallet, newBalance int64) error {
	st := &v.s.state
	current, ok := st.wallets[w.UserID]
	if !ok || current.ID != w.ID || current.Version != w.Version {
		return fmt.Errorf("%w: wallet %s", store.ErrVersionConflict, w.ID)
	}
	if newBalance < 0 {
		return fmt.Errorf("balance check violated for wallet %s", w.ID)
	}

	now := v.s.nowFunc()
	current.Balance = newBalance
	current.Version++
	current.UpdatedAt = now
	st.wallets[w.UserID] = current

	w.Balance = newBalance
	w.Version = current.Version
	w.UpdatedAt = now
	return nil
}

func (v *txView) SetWalletActive(_ context.Context, walletID string, active bool) error {
	st := &v.s.state
	for userID, w := range st.wallets {
		if w.ID == walletID {
			w.IsActive = active
			w.UpdatedAt = v.s.nowFunc()
			st.wallets[userID] = w
			return nil
		}
	}
	return store.ErrNotFound
}

func (v *txView) FindByReference(_ context.Context, reference string) ([]models.Transaction, error) {
	return v.s.state.byReference(reference), nil
}

func (v *txView) FindByReferenceForUpdate(ctx context.Context, reference string) ([]models.Transaction, error) {
	return v.FindByReference(ctx, reference)
}

func (v *txView) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	st := &v.s.state
	if tx.Amount < 0 {
		return fmt.Errorf("amount check violated for transaction %s", tx.ID)
	}
	if tx.Reference != "" {
		k := refKey{Reference: tx.Reference, Action: tx.Action}
		if st.refs[k] {
			return fmt.Errorf("%w: transactions_reference_action_key", store.ErrDuplicate)
		}
		// single-sided rows also claim the bare reference
		single := refKey{Reference: tx.Reference}
		if tx.Type.IsSingleSided() {
			if st.refs[single] {
				return fmt.Errorf("%w: transactions_single_reference_key", store.ErrDuplicate)
			}
			st.refs[single] = true
		}
		st.refs[k] = true
	}

	st.seq++
	tx.Seq = st.seq
	st.txs = append(st.txs, copyTx(*tx))
	return nil
}

func (v *txView) SettleTransaction(_ context.Context, id string, status models.TxStatus, before, after int64, at time.Time) error {
	st := &v.s.state
	for i := range st.txs {
		if st.txs[i].ID != id {
			continue
		}
		if st.txs[i].Status != models.StatusPending {
			return fmt.Errorf("%w: %s", store.ErrNotPending, id)
		}
		committed := at
		st.txs[i].Status = status
		st.txs[i].BalanceBefore = before
		st.txs[i].BalanceAfter = after
		st.txs[i].CommittedAt = &committed
		return nil
	}
	return fmt.Errorf("%w: %s", store.ErrNotPending, id)
}

func (st state) clone() state {
	out := state{
		wallets: make(map[string]models.Wallet, len(st.wallets)),
		txs:     make([]models.Transaction, len(st.txs)),
		refs:    make(map[refKey]bool, len(st.refs)),
		seq:     st.seq,
	}
	for k, w := range st.wallets {
		out.wallets[k] = w
	}
	for i, tx := range st.txs {
		out.txs[i] = copyTx(tx)
	}
	for k, v := range st.refs {
		out.refs[k] = v
	}
	return out
}

func (st state) wallet(userID string) (*models.Wallet, error) {
	w, ok := st.wallets[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &w, nil
}

func (st state) byReference(reference string) []models.Transaction {
	result := []models.Transaction{}
	for _, tx := range st.txs {
		if tx.Reference == reference {
			result = append(result, copyTx(tx))
		}
	}
	return result
}

func copyTx(tx models.Transaction) models.Transaction {
	tx.Metadata = tx.Metadata.Clone()
	if tx.CommittedAt != nil {
		at := *tx.CommittedAt
		tx.CommittedAt = &at
	}
	return tx
}

func commitTime(tx models.Transaction) time.Time {
	if tx.CommittedAt != nil {
		return *tx.CommittedAt
	}
	return tx.CreatedAt
}

var _ store.Store = (*Store)(nil)
