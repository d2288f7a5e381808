package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/creatorhub/backend/internal/models"
	"github.com/creatorhub/backend/internal/store"
	"github.com/creatorhub/backend/internal/store/memory"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingPublisher keeps every published event for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Event)
	}
	return names
}

// racingStore behaves as if another request committed the same reference
// between the guard's check and the insert: every unit of work is rejected by
// the unique index and the reference lookup sees the winner's rows.
type racingStore struct {
	store.Store
	committed []models.Transaction
}

func newRacingStore(committed ...models.Transaction) *racingStore {
	return &racingStore{Store: memory.New(), committed: committed}
}

func (s *racingStore) WithTx(context.Context, func(store.Tx) error) error {
	return fmt.Errorf("%w: transactions_reference_action_key", store.ErrDuplicate)
}

func (s *racingStore) FindByReference(_ context.Context, reference string) ([]models.Transaction, error) {
	var rows []models.Transaction
	for _, tx := range s.committed {
		if tx.Reference == reference {
			rows = append(rows, tx)
		}
	}
	return rows, nil
}
