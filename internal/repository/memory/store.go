// Package memory хранит сущности площадки в памяти процесса.
// Используется драйвером STORAGE_DRIVER=memory и в тестах.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/senyabanana/procurement-service/internal/models"
	"github.com/senyabanana/procurement-service/internal/repository"
)

type txKey struct{}

type state struct {
	users        map[string]models.User
	rfqs         map[string]models.RFQ
	bids         map[string]models.Bid
	items        map[string][]models.BidItem
	transactions map[string]models.Transaction
}

func newState() state {
	return state{
		users:        map[string]models.User{},
		rfqs:         map[string]models.RFQ{},
		bids:         map[string]models.Bid{},
		items:        map[string][]models.BidItem{},
		transactions: map[string]models.Transaction{},
	}
}

func (s state) clone() state {
	items := make(map[string][]models.BidItem, len(s.items))
	for bidId, list := range s.items {
		items[bidId] = slices.Clone(list)
	}
	return state{
		users:        maps.Clone(s.users),
		rfqs:         maps.Clone(s.rfqs),
		bids:         maps.Clone(s.bids),
		items:        items,
		transactions: maps.Clone(s.transactions),
	}
}

// Store - хранилище в памяти. Транзакции выполняются строго по одной над
// рабочей копией, которая заменяет зафиксированное состояние только при успехе.
type Store struct {
	txMu    sync.Mutex
	mu      sync.Mutex
	data    state
	working *state

	rfqs         *RFQRepository
	bids         *BidRepository
	users        *UserRepository
	transactions *TransactionRepository
}

// NewStore создает пустое хранилище.
func NewStore() *Store {
	s := &Store{data: newState()}
	s.rfqs = &RFQRepository{store: s}
	s.bids = &BidRepository{store: s}
	s.users = &UserRepository{store: s}
	s.transactions = &TransactionRepository{store: s}
	return s
}

func (s *Store) RFQs() *RFQRepository                 { return s.rfqs }
func (s *Store) Bids() *BidRepository                 { return s.bids }
func (s *Store) Users() *UserRepository               { return s.users }
func (s *Store) Transactions() *TransactionRepository { return s.transactions }

// WithinTransaction выполняет fn атомарно относительно других записей.
// Вложенный вызов присоединяется к внешней транзакции. Ошибка или паника
// в fn отбрасывает рабочую копию.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTransaction(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	working := s.data.clone()
	s.working = &working
	s.mu.Unlock()

	committed := false
	defer func() {
		s.mu.Lock()
		if committed {
			s.data = *s.working
		}
		s.working = nil
		s.mu.Unlock()
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

func inTransaction(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// AddUser добавляет пользователя в справочник.
func (s *Store) AddUser(ctx context.Context, user models.User) error {
	return s.write(ctx, func(data *state) error {
		if _, ok := data.users[user.ID]; ok {
			return fmt.Errorf("user %s: %w", user.ID, repository.ErrDuplicate)
		}
		data.users[user.ID] = user
		return nil
	})
}

// view возвращает состояние, видимое вызывающему: рабочую копию внутри
// транзакции, зафиксированное состояние вне ее. Вызывается под mu.
func (s *Store) view(ctx context.Context) *state {
	if inTransaction(ctx) && s.working != nil {
		return s.working
	}
	return &s.data
}

// read выполняет fn под блокировкой данных.
func (s *Store) read(ctx context.Context, fn func(data *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.view(ctx))
}

// write вне транзакции ждет завершения текущей транзакции, чтобы фиксация
// рабочей копии не затерла одиночную запись.
func (s *Store) write(ctx context.Context, fn func(data *state) error) error {
	if !inTransaction(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.view(ctx))
}

func byCreation[T any](values []T, createdAt func(T) int64, id func(T) string) {
	slices.SortFunc(values, func(a, b T) int {
		if c := cmp.Compare(createdAt(a), createdAt(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	})
}

func page[T any](values []T, limit, offset int) []T {
	if offset >= len(values) {
		return nil
	}
	values = values[offset:]
	if limit >= 0 && limit < len(values) {
		values = values[:limit]
	}
	return values
}
