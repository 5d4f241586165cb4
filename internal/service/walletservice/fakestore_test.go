package walletservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GlebRadaev/casino-wallet/internal/domain"
	"github.com/GlebRadaev/casino-wallet/internal/pg"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the Postgres repositories. Row
// locks are per-key mutexes held until the surrounding Begin returns, and
// every write registers an undo step that runs when the transaction fails.
type memStore struct {
	mu       sync.Mutex
	accounts map[int]*domain.Account
	entries  map[int]*domain.LedgerEntry
	promos   map[string]*domain.PromoCode
	locks    map[string]*sync.Mutex
	nextID   int
	clock    time.Time

	failAppend domain.Kind
}

type memTx struct {
	held []*sync.Mutex
	undo []func()
}

type memTxKey struct{}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int]*domain.Account),
		entries:  make(map[int]*domain.LedgerEntry),
		promos:   make(map[string]*domain.PromoCode),
		locks:    make(map[string]*sync.Mutex),
		clock:    now,
	}
}

var _ pg.TXManager = (*memStore)(nil)

func (s *memStore) Begin(ctx context.Context, fn pg.TransactionalFn) error {
	if _, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		return fn(ctx)
	}
	tx := &memTx{}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))
	if err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
	}
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	return err
}

func (s *memStore) lockKey(ctx context.Context, key string) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	if !ok {
		panic("row lock outside of a transaction")
	}
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	tx.held = append(tx.held, m)
}

// record must be called with s.mu held.
func (s *memStore) record(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (s *memStore) addAccount(a domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = &a
}

func (s *memStore) account(id int) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

func (s *memStore) FindByID(_ context.Context, id int) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

func (s *memStore) LockByID(ctx context.Context, id int) (*domain.Account, error) {
	s.lockKey(ctx, fmt.Sprintf("account:%d", id))
	return s.FindByID(ctx, id)
}

func (s *memStore) MarkDeposited(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	prev := a.HasDeposited
	a.HasDeposited = true
	s.record(ctx, func() { a.HasDeposited = prev })
	return nil
}

func (s *memStore) AddReferralEarnings(ctx context.Context, id int, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[id]
	a.ReferralEarnings = a.ReferralEarnings.Add(amount)
	s.record(ctx, func() { a.ReferralEarnings = a.ReferralEarnings.Sub(amount) })
	return nil
}

func (s *memStore) CountReferralsByDay(context.Context, int, time.Time) ([]domain.DailyCount, error) {
	return nil, nil
}

func (s *memStore) Append(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != "" && entry.Kind == s.failAppend {
		return nil, errInjected
	}
	s.nextID++
	stored := *entry
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.clock
	}
	s.entries[stored.ID] = &stored
	s.record(ctx, func() { delete(s.entries, stored.ID) })
	out := stored
	return &out, nil
}

func (s *memStore) sorted(match func(e *domain.LedgerEntry) bool) []domain.LedgerEntry {
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if match(e) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) ListByAccount(_ context.Context, accountID int) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(e *domain.LedgerEntry) bool { return e.AccountID == accountID }), nil
}

func (s *memStore) entriesOf(accountID int, kind domain.Kind) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(e *domain.LedgerEntry) bool { return e.AccountID == accountID && e.Kind == kind })
}

func (s *memStore) GetForUpdate(ctx context.Context, id int) (*domain.LedgerEntry, error) {
	s.lockKey(ctx, fmt.Sprintf("entry:%d", id))
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	out := *e
	return &out, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, id int, status domain.Status) (*domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}
	e.Status = status
	s.record(ctx, func() { e.Status = domain.StatusPending })
	out := *e
	return &out, nil
}

func (s *memStore) ListPendingWithdrawals(context.Context) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(e *domain.LedgerEntry) bool {
		return e.Kind == domain.KindOutflow && e.Status == domain.StatusPending
	}), nil
}

func (s *memStore) LatestByKind(_ context.Context, accountID int, kind domain.Kind) (*domain.LedgerEntry, error) {
	entries := s.entriesOf(accountID, kind)
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[len(entries)-1]
	return &last, nil
}

func (s *memStore) History(_ context.Context, filter domain.HistoryFilter) (*domain.HistoryPage, error) {
	entries, _ := s.ListByAccount(context.Background(), filter.AccountID)
	return &domain.HistoryPage{Total: len(entries), Entries: entries}, nil
}

func (s *memStore) SumByKind(_ context.Context, accountID int, kind domain.Kind) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range s.entriesOf(accountID, kind) {
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func (s *memStore) Create(_ context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *promo
	s.promos[promo.Code] = &stored
	return &stored, nil
}

func (s *memStore) FindForUpdate(ctx context.Context, code string) (*domain.PromoCode, error) {
	s.lockKey(ctx, "promo:"+code)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.promos[code]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (s *memStore) MarkUsed(ctx context.Context, code string, accountID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.promos[code]
	if p.UsedBy != nil {
		return domain.ErrPromoUsed
	}
	p.UsedBy = &accountID
	s.record(ctx, func() { p.UsedBy = nil })
	return nil
}
