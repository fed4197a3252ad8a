package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps the ledger in process memory. Tables are maps keyed by id
// with explicit foreign key fields; a single writer lock serializes
// transactions while reads share it.
type MemoryStore struct {
	mu sync.RWMutex

	nextID        int64
	accounts      map[int64]*models.Account
	transactions  map[int64]*models.Transaction
	contributions map[int64]*models.SavingsContribution
	loans         map[int64]*models.Loan

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory ledger
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[int64]*models.Account),
		transactions:  make(map[int64]*models.Transaction),
		contributions: make(map[int64]*models.SavingsContribution),
		loans:         make(map[int64]*models.Loan),
		now:           time.Now,
	}
}

func (s *MemoryStore) newID() int64 {
	s.nextID++
	return s.nextID
}

// CreateAccount stores a new account and assigns its id
func (s *MemoryStore) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == account.Username || a.Email == account.Email {
			return fmt.Errorf("failed to create account %s: %w", account.Username, models.ErrAccountExists)
		}
	}
	account.ID = s.newID()
	account.CreatedAt = s.now().UTC()
	cp := *account
	s.accounts[cp.ID] = &cp
	return nil
}

// Account returns a snapshot of the account
func (s *MemoryStore) Account(_ context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, models.ErrAccountNotFound)
	}
	cp := *a
	return &cp, nil
}

// AccountByUsername returns a snapshot of the account with the given username
func (s *MemoryStore) AccountByUsername(_ context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", username, models.ErrAccountNotFound)
}

// FindLender returns the first eligible lender by ascending id
func (s *MemoryStore) FindLender(_ context.Context, required decimal.Decimal, excludeID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range sortedKeys(s.accounts) {
		a := s.accounts[id]
		if id != excludeID && a.SavingsBalance.GreaterThanOrEqual(required) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, models.ErrNoLenderAvailable
}

// BorrowerProfile assembles the risk summary of an account
func (s *MemoryStore) BorrowerProfile(_ context.Context, accountID int64) (*models.BorrowerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", accountID, models.ErrAccountNotFound)
	}
	p := &models.BorrowerProfile{AccountID: accountID, SavingsBalance: a.SavingsBalance}
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			p.TransactionCount++
		}
	}
	for _, l := range s.loans {
		if l.BorrowerID != accountID {
			continue
		}
		switch l.Status {
		case models.LoanPaid:
			p.RepaidLoans++
		case models.LoanActive:
			p.ActiveLoans++
		}
	}
	return p, nil
}

// Transactions returns the account's transactions in id order
func (s *MemoryStore) Transactions(_ context.Context, accountID int64) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Transaction{}
	for _, id := range sortedKeys(s.transactions) {
		if t := s.transactions[id]; t.AccountID == accountID {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Loans returns loans where the account is lender or borrower, in id order
func (s *MemoryStore) Loans(_ context.Context, accountID int64) ([]models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Loan{}
	for _, id := range sortedKeys(s.loans) {
		if l := s.loans[id]; l.LenderID == accountID || l.BorrowerID == accountID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// Loan returns a snapshot of a loan
func (s *MemoryStore) Loan(_ context.Context, id int64) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	cp := *l
	return &cp, nil
}

// Totals sums balances, grants and collected interest
func (s *MemoryStore) Totals(_ context.Context) (*models.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &models.LedgerTotals{}
	for _, a := range s.accounts {
		t.Main = t.Main.Add(a.MainBalance)
		t.Savings = t.Savings.Add(a.SavingsBalance)
		t.Granted = t.Granted.Add(a.InitialBalance)
	}
	for _, l := range s.loans {
		if l.Status == models.LoanPaid {
			t.Interest = t.Interest.Add(l.Interest())
		}
	}
	return t, nil
}

// WithinTx runs fn holding the writer lock. On error or panic every write
// made through the transaction is undone in reverse order.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{s: s}
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

type memoryTx struct {
	s    *MemoryStore
	undo []func()
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryTx) LockAccounts(_ context.Context, ids ...int64) (map[int64]*models.Account, error) {
	out := make(map[int64]*models.Account, len(ids))
	for _, id := range ids {
		a, ok := tx.s.accounts[id]
		if !ok {
			return nil, fmt.Errorf("account %d: %w", id, models.ErrAccountNotFound)
		}
		cp := *a
		out[id] = &cp
	}
	return out, nil
}

func (tx *memoryTx) ApplyDelta(_ context.Context, accountID int64, mainDelta, savingsDelta decimal.Decimal) (models.Balances, error) {
	a, ok := tx.s.accounts[accountID]
	if !ok {
		return models.Balances{}, fmt.Errorf("apply delta to account %d: %w", accountID, models.ErrAccountNotFound)
	}
	prevMain, prevSavings := a.MainBalance, a.SavingsBalance
	tx.undo = append(tx.undo, func() {
		a.MainBalance, a.SavingsBalance = prevMain, prevSavings
	})
	a.MainBalance = a.MainBalance.Add(mainDelta)
	a.SavingsBalance = a.SavingsBalance.Add(savingsDelta)
	return a.Balances(), nil
}

func (tx *memoryTx) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	if _, ok := tx.s.accounts[txn.AccountID]; !ok {
		return fmt.Errorf("create transaction: %w", models.ErrAccountNotFound)
	}
	txn.ID = tx.s.newID()
	txn.CreatedAt = tx.s.now().UTC()
	cp := *txn
	tx.s.transactions[cp.ID] = &cp
	tx.undo = append(tx.undo, func() { delete(tx.s.transactions, cp.ID) })
	return nil
}

func (tx *memoryTx) CreateContribution(_ context.Context, c *models.SavingsContribution) error {
	if _, ok := tx.s.transactions[c.TransactionID]; !ok {
		return fmt.Errorf("create contribution: transaction %d does not exist", c.TransactionID)
	}
	c.ID = tx.s.newID()
	c.CreatedAt = tx.s.now().UTC()
	cp := *c
	tx.s.contributions[cp.ID] = &cp
	tx.undo = append(tx.undo, func() { delete(tx.s.contributions, cp.ID) })
	return nil
}

func (tx *memoryTx) CreateLoan(_ context.Context, loan *models.Loan) error {
	if loan.LenderID == loan.BorrowerID {
		return fmt.Errorf("create loan: %w", models.ErrSelfLending)
	}
	loan.ID = tx.s.newID()
	loan.CreatedAt = tx.s.now().UTC()
	cp := *loan
	tx.s.loans[cp.ID] = &cp
	tx.undo = append(tx.undo, func() { delete(tx.s.loans, cp.ID) })
	return nil
}

func (tx *memoryTx) LockLoan(_ context.Context, id int64) (*models.Loan, error) {
	l, ok := tx.s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	cp := *l
	return &cp, nil
}

func (tx *memoryTx) SetLoanStatus(_ context.Context, id int64, status models.LoanStatus) error {
	l, ok := tx.s.loans[id]
	if !ok {
		return fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	prev := l.Status
	tx.undo = append(tx.undo, func() { l.Status = prev })
	l.Status = status
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
