package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/microsave/internal/models"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

const accountColumns = "id, username, email, password_hash, main_balance, savings_balance, initial_balance, created_at"

const loanColumns = "id, amount, interest_rate, status, lender_id, borrower_id, created_at, due_date"

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// Repository provides ledger operations on a SQL database
type Repository struct {
	db      *sql.DB
	dialect dialect
	log     *logrus.Logger
}

// NewRepository wraps an opened PostgreSQL connection and applies the schema
func NewRepository(db *sql.DB, log *logrus.Logger) (*Repository, error) {
	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Repository{db: db, dialect: dialectPostgres, log: log}, nil
}

// OpenSQLite creates or opens a SQLite ledger at path.
//
// The database runs in WAL mode with foreign keys on and a single open
// connection, so write transactions are serialized.
func OpenSQLite(path string, log *logrus.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Repository{db: db, dialect: dialectSQLite, log: log}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func (r *Repository) rebind(query string) string {
	if r.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// numeric wraps a money expression for comparison. SQLite keeps money as
// text, which would otherwise compare lexically.
func (r *Repository) numeric(expr string) string {
	if r.dialect == dialectSQLite {
		return "CAST(" + expr + " AS NUMERIC)"
	}
	return expr
}

// forUpdate appends a row lock where the database supports one. SQLite
// relies on its single connection instead.
func (r *Repository) forUpdate(query string) string {
	if r.dialect == dialectPostgres {
		return query + " FOR UPDATE"
	}
	return query
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return true
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash,
		&a.MainBalance, &a.SavingsBalance, &a.InitialBalance, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	l := &models.Loan{}
	var status string
	var due sql.NullTime
	err := row.Scan(&l.ID, &l.Amount, &l.InterestRate, &status, &l.LenderID, &l.BorrowerID, &l.CreatedAt, &due)
	if err != nil {
		return nil, err
	}
	l.Status = models.LoanStatus(status)
	if due.Valid {
		t := due.Time
		l.DueDate = &t
	}
	return l, nil
}

// CreateAccount inserts a new account and assigns its id
func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	account.CreatedAt = time.Now().UTC()
	query := r.rebind(`
		INSERT INTO accounts (username, email, password_hash, main_balance, savings_balance, initial_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	err := r.db.QueryRowContext(ctx, query, account.Username, account.Email, account.PasswordHash,
		account.MainBalance, account.SavingsBalance, account.InitialBalance, account.CreatedAt).
		Scan(&account.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create account %s: %w", account.Username, models.ErrAccountExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// Account retrieves an account by id
func (r *Repository) Account(ctx context.Context, id int64) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, r.rebind("SELECT "+accountColumns+" FROM accounts WHERE id = ?"), id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, models.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// AccountByUsername retrieves an account by username
func (r *Repository) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, r.rebind("SELECT "+accountColumns+" FROM accounts WHERE username = ?"), username)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", username, models.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// FindLender returns the first eligible lender by ascending id
func (r *Repository) FindLender(ctx context.Context, required decimal.Decimal, excludeID int64) (*models.Account, error) {
	query := r.rebind(`SELECT ` + accountColumns + ` FROM accounts
		WHERE id <> ? AND ` + r.numeric("savings_balance") + ` >= ` + r.numeric("?") + `
		ORDER BY id LIMIT 1`)
	a, err := scanAccount(r.db.QueryRowContext(ctx, query, excludeID, required))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNoLenderAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lender: %w", err)
	}
	return a, nil
}

// BorrowerProfile assembles the risk summary of an account
func (r *Repository) BorrowerProfile(ctx context.Context, accountID int64) (*models.BorrowerProfile, error) {
	a, err := r.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	p := &models.BorrowerProfile{AccountID: accountID, SavingsBalance: a.SavingsBalance}

	err = r.db.QueryRowContext(ctx, r.rebind("SELECT COUNT(*) FROM transactions WHERE account_id = ?"), accountID).
		Scan(&p.TransactionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	query := r.rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN status = 'paid' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0)
		FROM loans WHERE borrower_id = ?`)
	if err := r.db.QueryRowContext(ctx, query, accountID).Scan(&p.RepaidLoans, &p.ActiveLoans); err != nil {
		return nil, fmt.Errorf("failed to count loans: %w", err)
	}
	return p, nil
}

// Transactions returns the account's transactions in id order
func (r *Repository) Transactions(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	query := r.rebind(`
		SELECT id, account_id, amount, rounded_charge, description, created_at
		FROM transactions WHERE account_id = ? ORDER BY id`)
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer r.closeRows(rows)

	out := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.RoundedCharge, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

// Loans returns loans where the account is lender or borrower, in id order
func (r *Repository) Loans(ctx context.Context, accountID int64) ([]models.Loan, error) {
	query := r.rebind("SELECT " + loanColumns + " FROM loans WHERE lender_id = ? OR borrower_id = ? ORDER BY id")
	rows, err := r.db.QueryContext(ctx, query, accountID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch loans: %w", err)
	}
	defer r.closeRows(rows)

	out := []models.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		out = append(out, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}
	return out, nil
}

// Loan retrieves a loan by id
func (r *Repository) Loan(ctx context.Context, id int64) (*models.Loan, error) {
	l, err := scanLoan(r.db.QueryRowContext(ctx, r.rebind("SELECT "+loanColumns+" FROM loans WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", err)
	}
	return l, nil
}

// Totals sums balances, grants and collected interest from one snapshot.
// Sums are taken in Go so both databases add with decimal precision.
func (r *Repository) Totals(ctx context.Context) (*models.LedgerTotals, error) {
	var opts *sql.TxOptions
	if r.dialect == dialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer r.rollback(tx)

	t := &models.LedgerTotals{}
	if err := r.sumBalances(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := r.sumInterest(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repository) sumBalances(ctx context.Context, tx *sql.Tx, t *models.LedgerTotals) error {
	rows, err := tx.QueryContext(ctx, "SELECT main_balance, savings_balance, initial_balance FROM accounts")
	if err != nil {
		return fmt.Errorf("failed to fetch balances: %w", err)
	}
	defer r.closeRows(rows)

	for rows.Next() {
		var main, savings, initial decimal.Decimal
		if err := rows.Scan(&main, &savings, &initial); err != nil {
			return fmt.Errorf("failed to scan balances: %w", err)
		}
		t.Main = t.Main.Add(main)
		t.Savings = t.Savings.Add(savings)
		t.Granted = t.Granted.Add(initial)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate balances: %w", err)
	}
	return nil
}

func (r *Repository) sumInterest(ctx context.Context, tx *sql.Tx, t *models.LedgerTotals) error {
	rows, err := tx.QueryContext(ctx, r.rebind("SELECT amount, interest_rate FROM loans WHERE status = ?"), string(models.LoanPaid))
	if err != nil {
		return fmt.Errorf("failed to fetch paid loans: %w", err)
	}
	defer r.closeRows(rows)

	for rows.Next() {
		var l models.Loan
		if err := rows.Scan(&l.Amount, &l.InterestRate); err != nil {
			return fmt.Errorf("failed to scan paid loan: %w", err)
		}
		t.Interest = t.Interest.Add(l.Interest())
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate paid loans: %w", err)
	}
	return nil
}

// WithinTx runs fn in a database transaction, committing on success and
// rolling back on error or panic
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.rollback(tx)
			panic(p)
		}
	}()

	if err := fn(&sqlTx{r: r, tx: tx}); err != nil {
		r.rollback(tx)
		return err
	}

	if err := tx.Commit(); err != nil {
		r.rollback(tx)
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (r *Repository) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.log.WithError(err).Error("error rolling back transaction")
	}
}

func (r *Repository) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.log.WithError(err).Error("error closing rows")
	}
}

type sqlTx struct {
	r  *Repository
	tx *sql.Tx
}

func (t *sqlTx) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	ordered := append([]int64(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	query := t.r.rebind(t.r.forUpdate("SELECT " + accountColumns + " FROM accounts WHERE id = ?"))
	out := make(map[int64]*models.Account, len(ordered))
	for _, id := range ordered {
		if _, seen := out[id]; seen {
			continue
		}
		a, err := scanAccount(t.tx.QueryRowContext(ctx, query, id))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %d: %w", id, models.ErrAccountNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock account %d: %w", id, err)
		}
		out[id] = a
	}
	return out, nil
}

func (t *sqlTx) ApplyDelta(ctx context.Context, accountID int64, mainDelta, savingsDelta decimal.Decimal) (models.Balances, error) {
	var b models.Balances
	query := t.r.rebind(t.r.forUpdate("SELECT main_balance, savings_balance FROM accounts WHERE id = ?"))
	err := t.tx.QueryRowContext(ctx, query, accountID).Scan(&b.Main, &b.Savings)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Balances{}, fmt.Errorf("apply delta to account %d: %w", accountID, models.ErrAccountNotFound)
	}
	if err != nil {
		return models.Balances{}, fmt.Errorf("failed to read balances: %w", err)
	}

	b.Main = b.Main.Add(mainDelta)
	b.Savings = b.Savings.Add(savingsDelta)
	update := t.r.rebind("UPDATE accounts SET main_balance = ?, savings_balance = ? WHERE id = ?")
	if _, err := t.tx.ExecContext(ctx, update, b.Main, b.Savings, accountID); err != nil {
		return models.Balances{}, fmt.Errorf("failed to update balances: %w", err)
	}
	return b, nil
}

func (t *sqlTx) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	txn.CreatedAt = time.Now().UTC()
	query := t.r.rebind(`
		INSERT INTO transactions (account_id, amount, rounded_charge, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)
	err := t.tx.QueryRowContext(ctx, query, txn.AccountID, txn.Amount, txn.RoundedCharge, txn.Description, txn.CreatedAt).
		Scan(&txn.ID)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) CreateContribution(ctx context.Context, c *models.SavingsContribution) error {
	c.CreatedAt = time.Now().UTC()
	query := t.r.rebind(`
		INSERT INTO savings_contributions (account_id, transaction_id, amount, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)
	err := t.tx.QueryRowContext(ctx, query, c.AccountID, c.TransactionID, c.Amount, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create savings contribution: %w", err)
	}
	return nil
}

func (t *sqlTx) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if loan.LenderID == loan.BorrowerID {
		return fmt.Errorf("create loan: %w", models.ErrSelfLending)
	}
	loan.CreatedAt = time.Now().UTC()
	query := t.r.rebind(`
		INSERT INTO loans (amount, interest_rate, status, lender_id, borrower_id, created_at, due_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	var due sql.NullTime
	if loan.DueDate != nil {
		due = sql.NullTime{Time: *loan.DueDate, Valid: true}
	}
	err := t.tx.QueryRowContext(ctx, query, loan.Amount, loan.InterestRate, string(loan.Status),
		loan.LenderID, loan.BorrowerID, loan.CreatedAt, due).Scan(&loan.ID)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

func (t *sqlTx) LockLoan(ctx context.Context, id int64) (*models.Loan, error) {
	query := t.r.rebind(t.r.forUpdate("SELECT " + loanColumns + " FROM loans WHERE id = ?"))
	l, err := scanLoan(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock loan: %w", err)
	}
	return l, nil
}

func (t *sqlTx) SetLoanStatus(ctx context.Context, id int64, status models.LoanStatus) error {
	res, err := t.tx.ExecContext(ctx, t.r.rebind("UPDATE loans SET status = ? WHERE id = ?"), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected for loan status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("loan %d: %w", id, models.ErrLoanNotFound)
	}
	return nil
}
