// Package storage is the SQLite ports.Store backend.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"duka/internal/core"
	"duka/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db            *sqlx.DB
	now           func() time.Time
	schemaVersion uint
}

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateUp(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now, schemaVersion: version}, nil
}

// SchemaVersion is the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.schemaVersion
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SeedIfEmpty loads seed when the products table has no rows.
func (r *SQLiteRepository) SeedIfEmpty(ctx context.Context, seed ports.Seed) error {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM products`); err != nil {
		return core.WrapIO("count products", err)
	}
	if n > 0 {
		return nil
	}
	for _, p := range seed.Products {
		if _, err := r.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	for _, tx := range seed.Transactions {
		if _, err := r.CreateTransaction(ctx, tx); err != nil {
			return fmt.Errorf("seed transaction: %w", err)
		}
	}
	for _, ex := range seed.Exchanges {
		if _, err := r.CreateExchange(ctx, ex); err != nil {
			return fmt.Errorf("seed exchange: %w", err)
		}
	}
	for _, d := range seed.Debts {
		if _, err := r.CreateDebt(ctx, d); err != nil {
			return fmt.Errorf("seed debt %q: %w", d.Name, err)
		}
	}
	slog.InfoContext(ctx, "Seeded empty database", "products", len(seed.Products))
	return nil
}

func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]core.Product, error) {
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name, unit, quantity, created_at FROM products ORDER BY created_at, rowid`); err != nil {
		return nil, core.WrapIO("list products", err)
	}
	out := make([]core.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

func (r *SQLiteRepository) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO products (id, name, unit, quantity, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Unit, p.Quantity, formatTime(p.CreatedAt))
	if err != nil {
		return core.Product{}, core.WrapIO("create product", err)
	}
	slog.InfoContext(ctx, "Product saved to SQLite", "id", p.ID, "name", p.Name, "quantity", p.Quantity)
	return p, nil
}

func getProduct(ctx context.Context, q querier, id string) (core.Product, error) {
	var row productRow
	err := q.GetContext(ctx, &row, `SELECT id, name, unit, quantity, created_at FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, &core.NotFoundError{Kind: core.EntityProduct, ID: id}
	}
	if err != nil {
		return core.Product{}, core.WrapIO("get product", err)
	}
	return row.toCore(), nil
}

func (r *SQLiteRepository) UpdateProduct(ctx context.Context, id string, patch core.ProductPatch) (core.Product, error) {
	p, err := getProduct(ctx, r.db, id)
	if err != nil {
		return core.Product{}, err
	}
	if p, err = patch.Apply(p); err != nil {
		return core.Product{}, err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE products SET name = ?, unit = ? WHERE id = ?`, p.Name, p.Unit, id); err != nil {
		return core.Product{}, core.WrapIO("update product", err)
	}
	return p, nil
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "products", core.EntityProduct, id)
}

func (r *SQLiteRepository) AdjustStock(ctx context.Context, id string, delta int) (core.Product, error) {
	return adjustStock(ctx, r.db, id, delta)
}

// adjustStock applies delta with a single conditional UPDATE so concurrent
// callers can never drive the quantity below zero.
func adjustStock(ctx context.Context, q querier, id string, delta int) (core.Product, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET quantity = quantity + ? WHERE id = ? AND quantity + ? >= 0`,
		delta, id, delta)
	if err != nil {
		return core.Product{}, core.WrapIO("adjust stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Product{}, core.WrapIO("adjust stock", err)
	}
	p, err := getProduct(ctx, q, id)
	if err != nil {
		return core.Product{}, err
	}
	if n == 0 {
		return p, core.NewValidationError("quantity", core.ReasonInsufficientStock,
			fmt.Sprintf("cannot remove %d units, only %d available", -delta, p.Quantity))
	}
	return p, nil
}

const transactionColumns = `id, kind, amount, payment_type, type, product_id, description, notes, created_at`

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.selectTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY created_at, rowid`)
}

func (r *SQLiteRepository) selectTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, core.WrapIO("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	return r.insertTransaction(ctx, r.db, tx)
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, q querier, tx core.Transaction) (core.Transaction, error) {
	tx = tx.WithDefaults(r.now())
	if tx.Amount.IsZero() {
		return core.Transaction{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "amount cannot be zero")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := sqlx.NamedExecContext(ctx, q,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (:id, :kind, :amount, :payment_type, :type, :product_id, :description, :notes, :created_at)`,
		newTransactionRow(tx))
	if err != nil {
		return core.Transaction{}, core.WrapIO("create transaction", err)
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"kind", tx.Kind,
		"amount", tx.Amount.String(),
		"channel", tx.Channel())
	return tx, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "transactions", core.EntityTransaction, id)
}

// RecordMovement adjusts the product and inserts the transaction in one SQL
// transaction.
func (r *SQLiteRepository) RecordMovement(ctx context.Context, tx core.Transaction) (core.Transaction, core.Product, error) {
	tx.Kind = core.KindStock
	dbtx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return core.Transaction{}, core.Product{}, core.WrapIO("begin movement", err)
	}
	defer dbtx.Rollback()

	p, err := adjustStock(ctx, dbtx, tx.ProductID, int(tx.Amount.IntPart()))
	if err != nil {
		return core.Transaction{}, core.Product{}, err
	}
	stored, err := r.insertTransaction(ctx, dbtx, tx)
	if err != nil {
		return core.Transaction{}, core.Product{}, err
	}
	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, core.Product{}, core.WrapIO("commit movement", err)
	}
	return stored, p, nil
}

// ListUnsynced returns up to limit transactions not yet copied to the
// Sheets ledger, oldest first.
func (r *SQLiteRepository) ListUnsynced(ctx context.Context, limit int) ([]core.Transaction, error) {
	return r.selectTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE synced_at IS NULL ORDER BY created_at, rowid LIMIT ?`, limit)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE transactions SET synced_at = ? WHERE id IN (?)`, formatTime(r.now()), ids)
	if err != nil {
		return fmt.Errorf("build mark synced query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return core.WrapIO("mark synced", err)
	}
	slog.DebugContext(ctx, "Transactions marked as synced", "count", len(ids))
	return nil
}

func (r *SQLiteRepository) ListExchanges(ctx context.Context) ([]core.Exchange, error) {
	var rows []exchangeRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, ksh, rate, usd, direction, date FROM exchanges ORDER BY date, rowid`); err != nil {
		return nil, core.WrapIO("list exchanges", err)
	}
	out := make([]core.Exchange, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

func (r *SQLiteRepository) CreateExchange(ctx context.Context, ex core.Exchange) (core.Exchange, error) {
	if !ex.KSH.IsPositive() || !ex.USD.IsPositive() || !ex.Rate.IsPositive() {
		return core.Exchange{}, core.NewValidationError("amount", core.ReasonInvalidAmount, "exchange amounts must be positive")
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.Date.IsZero() {
		ex.Date = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchanges (id, ksh, rate, usd, direction, date) VALUES (?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.KSH, ex.Rate, ex.USD, string(ex.Direction), formatTime(ex.Date))
	if err != nil {
		return core.Exchange{}, core.WrapIO("create exchange", err)
	}
	return ex, nil
}

const debtColumns = `id, name, phone, amount, description, date, status, paid_at`

func (r *SQLiteRepository) ListDebts(ctx context.Context) ([]core.Debt, error) {
	var rows []debtRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+debtColumns+` FROM debts ORDER BY date, rowid`); err != nil {
		return nil, core.WrapIO("list debts", err)
	}
	out := make([]core.Debt, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCore())
	}
	return out, nil
}

func (r *SQLiteRepository) CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if d.Status == "" {
		d.Status = core.DebtPending
	}
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Date.IsZero() {
		d.Date = r.now()
	}
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO debts (`+debtColumns+`)
		 VALUES (:id, :name, :phone, :amount, :description, :date, :status, :paid_at)`,
		newDebtRow(d))
	if err != nil {
		return core.Debt{}, core.WrapIO("create debt", err)
	}
	return d, nil
}

func (r *SQLiteRepository) UpdateDebt(ctx context.Context, id string, patch core.DebtPatch) (core.Debt, error) {
	var row debtRow
	err := r.db.GetContext(ctx, &row, `SELECT `+debtColumns+` FROM debts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Debt{}, &core.NotFoundError{Kind: core.EntityDebt, ID: id}
	}
	if err != nil {
		return core.Debt{}, core.WrapIO("get debt", err)
	}
	d, err := patch.Apply(row.toCore(), r.now())
	if err != nil {
		return core.Debt{}, err
	}
	_, err = r.db.NamedExecContext(ctx,
		`UPDATE debts SET name = :name, phone = :phone, amount = :amount, description = :description,
		 status = :status, paid_at = :paid_at WHERE id = :id`,
		newDebtRow(d))
	if err != nil {
		return core.Debt{}, core.WrapIO("update debt", err)
	}
	return d, nil
}

func (r *SQLiteRepository) DeleteDebt(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "debts", core.EntityDebt, id)
}

func deleteByID(ctx context.Context, q querier, table string, kind core.EntityKind, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return core.WrapIO("delete "+string(kind), err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.WrapIO("delete "+string(kind), err)
	} else if n == 0 {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
