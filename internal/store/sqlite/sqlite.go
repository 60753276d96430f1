// Package sqlite implements the row-store ports on a local database, used
// for development and offline runs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finlink/internal/core"
	"finlink/internal/store"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Ensure interface conformance
var _ store.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// UpsertTransactions implements store.TransactionStore. The whole batch is
// applied in one transaction so a page's reconciliation is all or nothing.
func (s *Store) UpsertTransactions(ctx context.Context, txns []core.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (transaction_id, account_id, amount, date, category, merchant_name, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			account_id = excluded.account_id,
			amount = excluded.amount,
			date = excluded.date,
			category = excluded.category,
			merchant_name = excluded.merchant_name,
			pending = excluded.pending`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txns {
		if err := t.Validate(); err != nil {
			return err
		}
		category, err := json.Marshal(t.Category)
		if err != nil {
			return fmt.Errorf("encode category: %w", err)
		}
		var merchant sql.NullString
		if t.MerchantName != nil {
			merchant = sql.NullString{String: *t.MerchantName, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.AccountID, t.Amount.String(), t.Date.String(),
			string(category), merchant, t.Pending,
		); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteTransactions implements store.TransactionStore.
func (s *Store) DeleteTransactions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE transaction_id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("delete transactions: %w", err)
	}
	return nil
}

// SelectTransactions implements store.TransactionStore.
func (s *Store) SelectTransactions(ctx context.Context, f core.TransactionFilter, r store.Range) ([]core.Transaction, int64, error) {
	where := ""
	var args []any
	if f.StartDate != nil {
		where = " WHERE date >= ?"
		args = append(args, f.StartDate.String())
	}

	var total int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := "SELECT transaction_id, account_id, amount, date, category, merchant_name, pending FROM transactions" +
		where + " ORDER BY date DESC, transaction_id ASC"
	if r.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, r.Limit, r.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, total, nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var (
		t        core.Transaction
		amount   string
		date     string
		category string
		merchant sql.NullString
	)
	if err := rows.Scan(&t.ID, &t.AccountID, &amount, &date, &category, &merchant, &t.Pending); err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Amount = dec

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Date = d

	if err := json.Unmarshal([]byte(category), &t.Category); err != nil {
		return core.Transaction{}, fmt.Errorf("decode category: %w", err)
	}
	if merchant.Valid {
		t.MerchantName = &merchant.String
	}
	return t, nil
}

// Cursor implements store.CursorStore.
func (s *Store) Cursor(ctx context.Context, itemKey string) (core.SyncCursor, error) {
	var c core.SyncCursor
	err := s.db.QueryRowContext(ctx,
		"SELECT item_key, cursor, exhausted FROM sync_cursors WHERE item_key = ?", itemKey,
	).Scan(&c.ItemKey, &c.Cursor, &c.Exhausted)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SyncCursor{}, store.ErrNotFound
	}
	if err != nil {
		return core.SyncCursor{}, fmt.Errorf("select cursor: %w", err)
	}
	return c, nil
}

// SaveCursor implements store.CursorStore.
func (s *Store) SaveCursor(ctx context.Context, c core.SyncCursor) error {
	if c.ItemKey == "" {
		return core.ErrEmptyItemKey
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (item_key, cursor, exhausted) VALUES (?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET cursor = excluded.cursor, exhausted = excluded.exhausted`,
		c.ItemKey, c.Cursor, c.Exhausted)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// Budgets implements store.BudgetStore.
func (s *Store) Budgets(ctx context.Context, userID string) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, category_id, max FROM budgets WHERE user_id = ? ORDER BY category_id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("select budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b   core.Budget
			max string
		)
		if err := rows.Scan(&b.UserID, &b.CategoryID, &max); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		dec, err := decimal.NewFromString(max)
		if err != nil {
			return nil, fmt.Errorf("parse budget max %q: %w", max, err)
		}
		b.Max = dec
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// SaveBudget implements store.BudgetStore.
func (s *Store) SaveBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category_id, max) VALUES (?, ?, ?)
		ON CONFLICT(user_id, category_id) DO UPDATE SET max = excluded.max`,
		b.UserID, b.CategoryID, b.Max.String())
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}
	return nil
}

// DeleteBudget implements store.BudgetStore.
func (s *Store) DeleteBudget(ctx context.Context, userID, categoryID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM budgets WHERE user_id = ? AND category_id = ?", userID, categoryID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// Items implements store.ItemStore.
func (s *Store) Items(ctx context.Context) ([]core.LinkedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_key, user_id, access_token FROM linked_items ORDER BY item_key ASC")
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	defer rows.Close()

	var out []core.LinkedItem
	for rows.Next() {
		var item core.LinkedItem
		if err := rows.Scan(&item.ItemKey, &item.UserID, &item.AccessToken); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// Item implements store.ItemStore.
func (s *Store) Item(ctx context.Context, itemKey string) (core.LinkedItem, error) {
	var item core.LinkedItem
	err := s.db.QueryRowContext(ctx,
		"SELECT item_key, user_id, access_token FROM linked_items WHERE item_key = ?", itemKey,
	).Scan(&item.ItemKey, &item.UserID, &item.AccessToken)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LinkedItem{}, store.ErrNotFound
	}
	if err != nil {
		return core.LinkedItem{}, fmt.Errorf("select item: %w", err)
	}
	return item, nil
}

// SaveItem implements store.ItemStore.
func (s *Store) SaveItem(ctx context.Context, item core.LinkedItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_items (item_key, user_id, access_token) VALUES (?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET user_id = excluded.user_id, access_token = excluded.access_token`,
		item.ItemKey, item.UserID, item.AccessToken)
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

// DeleteItem implements store.ItemStore.
func (s *Store) DeleteItem(ctx context.Context, itemKey string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM linked_items WHERE item_key = ?", itemKey)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
