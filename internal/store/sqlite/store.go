// Package sqlite implements store.Client on a local SQLite file. It mirrors
// the remote store's tabular layout: each (book, table) maps to an ordered
// list of JSON-encoded cell rows. Used for development and offline mode.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ycchuang/sheetbook/internal/common"
	"github.com/ycchuang/sheetbook/internal/dbx"
	"github.com/ycchuang/sheetbook/internal/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Client = (*Store)(nil)

// New opens (or creates) the SQLite file at path and bootstraps the schema.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path cannot be empty")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if _, err := db.ExecContext(ctx, querySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Read(ctx context.Context, book, table string) ([]store.Row, error) {
	rows, err := s.db.QueryContext(ctx, queryReadRows, book, table)
	if err != nil {
		return nil, store.Unavailable("read", book, table, err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, store.Unavailable("read", book, table, err)
		}
		var r store.Row
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, store.Unavailable("read", book, table, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("read", book, table, err)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, book, table string, row store.Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return store.Unavailable("append", book, table, err)
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var pos int64
		if err := tx.QueryRowContext(ctx, queryNextPos, book, table).Scan(&pos); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, queryInsertRow, book, table, pos, string(data))
		return err
	})
	if err != nil {
		return store.Unavailable("append", book, table, err)
	}
	return nil
}

func (s *Store) ReplaceAll(ctx context.Context, book, table string, rows []store.Row) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, queryDeleteTable, book, table); err != nil {
			return err
		}
		for i, r := range rows {
			data, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queryInsertRow, book, table, i, string(data)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.Unavailable("replaceAll", book, table, err)
	}
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, book, table string, rowIndex, col int, value string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pos, row, err := rowAt(ctx, tx, book, table, rowIndex)
		if err != nil {
			return err
		}
		for len(row) < col {
			row = append(row, "")
		}
		row[col-1] = value
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, queryUpdateRow, string(data), book, table, pos)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return store.NewError("updateCell", book, table, err)
		}
		return store.Unavailable("updateCell", book, table, err)
	}
	return nil
}

func (s *Store) DeleteRow(ctx context.Context, book, table string, rowIndex int) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pos, _, err := rowAt(ctx, tx, book, table, rowIndex)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, queryDeleteRow, book, table, pos)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return store.NewError("deleteRow", book, table, err)
		}
		return store.Unavailable("deleteRow", book, table, err)
	}
	return nil
}

// rowAt resolves the rowIndex-th data row to its physical position. Positions
// can have gaps after deletions, so the lookup is by order, not by value.
func rowAt(ctx context.Context, tx dbx.DBTX, book, table string, rowIndex int) (int64, store.Row, error) {
	var pos int64
	var data string
	err := tx.QueryRowContext(ctx, queryRowAt, book, table, rowIndex).Scan(&pos, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, fmt.Errorf("%w: row %d", common.ErrNotFound, rowIndex)
		}
		return 0, nil, err
	}
	var row store.Row
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return 0, nil, err
	}
	return pos, row, nil
}
