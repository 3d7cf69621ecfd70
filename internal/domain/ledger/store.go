package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// InsertEntryTx writes the entry and its lines inside the caller's
// transaction. Payroll posting uses this so the entry and the run's status
// flip commit or roll back together.
func InsertEntryTx(ctx context.Context, tx pgx.Tx, tenantID string, entry Entry) (string, error) {
	if err := entry.Validate(); err != nil {
		return "", err
	}

	var entryID string
	err := tx.QueryRow(ctx, `
    INSERT INTO journal_entries (tenant_id, entry_date, memo, currency, source, source_id)
    VALUES ($1, $2, $3, $4, $5, $6)
    RETURNING id
  `, tenantID, entry.EntryDate, entry.Memo, entry.Currency, entry.Source, entry.SourceID).Scan(&entryID)
	if err != nil {
		return "", err
	}

	for i, line := range entry.Lines {
		if _, err := tx.Exec(ctx, `
      INSERT INTO journal_lines (tenant_id, entry_id, position, account_code, account_name, debit, credit)
      VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, tenantID, entryID, i, line.AccountCode, line.AccountName, line.Debit, line.Credit); err != nil {
			return "", err
		}
	}
	return entryID, nil
}

func (s *Store) GetEntry(ctx context.Context, tenantID, entryID string) (Entry, error) {
	var entry Entry
	err := s.DB.QueryRow(ctx, `
    SELECT id, entry_date, memo, currency, source, source_id, created_at
    FROM journal_entries
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, entryID).Scan(&entry.ID, &entry.EntryDate, &entry.Memo, &entry.Currency, &entry.Source, &entry.SourceID, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return Entry{}, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT account_code, account_name, debit, credit
    FROM journal_lines
    WHERE tenant_id = $1 AND entry_id = $2
    ORDER BY position
  `, tenantID, entryID)
	if err != nil {
		return Entry{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.AccountCode, &line.AccountName, &line.Debit, &line.Credit); err != nil {
			return Entry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (s *Store) ListEntries(ctx context.Context, tenantID string, limit, offset int) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, entry_date, memo, currency, source, source_id, created_at
    FROM journal_entries
    WHERE tenant_id = $1
    ORDER BY entry_date DESC, created_at DESC
    LIMIT $2 OFFSET $3
  `, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.EntryDate, &entry.Memo, &entry.Currency, &entry.Source, &entry.SourceID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
