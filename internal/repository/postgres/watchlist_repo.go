package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/screening"
)

// WatchlistRepository stores sanctions list entries and serves them to the
// screener. List refreshes swap a whole source in one transaction so the
// screener never observes a half-loaded list.
type WatchlistRepository struct {
	pool *pgxpool.Pool
}

func NewWatchlistRepository(pool *pgxpool.Pool) *WatchlistRepository {
	return &WatchlistRepository{pool: pool}
}

func (r *WatchlistRepository) Entries(ctx context.Context) ([]screening.WatchlistEntry, error) {
	const query = `
		SELECT entry_id, list_source, name, aliases, program
		FROM watchlist_entries
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []screening.WatchlistEntry
	for rows.Next() {
		var e screening.WatchlistEntry
		if err := rows.Scan(&e.EntryID, &e.ListSource, &e.Name, &e.Aliases, &e.Program); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *WatchlistRepository) ReplaceList(ctx context.Context, source domain.SanctionListSource, entries []screening.WatchlistEntry) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM watchlist_entries WHERE list_source = $1`, source); err != nil {
		return fmt.Errorf("failed to clear list %s: %w", source, err)
	}

	for _, e := range entries {
		_, err := tx.Exec(ctx, `
			INSERT INTO watchlist_entries (entry_id, list_source, name, aliases, program)
			VALUES ($1, $2, $3, $4, $5)
		`, e.EntryID, source, e.Name, e.Aliases, e.Program)
		if err != nil {
			return fmt.Errorf("failed to insert watchlist entry %s: %w", e.EntryID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit list refresh: %w", err)
	}
	return nil
}
