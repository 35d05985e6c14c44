package memory

import (
	"context"
	"sync"

	"github.com/banking/compliance-engine/internal/domain"
	"github.com/banking/compliance-engine/internal/screening"
)

type WatchlistRepository struct {
	mu    sync.RWMutex
	lists map[domain.SanctionListSource][]screening.WatchlistEntry
}

func NewWatchlistRepository() *WatchlistRepository {
	return &WatchlistRepository{lists: make(map[domain.SanctionListSource][]screening.WatchlistEntry)}
}

func (r *WatchlistRepository) Entries(_ context.Context) ([]screening.WatchlistEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []screening.WatchlistEntry
	for _, entries := range r.lists {
		out = append(out, entries...)
	}
	return out, nil
}

// ReplaceList atomically swaps the entries for one list source, as a list
// refresh does.
func (r *WatchlistRepository) ReplaceList(_ context.Context, source domain.SanctionListSource, entries []screening.WatchlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists[source] = append([]screening.WatchlistEntry(nil), entries...)
	return nil
}
