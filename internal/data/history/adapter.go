package history

import (
	"context"
)

// Adapter bridges Store to the core HistoryStore port.
type Adapter struct {
	store *Store
}

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SaveRun(ctx context.Context, run Run) error {
	return a.store.SaveRun(ctx, run)
}

// LoadRuns fills in the type breakdown for every returned run.
func (a *Adapter) LoadRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	runs, err := a.store.LoadRuns(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		types, err := a.store.LoadRunTypes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Types = types
	}
	return runs, nil
}

func (a *Adapter) Close() error {
	return a.store.Close()
}
