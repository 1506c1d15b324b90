package dummy

import (
	"context"
	"sync"

	"stem-unmixer/src/application/runs/entity"
)

var _ entity.RunStore = &RunStore{}

func NewDummyRunStore() *RunStore {
	return &RunStore{
		Unavailable: false,
		State:       make(map[string]entity.Run),
	}
}

type RunStore struct {
	Unavailable bool
	State       map[string]entity.Run
	mutex       sync.RWMutex
}

func (r *RunStore) GetRun(_ context.Context, runID string) (entity.Run, error) {
	if r.Unavailable {
		return entity.Run{}, NetworkFailure
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	run, ok := r.State[runID]
	if !ok {
		return entity.Run{}, NotFound
	}

	return run, nil
}

func (r *RunStore) SetRun(_ context.Context, run entity.Run) error {
	if r.Unavailable {
		return NetworkFailure
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.State[run.ID] = run

	return nil
}

func (r *RunStore) UpdateRun(_ context.Context, runID string, updater entity.RunUpdater) error {
	if r.Unavailable {
		return NetworkFailure
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	run, ok := r.State[runID]
	if !ok {
		return NotFound
	}

	updated, err := updater(run)
	if err != nil {
		return err
	}

	updated.ID = runID
	updated.Version = run.Version + 1
	r.State[runID] = updated

	return nil
}
