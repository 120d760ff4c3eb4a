package snapshot

import (
	"github.com/danielpatrickdp/ownership-engine/internal/abtest"
	"github.com/danielpatrickdp/ownership-engine/internal/active"
	"github.com/danielpatrickdp/ownership-engine/internal/errtrack"
)

// SaveQueue persists the active-learning queue.
func SaveQueue(path string, q *active.Queue) error {
	return Save(path, KindQueue, q.State())
}

// LoadQueue restores a queue, or returns a fresh one when path is missing.
func LoadQueue(path string, strategy active.Strategy, maxPending int) (*active.Queue, error) {
	st, found, err := Load[active.QueueState](path, KindQueue)
	if err != nil {
		return nil, err
	}
	if !found {
		return active.NewQueue(strategy, maxPending), nil
	}
	return active.RestoreQueue(st), nil
}

// SaveTracker persists recorded errors and successes.
func SaveTracker(path string, t *errtrack.Tracker) error {
	return Save(path, KindErrors, t.State())
}

// LoadTracker restores a tracker, or returns an empty one when path is missing.
func LoadTracker(path string) (*errtrack.Tracker, error) {
	st, found, err := Load[errtrack.State](path, KindErrors)
	if err != nil {
		return nil, err
	}
	if !found {
		return errtrack.NewTracker(), nil
	}
	return errtrack.RestoreTracker(st), nil
}

func SaveObservations(path string, obs []abtest.Observation) error {
	return Save(path, KindObservations, obs)
}

func LoadObservations(path string) ([]abtest.Observation, error) {
	obs, _, err := Load[[]abtest.Observation](path, KindObservations)
	return obs, err
}

func SaveSuggestions(path string, s []errtrack.Suggestion) error {
	return Save(path, KindSuggestions, s)
}

func LoadSuggestions(path string) ([]errtrack.Suggestion, error) {
	s, _, err := Load[[]errtrack.Suggestion](path, KindSuggestions)
	return s, err
}
