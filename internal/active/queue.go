package active

import "slices"

// DefaultMaxPending bounds the pending queue.
const DefaultMaxPending = 1000

// #region queue
// Queue holds pending samples ordered by descending uncertainty, plus the
// samples that came back labeled.
type Queue struct {
	pending        []UncertainSample
	labeled        []UncertainSample
	strategy       Strategy
	maxPending     int
	nextID         uint64
	totalProcessed uint64
}

// NewQueue creates an empty queue. maxPending below 1 uses DefaultMaxPending.
func NewQueue(strategy Strategy, maxPending int) *Queue {
	if maxPending < 1 {
		maxPending = DefaultMaxPending
	}
	return &Queue{strategy: strategy, maxPending: maxPending, nextID: 1}
}

func (q *Queue) Strategy() Strategy     { return q.strategy }
func (q *Queue) MaxPending() int        { return q.maxPending }
func (q *Queue) PendingCount() int      { return len(q.pending) }
func (q *Queue) LabeledCount() int      { return len(q.labeled) }
func (q *Queue) TotalProcessed() uint64 { return q.totalProcessed }

// Enqueue assigns the sample an ID and inserts it ahead of the first pending
// sample with a lower score. Equal scores keep arrival order. A sample that
// would rank past capacity is dropped; otherwise an overflow evicts the
// lowest-ranked sample. The assigned ID is returned either way.
func (q *Queue) Enqueue(s UncertainSample) uint64 {
	s.ID = q.nextID
	q.nextID++
	q.totalProcessed++

	pos := slices.IndexFunc(q.pending, func(p UncertainSample) bool {
		return p.Uncertainty < s.Uncertainty
	})
	if pos < 0 {
		pos = len(q.pending)
	}
	if pos < q.maxPending {
		q.pending = slices.Insert(q.pending, pos, s)
		if len(q.pending) > q.maxPending {
			q.pending = q.pending[:q.maxPending]
		}
	}
	return s.ID
}

// Next removes and returns the most uncertain pending sample.
func (q *Queue) Next() (UncertainSample, bool) {
	if len(q.pending) == 0 {
		return UncertainSample{}, false
	}
	s := q.pending[0]
	q.pending = q.pending[1:]
	return s, true
}

// Peek returns the most uncertain pending sample without removing it.
func (q *Queue) Peek() (UncertainSample, bool) {
	if len(q.pending) == 0 {
		return UncertainSample{}, false
	}
	return q.pending[0], true
}

// NextBatch removes up to n samples in priority order.
func (q *Queue) NextBatch(n int) []UncertainSample {
	n = min(max(n, 0), len(q.pending))
	batch := slices.Clone(q.pending[:n])
	q.pending = q.pending[n:]
	return batch
}

// SubmitLabeled stores s for training. Unlabeled samples are ignored and
// false is returned.
func (q *Queue) SubmitLabeled(s UncertainSample) bool {
	if !s.IsLabeled() {
		return false
	}
	q.labeled = append(q.labeled, s)
	return true
}

// Labeled returns a copy of the labeled samples.
func (q *Queue) Labeled() []UncertainSample {
	return slices.Clone(q.labeled)
}

// Pending returns a copy of the pending samples in priority order.
func (q *Queue) Pending() []UncertainSample {
	return slices.Clone(q.pending)
}

// TakeLabeled returns the labeled samples and empties that list.
func (q *Queue) TakeLabeled() []UncertainSample {
	out := q.labeled
	q.labeled = nil
	return out
}

func (q *Queue) ClearPending() {
	q.pending = nil
}

// Stats summarizes the queue.
func (q *Queue) Stats() Stats {
	st := Stats{
		Pending:        len(q.pending),
		Labeled:        len(q.labeled),
		TotalProcessed: q.totalProcessed,
	}
	if len(q.pending) > 0 {
		var sum float64
		for _, s := range q.pending {
			sum += s.Uncertainty
		}
		st.AvgUncertainty = sum / float64(len(q.pending))
	}
	var correct, total int
	for i := range q.labeled {
		ok, labeled := q.labeled[i].PredictionCorrect()
		if !labeled {
			continue
		}
		total++
		if ok {
			correct++
		}
	}
	if total > 0 {
		st.PredictionAccuracy = float64(correct) / float64(total)
	}
	return st
}

// #endregion queue

// #region state
// QueueState is the persisted form of a Queue.
type QueueState struct {
	Pending        []UncertainSample `json:"pending" msgpack:"pending"`
	Labeled        []UncertainSample `json:"labeled" msgpack:"labeled"`
	Strategy       Strategy          `json:"strategy" msgpack:"strategy"`
	MaxPending     int               `json:"max_pending" msgpack:"max_pending"`
	NextID         uint64            `json:"next_id" msgpack:"next_id"`
	TotalProcessed uint64            `json:"total_processed" msgpack:"total_processed"`
}

// State captures the queue for persistence.
func (q *Queue) State() QueueState {
	return QueueState{
		Pending:        slices.Clone(q.pending),
		Labeled:        slices.Clone(q.labeled),
		Strategy:       q.strategy,
		MaxPending:     q.maxPending,
		NextID:         q.nextID,
		TotalProcessed: q.totalProcessed,
	}
}

// RestoreQueue rebuilds a queue from persisted state. Pending samples are
// re-sorted and trimmed to capacity, and the ID counter never moves backwards
// past a restored sample.
func RestoreQueue(st QueueState) *Queue {
	q := NewQueue(st.Strategy, st.MaxPending)
	q.pending = slices.Clone(st.Pending)
	slices.SortStableFunc(q.pending, func(a, b UncertainSample) int {
		switch {
		case a.Uncertainty > b.Uncertainty:
			return -1
		case a.Uncertainty < b.Uncertainty:
			return 1
		}
		return 0
	})
	if len(q.pending) > q.maxPending {
		q.pending = q.pending[:q.maxPending]
	}
	q.labeled = slices.Clone(st.Labeled)
	q.totalProcessed = st.TotalProcessed
	q.nextID = max(st.NextID, 1)
	for _, s := range append(slices.Clone(q.pending), q.labeled...) {
		if s.ID >= q.nextID {
			q.nextID = s.ID + 1
		}
	}
	return q
}

// #endregion state
