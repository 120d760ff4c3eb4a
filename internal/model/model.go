package model

import (
	"context"

	"github.com/danielpatrickdp/ownership-engine/internal/ownership"
	"golang.org/x/sync/errgroup"
)

// #region model
// Model is a learned ownership predictor. Implementations must be safe for
// concurrent read-only use.
type Model interface {
	Predict(f ownership.Features) ownership.Prediction
	Name() string
}

// PredictBatch runs m over every feature set in order.
func PredictBatch(m Model, features []ownership.Features) []ownership.Prediction {
	out := make([]ownership.Prediction, len(features))
	for i, f := range features {
		out[i] = m.Predict(f)
	}
	return out
}

// #endregion model

// #region null
// Null is the sentinel used when no learned model is configured.
type Null struct{}

func (Null) Predict(ownership.Features) ownership.Prediction {
	return ownership.NewPrediction(ownership.RawPointer, 0)
}

func (Null) Name() string { return "null" }

// IsNull reports whether m is the Null sentinel.
func IsNull(m Model) bool {
	_, null := m.(Null)
	return null
}

// #endregion null

// #region concurrent
// PredictConcurrent fans inference out over at most limit goroutines.
// Output order matches input order.
func PredictConcurrent(ctx context.Context, m Model, features []ownership.Features, limit int) ([]ownership.Prediction, error) {
	out := make([]ownership.Prediction, len(features))
	if len(features) == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(limit, len(features)))
	for i, f := range features {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			out[i] = m.Predict(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion concurrent
