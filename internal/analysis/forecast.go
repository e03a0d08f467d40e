package analysis

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dvloznov/finance-analyzer/internal/stats"
)

// PredictPrices returns n illustrative prices, each drawn uniformly from
// lastClose ± volatility/2. It is a randomized projection, not a model:
// only the count and the bounds are meaningful. A nil rng uses a
// time-seeded source.
func PredictPrices(closes []float64, n int, rng *rand.Rand) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("PredictPrices: negative count %d", n)
	}
	last, err := stats.Last(closes)
	if err != nil {
		return nil, fmt.Errorf("PredictPrices: %w", err)
	}
	vol, err := stats.Volatility(closes)
	if err != nil {
		return nil, fmt.Errorf("PredictPrices: %w", err)
	}
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = last + (rng.Float64()-0.5)*vol
	}
	return out, nil
}
