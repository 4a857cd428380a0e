package stats

// DefaultIterations is the number of Monte Carlo draws per comparison.
// The standard error of a win probability p is sqrt(p(1-p)/N), about 0.1
// percentage points at p=0.95 and N=50,000. Doubling N halves the variance
// and doubles the runtime.
const DefaultIterations = 50_000

// DefaultConfidenceThreshold is used when no threshold is configured.
const DefaultConfidenceThreshold = 95.0

// Significance is the outcome of one control-vs-variant comparison.
// Ties are counted for neither arm, so the probabilities may sum below 1.
type Significance struct {
	ControlWinProbability float64 `json:"control_win_probability" yaml:"control_win_probability"`
	VariantWinProbability float64 `json:"variant_win_probability" yaml:"variant_win_probability"`
	IsSignificant         bool    `json:"is_significant" yaml:"is_significant"`
}

// Neutral is returned for counts that cannot be sampled.
func Neutral() Significance {
	return Significance{ControlWinProbability: 0.5, VariantWinProbability: 0.5}
}

// Engine estimates which arm has the higher true conversion rate by sampling
// Beta(successes+1, failures+1) posteriors.
type Engine struct {
	iterations int
	sampler    *Sampler
}

// NewEngine returns an Engine. iterations <= 0 selects DefaultIterations and
// a nil sampler selects a randomly seeded one.
func NewEngine(iterations int, sampler *Sampler) *Engine {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if sampler == nil {
		sampler = NewSampler(nil)
	}
	return &Engine{iterations: iterations, sampler: sampler}
}

// Iterations returns the number of draws per Estimate call.
func (e *Engine) Iterations() int {
	return e.iterations
}

// Estimate returns the probability that each arm has the higher conversion
// rate. Negative counts, or more successes than trials on either arm, give
// the neutral result without sampling.
//
// The result is significant when either probability reaches threshold
// (a percentage): a variant losing convincingly is as much a finding as one
// winning.
func (e *Engine) Estimate(controlTrials, controlSuccesses, variantTrials, variantSuccesses int, threshold float64) Significance {
	if !validCounts(controlTrials, controlSuccesses) || !validCounts(variantTrials, variantSuccesses) {
		return Neutral()
	}

	controlAlpha := float64(controlSuccesses + 1)
	controlBeta := float64(controlTrials - controlSuccesses + 1)
	variantAlpha := float64(variantSuccesses + 1)
	variantBeta := float64(variantTrials - variantSuccesses + 1)

	var controlWins, variantWins int
	for i := 0; i < e.iterations; i++ {
		c := e.sampler.Beta(controlAlpha, controlBeta)
		v := e.sampler.Beta(variantAlpha, variantBeta)
		switch {
		case v > c:
			variantWins++
		case c > v:
			controlWins++
		}
	}

	n := float64(e.iterations)
	result := Significance{
		ControlWinProbability: float64(controlWins) / n,
		VariantWinProbability: float64(variantWins) / n,
	}
	result.IsSignificant = result.VariantWinProbability*100 >= threshold ||
		result.ControlWinProbability*100 >= threshold
	return result
}

func validCounts(trials, successes int) bool {
	return trials >= 0 && successes >= 0 && successes <= trials
}
