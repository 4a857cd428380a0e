package stats

// Verdict is the classified outcome of a variant or a whole experiment.
type Verdict string

const (
	VerdictWon          Verdict = "won"
	VerdictLost         Verdict = "lost"
	VerdictInconclusive Verdict = "inconclusive"
)

// VariantVerdict names the verdict for one variant.
type VariantVerdict struct {
	Name    string  `json:"name" yaml:"name"`
	Verdict Verdict `json:"verdict" yaml:"verdict"`
}

// Classification holds the per-variant and overall verdicts.
type Classification struct {
	PerVariant []VariantVerdict `json:"per_variant" yaml:"per_variant"`
	Overall    Verdict          `json:"overall" yaml:"overall"`
}

// ClassifyVariant maps one comparison to a verdict at threshold percent.
func ClassifyVariant(sig Significance, threshold float64) Verdict {
	switch {
	case sig.VariantWinProbability*100 >= threshold:
		return VerdictWon
	case sig.ControlWinProbability*100 >= threshold:
		return VerdictLost
	default:
		return VerdictInconclusive
	}
}

// Classify returns the verdict for every variant and for the experiment.
// A single winner makes the experiment a win; it is a loss only when every
// variant lost.
func Classify(a *Analysis, threshold float64) Classification {
	if a == nil || len(a.Variants) == 0 {
		return Classification{PerVariant: []VariantVerdict{}, Overall: VerdictInconclusive}
	}

	c := Classification{PerVariant: make([]VariantVerdict, len(a.Variants))}
	won, lost := 0, 0
	for i, v := range a.Variants {
		verdict := ClassifyVariant(v.Significance, threshold)
		c.PerVariant[i] = VariantVerdict{Name: v.Name, Verdict: verdict}
		switch verdict {
		case VerdictWon:
			won++
		case VerdictLost:
			lost++
		}
	}

	switch {
	case won > 0:
		c.Overall = VerdictWon
	case lost == len(a.Variants):
		c.Overall = VerdictLost
	default:
		c.Overall = VerdictInconclusive
	}
	return c
}
