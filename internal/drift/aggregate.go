package drift

import (
	"sort"

	"github.com/driftwatch/driftwatch/internal/domain"
)

const (
	// psiScale and klScale fold raw divergences onto the common 0-100 DSI
	// scale. The asymmetric factors are kept for compatibility with existing
	// dashboards; do not change the ratio without product input.
	psiScale = 100
	klScale  = 200

	maxNormalizedScore = 100
)

// NormalizedScore maps a metric onto the shared 0-100 scale. The second
// return is false for unscored (text) metrics, which are excluded from DSI.
func NormalizedScore(m domain.FeatureMetric) (float64, bool) {
	switch {
	case m.PSI != nil:
		return capScore(*m.PSI * psiScale), true
	case m.KLDivergence != nil:
		return capScore(*m.KLDivergence * klScale), true
	default:
		return 0, false
	}
}

func capScore(score float64) float64 {
	if score > maxNormalizedScore {
		return maxNormalizedScore
	}
	return score
}

// Aggregate reduces a run's metrics to the drift severity index and drift
// ratio. Pure reduction; never mutates the metric records. DSI is the mean
// normalized score over scored metrics and lies in [0,100]; drift ratio is
// the flagged fraction of scored metrics and lies in [0,1].
func Aggregate(metrics []domain.FeatureMetric) (dsi, driftRatio float64) {
	scored := 0
	flagged := 0
	total := 0.0
	for _, m := range metrics {
		score, ok := NormalizedScore(m)
		if !ok {
			continue
		}
		scored++
		total += score
		if m.DriftFlag {
			flagged++
		}
	}
	if scored == 0 {
		return 0, 0
	}
	return total / float64(scored), float64(flagged) / float64(scored)
}

// FeatureScore pairs a drifted feature with its normalized score.
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// DriftedFeatures lists flagged features sorted by descending normalized
// score, for alert messages and run responses.
func DriftedFeatures(metrics []domain.FeatureMetric) []FeatureScore {
	features := make([]FeatureScore, 0)
	for _, m := range metrics {
		if !m.DriftFlag {
			continue
		}
		score, ok := NormalizedScore(m)
		if !ok {
			continue
		}
		features = append(features, FeatureScore{Name: m.FeatureName, Score: score})
	}
	sort.SliceStable(features, func(i, j int) bool {
		return features[i].Score > features[j].Score
	})
	return features
}
