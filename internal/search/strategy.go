package search

import "math"

// RetrievalConfig maxima applied during difficulty scaling.
const (
	maxSparseTopK       = 300
	maxDenseTopK        = 300
	maxRerankCandidates = 150
)

// easyScale and hardScale adjust candidate counts by difficulty.
const (
	easyScale = 0.6
	hardScale = 1.5
)

// strategyPresets are the fixed base configurations per strategy.
var strategyPresets = map[Strategy]RetrievalConfig{
	StrategySparseOnly: {
		Strategy:     StrategySparseOnly,
		SparseTopK:   50,
		DenseTopK:    0,
		SparseWeight: 1.0,
		DenseWeight:  0.0,

		RerankCandidates:     10,
		UseSecondPass:        false,
		SecondPassCandidates: 0,
	},
	StrategyBalanced: {
		Strategy:     StrategyBalanced,
		SparseTopK:   80,
		DenseTopK:    80,
		SparseWeight: 0.5,
		DenseWeight:  0.5,

		RerankCandidates:     30,
		UseSecondPass:        false,
		SecondPassCandidates: 0,
	},
	StrategyDenseHeavy: {
		Strategy:     StrategyDenseHeavy,
		SparseTopK:   60,
		DenseTopK:    120,
		SparseWeight: 0.3,
		DenseWeight:  0.7,

		RerankCandidates:     50,
		UseSecondPass:        false,
		SecondPassCandidates: 20,
	},
	StrategyDeepRerank: {
		Strategy:     StrategyDeepRerank,
		SparseTopK:   150,
		DenseTopK:    150,
		SparseWeight: 0.4,
		DenseWeight:  0.6,

		RerankCandidates:     100,
		UseSecondPass:        true,
		SecondPassCandidates: 30,
	},
}

// Overrides are the user-supplied fields that replace preset values.
type Overrides struct {
	SparseWeight     *float64
	DenseWeight      *float64
	RerankCandidates *int
	EnableReranking  *bool
}

// OverridesFromRequest extracts overrides from a search request.
func OverridesFromRequest(req *SearchRequest) Overrides {
	return Overrides{
		SparseWeight:     req.SparseWeight,
		DenseWeight:      req.DenseWeight,
		RerankCandidates: req.RerankCandidates,
		EnableReranking:  req.EnableReranking,
	}
}

// SelectStrategy maps an intent to its retrieval strategy.
func SelectStrategy(intent Intent) Strategy {
	switch intent {
	case IntentNavigational:
		return StrategySparseOnly
	case IntentExploratory:
		return StrategyDenseHeavy
	case IntentAnalytical:
		return StrategyDeepRerank
	default:
		return StrategyBalanced
	}
}

// PresetConfig returns a copy of the base config for a strategy.
func PresetConfig(s Strategy) RetrievalConfig {
	cfg, ok := strategyPresets[s]
	if !ok {
		cfg = strategyPresets[StrategyBalanced]
	}
	return cfg
}

// AdjustForDifficulty scales candidate counts: easy queries shrink
// them and never use the second pass; hard queries grow them (capped)
// and enable the second pass for any strategy with a dense leg.
func AdjustForDifficulty(cfg RetrievalConfig, d Difficulty) RetrievalConfig {
	switch d {
	case DifficultyEasy:
		cfg.SparseTopK = scale(cfg.SparseTopK, easyScale)
		cfg.DenseTopK = scale(cfg.DenseTopK, easyScale)
		cfg.RerankCandidates = scale(cfg.RerankCandidates, easyScale)
		cfg.SecondPassCandidates = scale(cfg.SecondPassCandidates, easyScale)
		cfg.UseSecondPass = false
	case DifficultyHard:
		cfg.SparseTopK = capInt(scale(cfg.SparseTopK, hardScale), maxSparseTopK)
		cfg.DenseTopK = capInt(scale(cfg.DenseTopK, hardScale), maxDenseTopK)
		cfg.RerankCandidates = capInt(scale(cfg.RerankCandidates, hardScale), maxRerankCandidates)
		cfg.SecondPassCandidates = scale(cfg.SecondPassCandidates, hardScale)
		if cfg.Strategy != StrategySparseOnly {
			cfg.UseSecondPass = true
		}
	}
	return cfg
}

// ApplyOverrides merges user overrides over the preset, then
// normalizes invalid combinations rather than rejecting them:
// sparse-only strategies never carry a dense leg, and disabling
// reranking zeroes the candidate budget.
func ApplyOverrides(cfg RetrievalConfig, o Overrides) RetrievalConfig {
	if o.SparseWeight != nil {
		cfg.SparseWeight = *o.SparseWeight
	}
	if o.DenseWeight != nil {
		cfg.DenseWeight = *o.DenseWeight
	}
	if o.RerankCandidates != nil {
		cfg.RerankCandidates = capInt(*o.RerankCandidates, maxRerankCandidates)
	}
	if o.EnableReranking != nil && !*o.EnableReranking {
		cfg.RerankCandidates = 0
		cfg.UseSecondPass = false
	}

	if cfg.Strategy == StrategySparseOnly {
		cfg.DenseTopK = 0
		cfg.DenseWeight = 0
	}

	return cfg
}

// BuildConfig runs the full select → adjust → override chain.
func BuildConfig(cls IntentClassification, o Overrides) RetrievalConfig {
	cfg := PresetConfig(SelectStrategy(cls.Intent))
	cfg = AdjustForDifficulty(cfg, cls.Difficulty)
	return ApplyOverrides(cfg, o)
}

func scale(n int, factor float64) int {
	return int(math.Round(float64(n) * factor))
}

func capInt(n, max int) int {
	if n > max {
		return max
	}
	return n
}
