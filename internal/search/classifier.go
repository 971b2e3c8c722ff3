package search

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultClassifierCacheSize bounds the classification memo.
const DefaultClassifierCacheSize = 10000

// Confidence clamp range.
const (
	minConfidence = 0.3
	maxConfidence = 0.99
)

var (
	identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	extensionRegex  = regexp.MustCompile(`\.[a-z0-9]{1,4}$`)
	quotedRegex     = regexp.MustCompile(`"[^"]+"|'[^']+'`)
)

// interrogatives are conceptual question cues.
var interrogatives = map[string]struct{}{
	"how": {}, "where": {}, "what": {}, "explain": {}, "why": {},
}

// analyticalCues signal comparative or causal reasoning.
var analyticalCues = map[string]struct{}{
	"compare": {}, "difference": {}, "impact": {}, "trace": {},
	"flow": {}, "diagram": {}, "versus": {}, "vs": {},
}

// logicalConjunctions and codeOperators mark multi-clause queries.
var logicalConjunctions = map[string]struct{}{
	"and": {}, "or": {}, "&&": {}, "||": {},
}

var codeOperators = []string{"==", "!=", "->", "=>", "::", ">=", "<="}

// RuleClassifier labels queries with intent, difficulty, and
// confidence using ordered deterministic rules. No I/O; results are
// memoized by query fingerprint.
type RuleClassifier struct {
	cache  *lru.Cache[string, IntentClassification]
	logger *slog.Logger
}

// NewRuleClassifier creates a classifier with the given memo size.
func NewRuleClassifier(cacheSize int) *RuleClassifier {
	if cacheSize <= 0 {
		cacheSize = DefaultClassifierCacheSize
	}
	cache, _ := lru.New[string, IntentClassification](cacheSize)
	return &RuleClassifier{
		cache:  cache,
		logger: slog.Default(),
	}
}

// Classify determines intent, difficulty, and confidence for a
// normalized query. It never fails: any internal error degrades to
// {factual, medium, 0.5}.
func (c *RuleClassifier) Classify(q NormalizedQuery) (result IntentClassification) {
	if cached, ok := c.cache.Get(q.Fingerprint); ok {
		return cached
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("classifier_panic", slog.Any("recovered", r))
			result = IntentClassification{
				Intent:     IntentFactual,
				Difficulty: DifficultyMedium,
				Confidence: 0.5,
			}
		}
	}()

	result = c.classify(q)
	c.cache.Add(q.Fingerprint, result)
	return result
}

func (c *RuleClassifier) classify(q NormalizedQuery) IntentClassification {
	tokens := strings.Fields(q.Normalized)

	signals := collectSignals(q, tokens)
	intent := intentFromSignals(signals)
	difficulty := computeDifficulty(q.Normalized, tokens)
	confidence := confidenceFromSignals(signals)

	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	return IntentClassification{
		Intent:     intent,
		Difficulty: difficulty,
		Confidence: confidence,
		Signals:    names,
	}
}

// collectSignals gathers weighted evidence for each intent. All rules
// are evaluated so conflicting signals lower confidence via entropy.
func collectSignals(q NormalizedQuery, tokens []string) map[string]float64 {
	signals := make(map[string]float64)

	// Navigational evidence
	if len(tokens) == 1 && identifierRegex.MatchString(tokens[0]) {
		signals["single_identifier"] = 1.0
	}
	for _, tok := range tokens {
		if strings.Contains(tok, "/") || extensionRegex.MatchString(tok) {
			signals["path_token"] = 1.0
			break
		}
	}
	for _, prefix := range []string{"file:", "path:", "symbol:"} {
		if strings.HasPrefix(q.Normalized, prefix) {
			signals["lookup_prefix"] = 1.0
			break
		}
	}
	if quotedRegex.MatchString(q.Raw) {
		signals["quoted_literal"] = 1.0
	}

	// Exploratory evidence. "how to X" / "what to X" are procedural
	// lookups, not conceptual questions, so they do not count.
	conceptual := false
	for i, tok := range tokens {
		if _, ok := interrogatives[tok]; !ok {
			continue
		}
		if (tok == "how" || tok == "what") && i+1 < len(tokens) && tokens[i+1] == "to" {
			continue
		}
		conceptual = true
		break
	}
	if conceptual && countContentWords(tokens) >= 3 {
		signals["conceptual_question"] = 1.0
	}

	// Analytical evidence
	for _, tok := range tokens {
		if _, ok := analyticalCues[tok]; ok {
			signals["comparative_cue"] = 1.0
			break
		}
	}
	if strings.Contains(q.Normalized, "step by step") {
		signals["multi_step"] = 1.0
	}

	return signals
}

// intentFromSignals applies the ordered rules; first match wins.
func intentFromSignals(signals map[string]float64) Intent {
	if hasAny(signals, "single_identifier", "path_token", "lookup_prefix", "quoted_literal") {
		return IntentNavigational
	}
	if hasAny(signals, "conceptual_question") {
		return IntentExploratory
	}
	if hasAny(signals, "comparative_cue", "multi_step") {
		return IntentAnalytical
	}
	return IntentFactual
}

func hasAny(signals map[string]float64, names ...string) bool {
	for _, n := range names {
		if _, ok := signals[n]; ok {
			return true
		}
	}
	return false
}

// computeDifficulty estimates retrieval effort from token count and
// multi-clause cues.
func computeDifficulty(normalized string, tokens []string) Difficulty {
	hasInterrogative := false
	multiClause := false
	for _, tok := range tokens {
		if _, ok := interrogatives[tok]; ok {
			hasInterrogative = true
		}
		if _, ok := logicalConjunctions[tok]; ok {
			multiClause = true
		}
	}
	for _, op := range codeOperators {
		if strings.Contains(normalized, op) {
			multiClause = true
			break
		}
	}

	switch {
	case len(tokens) >= 8 || multiClause:
		return DifficultyHard
	case len(tokens) <= 3 && !hasInterrogative:
		return DifficultyEasy
	default:
		return DifficultyMedium
	}
}

// confidenceFromSignals maps the signal distribution to [0.3, 0.99]
// via normalized entropy: one dominant signal is confident, many
// conflicting signals are not, no signals at all sit in the middle.
func confidenceFromSignals(signals map[string]float64) float64 {
	if len(signals) == 0 {
		return 0.5
	}
	if len(signals) == 1 {
		return maxConfidence
	}

	var total float64
	for _, w := range signals {
		total += w
	}

	var entropy float64
	for _, w := range signals {
		p := w / total
		if p > 0 {
			entropy -= p * math.Log(p)
		}
	}
	// Normalize by max entropy for this signal count
	entropy /= math.Log(float64(len(signals)))

	confidence := 1 - entropy
	if confidence < minConfidence {
		return minConfidence
	}
	if confidence > maxConfidence {
		return maxConfidence
	}
	return confidence
}

// countContentWords counts tokens other than the interrogatives
// themselves.
func countContentWords(tokens []string) int {
	n := 0
	for _, tok := range tokens {
		if _, q := interrogatives[tok]; q {
			continue
		}
		n++
	}
	return n
}
