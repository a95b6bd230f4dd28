package engine

import (
	"github.com/outfitlab/matchflow/internal/model"
)

// Scorer computes pair evaluations. It is a pure function over its config:
// no I/O, no mutable shared state, safe to call from any goroutine.
type Scorer struct {
	cfg Config
}

// New creates a scorer with the default configuration.
func New() *Scorer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a scorer with custom configuration.
func NewWithConfig(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Result is one full scoring pass over a candidate list.
type Result struct {
	TargetID    string
	Evaluations []model.PairEvaluation
}

// High returns the evaluations in the HIGH tier, in input order.
func (r Result) High() []model.PairEvaluation {
	return r.tier(model.TierHigh)
}

// Medium returns the evaluations in the MEDIUM tier, in input order.
func (r Result) Medium() []model.PairEvaluation {
	return r.tier(model.TierMedium)
}

func (r Result) tier(t model.Tier) []model.PairEvaluation {
	var out []model.PairEvaluation
	for _, e := range r.Evaluations {
		if e.Tier == t {
			out = append(out, e)
		}
	}
	return out
}

// HighIDs returns the ids of HIGH-tier evaluations, in input order.
func (r Result) HighIDs() []string {
	high := r.High()
	ids := make([]string, len(high))
	for i, e := range high {
		ids[i] = e.ItemID
	}
	return ids
}

// Evaluate scores every candidate against the target. No filtering: every
// candidate gets a record, below-band pairs simply carry TierNone.
// Identical inputs always yield identical output, including cap-reason
// ordering and the feature breakdown; later stages key caches on that.
func (s *Scorer) Evaluate(target model.Item, candidates []model.Item) Result {
	evals := make([]model.PairEvaluation, 0, len(candidates))
	for _, c := range candidates {
		evals = append(evals, s.evaluatePair(target, c))
	}
	return Result{TargetID: target.ID, Evaluations: evals}
}

func (s *Scorer) evaluatePair(target, candidate model.Item) model.PairEvaluation {
	pt := model.NewPairType(target.Category, candidate.Category)

	if reason := hardFail(target, candidate); reason != "" {
		return model.PairEvaluation{
			ItemID:         candidate.ID,
			PairType:       pt,
			RawScore:       0,
			Tier:           model.TierNone,
			HardFailReason: reason,
			Weights:        model.WeightVector{},
		}
	}

	scores := s.facetScores(target, candidate)
	weights := renormalize(s.cfg.Weights, scores)
	raw := weightedSum(weights, scores)

	tier := s.assignTier(pt, raw)
	tier, caps := s.applyCaps(tier, target, candidate)

	forced := model.Tier("")
	if ft, ok := s.cfg.ForcedTiers[pt]; ok {
		forced = ft
		tier = ft
	}

	known := 0
	features := make([]model.FeatureScore, 0, len(scores))
	for i, name := range model.FacetOrder() {
		features = append(features, model.FeatureScore{
			Facet: name,
			Value: scores[i].value,
			Known: scores[i].known,
		})
		if scores[i].known {
			known++
		}
	}

	return model.PairEvaluation{
		ItemID:      candidate.ID,
		PairType:    pt,
		RawScore:    raw,
		Tier:        tier,
		ForcedTier:  forced,
		CapReasons:  caps,
		Features:    features,
		Weights:     weights,
		Explainable: known >= s.cfg.MinKnownForExplanation,
	}
}

// facetScores computes the six sub-scores in canonical facet order.
func (s *Scorer) facetScores(target, candidate model.Item) [6]facetScore {
	var out [6]facetScore

	ts, cs := target.Signals, candidate.Signals
	out[3] = typeCompatibility(target.Category, candidate.Category)

	if ts == nil || cs == nil {
		return out
	}
	out[0] = colorScore(ts.Palette, cs.Palette)
	out[1] = styleScore(ts.Archetype, cs.Archetype)
	out[2] = formalityScore(ts.Formality, cs.Formality)
	out[4] = occasionScore(ts.Statement, cs.Statement)
	out[5] = vibeScore(ts.Pattern, cs.Pattern, ts.Material, cs.Material)
	return out
}

// hardFail detects pairs that are incompatible by design.
func hardFail(target, candidate model.Item) model.HardFailReason {
	if target.ID == candidate.ID {
		return model.HardFailSameItem
	}
	if incompatible(target.Category, candidate.Category) {
		return model.HardFailIncompatibleCategory
	}
	return ""
}

// incompatible marks category pairs that can never share an outfit slot:
// a dress occupies both halves, and two lower-body pieces collide.
func incompatible(a, b model.Category) bool {
	lower := func(c model.Category) bool {
		return c == model.CategoryBottoms || c == model.CategorySkirts
	}
	if a == model.CategoryDresses && (b == model.CategoryDresses || lower(b)) {
		return true
	}
	if b == model.CategoryDresses && lower(a) {
		return true
	}
	if lower(a) && lower(b) {
		return true
	}
	if a == b && (a == model.CategoryShoes || a == model.CategoryBags) {
		return true
	}
	return false
}

// renormalize zeroes weights for unknown facets and rescales the remainder
// to sum to one.
func renormalize(base model.WeightVector, scores [6]facetScore) model.WeightVector {
	raw := [6]float64{base.Color, base.Style, base.Formality, base.TypeComp, base.Occasion, base.Vibe}

	total := 0.0
	for i := range raw {
		if !scores[i].known {
			raw[i] = 0
		}
		total += raw[i]
	}
	if total == 0 {
		return model.WeightVector{}
	}
	for i := range raw {
		raw[i] /= total
	}
	return model.WeightVector{
		Color:     raw[0],
		Style:     raw[1],
		Formality: raw[2],
		TypeComp:  raw[3],
		Occasion:  raw[4],
		Vibe:      raw[5],
	}
}

func weightedSum(w model.WeightVector, scores [6]facetScore) float64 {
	weights := [6]float64{w.Color, w.Style, w.Formality, w.TypeComp, w.Occasion, w.Vibe}
	sum := 0.0
	for i := range weights {
		sum += weights[i] * scores[i].value
	}
	if sum < 0 {
		return 0
	}
	if sum > 1 {
		return 1
	}
	return sum
}

func (s *Scorer) assignTier(pt model.PairType, raw float64) model.Tier {
	band := s.cfg.band(pt)
	switch {
	case raw >= band.High:
		return model.TierHigh
	case raw >= band.MediumFloor:
		return model.TierMedium
	default:
		return model.TierNone
	}
}

// applyCaps lowers the tier one level per detected tension, in a fixed
// order so identical inputs produce identical reason lists. Caps only ever
// lower a tier.
func (s *Scorer) applyCaps(tier model.Tier, target, candidate model.Item) (model.Tier, []model.CapReason) {
	ts, cs := target.Signals, candidate.Signals
	if ts == nil || cs == nil || tier == model.TierNone {
		return tier, nil
	}

	var caps []model.CapReason

	if gap := model.FormalityGap(ts.Formality.Band, cs.Formality.Band); gap >= s.cfg.FormalityCapGap {
		tier = lowerTier(tier)
		caps = append(caps, model.CapFormalityGap)
	}
	if ts.Archetype.Known() && cs.Archetype.Known() &&
		model.ArchetypeDistance(ts.Archetype, cs.Archetype) == model.DistanceHigh {
		tier = lowerTier(tier)
		caps = append(caps, model.CapStyleClash)
	}
	if gap := model.SeasonGap(ts.Season.Weight, cs.Season.Weight); gap >= s.cfg.SeasonCapGap {
		tier = lowerTier(tier)
		caps = append(caps, model.CapSeasonClash)
	}
	if ts.Statement.Level == model.StatementBold && cs.Statement.Level == model.StatementBold {
		tier = lowerTier(tier)
		caps = append(caps, model.CapStatementPile)
	}

	return tier, caps
}

func lowerTier(t model.Tier) model.Tier {
	switch t {
	case model.TierHigh:
		return model.TierMedium
	default:
		return model.TierNone
	}
}
