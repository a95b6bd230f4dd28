package engine

import "github.com/outfitlab/matchflow/internal/model"

// facetScore is one facet's sub-score before weighting. Unknown facets
// contribute zero weight and the weight vector is renormalized without
// them.
type facetScore struct {
	value float64
	known bool
}

var neutralColors = map[string]bool{
	"black": true,
	"white": true,
	"grey":  true,
	"gray":  true,
	"navy":  true,
	"beige": true,
	"cream": true,
	"tan":   true,
}

// colorScore measures palette compatibility: shared colors score high, and
// a mostly-neutral side pairs acceptably with anything.
func colorScore(a, b model.PaletteSignal) facetScore {
	if !a.Known() || !b.Known() {
		return facetScore{}
	}

	as, bs := a.Normalized(), b.Normalized()
	inA := make(map[string]bool, len(as))
	for _, c := range as {
		inA[c] = true
	}

	shared := 0
	for _, c := range bs {
		if inA[c] {
			shared++
		}
	}
	union := len(as) + len(bs) - shared
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(shared) / float64(union)
	}

	score := jaccard
	if allNeutral(as) || allNeutral(bs) {
		// Neutrals go with anything; never let a neutral side drag the
		// facet below a workable floor.
		if score < 0.7 {
			score = 0.7
		}
	} else if shared > 0 && score < 0.5 {
		score = 0.5
	}

	return facetScore{value: score, known: true}
}

func allNeutral(colors []string) bool {
	if len(colors) == 0 {
		return false
	}
	for _, c := range colors {
		if !neutralColors[c] {
			return false
		}
	}
	return true
}

// styleScore maps archetype distance onto a sub-score.
func styleScore(a, b model.ArchetypeSignal) facetScore {
	if !a.Known() || !b.Known() {
		return facetScore{}
	}
	if a.Primary == b.Primary {
		return facetScore{value: 1.0, known: true}
	}
	switch model.ArchetypeDistance(a, b) {
	case model.DistanceLow:
		return facetScore{value: 0.85, known: true}
	case model.DistanceMedium:
		return facetScore{value: 0.55, known: true}
	default:
		return facetScore{value: 0.2, known: true}
	}
}

// formalityScore decays linearly with the band gap.
func formalityScore(a, b model.FormalitySignal) facetScore {
	if !a.Known() || !b.Known() {
		return facetScore{}
	}
	gap := model.FormalityGap(a.Band, b.Band)
	return facetScore{value: 1.0 - float64(gap)/4.0, known: true}
}

// typeCompatibility scores how naturally two categories share an outfit.
// Categories are always present, so this facet is always known.
func typeCompatibility(target, candidate model.Category) facetScore {
	score := func() float64 {
		if pairIn(target, candidate, model.CategoryTops, model.CategoryBottoms) ||
			pairIn(target, candidate, model.CategoryTops, model.CategorySkirts) ||
			pairIn(target, candidate, model.CategoryDresses, model.CategoryShoes) ||
			pairIn(target, candidate, model.CategoryBottoms, model.CategoryShoes) ||
			pairIn(target, candidate, model.CategorySkirts, model.CategoryShoes) ||
			pairIn(target, candidate, model.CategoryTops, model.CategoryShoes) {
			return 1.0
		}
		if candidate == model.CategoryOuterwear || target == model.CategoryOuterwear {
			return 0.9
		}
		if candidate == model.CategoryBags || candidate == model.CategoryAccessories ||
			target == model.CategoryBags || target == model.CategoryAccessories {
			return 0.8
		}
		if target == candidate {
			// Layering two of the same slot is possible but rarely the ask.
			return 0.4
		}
		return 0.6
	}()
	return facetScore{value: score, known: true}
}

func pairIn(a, b, x, y model.Category) bool {
	return (a == x && b == y) || (a == y && b == x)
}

// occasionScore rewards balanced statement levels: one statement piece per
// outfit, or two quiet ones.
func occasionScore(a, b model.StatementSignal) facetScore {
	if !a.Known() || !b.Known() {
		return facetScore{}
	}
	sum := a.Level.Rank() + b.Level.Rank()
	// Best around a combined rank of 2 (bold+muted or balanced+balanced).
	diff := sum - 2
	if diff < 0 {
		diff = -diff
	}
	score := 1.0 - 0.3*float64(diff)
	if score < 0 {
		score = 0
	}
	return facetScore{value: score, known: true}
}

var materialAffinity = map[[2]model.MaterialFamily]float64{
	{model.MaterialDenim, model.MaterialKnit}:      0.9,
	{model.MaterialDenim, model.MaterialLeather}:   0.85,
	{model.MaterialDenim, model.MaterialWoven}:     0.85,
	{model.MaterialSilky, model.MaterialWoven}:     0.85,
	{model.MaterialKnit, model.MaterialWoven}:      0.8,
	{model.MaterialLeather, model.MaterialSilky}:   0.75,
	{model.MaterialTechnical, model.MaterialKnit}:  0.7,
	{model.MaterialTechnical, model.MaterialDenim}: 0.6,
	{model.MaterialTechnical, model.MaterialSilky}: 0.4,
}

// vibeScore is the residual facet: pattern mixing plus material affinity,
// averaged over whichever of the two is known.
func vibeScore(aPat, bPat model.PatternSignal, aMat, bMat model.MaterialSignal) facetScore {
	total := 0.0
	parts := 0

	if aPat.Known() && bPat.Known() {
		total += patternMix(aPat.Level, bPat.Level)
		parts++
	}
	if aMat.Known() && bMat.Known() {
		total += materialMix(aMat.Family, bMat.Family)
		parts++
	}
	if parts == 0 {
		return facetScore{}
	}
	return facetScore{value: total / float64(parts), known: true}
}

func patternMix(a, b model.PatternLevel) float64 {
	switch {
	case a == model.PatternBold && b == model.PatternBold:
		return 0.3
	case a == model.PatternBold || b == model.PatternBold:
		return 0.9
	case a == model.PatternSubtle && b == model.PatternSubtle:
		return 0.8
	default:
		return 0.95
	}
}

func materialMix(a, b model.MaterialFamily) float64 {
	if a == b {
		return 0.8
	}
	if v, ok := materialAffinity[[2]model.MaterialFamily{a, b}]; ok {
		return v
	}
	if v, ok := materialAffinity[[2]model.MaterialFamily{b, a}]; ok {
		return v
	}
	return 0.7
}
