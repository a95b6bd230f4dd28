package model

// archetypeGroup clusters archetypes that read as the same broad direction.
// Distance within a group is low; named bridge pairs across groups are
// medium; everything else is high.
var archetypeGroup = map[Archetype]string{
	ArchetypeClassic:  "refined",
	ArchetypeMinimal:  "refined",
	ArchetypePreppy:   "refined",
	ArchetypeWorkwear: "refined",
	ArchetypeStreet:   "expressive",
	ArchetypeSporty:   "expressive",
	ArchetypeEdgy:     "expressive",
	ArchetypeRomantic: "free",
	ArchetypeBohemian: "free",
	ArchetypeGlam:     "free",
}

// archetypeBridges are cross-group pairs that still combine well enough to
// count as medium distance rather than high.
var archetypeBridges = map[[2]Archetype]bool{
	{ArchetypeMinimal, ArchetypeStreet}:   true,
	{ArchetypeMinimal, ArchetypeSporty}:   true,
	{ArchetypeClassic, ArchetypeGlam}:     true,
	{ArchetypeClassic, ArchetypeRomantic}: true,
	{ArchetypeWorkwear, ArchetypeStreet}:  true,
	{ArchetypeEdgy, ArchetypeGlam}:        true,
	{ArchetypePreppy, ArchetypeRomantic}:  true,
}

func bridged(a, b Archetype) bool {
	return archetypeBridges[[2]Archetype{a, b}] || archetypeBridges[[2]Archetype{b, a}]
}

func primaryDistance(a, b Archetype) DistanceBucket {
	if a == b {
		return DistanceLow
	}
	if archetypeGroup[a] == archetypeGroup[b] {
		return DistanceLow
	}
	if bridged(a, b) {
		return DistanceMedium
	}
	return DistanceHigh
}

// ArchetypeDistance computes the categorical distance between two archetype
// signals. A secondary archetype that sits closer to the other side pulls
// the bucket down one step, never up.
func ArchetypeDistance(a, b ArchetypeSignal) DistanceBucket {
	d := primaryDistance(a.Primary, b.Primary)
	if d == DistanceLow {
		return d
	}

	soften := false
	if a.Secondary != ArchetypeUnknown && primaryDistance(a.Secondary, b.Primary) == DistanceLow {
		soften = true
	}
	if b.Secondary != ArchetypeUnknown && primaryDistance(a.Primary, b.Secondary) == DistanceLow {
		soften = true
	}
	if !soften {
		return d
	}
	if d == DistanceHigh {
		return DistanceMedium
	}
	return DistanceLow
}

// FormalityGap is the ordinal distance between two formality bands, or -1
// when either side is unknown.
func FormalityGap(a, b FormalityBand) int {
	ra, rb := a.Rank(), b.Rank()
	if ra < 0 || rb < 0 {
		return -1
	}
	if ra > rb {
		return ra - rb
	}
	return rb - ra
}

// SeasonGap is the ordinal distance between two season weights, or -1 when
// either side is unknown.
func SeasonGap(a, b SeasonWeight) int {
	ra, rb := a.Rank(), b.Rank()
	if ra < 0 || rb < 0 {
		return -1
	}
	if ra > rb {
		return ra - rb
	}
	return rb - ra
}
