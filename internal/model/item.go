// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// Category identifies which part of an outfit an item occupies.
type Category string

// Category constants. The set is closed; anything else is rejected at the
// edge rather than propagated.
const (
	CategoryTops        Category = "tops"
	CategoryBottoms     Category = "bottoms"
	CategoryOuterwear   Category = "outerwear"
	CategoryShoes       Category = "shoes"
	CategoryBags        Category = "bags"
	CategoryAccessories Category = "accessories"
	CategoryDresses     Category = "dresses"
	CategorySkirts      Category = "skirts"
)

// AllCategories lists every valid category in a stable order.
func AllCategories() []Category {
	return []Category{
		CategoryTops,
		CategoryBottoms,
		CategoryOuterwear,
		CategoryShoes,
		CategoryBags,
		CategoryAccessories,
		CategoryDresses,
		CategorySkirts,
	}
}

// Valid reports whether the category is one of the closed set.
func (c Category) Valid() bool {
	switch c {
	case CategoryTops, CategoryBottoms, CategoryOuterwear, CategoryShoes,
		CategoryBags, CategoryAccessories, CategoryDresses, CategorySkirts:
		return true
	default:
		return false
	}
}

// Item is a wardrobe piece as produced by the upstream capture subsystem.
// It is read-only to this pipeline.
type Item struct {
	ID       string
	Category Category
	// Signals is the item's style fingerprint, when one has been resolved.
	// Nil means not yet available; scoring degrades the dependent facets
	// to unknown instead of failing.
	Signals *StyleSignals
}

// Validate ensures the item can be evaluated at all.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if !i.Category.Valid() {
		return fmt.Errorf("unknown category %q for item %s", i.Category, i.ID)
	}
	return nil
}

// PairType labels a (target category, candidate category) combination,
// e.g. "tops-bottoms". Threshold configuration is keyed by it.
type PairType string

// NewPairType builds the canonical pair label for two categories.
func NewPairType(target, candidate Category) PairType {
	return PairType(string(target) + "-" + string(candidate))
}
