// Package steps decides which wizard steps and document categories an
// applicant sees and how next/previous move between them.
package steps

import "loan-intake/internal/models"

type predicate func(models.Flags) bool

func always(models.Flags) bool            { return true }
func hasPartner(f models.Flags) bool      { return f.HasPartner }
func isBusinessOwner(f models.Flags) bool { return f.IsBusinessOwner }

var categoryOrder = []struct {
	category models.DocumentCategory
	include  predicate
}{
	{models.CategoryIdentity, always},
	{models.CategoryIncome, always},
	{models.CategoryFinancial, always},
	{models.CategoryProperty, always},
	{models.CategoryPartner, hasPartner},
	{models.CategoryBusiness, isBusinessOwner},
}

// DocumentCategories returns the document categories included for flags, in order.
func DocumentCategories(flags models.Flags) []models.DocumentCategory {
	out := make([]models.DocumentCategory, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		if c.include(flags) {
			out = append(out, c.category)
		}
	}
	return out
}

// Counts is the number of applicable documents per category.
type Counts map[models.DocumentCategory]int

// Position is either the overview step or one document within a category.
type Position struct {
	Overview bool                    `json:"overview"`
	Category models.DocumentCategory `json:"category,omitempty"`
	Index    int                     `json:"index"`
}

func Overview() Position { return Position{Overview: true} }

func slotOf(category models.DocumentCategory) int {
	for i, c := range categoryOrder {
		if c.category == category {
			return i
		}
	}
	return -1
}

// usable reports whether the category at slot i is included and has documents.
func usable(i int, flags models.Flags, counts Counts) bool {
	c := categoryOrder[i]
	return c.include(flags) && counts[c.category] > 0
}

// NextDocument moves forward one document. Past the last document of the last
// included category it returns to the overview. A category that is no longer
// included is resolved from its slot in the full order.
func NextDocument(pos Position, flags models.Flags, counts Counts) Position {
	start := 0
	if !pos.Overview {
		slot := slotOf(pos.Category)
		if slot < 0 {
			return Overview()
		}
		if usable(slot, flags, counts) && pos.Index+1 < counts[pos.Category] {
			return Position{Category: pos.Category, Index: pos.Index + 1}
		}
		start = slot + 1
	}
	for i := start; i < len(categoryOrder); i++ {
		if usable(i, flags, counts) {
			return Position{Category: categoryOrder[i].category, Index: 0}
		}
	}
	return Overview()
}

// PreviousDocument mirrors NextDocument.
func PreviousDocument(pos Position, flags models.Flags, counts Counts) Position {
	start := len(categoryOrder) - 1
	if !pos.Overview {
		slot := slotOf(pos.Category)
		if slot < 0 {
			return Overview()
		}
		if usable(slot, flags, counts) && pos.Index > 0 {
			idx := pos.Index - 1
			if last := counts[pos.Category] - 1; idx > last {
				idx = last
			}
			return Position{Category: pos.Category, Index: idx}
		}
		start = slot - 1
	}
	for i := start; i >= 0; i-- {
		if usable(i, flags, counts) {
			c := categoryOrder[i].category
			return Position{Category: c, Index: counts[c] - 1}
		}
	}
	return Overview()
}
