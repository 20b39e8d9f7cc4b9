// Package documents holds the document catalog, merges it with uploaded
// files and computes document progress.
package documents

import (
	"loan-intake/internal/loan/steps"
	"loan-intake/internal/models"
)

func onlyWhen(field string, value bool) *models.ConditionalDisplay {
	return &models.ConditionalDisplay{Field: field, Value: value}
}

// DefaultCatalog is used when no catalog file overrides it.
func DefaultCatalog() []models.DocumentDefinition {
	return []models.DocumentDefinition{
		{ID: "photo-id", Name: "Photo ID", Description: "Driver licence or passport", Required: true,
			Category: models.CategoryIdentity, ApplicableFor: models.ApplicablePrimary},
		{ID: "secondary-id", Name: "Secondary ID", Description: "Medicare card or birth certificate",
			Category: models.CategoryIdentity, ApplicableFor: models.ApplicablePrimary},
		{ID: "payslips", Name: "Recent payslips", Description: "Your two most recent payslips", Required: true,
			Category: models.CategoryIncome, MultipleAllowed: true, ApplicableFor: models.ApplicablePrimary},
		{ID: "tax-return", Name: "Tax return", Description: "Most recent notice of assessment",
			Category: models.CategoryIncome, MultipleAllowed: true, ApplicableFor: models.ApplicablePrimary},
		{ID: "bank-statements", Name: "Bank statements", Description: "Three months of transaction statements", Required: true,
			Category: models.CategoryFinancial, MultipleAllowed: true, ApplicableFor: models.ApplicableAll},
		{ID: "liability-statements", Name: "Loan and card statements", Description: "Statements for existing debts",
			Category: models.CategoryFinancial, MultipleAllowed: true, ApplicableFor: models.ApplicableAll},
		{ID: "contract-of-sale", Name: "Contract of sale", Description: "Signed contract or current mortgage statement", Required: true,
			Category: models.CategoryProperty, ApplicableFor: models.ApplicableAll},
		{ID: "rates-notice", Name: "Council rates notice",
			Category: models.CategoryProperty, ApplicableFor: models.ApplicableAll},
		{ID: "partner-photo-id", Name: "Partner photo ID", Description: "Driver licence or passport", Required: true,
			Category: models.CategoryPartner, ApplicableFor: models.ApplicablePartner,
			ConditionalDisplay: onlyWhen("hasPartner", true)},
		{ID: "partner-payslips", Name: "Partner payslips", Required: true,
			Category: models.CategoryPartner, MultipleAllowed: true, ApplicableFor: models.ApplicablePartner,
			ConditionalDisplay: onlyWhen("hasPartner", true)},
		{ID: "business-tax-returns", Name: "Business tax returns", Description: "Last two years", Required: true,
			Category: models.CategoryBusiness, MultipleAllowed: true, ApplicableFor: models.ApplicableBusiness,
			ConditionalDisplay: onlyWhen("isBusinessOwner", true)},
		{ID: "bas-statements", Name: "BAS statements", Description: "Last four quarters", Required: true,
			Category: models.CategoryBusiness, MultipleAllowed: true, ApplicableFor: models.ApplicableBusiness,
			ConditionalDisplay: onlyWhen("isBusinessOwner", true)},
		{ID: "other", Name: "Other documents",
			Category: models.CategoryOther, MultipleAllowed: true, ApplicableFor: models.ApplicableAll},
	}
}

// IsApplicable reports whether def is shown for flags.
func IsApplicable(def models.DocumentDefinition, flags models.Flags) bool {
	cd := def.ConditionalDisplay
	if cd == nil {
		return true
	}
	v, ok := flags.Value(cd.Field)
	return ok && v == cd.Value
}

// Applicable filters docs to the entries applicable for flags, keeping order.
func Applicable(docs []models.Document, flags models.Flags) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if IsApplicable(d.DocumentDefinition, flags) {
			out = append(out, d)
		}
	}
	return out
}

// Find returns the catalog entry with id.
func Find(catalog []models.DocumentDefinition, id string) (models.DocumentDefinition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return models.DocumentDefinition{}, false
}

// CountByCategory counts applicable documents per category.
func CountByCategory(catalog []models.DocumentDefinition, flags models.Flags) steps.Counts {
	counts := steps.Counts{}
	for _, d := range catalog {
		if IsApplicable(d, flags) {
			counts[d.Category]++
		}
	}
	return counts
}

// At returns the applicable document at a navigation position.
func At(catalog []models.DocumentDefinition, flags models.Flags, pos steps.Position) (models.DocumentDefinition, bool) {
	if pos.Overview {
		return models.DocumentDefinition{}, false
	}
	i := 0
	for _, d := range catalog {
		if d.Category != pos.Category || !IsApplicable(d, flags) {
			continue
		}
		if i == pos.Index {
			return d, true
		}
		i++
	}
	return models.DocumentDefinition{}, false
}
