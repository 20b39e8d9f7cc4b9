package steps

import "loan-intake/internal/models"

type StepID string

const (
	StepProperty           StepID = "property"
	StepPersonal           StepID = "personal"
	StepPartner            StepID = "partner"
	StepEmployment         StepID = "employment"
	StepBusiness           StepID = "business"
	StepFinancial          StepID = "financial"
	StepLoanRequirements   StepID = "loan-requirements"
	StepAdditionalFeatures StepID = "additional-features"
	StepDocuments          StepID = "documents"
	StepReview             StepID = "review"
)

// Step is one page of the intake wizard. Section is the stored section the
// page edits; partner and business pages edit nested parts of personal and
// employment.
type Step struct {
	ID      StepID         `json:"id"`
	Title   string         `json:"title"`
	Section models.Section `json:"section,omitempty"`
}

var formOrder = []struct {
	step    Step
	include predicate
}{
	{Step{StepProperty, "Property details", models.SectionProperty}, always},
	{Step{StepPersonal, "About you", models.SectionPersonal}, always},
	{Step{StepPartner, "Your partner", models.SectionPersonal}, hasPartner},
	{Step{StepEmployment, "Employment", models.SectionEmployment}, always},
	{Step{StepBusiness, "Your business", models.SectionEmployment}, isBusinessOwner},
	{Step{StepFinancial, "Financial position", models.SectionFinancial}, always},
	{Step{StepLoanRequirements, "Loan requirements", models.SectionLoanRequirements}, always},
	{Step{StepAdditionalFeatures, "Additional features", models.SectionAdditionalFeatures}, always},
	{Step{StepDocuments, "Documents", ""}, always},
	{Step{StepReview, "Review & submit", ""}, always},
}

// FormSteps returns the wizard steps included for flags, in order.
func FormSteps(flags models.Flags) []Step {
	out := make([]Step, 0, len(formOrder))
	for _, s := range formOrder {
		if s.include(flags) {
			out = append(out, s.step)
		}
	}
	return out
}

func formSlot(id StepID) int {
	for i, s := range formOrder {
		if s.step.ID == id {
			return i
		}
	}
	return -1
}

// IsStep reports whether id names a wizard step.
func IsStep(id StepID) bool { return formSlot(id) >= 0 }

// NextStep returns the included step after current. ok is false at the end
// or when current is unknown.
func NextStep(current StepID, flags models.Flags) (Step, bool) {
	slot := formSlot(current)
	if slot < 0 {
		return Step{}, false
	}
	for i := slot + 1; i < len(formOrder); i++ {
		if formOrder[i].include(flags) {
			return formOrder[i].step, true
		}
	}
	return Step{}, false
}

// PreviousStep returns the included step before current.
func PreviousStep(current StepID, flags models.Flags) (Step, bool) {
	slot := formSlot(current)
	if slot < 0 {
		return Step{}, false
	}
	for i := slot - 1; i >= 0; i-- {
		if formOrder[i].include(flags) {
			return formOrder[i].step, true
		}
	}
	return Step{}, false
}
