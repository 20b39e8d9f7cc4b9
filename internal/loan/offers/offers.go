// Package offers prices pre-approved loan products for an application and
// records the applicant's choice.
package offers

import (
	"math"
	"sort"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/models"
)

// DefaultOffers is used when no catalog file overrides it.
func DefaultOffers() []models.LoanOffer {
	return []models.LoanOffer{
		{ID: "harbour-basic-variable", Lender: "Harbour Bank", Product: "Basic Variable",
			InterestRate: 5.99, ComparisonRate: 6.02, RateType: models.RateVariable, TermYears: 30,
			UpfrontFees: 0, MonthlyFees: 0, MaxLVR: 80, MinAmount: 50000, MaxAmount: 2000000,
			Features: []string{"extra repayments", "redraw"}},
		{ID: "harbour-package", Lender: "Harbour Bank", Product: "Advantage Package",
			InterestRate: 6.09, ComparisonRate: 6.41, RateType: models.RateVariable, TermYears: 30,
			UpfrontFees: 600, MonthlyFees: 0, MaxLVR: 90, MinAmount: 150000, MaxAmount: 3000000,
			Features: []string{"offset account", "extra repayments", "redraw", "credit card fee waiver"}},
		{ID: "summit-fixed-3", Lender: "Summit Mutual", Product: "3 Year Fixed",
			InterestRate: 5.79, ComparisonRate: 6.35, RateType: models.RateFixed, TermYears: 30,
			UpfrontFees: 350, MonthlyFees: 10, MaxLVR: 80, MinAmount: 100000, MaxAmount: 1500000,
			Features: []string{"rate lock"}},
		{ID: "coastal-low-deposit", Lender: "Coastal Credit Union", Product: "Low Deposit Variable",
			InterestRate: 6.49, ComparisonRate: 6.55, RateType: models.RateVariable, TermYears: 30,
			UpfrontFees: 250, MonthlyFees: 8, MaxLVR: 95, MinAmount: 50000, MaxAmount: 900000,
			Features: []string{"offset account"}},
	}
}

// Request is what an offer is priced against.
type Request struct {
	Amount        float64
	PropertyValue float64
	TermYears     int
}

// RequestFor reads loan amount, property value and term from app.
func RequestFor(app *models.LoanApplication) Request {
	return Request{
		Amount:        app.NumberField(models.SectionLoanRequirements, "loanAmount"),
		PropertyValue: app.NumberField(models.SectionProperty, "estimatedValue"),
		TermYears:     int(app.NumberField(models.SectionLoanRequirements, "loanTermYears")),
	}
}

// LVR is the loan to value ratio in percent, or 0 when the value is unknown.
func (r Request) LVR() float64 {
	if r.PropertyValue <= 0 {
		return 0
	}
	return r.Amount / r.PropertyValue * 100
}

const (
	SortByRate      = "rate"
	SortByRepayment = "repayment"
	SortByTotalCost = "total_cost"
)

// MonthlyRepayment is the principal and interest repayment for a loan of
// amount over years at an annual percentage rate.
func MonthlyRepayment(amount, annualRatePct float64, years int) float64 {
	n := float64(years * 12)
	if amount <= 0 || n <= 0 {
		return 0
	}
	r := annualRatePct / 100 / 12
	if r == 0 {
		return amount / n
	}
	f := math.Pow(1+r, n)
	return amount * r * f / (f - 1)
}

// Eligible reports whether offer can be used for req and why not.
func Eligible(offer models.LoanOffer, req Request) (bool, string) {
	switch {
	case req.Amount <= 0:
		return false, "loan amount not provided"
	case req.Amount < offer.MinAmount:
		return false, "loan amount below product minimum"
	case offer.MaxAmount > 0 && req.Amount > offer.MaxAmount:
		return false, "loan amount above product maximum"
	case offer.MaxLVR > 0 && req.LVR() > offer.MaxLVR:
		return false, "loan to value ratio too high"
	}
	return true, ""
}

// Quote prices offer for req.
func Quote(offer models.LoanOffer, req Request) models.OfferQuote {
	term := req.TermYears
	if term <= 0 || term > offer.TermYears {
		term = offer.TermYears
	}
	monthly := MonthlyRepayment(req.Amount, offer.InterestRate, term)
	months := float64(term * 12)
	return models.OfferQuote{
		LoanOffer:        offer,
		LoanAmount:       req.Amount,
		TermYears:        term,
		MonthlyRepayment: round2(monthly),
		TotalCost:        round2(monthly*months + offer.UpfrontFees + offer.MonthlyFees*months),
		LVR:              round2(req.LVR()),
	}
}

// Compare quotes every eligible offer and sorts them ascending by sortBy.
// Unknown sort keys sort by rate. Ties keep catalog order.
func Compare(catalog []models.LoanOffer, req Request, sortBy string) []models.OfferQuote {
	quotes := make([]models.OfferQuote, 0, len(catalog))
	for _, o := range catalog {
		if ok, _ := Eligible(o, req); ok {
			quotes = append(quotes, Quote(o, req))
		}
	}

	key := func(q models.OfferQuote) float64 { return q.InterestRate }
	switch sortBy {
	case SortByRepayment:
		key = func(q models.OfferQuote) float64 { return q.MonthlyRepayment }
	case SortByTotalCost:
		key = func(q models.OfferQuote) float64 { return q.TotalCost }
	}
	sort.SliceStable(quotes, func(i, j int) bool { return key(quotes[i]) < key(quotes[j]) })
	return quotes
}

// Select validates offerID against the catalog and app and records it.
// Only applications the applicant can still edit accept a selection.
func Select(app *models.LoanApplication, catalog []models.LoanOffer, offerID string) error {
	if !app.Status.Editable() {
		return errors.NewAlreadySubmittedError(app.ID)
	}
	for _, o := range catalog {
		if o.ID != offerID {
			continue
		}
		if ok, reason := Eligible(o, RequestFor(app)); !ok {
			return errors.NewOfferNotEligibleError(offerID, reason)
		}
		app.SelectedOfferID = offerID
		return nil
	}
	return errors.NewOfferNotFoundError(offerID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
