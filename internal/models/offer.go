// internal/models/offer.go
package models

type RateType string

const (
	RateFixed    RateType = "fixed"
	RateVariable RateType = "variable"
)

// LoanOffer is a pre-approved product an applicant can pick.
type LoanOffer struct {
	ID             string   `json:"id"`
	Lender         string   `json:"lender"`
	Product        string   `json:"product"`
	InterestRate   float64  `json:"interestRate"`   // annual, percent
	ComparisonRate float64  `json:"comparisonRate"` // annual, percent
	RateType       RateType `json:"rateType"`
	TermYears      int      `json:"termYears"`
	UpfrontFees    float64  `json:"upfrontFees"`
	MonthlyFees    float64  `json:"monthlyFees"`
	MaxLVR         float64  `json:"maxLvr"` // percent
	MinAmount      float64  `json:"minAmount"`
	MaxAmount      float64  `json:"maxAmount"`
	Features       []string `json:"features,omitempty"`
}

// OfferQuote is an offer priced for one application.
type OfferQuote struct {
	LoanOffer
	LoanAmount       float64 `json:"loanAmount"`
	TermYears        int     `json:"quotedTermYears"`
	MonthlyRepayment float64 `json:"monthlyRepayment"`
	TotalCost        float64 `json:"totalCost"`
	LVR              float64 `json:"lvr"`
	Selected         bool    `json:"selected"`
}
