package models

import "time"

// CardType enumerates the credit card products on offer.
type CardType string

const (
	CardClassic   CardType = "classic"
	CardGold      CardType = "gold"
	CardPlatinum  CardType = "platinum"
	CardSignature CardType = "signature"
)

// Valid reports whether the card type is one of the offered products.
func (c CardType) Valid() bool {
	switch c {
	case CardClassic, CardGold, CardPlatinum, CardSignature:
		return true
	}
	return false
}

// CreditAssessmentResult is the output of the rule-based eligibility check.
type CreditAssessmentResult struct {
	AssessmentId     string   `json:"assessment_id"`
	CreditScore      int      `json:"credit_score"`
	Eligibility      bool     `json:"eligibility"`
	RecommendedLimit int      `json:"recommended_limit"`
	RiskLevel        string   `json:"risk_level"`
	Decision         string   `json:"decision"`
	Reasons          []string `json:"reasons"`
}

// CreditCardApplication is the record produced when an eligible applicant's
// application is submitted.
type CreditCardApplication struct {
	Id           string    `json:"id"`
	UserId       string    `json:"user_id"`
	Status       string    `json:"status"`
	CardType     CardType  `json:"card_type"`
	CreditLimit  int       `json:"credit_limit"`
	AnnualFee    int       `json:"annual_fee"`
	InterestRate float64   `json:"interest_rate"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
