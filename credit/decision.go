// Package credit holds the placeholder rule-based credit decision logic.
// These are simplistic demo rules, not a genuine risk engine.
package credit

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

const (
	minCreditScore  = 600
	minAnnualIncome = 25000

	defaultCreditScore  = 650
	defaultAnnualIncome = 30000
)

// Decider is the credit decision surface consumed by the application wizard.
type Decider interface {
	AssessEligibility(applicant *models.ApplicantInfo) *models.CreditAssessmentResult
	SubmitApplication(applicant *models.ApplicantInfo, cardType models.CardType) *models.CreditCardApplication
}

// StubDecider implements Decider with fixed demo rules.
type StubDecider struct {
	now func() time.Time
}

func NewStubDecider() *StubDecider {
	return &StubDecider{now: time.Now}
}

// AssessEligibility maps the applicant's credit score and income to an
// eligibility decision. Absent values fall back to neutral defaults.
func (d *StubDecider) AssessEligibility(applicant *models.ApplicantInfo) *models.CreditAssessmentResult {
	creditScore := applicant.CreditScore
	if creditScore == 0 {
		creditScore = defaultCreditScore
	}
	annualIncome := applicant.AnnualIncome
	if annualIncome == 0 {
		annualIncome = defaultAnnualIncome
	}

	eligible := creditScore >= minCreditScore && annualIncome >= minAnnualIncome

	riskLevel := "high"
	switch {
	case creditScore >= 750:
		riskLevel = "low"
	case creditScore >= 650:
		riskLevel = "medium"
	}

	decision := "reject"
	recommendedLimit := 0
	reasons := []string{"Credit score below threshold", "Insufficient income"}
	if eligible {
		decision = "approve"
		recommendedLimit = int(min(float64(annualIncome)*0.3, 10000))
		reasons = []string{"Good credit score", "Sufficient income"}
	}

	result := &models.CreditAssessmentResult{
		AssessmentId:     "assess_" + uuid.NewString(),
		CreditScore:      creditScore,
		Eligibility:      eligible,
		RecommendedLimit: recommendedLimit,
		RiskLevel:        riskLevel,
		Decision:         decision,
		Reasons:          reasons,
	}

	slog.Info("Credit assessment completed",
		"assessment_id", result.AssessmentId,
		"decision", result.Decision,
		"risk_level", result.RiskLevel,
		"eligible", result.Eligibility)
	return result
}

// SubmitApplication creates the application record for an eligible
// applicant.
func (d *StubDecider) SubmitApplication(applicant *models.ApplicantInfo, cardType models.CardType) *models.CreditCardApplication {
	creditScore := applicant.CreditScore
	if creditScore == 0 {
		creditScore = defaultCreditScore
	}

	userId := applicant.AccountNumber
	if userId == "" {
		userId = "unknown"
	}

	now := d.now()
	application := &models.CreditCardApplication{
		Id:           "app_" + uuid.NewString(),
		UserId:       userId,
		Status:       "pending",
		CardType:     cardType,
		CreditLimit:  creditLimit(cardType, creditScore),
		AnnualFee:    annualFee(cardType),
		InterestRate: interestRate(cardType, creditScore),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	slog.Info("Credit card application submitted",
		"application_id", application.Id,
		"card_type", application.CardType,
		"credit_limit", application.CreditLimit)
	return application
}

func creditLimit(cardType models.CardType, creditScore int) int {
	baseLimits := map[models.CardType]float64{
		models.CardClassic:   1000,
		models.CardGold:      5000,
		models.CardPlatinum:  15000,
		models.CardSignature: 25000,
	}

	multiplier := 1.0
	switch {
	case creditScore >= 750:
		multiplier = 1.5
	case creditScore >= 650:
		multiplier = 1.2
	}
	return int(baseLimits[cardType]*multiplier + 0.5)
}

func annualFee(cardType models.CardType) int {
	fees := map[models.CardType]int{
		models.CardClassic:   0,
		models.CardGold:      50,
		models.CardPlatinum:  150,
		models.CardSignature: 300,
	}
	return fees[cardType]
}

func interestRate(cardType models.CardType, creditScore int) float64 {
	baseRates := map[models.CardType]float64{
		models.CardClassic:   18.99,
		models.CardGold:      16.99,
		models.CardPlatinum:  14.99,
		models.CardSignature: 12.99,
	}

	reduction := 0.0
	switch {
	case creditScore >= 750:
		reduction = 2.0
	case creditScore >= 650:
		reduction = 1.0
	}
	return max(baseRates[cardType]-reduction, 8.99)
}
