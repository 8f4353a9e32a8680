package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

func TestAssessEligibility(t *testing.T) {
	decider := NewStubDecider()

	cases := []struct {
		name         string
		creditScore  int
		annualIncome int
		wantEligible bool
		wantRisk     string
		wantLimit    int
	}{
		{"defaults are eligible", 0, 0, true, "medium", 9000},
		{"low risk high earner", 780, 60000, true, "low", 10000},
		{"recommended limit is capped", 700, 50000, true, "medium", 10000},
		{"score below threshold", 550, 40000, false, "high", 0},
		{"income below threshold", 700, 20000, false, "medium", 0},
		{"both below threshold", 500, 10000, false, "high", 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result := decider.AssessEligibility(&models.ApplicantInfo{
				CreditScore:  c.creditScore,
				AnnualIncome: c.annualIncome,
			})
			require.Equal(t, c.wantEligible, result.Eligibility)
			require.Equal(t, c.wantRisk, result.RiskLevel)
			require.Equal(t, c.wantLimit, result.RecommendedLimit)
			require.NotEmpty(t, result.AssessmentId)
			if c.wantEligible {
				require.Equal(t, "approve", result.Decision)
			} else {
				require.Equal(t, "reject", result.Decision)
			}
		})
	}
}

func TestSubmitApplication(t *testing.T) {
	decider := NewStubDecider()
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	decider.now = func() time.Time { return fixed }

	applicant := &models.ApplicantInfo{AccountNumber: "12345678", CreditScore: 700}
	application := decider.SubmitApplication(applicant, models.CardGold)

	require.NotEmpty(t, application.Id)
	require.Equal(t, "12345678", application.UserId)
	require.Equal(t, "pending", application.Status)
	require.Equal(t, models.CardGold, application.CardType)
	require.Equal(t, 6000, application.CreditLimit) // 5000 * 1.2
	require.Equal(t, 50, application.AnnualFee)
	require.InDelta(t, 15.99, application.InterestRate, 0.001) // 16.99 - 1.0
	require.Equal(t, fixed, application.CreatedAt)
	require.Equal(t, fixed, application.UpdatedAt)
}

func TestCreditLimitTiers(t *testing.T) {
	require.Equal(t, 1000, creditLimit(models.CardClassic, 600))
	require.Equal(t, 1200, creditLimit(models.CardClassic, 650))
	require.Equal(t, 1500, creditLimit(models.CardClassic, 750))
	require.Equal(t, 22500, creditLimit(models.CardPlatinum, 780))
	require.Equal(t, 37500, creditLimit(models.CardSignature, 800))
}

func TestAnnualFees(t *testing.T) {
	require.Equal(t, 0, annualFee(models.CardClassic))
	require.Equal(t, 50, annualFee(models.CardGold))
	require.Equal(t, 150, annualFee(models.CardPlatinum))
	require.Equal(t, 300, annualFee(models.CardSignature))
}

func TestInterestRates(t *testing.T) {
	require.InDelta(t, 18.99, interestRate(models.CardClassic, 600), 0.001)
	require.InDelta(t, 17.99, interestRate(models.CardClassic, 650), 0.001)
	require.InDelta(t, 16.99, interestRate(models.CardClassic, 750), 0.001)
	require.InDelta(t, 10.99, interestRate(models.CardSignature, 780), 0.001)
}
