package models

import "time"

// ApplicantInfo holds the attributes released by the applicant's wallet app
// (or entered on the manual form). All fields are optional; missing data is
// surfaced as the zero value rather than an error.
type ApplicantInfo struct {
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	FullName         string `json:"full_name,omitempty"`
	Street           string `json:"street,omitempty"`
	City             string `json:"city,omitempty"`
	PostalCode       string `json:"postal_code,omitempty"`
	Country          string `json:"country,omitempty"`
	Address          string `json:"address,omitempty"`
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Age              int    `json:"age,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	EmploymentStatus string `json:"employment_status,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	SortCode         string `json:"sort_code,omitempty"`
	UserId           string `json:"user_id,omitempty"`
	CreditScore      int    `json:"credit_score,omitempty"`
	AnnualIncome     int    `json:"annual_income,omitempty"`
}

var dobLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

// AgeFromDOB computes the applicant's age in whole years from a date of
// birth string. It returns (0, false) when the value is missing or cannot
// be parsed, so callers can tell "unknown" apart from a real age of zero.
func AgeFromDOB(dob string, now time.Time) (int, bool) {
	if dob == "" {
		return 0, false
	}
	var parsed time.Time
	var err error
	for _, layout := range dobLayouts {
		parsed, err = time.Parse(layout, dob)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0, false
	}

	age := now.Year() - parsed.Year()
	// Adjust when the birthday has not yet occurred this year.
	if now.Month() < parsed.Month() || (now.Month() == parsed.Month() && now.Day() < parsed.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age, true
}

// MaskAccountNumber hides all but the last four digits of an account number.
func MaskAccountNumber(accountNumber string) string {
	if accountNumber == "" {
		return "N/A"
	}
	if len(accountNumber) <= 4 {
		return "****"
	}
	return "****" + accountNumber[len(accountNumber)-4:]
}
