package pingone

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

// FlattenCredentialData reduces whichever of the accepted credential-data
// shapes is present into a flat key/value map of credential attributes.
// An empty map means no credential data could be located.
func FlattenCredentialData(data *models.CredentialDataResponse) map[string]string {
	flattened := map[string]string{}
	if data == nil {
		return flattened
	}

	var items []models.CredentialItem
	switch {
	case data.SessionData != nil && len(data.SessionData.CredentialsDataList) > 0:
		items = data.SessionData.CredentialsDataList[0].Data
	case len(data.CredentialsDataList) > 0:
		items = data.CredentialsDataList[0].Data
	case len(data.Credentials) > 0:
		items = data.Credentials[0].Data
	case len(data.Data) > 0:
		items = data.Data
	}

	for _, item := range items {
		if item.Key != "" {
			flattened[item.Key] = item.Value
		}
	}
	return flattened
}

// ExtractApplicantInfo pulls the applicant attributes out of a credential
// payload. Missing fields are tolerated; the error is only returned when no
// credential data is present at all, and callers treat it as best-effort.
func ExtractApplicantInfo(data *models.CredentialDataResponse, now time.Time) (*models.ApplicantInfo, error) {
	attributes := FlattenCredentialData(data)
	if len(attributes) == 0 {
		return nil, fmt.Errorf("no credential attributes found in credential data response")
	}

	info := &models.ApplicantInfo{
		FirstName:     pick(attributes, "First Name", "firstName"),
		LastName:      pick(attributes, "Last Name", "lastName"),
		Street:        pick(attributes, "Street", "street"),
		City:          pick(attributes, "City", "city"),
		PostalCode:    pick(attributes, "Postcode", "Postal Code", "postalCode"),
		Country:       pick(attributes, "Country", "country"),
		DateOfBirth:   pick(attributes, "DOB", "Birthdate", "birthdate"),
		AccountNumber: pick(attributes, "Account Number", "accountNumber"),
		SortCode:      pick(attributes, "Sort Code", "sortCode"),
		UserId:        pick(attributes, "UserID", "userId"),
	}

	switch {
	case info.FirstName != "" && info.LastName != "":
		info.FullName = info.FirstName + " " + info.LastName
	case info.FirstName != "":
		info.FullName = info.FirstName
	case info.LastName != "":
		info.FullName = info.LastName
	}

	var addressParts []string
	for _, part := range []string{info.Street, info.City, info.PostalCode, info.Country} {
		if part != "" {
			addressParts = append(addressParts, part)
		}
	}
	info.Address = strings.Join(addressParts, ", ")

	if age, ok := models.AgeFromDOB(info.DateOfBirth, now); ok {
		info.Age = age
	}

	if score := pick(attributes, "Credit Score", "creditScore"); score != "" {
		if parsed, err := strconv.Atoi(score); err == nil {
			info.CreditScore = parsed
		}
	}
	if income := pick(attributes, "Annual Income", "annualIncome"); income != "" {
		if parsed, err := strconv.Atoi(income); err == nil {
			info.AnnualIncome = parsed
		}
	}

	return info, nil
}

func pick(attributes map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := attributes[key]; ok && v != "" {
			return v
		}
	}
	return ""
}
