package pingone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

var extractNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func items(pairs ...string) []models.CredentialItem {
	var out []models.CredentialItem
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.CredentialItem{Key: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func TestFlattenCredentialDataShapePriority(t *testing.T) {
	// sessionData wins over every other shape
	data := &models.CredentialDataResponse{
		SessionData: &models.SessionData{
			CredentialsDataList: []models.CredentialData{{Data: items("First Name", "Amelia")}},
		},
		CredentialsDataList: []models.CredentialData{{Data: items("First Name", "Wrong")}},
		Data:                items("First Name", "AlsoWrong"),
	}
	require.Equal(t, "Amelia", FlattenCredentialData(data)["First Name"])

	data = &models.CredentialDataResponse{
		CredentialsDataList: []models.CredentialData{{Data: items("City", "Edinburgh")}},
		Credentials:         []models.CredentialData{{Data: items("City", "Wrong")}},
	}
	require.Equal(t, "Edinburgh", FlattenCredentialData(data)["City"])

	data = &models.CredentialDataResponse{
		Credentials: []models.CredentialData{{Data: items("Country", "UK")}},
	}
	require.Equal(t, "UK", FlattenCredentialData(data)["Country"])

	data = &models.CredentialDataResponse{Data: items("Postcode", "EH1 2NG")}
	require.Equal(t, "EH1 2NG", FlattenCredentialData(data)["Postcode"])

	require.Empty(t, FlattenCredentialData(nil))
	require.Empty(t, FlattenCredentialData(&models.CredentialDataResponse{}))
}

func TestExtractApplicantInfo(t *testing.T) {
	data := &models.CredentialDataResponse{
		Data: items(
			"First Name", "Amelia",
			"Last Name", "Harrington",
			"DOB", "1990-04-12",
			"Street", "12 Castle Road",
			"City", "Edinburgh",
			"Postcode", "EH1 2NG",
			"Country", "UK",
			"UserID", "user-42",
			"Account Number", "12345678",
			"Sort Code", "60-00-01",
			"Credit Score", "720",
			"Annual Income", "48000",
		),
	}

	info, err := ExtractApplicantInfo(data, extractNow)
	require.NoError(t, err)
	require.Equal(t, "Amelia Harrington", info.FullName)
	require.Equal(t, "12 Castle Road, Edinburgh, EH1 2NG, UK", info.Address)
	require.Equal(t, 34, info.Age)
	require.Equal(t, "user-42", info.UserId)
	require.Equal(t, 720, info.CreditScore)
	require.Equal(t, 48000, info.AnnualIncome)
}

func TestExtractApplicantInfoFallbackKeys(t *testing.T) {
	data := &models.CredentialDataResponse{
		Data: items(
			"firstName", "Rory",
			"birthdate", "1985-06-01",
			"postalCode", "BS1 4QA",
		),
	}

	info, err := ExtractApplicantInfo(data, extractNow)
	require.NoError(t, err)
	require.Equal(t, "Rory", info.FullName)
	require.Equal(t, "1985-06-01", info.DateOfBirth)
	require.Equal(t, "BS1 4QA", info.PostalCode)
}

func TestExtractApplicantInfoEmpty(t *testing.T) {
	_, err := ExtractApplicantInfo(&models.CredentialDataResponse{}, extractNow)
	require.ErrorContains(t, err, "no credential attributes")
}

func TestSessionFromPresentation(t *testing.T) {
	presentation := &models.PresentationResponse{
		Id:          "sess-1",
		Status:      models.RawStatusInitial,
		ExpiresAt:   "2025-03-01T10:00:00Z",
		Environment: &models.EnvironmentRef{Id: "env-1"},
		Links:       &models.PresentationLinks{Qr: &models.Href{Href: "https://qr.example/sess-1"}},
	}

	session, err := SessionFromPresentation(presentation, "tok-abc")
	require.NoError(t, err)
	require.Equal(t, "sess-1", session.SessionId)
	require.Equal(t, "tok-abc", session.AccessToken)
	require.Equal(t, "env-1", session.EnvironmentId)
	require.Equal(t, "https://qr.example/sess-1", session.QrCodeUrl)
	require.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), session.ExpiresAt.UTC())
}

func TestSessionFromPresentationBadExpiry(t *testing.T) {
	presentation := &models.PresentationResponse{
		Id:          "sess-1",
		ExpiresAt:   "not-a-timestamp",
		Environment: &models.EnvironmentRef{Id: "env-1"},
		Links:       &models.PresentationLinks{Qr: &models.Href{Href: "https://qr.example/sess-1"}},
	}

	_, err := SessionFromPresentation(presentation, "tok-abc")
	require.ErrorIs(t, err, ErrValidation)
}
