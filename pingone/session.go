package pingone

import (
	"fmt"
	"time"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

// SessionFromPresentation binds a validated presentation response and its
// bearer token into the session descriptor the polling engine works with.
func SessionFromPresentation(presentation *models.PresentationResponse, accessToken string) (*models.VerificationSession, error) {
	expiresAt, err := time.Parse(time.RFC3339, presentation.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%w: unparseable session expiry %q: %v", ErrValidation, presentation.ExpiresAt, err)
	}

	return &models.VerificationSession{
		SessionId:     presentation.Id,
		AccessToken:   accessToken,
		EnvironmentId: presentation.Environment.Id,
		ExpiresAt:     expiresAt,
		QrCodeUrl:     presentation.Links.Qr.Href,
	}, nil
}
