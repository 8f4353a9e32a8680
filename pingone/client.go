package pingone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
)

// DefaultPresentationMessage is shown in the applicant's wallet app when no
// custom message is supplied.
const DefaultPresentationMessage = "Please present your NatWest Current Account credentials for credit card application"

// presentationCredentialKeys are the attributes requested from the
// applicant's wallet credential.
var presentationCredentialKeys = []string{
	"DOB",
	"CardType",
	"Area",
	"First Name",
	"UserID",
	"Sort Code",
	"Street",
	"Postcode",
	"Country",
	"City",
	"Last Name",
	"Account Number",
}

type Config struct {
	AuthBaseUrl         string `json:"auth_base_url"`
	ApiBaseUrl          string `json:"api_base_url"`
	EnvironmentId       string `json:"environment_id"`
	ClientId            string `json:"client_id"`
	ClientSecret        string `json:"client_secret,omitempty"`
	WalletApplicationId string `json:"wallet_application_id"`
	CredentialTypeId    string `json:"credential_type_id"`
	RequestTimeoutSecs  int    `json:"request_timeout_seconds,omitempty"`
}

// Gateway is the identity provider surface the rest of the service depends
// on. The real implementation talks HTTPS to PingOne; tests substitute fakes.
type Gateway interface {
	// GetAccessToken obtains a client-credentials bearer token.
	GetAccessToken(ctx context.Context) (*models.TokenResponse, error)

	// CreatePresentationSession creates a wallet presentation session and
	// returns the session descriptor including the QR code URL.
	CreatePresentationSession(ctx context.Context, accessToken, message string) (*models.PresentationResponse, error)

	// GetStatus reads the current status of a presentation session.
	GetStatus(ctx context.Context, accessToken, environmentId, sessionId string) (*models.StatusResponse, error)

	// GetCredentialData retrieves the credential payload released by the
	// applicant's wallet once verification succeeded.
	GetCredentialData(ctx context.Context, accessToken, environmentId, sessionId string) (*models.CredentialDataResponse, error)

	// IssueCredential issues a credential to the given provider user.
	IssueCredential(ctx context.Context, accessToken, userId string) error
}

// Client implements Gateway against the PingOne credentials API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new identity provider client.
func NewClient(config Config) *Client {
	timeout := 10 * time.Second
	if config.RequestTimeoutSecs > 0 {
		timeout = time.Duration(config.RequestTimeoutSecs) * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// GetAccessToken performs the client_credentials grant. It fails when the
// token is absent from the response.
func (c *Client) GetAccessToken(ctx context.Context) (*models.TokenResponse, error) {
	tokenUrl := fmt.Sprintf("%s/%s/as/token", c.config.AuthBaseUrl, c.config.EnvironmentId)

	form := url.Values{}
	form.Set("client_id", c.config.ClientId)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenUrl, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token models.TokenResponse
	if err := c.do(req, "token", &token); err != nil {
		return nil, err
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrValidation)
	}

	if expiry, ok := TokenExpiry(token.AccessToken); ok {
		slog.Debug("Access token obtained", "expires_at", expiry)
	} else {
		slog.Debug("Access token obtained, expiry claim not readable")
	}
	return &token, nil
}

// CreatePresentationSession creates the wallet presentation session that the
// applicant will answer by scanning the QR code.
func (c *Client) CreatePresentationSession(ctx context.Context, accessToken, message string) (*models.PresentationResponse, error) {
	sessionUrl := fmt.Sprintf("%s/environments/%s/presentationSessions", c.config.ApiBaseUrl, c.config.EnvironmentId)

	if message == "" {
		message = DefaultPresentationMessage
	}

	body := map[string]any{
		"message":  message,
		"protocol": "OPENID4VP",
		"digitalWalletApplication": map[string]string{
			"id": c.config.WalletApplicationId,
		},
		"requestedCredentials": []map[string]any{
			{
				"type": "NatWest Current Account",
				"keys": presentationCredentialKeys,
			},
		},
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, sessionUrl, accessToken, body)
	if err != nil {
		return nil, err
	}

	var session models.PresentationResponse
	if err := c.do(req, "create presentation session", &session); err != nil {
		return nil, err
	}

	if session.Links == nil || session.Links.Qr == nil || session.Links.Qr.Href == "" {
		return nil, fmt.Errorf("%w: presentation response missing QR code URL", ErrValidation)
	}
	if session.Id == "" {
		return nil, fmt.Errorf("%w: presentation response missing session ID", ErrValidation)
	}
	if session.Environment == nil || session.Environment.Id == "" {
		return nil, fmt.Errorf("%w: presentation response missing environment ID", ErrValidation)
	}
	if session.ExpiresAt == "" {
		return nil, fmt.Errorf("%w: presentation response missing expiry time", ErrValidation)
	}

	slog.Debug("Presentation session created",
		"session_id", session.Id,
		"environment_id", session.Environment.Id,
		"expires_at", session.ExpiresAt,
		"status", session.Status)
	return &session, nil
}

// GetStatus reads the status of a presentation session. It fails when the
// response is missing the id or status field.
func (c *Client) GetStatus(ctx context.Context, accessToken, environmentId, sessionId string) (*models.StatusResponse, error) {
	statusUrl := fmt.Sprintf("%s/environments/%s/presentationSessions/%s", c.config.ApiBaseUrl, environmentId, sessionId)

	req, err := c.newJSONRequest(ctx, http.MethodGet, statusUrl, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var status models.StatusResponse
	if err := c.do(req, "status check", &status); err != nil {
		return nil, err
	}

	if status.Id == "" || status.Status == "" {
		return nil, fmt.Errorf("%w: status response missing required fields", ErrValidation)
	}

	return &status, nil
}

// GetCredentialData fetches the credential payload for a verified session.
// Several response shapes are accepted; if none of the recognized shapes is
// present the response is rejected as invalid.
func (c *Client) GetCredentialData(ctx context.Context, accessToken, environmentId, sessionId string) (*models.CredentialDataResponse, error) {
	credentialUrl := fmt.Sprintf("%s/environments/%s/presentationSessions/%s/credentialData", c.config.ApiBaseUrl, environmentId, sessionId)

	req, err := c.newJSONRequest(ctx, http.MethodGet, credentialUrl, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var data models.CredentialDataResponse
	if err := c.do(req, "credential data", &data); err != nil {
		return nil, err
	}

	hasValidShape := (data.SessionData != nil && data.SessionData.CredentialsDataList != nil) ||
		data.Status == models.RawStatusSuccessful ||
		len(data.Credentials) > 0 ||
		len(data.CredentialsDataList) > 0 ||
		len(data.Data) > 0

	if !hasValidShape {
		return nil, fmt.Errorf("%w: credential data response missing required fields", ErrValidation)
	}

	return &data, nil
}

// IssueCredential issues the configured credential type to the provider user
// identified by userId. Callers treat failures as best-effort.
func (c *Client) IssueCredential(ctx context.Context, accessToken, userId string) error {
	issueUrl := fmt.Sprintf("%s/environments/%s/users/%s/credentials", c.config.ApiBaseUrl, c.config.EnvironmentId, userId)

	body := map[string]any{
		"credentialType": map[string]string{
			"id": c.config.CredentialTypeId,
		},
		"data": map[string]string{},
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, issueUrl, accessToken, body)
	if err != nil {
		return err
	}

	var issued map[string]any
	if err := c.do(req, "credential issuance", &issued); err != nil {
		return err
	}

	slog.Info("Credential issued", "user_id", userId)
	return nil
}

// TokenExpiry reads the exp claim from a JWT access token without verifying
// its signature. Signature verification is the provider's job; the claim is
// only used to log and to detect an already-expired token early.
func TokenExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (c *Client) newJSONRequest(ctx context.Context, method, requestUrl, accessToken string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestUrl, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do executes the request and decodes a JSON response body into out.
// Network failures and non-2xx statuses are transport errors; undecodable
// bodies are validation errors.
func (c *Client) do(req *http.Request, operation string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %v", ErrTransport, operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: %s failed with status %d: %s", ErrTransport, operation, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrValidation, operation, err)
	}
	return nil
}
