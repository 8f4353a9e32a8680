package models

// Wire shapes of the identity provider's HTTP API. Only the fields the
// service reads are declared; everything else is ignored on decode.

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

type PresentationResponse struct {
	Id          string             `json:"id"`
	Status      RawStatus          `json:"status"`
	ExpiresAt   string             `json:"expiresAt"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	Environment *EnvironmentRef    `json:"environment,omitempty"`
	Links       *PresentationLinks `json:"_links,omitempty"`
}

type EnvironmentRef struct {
	Id string `json:"id"`
}

type PresentationLinks struct {
	Qr *Href `json:"qr,omitempty"`
}

type Href struct {
	Href string `json:"href"`
}

// StatusResponse is one status read of a presentation session.
type StatusResponse struct {
	Id          string          `json:"id"`
	Status      RawStatus       `json:"status"`
	ExpiresAt   string          `json:"expiresAt,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	Environment *EnvironmentRef `json:"environment,omitempty"`
}

// CredentialDataResponse covers the alternative shapes the provider has been
// observed to return for the credential-data call.
type CredentialDataResponse struct {
	Status              RawStatus        `json:"status,omitempty"`
	SessionData         *SessionData     `json:"sessionData,omitempty"`
	CredentialsDataList []CredentialData `json:"credentialsDataList,omitempty"`
	Credentials         []CredentialData `json:"credentials,omitempty"`
	Data                []CredentialItem `json:"data,omitempty"`
}

type SessionData struct {
	CredentialsDataList []CredentialData `json:"credentialsDataList"`
}

type CredentialData struct {
	Type                        string           `json:"type,omitempty"`
	VerificationStatus          string           `json:"verificationStatus,omitempty"`
	IssuerName                  string           `json:"issuerName,omitempty"`
	IssuerId                    string           `json:"issuerId,omitempty"`
	IssuerApplicationInstanceId string           `json:"issuerApplicationInstanceId,omitempty"`
	Data                        []CredentialItem `json:"data,omitempty"`
}

type CredentialItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
