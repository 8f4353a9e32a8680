package models

import "time"

// RawStatus is the verification status as reported by the identity provider.
type RawStatus string

const (
	RawStatusInitial    RawStatus = "INITIAL"
	RawStatusWaiting    RawStatus = "WAITING"
	RawStatusSuccessful RawStatus = "VERIFICATION_SUCCESSFUL"
	RawStatusFailed     RawStatus = "VERIFICATION_FAILED"
	RawStatusExpired    RawStatus = "VERIFICATION_EXPIRED"
)

// IsTerminal reports whether no further status transitions are expected
// for a session once this value has been observed.
func (s RawStatus) IsTerminal() bool {
	switch s {
	case RawStatusSuccessful, RawStatusFailed, RawStatusExpired:
		return true
	}
	return false
}

// NormalizedStatus is the local status form consumed by the wizard.
type NormalizedStatus string

const (
	StatusPending  NormalizedStatus = "pending"
	StatusScanned  NormalizedStatus = "scanned"
	StatusApproved NormalizedStatus = "approved"
	StatusFailed   NormalizedStatus = "failed"
	StatusExpired  NormalizedStatus = "expired"
	// StatusTimeout is synthesized locally when the overall wait budget
	// elapses without the provider ever returning a terminal status.
	StatusTimeout NormalizedStatus = "timeout"
)

// VerificationSession identifies one presentation session at the identity
// provider. All fields are set once at creation and never mutated.
type VerificationSession struct {
	SessionId     string    `json:"session_id"`
	AccessToken   string    `json:"-"`
	EnvironmentId string    `json:"environment_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	QrCodeUrl     string    `json:"qr_code_url"`
}
