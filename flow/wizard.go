// Package flow drives the credit-card application wizard: customer type and
// card selection, the digital identity-verification path with its QR display
// and polling, the manual data-entry path, and the terminal outcomes.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/credit"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/pingone"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/verification"
)

// Step is the wizard's visible position in the application flow.
type Step string

const (
	StepInitial    Step = "initial"
	StepManualForm Step = "manual_form"
	StepQrDisplay  Step = "qr_display"
	StepVerifying  Step = "verifying"
	StepCompleted  Step = "completed"
	StepFailed     Step = "failed"
)

// CustomerStatus is the applicant's self-identified relationship with the
// bank, selected at the initial step.
type CustomerStatus string

const (
	CustomerExisting CustomerStatus = "existing"
	CustomerNew      CustomerStatus = "new"
)

const (
	msgGenericFailure = "Something went wrong during the verification process. Please try again."
	msgTimeout        = "Verification session timed out. Please try again."
	msgUnder18Digital = "You must be 18 or older to apply for a credit card. Please contact customer service."
	msgUnder18Manual  = "You must be 18 or older to apply for a credit card. Please check your date of birth."
	minApplicationAge = 18
)

// ManualForm is the data entered by a new applicant bypassing digital
// verification.
type ManualForm struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Postcode         string `json:"postcode"`
	DateOfBirth      string `json:"date_of_birth"`
	EmploymentStatus string `json:"employment_status"`
	AnnualIncome     int    `json:"annual_income"`
}

// Snapshot is the wizard state exposed to the UI layer.
type Snapshot struct {
	Step               Step                           `json:"step"`
	CustomerStatus     CustomerStatus                 `json:"customer_status,omitempty"`
	CardType           models.CardType                `json:"card_type,omitempty"`
	VerificationStatus models.NormalizedStatus        `json:"verification_status,omitempty"`
	QrCodeUrl          string                         `json:"qr_code_url,omitempty"`
	SessionExpiresAt   *time.Time                     `json:"session_expires_at,omitempty"`
	Applicant          *models.ApplicantInfo          `json:"applicant,omitempty"`
	Assessment         *models.CreditAssessmentResult `json:"assessment,omitempty"`
	Application        *models.CreditCardApplication  `json:"application,omitempty"`
	Error              string                         `json:"error,omitempty"`
	TechnicalError     string                         `json:"technical_error,omitempty"`
}

// Wizard owns the state of one credit-card application flow. All methods are
// safe for concurrent use; polling engine callbacks arrive on timer
// goroutines and are serialized through the wizard's mutex.
type Wizard struct {
	gateway pingone.Gateway
	decider credit.Decider
	now     func() time.Time

	mu             sync.Mutex
	step           Step
	customerStatus CustomerStatus
	cardType       models.CardType
	session        *models.VerificationSession
	engine         *verification.Engine
	applicant      *models.ApplicantInfo
	assessment     *models.CreditAssessmentResult
	application    *models.CreditCardApplication
	errMsg         string
	technicalErr   string
}

// NewWizard creates a wizard at the initial step.
func NewWizard(gateway pingone.Gateway, decider credit.Decider) *Wizard {
	return &Wizard{
		gateway: gateway,
		decider: decider,
		now:     time.Now,
		step:    StepInitial,
	}
}

// Begin leaves the initial step. New customers go to the manual form;
// existing customers get a verification session created and polling started.
func (w *Wizard) Begin(ctx context.Context, customerStatus CustomerStatus, cardType models.CardType) error {
	w.mu.Lock()
	if w.step != StepInitial {
		step := w.step
		w.mu.Unlock()
		return fmt.Errorf("cannot begin application from step %q", step)
	}
	if customerStatus != CustomerExisting && customerStatus != CustomerNew {
		w.mu.Unlock()
		return fmt.Errorf("invalid customer status %q", customerStatus)
	}
	if !cardType.Valid() {
		w.mu.Unlock()
		return fmt.Errorf("invalid card type %q", cardType)
	}
	w.customerStatus = customerStatus
	w.cardType = cardType

	if customerStatus == CustomerNew {
		w.step = StepManualForm
		w.mu.Unlock()
		slog.Info("Application flow entering manual form", "card_type", cardType)
		return nil
	}
	w.mu.Unlock()

	return w.startVerification(ctx)
}

func (w *Wizard) startVerification(ctx context.Context) error {
	slog.Info("Starting digital identity verification")

	token, err := w.gateway.GetAccessToken(ctx)
	if err != nil {
		w.fail(msgGenericFailure, err)
		return fmt.Errorf("failed to get access token: %w", err)
	}

	presentation, err := w.gateway.CreatePresentationSession(ctx, token.AccessToken, "")
	if err != nil {
		w.fail(msgGenericFailure, err)
		return fmt.Errorf("failed to create presentation session: %w", err)
	}

	session, err := pingone.SessionFromPresentation(presentation, token.AccessToken)
	if err != nil {
		w.fail(msgGenericFailure, err)
		return fmt.Errorf("failed to bind verification session: %w", err)
	}

	engine := verification.NewEngine(w.gateway, w.handleStatusChange, w.handleEngineError)
	engine.SetSession(*session)

	w.mu.Lock()
	w.session = session
	w.engine = engine
	w.step = StepQrDisplay
	w.mu.Unlock()

	slog.Info("Verification session created", "session_id", session.SessionId, "expires_at", session.ExpiresAt)

	if err := engine.StartPolling(); err != nil {
		w.fail(msgGenericFailure, err)
		return fmt.Errorf("failed to start verification polling: %w", err)
	}
	return nil
}

// handleStatusChange consumes normalized status transitions from the polling
// engine.
func (w *Wizard) handleStatusChange(status models.NormalizedStatus, raw *models.StatusResponse, applicant *models.ApplicantInfo) {
	w.mu.Lock()
	if w.step != StepQrDisplay && w.step != StepVerifying {
		// Already terminal; a late notification changes nothing.
		w.mu.Unlock()
		return
	}
	if applicant != nil {
		w.applicant = applicant
	}

	switch status {
	case models.StatusScanned:
		w.step = StepVerifying
		w.mu.Unlock()
		slog.Info("QR code scanned, awaiting approval")

	case models.StatusApproved:
		w.step = StepCompleted
		w.mu.Unlock()
		slog.Info("Identity verification approved")
		w.stopEngine()
		w.completeDigital()

	case models.StatusFailed, models.StatusExpired:
		w.step = StepFailed
		w.errMsg = msgGenericFailure
		w.mu.Unlock()
		slog.Warn("Identity verification failed", "status", status)
		w.stopEngine()

	case models.StatusTimeout:
		w.step = StepFailed
		w.errMsg = msgTimeout
		w.mu.Unlock()
		slog.Warn("Identity verification timed out")
		w.stopEngine()

	default:
		// pending repeats while the applicant has not scanned yet
		w.mu.Unlock()
	}
}

// handleEngineError consumes polling errors. Any surfaced error fails the
// flow; retry semantics live entirely inside the engine.
func (w *Wizard) handleEngineError(err error) {
	w.mu.Lock()
	if w.step != StepQrDisplay && w.step != StepVerifying {
		w.mu.Unlock()
		return
	}
	w.step = StepFailed
	w.errMsg = msgGenericFailure
	w.technicalErr = err.Error()
	w.mu.Unlock()

	slog.Error("Verification polling error", "error", err)
	w.stopEngine()
}

// completeDigital runs the post-approval side effects: the local age gate,
// best-effort credential issuance for existing customers, the eligibility
// assessment, and the application submission.
func (w *Wizard) completeDigital() {
	w.mu.Lock()
	applicant := w.applicant
	customerStatus := w.customerStatus
	cardType := w.cardType
	var accessToken string
	if w.session != nil {
		accessToken = w.session.AccessToken
	}
	w.mu.Unlock()

	if applicant == nil {
		slog.Warn("Verification approved but no applicant info extracted; skipping assessment")
		return
	}

	// The age gate is local and must run before any network-side call.
	if age, ok := models.AgeFromDOB(applicant.DateOfBirth, w.now()); ok && age < minApplicationAge {
		slog.Warn("Applicant under minimum age", "age", age)
		w.mu.Lock()
		w.errMsg = msgUnder18Digital
		w.mu.Unlock()
		return
	}

	// Credential issuance is best-effort: failure is logged and never
	// alters the visible outcome.
	if customerStatus == CustomerExisting {
		w.issueCredential(accessToken, applicant.UserId)
	}

	assessment := w.decider.AssessEligibility(applicant)
	var application *models.CreditCardApplication
	if assessment.Eligibility {
		application = w.decider.SubmitApplication(applicant, cardType)
	}

	w.mu.Lock()
	w.assessment = assessment
	w.application = application
	w.mu.Unlock()
}

func (w *Wizard) issueCredential(accessToken, userId string) {
	if accessToken == "" || userId == "" {
		slog.Warn("Skipping credential issuance, missing access token or user id")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.gateway.IssueCredential(ctx, accessToken, userId); err != nil {
		slog.Warn("Credential issuance failed", "user_id", userId, "error", err)
	}
}

// SubmitManualForm completes the new-applicant path: age gate, assessment,
// and submission when eligible. No identity-provider round trip is made.
func (w *Wizard) SubmitManualForm(form ManualForm) error {
	w.mu.Lock()
	if w.step != StepManualForm {
		step := w.step
		w.mu.Unlock()
		return fmt.Errorf("cannot submit manual form from step %q", step)
	}
	cardType := w.cardType
	w.mu.Unlock()

	if age, ok := models.AgeFromDOB(form.DateOfBirth, w.now()); ok && age < minApplicationAge {
		w.mu.Lock()
		w.errMsg = msgUnder18Manual
		w.mu.Unlock()
		return fmt.Errorf("applicant is under %d", minApplicationAge)
	}

	applicant := applicantFromForm(form, w.now())

	assessment := w.decider.AssessEligibility(applicant)
	var application *models.CreditCardApplication
	if assessment.Eligibility {
		application = w.decider.SubmitApplication(applicant, cardType)
	}

	w.mu.Lock()
	w.applicant = applicant
	w.assessment = assessment
	w.application = application
	w.errMsg = ""
	w.step = StepCompleted
	w.mu.Unlock()

	slog.Info("Manual application submitted", "eligible", assessment.Eligibility)
	return nil
}

// Retry returns the wizard to the initial step, clearing all session and
// result state and stopping any active polling.
func (w *Wizard) Retry() {
	w.stopEngine()

	w.mu.Lock()
	w.step = StepInitial
	w.customerStatus = ""
	w.cardType = ""
	w.session = nil
	w.engine = nil
	w.applicant = nil
	w.assessment = nil
	w.application = nil
	w.errMsg = ""
	w.technicalErr = ""
	w.mu.Unlock()

	slog.Info("Application flow reset")
}

// Step returns the wizard's current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Snapshot returns a UI-safe view of the wizard state. The applicant's
// account number is masked.
func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := Snapshot{
		Step:           w.step,
		CustomerStatus: w.customerStatus,
		CardType:       w.cardType,
		Assessment:     w.assessment,
		Application:    w.application,
		Error:          w.errMsg,
		TechnicalError: w.technicalErr,
	}
	if w.engine != nil {
		snapshot.VerificationStatus = w.engine.Status()
	}
	if w.session != nil {
		snapshot.QrCodeUrl = w.session.QrCodeUrl
		expiresAt := w.session.ExpiresAt
		snapshot.SessionExpiresAt = &expiresAt
	}
	if w.applicant != nil {
		masked := *w.applicant
		masked.AccountNumber = models.MaskAccountNumber(masked.AccountNumber)
		snapshot.Applicant = &masked
	}
	return snapshot
}

func (w *Wizard) stopEngine() {
	w.mu.Lock()
	engine := w.engine
	w.mu.Unlock()
	if engine != nil {
		engine.StopPolling()
	}
}

func (w *Wizard) fail(message string, err error) {
	w.mu.Lock()
	w.step = StepFailed
	w.errMsg = message
	if err != nil {
		w.technicalErr = err.Error()
	}
	w.mu.Unlock()
}

func applicantFromForm(form ManualForm, now time.Time) *models.ApplicantInfo {
	applicant := &models.ApplicantInfo{
		FirstName:        form.FirstName,
		LastName:         form.LastName,
		FullName:         strings.TrimSpace(form.FirstName + " " + form.LastName),
		Email:            form.Email,
		Phone:            form.Phone,
		Street:           form.Address,
		City:             form.City,
		PostalCode:       form.Postcode,
		DateOfBirth:      form.DateOfBirth,
		EmploymentStatus: form.EmploymentStatus,
		AnnualIncome:     form.AnnualIncome,
	}

	var addressParts []string
	for _, part := range []string{form.Address, form.City, form.Postcode} {
		if part != "" {
			addressParts = append(addressParts, part)
		}
	}
	applicant.Address = strings.Join(addressParts, ", ")

	if age, ok := models.AgeFromDOB(form.DateOfBirth, now); ok {
		applicant.Age = age
	}
	return applicant
}
