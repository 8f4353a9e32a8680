package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/models"
	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/pingone"
)

// HardTimeout is the overall wait budget for one verification session. Once
// elapsed, the engine stops and reports a synthesized timeout status.
const HardTimeout = 2 * time.Minute

// maxConsecutiveErrors is the number of back-to-back check failures tolerated
// before polling is abandoned with a forced failed status.
const maxConsecutiveErrors = 5

// ErrMissingParameters is reported when polling is started or resumed while
// any of the required session parameters is absent.
var ErrMissingParameters = errors.New("missing required parameters for verification check")

// StatusClient is the slice of the identity provider gateway the engine
// needs: one status read plus the credential fetch for approved sessions.
type StatusClient interface {
	GetStatus(ctx context.Context, accessToken, environmentId, sessionId string) (*models.StatusResponse, error)
	GetCredentialData(ctx context.Context, accessToken, environmentId, sessionId string) (*models.CredentialDataResponse, error)
}

// StatusHandler receives normalized status transitions. applicant is only
// populated for approved statuses, and only when credential extraction
// succeeded. raw is nil for locally synthesized statuses.
type StatusHandler func(status models.NormalizedStatus, raw *models.StatusResponse, applicant *models.ApplicantInfo)

// ErrorHandler receives transport/validation/protocol errors.
type ErrorHandler func(err error)

// Engine polls the status of a single verification session until a terminal
// condition, with fixed-tier backoff on consecutive errors and a hard overall
// timeout. At most one check is in flight at any time: each check only
// schedules its successor after it has completed, and a generation counter
// turns timers and in-flight results from a cancelled cycle into no-ops.
//
// All state is guarded by mu; callbacks are always invoked with mu released.
type Engine struct {
	client         StatusClient
	onStatusChange StatusHandler
	onError        ErrorHandler

	// test seams
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu                sync.Mutex
	session           models.VerificationSession
	bound             bool
	polling           bool
	generation        uint64
	consecutiveErrors int
	startedAt         time.Time
	status            models.NormalizedStatus
	lastErr           error
	timer             *time.Timer
}

// NewEngine creates an engine for a single verification attempt. Either
// handler may be nil.
func NewEngine(client StatusClient, onStatusChange StatusHandler, onError ErrorHandler) *Engine {
	return &Engine{
		client:         client,
		onStatusChange: onStatusChange,
		onError:        onError,
		now:            time.Now,
		afterFunc:      time.AfterFunc,
		status:         models.StatusPending,
	}
}

// SetSession binds the session parameters the engine polls against. A change
// after the parameters have already been bound once is treated as a new
// session and resets the engine; the very first bind does not.
func (e *Engine) SetSession(session models.VerificationSession) {
	e.mu.Lock()
	changed := e.bound && session != e.session
	e.mu.Unlock()

	if changed {
		slog.Debug("Session parameters changed, resetting polling engine", "session_id", session.SessionId)
		e.Reset()
	}

	e.mu.Lock()
	e.session = session
	e.bound = true
	e.mu.Unlock()
}

// StartPolling begins the check cycle with an immediate first check. It is a
// no-op when polling is already active. When required session parameters are
// missing it reports ErrMissingParameters and does not arm a timer.
func (e *Engine) StartPolling() error {
	e.mu.Lock()
	if e.polling {
		e.mu.Unlock()
		slog.Debug("StartPolling called while already polling, ignoring")
		return nil
	}
	if err := validateSession(e.session); err != nil {
		e.lastErr = err
		e.mu.Unlock()
		e.emitError(err)
		return err
	}

	e.polling = true
	e.generation++
	gen := e.generation
	e.consecutiveErrors = 0
	e.startedAt = e.now()
	e.status = models.StatusPending
	e.lastErr = nil
	sessionId := e.session.SessionId
	e.mu.Unlock()

	slog.Info("Verification polling started", "session_id", sessionId)
	e.check(gen)
	return nil
}

// StopPolling cancels any pending timer and marks polling inactive. It is
// idempotent and safe to call when not polling; an in-flight check observes
// the generation bump and discards its result.
func (e *Engine) StopPolling() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Reset stops polling and clears status, error, and error counters. The
// bound session parameters are kept.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.status = models.StatusPending
	e.lastErr = nil
	e.consecutiveErrors = 0
}

// Status returns the last normalized status.
func (e *Engine) Status() models.NormalizedStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastError returns the most recent check error, if any.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// IsPolling reports whether a check cycle is active.
func (e *Engine) IsPolling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.polling
}

func (e *Engine) stopLocked() {
	e.polling = false
	e.generation++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// backoffDelay selects the next-check delay from the consecutive-error
// count. Fixed tiers, deliberately not exponential.
func backoffDelay(consecutiveErrors int) time.Duration {
	switch {
	case consecutiveErrors == 0:
		return 2 * time.Second
	case consecutiveErrors <= 3:
		return 5 * time.Second
	default:
		return 10 * time.Second
	}
}

func validateSession(session models.VerificationSession) error {
	if session.AccessToken == "" || session.EnvironmentId == "" || session.SessionId == "" || session.ExpiresAt.IsZero() {
		return ErrMissingParameters
	}
	return nil
}

// check runs one cycle: stop-condition gates, the remote status read, and
// either a terminal stop or scheduling of the successor check.
func (e *Engine) check(gen uint64) {
	e.mu.Lock()
	if !e.polling || gen != e.generation {
		e.mu.Unlock()
		return
	}

	if err := validateSession(e.session); err != nil {
		e.lastErr = err
		e.stopLocked()
		e.mu.Unlock()
		e.emitError(err)
		return
	}

	now := e.now()
	session := e.session

	if now.Sub(e.startedAt) >= HardTimeout {
		// Hard wait budget elapsed with no terminal answer from the
		// provider: synthesize the terminal timeout status. No network
		// call is made.
		e.status = models.StatusTimeout
		e.stopLocked()
		e.mu.Unlock()
		slog.Info("Verification polling timed out", "session_id", session.SessionId)
		e.emitStatus(models.StatusTimeout, nil, nil)
		return
	}

	if !now.Before(session.ExpiresAt) {
		// Session-level expiry is a stop condition, not a status
		// rewrite: the last reported status stands unless the provider
		// itself reported VERIFICATION_EXPIRED first.
		e.stopLocked()
		e.mu.Unlock()
		slog.Info("Verification session expired, stopping polling", "session_id", session.SessionId)
		return
	}
	e.mu.Unlock()

	raw, err := e.client.GetStatus(context.Background(), session.AccessToken, session.EnvironmentId, session.SessionId)
	if err != nil {
		e.handleCheckError(gen, session.SessionId, err)
		return
	}

	normalized, mapErr := NormalizeStatus(raw.Status)
	if mapErr != nil {
		// Protocol-unknown status: fail closed.
		e.mu.Lock()
		if !e.polling || gen != e.generation {
			e.mu.Unlock()
			return
		}
		e.lastErr = mapErr
		e.stopLocked()
		e.mu.Unlock()
		slog.Error("Unknown verification status, stopping polling", "session_id", session.SessionId, "status", raw.Status)
		e.emitError(mapErr)
		return
	}

	// Credential retrieval is best-effort: extraction failure never fails
	// the status report, the applicant info is simply omitted.
	var applicant *models.ApplicantInfo
	if raw.Status == models.RawStatusSuccessful {
		applicant = e.fetchApplicantInfo(session)
	}

	e.mu.Lock()
	if !e.polling || gen != e.generation {
		// Stopped while the network call was in flight; discard.
		e.mu.Unlock()
		return
	}
	e.consecutiveErrors = 0
	e.lastErr = nil
	e.status = normalized
	terminal := raw.Status.IsTerminal()
	if terminal {
		e.stopLocked()
	}
	e.mu.Unlock()

	slog.Debug("Verification status checked", "session_id", session.SessionId, "status", raw.Status, "normalized", normalized, "terminal", terminal)
	e.emitStatus(normalized, raw, applicant)

	if !terminal {
		e.scheduleNext(gen)
	}
}

func (e *Engine) handleCheckError(gen uint64, sessionId string, err error) {
	e.mu.Lock()
	if !e.polling || gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.consecutiveErrors++
	e.lastErr = err
	exhausted := e.consecutiveErrors > maxConsecutiveErrors
	count := e.consecutiveErrors
	if exhausted {
		e.status = models.StatusFailed
		e.stopLocked()
	}
	e.mu.Unlock()

	slog.Warn("Verification status check failed", "session_id", sessionId, "consecutive_errors", count, "error", err)
	e.emitError(err)

	if exhausted {
		slog.Error("Too many consecutive polling errors, giving up", "session_id", sessionId, "consecutive_errors", count)
		return
	}
	e.scheduleNext(gen)
}

// scheduleNext arms the timer for the successor check. The generation is
// re-checked under the lock so a StopPolling issued from a callback wins.
func (e *Engine) scheduleNext(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.polling || gen != e.generation {
		return
	}
	delay := backoffDelay(e.consecutiveErrors)
	e.timer = e.afterFunc(delay, func() {
		e.check(gen)
	})
}

func (e *Engine) fetchApplicantInfo(session models.VerificationSession) *models.ApplicantInfo {
	data, err := e.client.GetCredentialData(context.Background(), session.AccessToken, session.EnvironmentId, session.SessionId)
	if err != nil {
		slog.Warn("Failed to fetch credential data", "session_id", session.SessionId, "error", err)
		return nil
	}
	applicant, err := pingone.ExtractApplicantInfo(data, e.now())
	if err != nil {
		slog.Warn("Failed to extract applicant info from credential data", "session_id", session.SessionId, "error", err)
		return nil
	}
	return applicant
}

func (e *Engine) emitStatus(status models.NormalizedStatus, raw *models.StatusResponse, applicant *models.ApplicantInfo) {
	if e.onStatusChange != nil {
		e.onStatusChange(status, raw, applicant)
	}
}

func (e *Engine) emitError(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}
