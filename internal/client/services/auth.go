// Package services contains the application services behind the game's
// account screens: the login/registration/device-verification state machine
// and the best-score reconciler. Gameplay and UI code call these; nothing
// here renders anything.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/skyrun-game/skyrun/internal/client/connectivity"
	"github.com/skyrun-game/skyrun/internal/client/gateway"
	"github.com/skyrun-game/skyrun/internal/client/repositories/prefs"
	"github.com/skyrun-game/skyrun/internal/common"
	"github.com/skyrun-game/skyrun/internal/logging"
)

// State is the auth session's position in the login flow.
type State string

const (
	StateLoggedOut            State = "LoggedOut"
	StateAutoLoginAttempt     State = "AutoLoginAttempt"
	StateAwaitingCredentials  State = "AwaitingCredentials"
	StateAwaitingVerification State = "AwaitingVerification"
	StateLoggedIn             State = "LoggedIn"
)

// maxVerifyAttempts bounds security-answer attempts per session; the delay
// between failed attempts grows exponentially.
const maxVerifyAttempts = 5

// LoginOutcome is what the login screen needs to render a verdict.
type LoginOutcome struct {
	Success              bool
	RequiresVerification bool
	Offline              bool
	Message              string
}

// RegisterOutcome reports a registration attempt.
type RegisterOutcome struct {
	Success bool
	Message string
}

// VerifyOutcome reports a device-verification attempt.
type VerifyOutcome struct {
	Success bool
	Message string
}

// LoginHook runs once each time the session reaches LoggedIn. It receives
// the session-scoped context, so closing the session cancels it.
type LoginHook func(ctx context.Context, userID string)

// AuthSession owns the login/registration/verification state machine.
//
// At most one operation runs at a time; a second concurrent call fails with
// common.ErrBusy. Every remote call is bounded by the gateway's deadline and
// additionally cancelled when the session is closed.
type AuthSession struct {
	gw      gateway.Gateway
	probe   *connectivity.Probe
	prefs   prefs.Repository
	logger  logging.Logger
	onLogin LoginHook

	// opMu serializes operations; TryLock gives ErrBusy instead of queueing.
	opMu sync.Mutex

	mu             sync.Mutex // guards the fields below
	state          State
	email          string // pending or logged-in email
	deviceID       string
	question       string
	verifyAttempts int
	verifyNotUntil time.Time
	verifyBackoff  retry.Backoff

	baseCtx context.Context
	close   context.CancelFunc
}

// NewAuthSession builds a session. deviceID is this installation's stable
// opaque identifier, supplied by the platform layer (see NewInstallationID);
// it is compared against the prefs.KeyDeviceIdentifier value written at
// verification time to decide offline-login trust. The hook may be nil.
func NewAuthSession(gw gateway.Gateway, probe *connectivity.Probe, store prefs.Repository, logger logging.Logger, deviceID string, onLogin LoginHook) *AuthSession {
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &AuthSession{
		gw:       gw,
		probe:    probe,
		prefs:    store,
		logger:   logger,
		onLogin:  onLogin,
		state:    StateLoggedOut,
		deviceID: deviceID,
		baseCtx:  baseCtx,
		close:    cancel,
	}
	s.resetVerifyBudget()
	return s
}

// NewInstallationID loads this installation's identifier from the prefs
// store, generating and persisting one on first run. It lives under its own
// key: prefs.KeyDeviceIdentifier is reserved for the identifier that was
// present when the device was last verified.
func NewInstallationID(ctx context.Context, store prefs.Repository) (string, error) {
	id, err := store.GetString(ctx, prefs.KeyInstallationID, "")
	if err != nil {
		return "", fmt.Errorf("loading installation id: %w", err)
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := store.SetString(ctx, prefs.KeyInstallationID, id); err != nil {
		return "", fmt.Errorf("saving installation id: %w", err)
	}
	return id, nil
}

// Close cancels every in-flight remote call tied to this session.
func (s *AuthSession) Close() {
	s.close()
}

// State returns the current machine state.
func (s *AuthSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Email returns the pending or logged-in email, "" when none.
func (s *AuthSession) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// DeviceIdentifier returns this installation's stable opaque id.
func (s *AuthSession) DeviceIdentifier() string {
	return s.deviceID
}

// scoped derives an operation context cancelled by either the caller or
// session close.
func (s *AuthSession) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.baseCtx, cancel)
	return ctx, func() { stop(); cancel() }
}

func (s *AuthSession) resetVerifyBudget() {
	s.verifyAttempts = 0
	s.verifyNotUntil = time.Time{}
	s.verifyBackoff = retry.NewExponential(500 * time.Millisecond)
}

// setLoggedIn persists the session flags and fires the login hook once.
func (s *AuthSession) setLoggedIn(ctx context.Context, email string) error {
	if err := s.prefs.SetString(ctx, prefs.KeyLastLoginEmail, email); err != nil {
		return err
	}
	if err := s.prefs.SetBool(ctx, prefs.KeyIsLoggedIn, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateLoggedIn
	s.email = email
	s.resetVerifyBudget()
	s.mu.Unlock()

	if s.onLogin != nil {
		// Reconciliation is best-effort and must not block the login result;
		// it runs under the session scope so Close still cancels it.
		go s.onLogin(s.baseCtx, email)
	}
	return nil
}

// offlineEligible reports whether email may log in without the network:
// a verified record must exist and must have been created on this
// installation.
func (s *AuthSession) offlineEligible(ctx context.Context, email string) (bool, error) {
	verified, err := s.prefs.GetBool(ctx, prefs.DeviceVerifiedKey(email), false)
	if err != nil || !verified {
		return false, err
	}
	stored, err := s.prefs.GetString(ctx, prefs.KeyDeviceIdentifier, "")
	if err != nil {
		return false, err
	}
	return stored == s.deviceID, nil
}

// Resume runs the startup auto-login. When the persisted session flags say
// the user was logged in and a verified record binds this installation, the
// session lands in LoggedIn without any remote call; otherwise it falls back
// to AwaitingCredentials without surfacing an error.
func (s *AuthSession) Resume(ctx context.Context) (State, error) {
	if !s.opMu.TryLock() {
		return s.State(), common.ErrBusy
	}
	defer s.opMu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()

	loggedIn, err := s.prefs.GetBool(ctx, prefs.KeyIsLoggedIn, false)
	if err != nil {
		return StateLoggedOut, err
	}
	lastEmail, err := s.prefs.GetString(ctx, prefs.KeyLastLoginEmail, "")
	if err != nil {
		return StateLoggedOut, err
	}

	if !loggedIn || lastEmail == "" {
		s.mu.Lock()
		s.state = StateLoggedOut
		s.mu.Unlock()
		return StateLoggedOut, nil
	}

	s.mu.Lock()
	s.state = StateAutoLoginAttempt
	s.mu.Unlock()

	eligible, err := s.offlineEligible(ctx, lastEmail)
	if err != nil {
		s.logger.Warn(ctx, "auto-login: reading verification record", "error", err)
	}
	if eligible {
		if err := s.setLoggedIn(ctx, lastEmail); err != nil {
			return StateLoggedOut, err
		}
		return StateLoggedIn, nil
	}

	// No trusted record for this installation and no stored credentials to
	// retry with, so ask for the password. Deliberately silent.
	s.logger.Info(ctx, "auto-login fell back to credentials", "email", lastEmail)
	s.mu.Lock()
	s.state = StateAwaitingCredentials
	s.email = lastEmail
	s.mu.Unlock()
	return StateAwaitingCredentials, nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: malformed email", common.ErrValidation)
	}
	return nil
}

// Login authenticates email/password. When the service is unreachable it
// succeeds through the offline path iff a verified, device-matching record
// exists for that email; otherwise the transport failure surfaces.
func (s *AuthSession) Login(ctx context.Context, email, password string) (*LoginOutcome, error) {
	if !s.opMu.TryLock() {
		return nil, common.ErrBusy
	}
	defer s.opMu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	if !s.probe.Check(ctx) {
		return s.offlineLogin(ctx, email)
	}

	resp, err := s.gw.Login(ctx, gateway.LoginRequest{
		Email:            email,
		Password:         password,
		DeviceIdentifier: s.deviceID,
	})
	if err != nil {
		if errors.Is(err, common.ErrTransport) {
			// The probe said reachable but the call still failed; try the
			// offline path before giving up.
			s.probe.Invalidate()
			return s.offlineLogin(ctx, email)
		}
		s.logger.Warn(ctx, "login rejected", "email", email, "error", err)
		s.mu.Lock()
		s.state = StateAwaitingCredentials
		s.mu.Unlock()
		return &LoginOutcome{Message: userMessage(err)}, err
	}

	if resp.RequiresVerification {
		// Persist the email first so verification survives an interruption.
		if err := s.prefs.SetString(ctx, prefs.KeyLastLoginEmail, email); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.state = StateAwaitingVerification
		s.email = email
		s.resetVerifyBudget()
		s.mu.Unlock()
		return &LoginOutcome{Success: true, RequiresVerification: true, Message: resp.Message}, nil
	}

	if err := s.setLoggedIn(ctx, email); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "logged in", "email", email)
	return &LoginOutcome{Success: true, Message: resp.Message}, nil
}

func (s *AuthSession) offlineLogin(ctx context.Context, email string) (*LoginOutcome, error) {
	eligible, err := s.offlineEligible(ctx, email)
	if err != nil {
		return nil, err
	}
	if !eligible {
		s.mu.Lock()
		s.state = StateAwaitingCredentials
		s.mu.Unlock()
		err := fmt.Errorf("%w: offline login requires a verified device", common.ErrTransport)
		return &LoginOutcome{Message: userMessage(err)}, err
	}

	if err := s.setLoggedIn(ctx, email); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "offline login accepted", "email", email)
	return &LoginOutcome{Success: true, Offline: true, Message: "Offline login successful"}, nil
}

// SecurityQuestion fetches the challenge for the pending verification.
// Valid only in AwaitingVerification.
func (s *AuthSession) SecurityQuestion(ctx context.Context) (string, error) {
	if !s.opMu.TryLock() {
		return "", common.ErrBusy
	}
	defer s.opMu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()

	s.mu.Lock()
	state, email := s.state, s.email
	s.mu.Unlock()

	if state != StateAwaitingVerification {
		return "", fmt.Errorf("%w: no verification pending", common.ErrValidation)
	}

	q, err := s.gw.GetSecurityQuestion(ctx, email)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.question = q.Question
	s.mu.Unlock()
	return q.Question, nil
}

// VerifyDevice submits the security answer for this installation. Attempts
// are bounded; failed attempts impose a growing delay before the next one.
// On success the verification record and device binding are persisted and
// the session reaches LoggedIn.
func (s *AuthSession) VerifyDevice(ctx context.Context, answer string) (*VerifyOutcome, error) {
	if !s.opMu.TryLock() {
		return nil, common.ErrBusy
	}
	defer s.opMu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()

	s.mu.Lock()
	state, email := s.state, s.email
	attempts, notUntil := s.verifyAttempts, s.verifyNotUntil
	s.mu.Unlock()

	if state != StateAwaitingVerification {
		return nil, fmt.Errorf("%w: no verification pending", common.ErrValidation)
	}
	if answer == "" {
		return nil, fmt.Errorf("%w: answer is required", common.ErrValidation)
	}
	if attempts >= maxVerifyAttempts {
		return nil, fmt.Errorf("%w: too many verification attempts", common.ErrValidation)
	}
	if wait := time.Until(notUntil); wait > 0 {
		return nil, fmt.Errorf("%w: retry in %s", common.ErrValidation, wait.Round(time.Second))
	}

	resp, err := s.gw.VerifyDevice(ctx, gateway.VerifyDeviceRequest{
		UserEmail:        email,
		DeviceIdentifier: s.deviceID,
		SecurityAnswer:   answer,
	})
	if err != nil {
		s.noteVerifyFailure()
		return &VerifyOutcome{Message: userMessage(err)}, err
	}
	if !resp.Success {
		s.noteVerifyFailure()
		s.logger.Warn(ctx, "device verification rejected", "email", email)
		return &VerifyOutcome{Message: resp.Message}, nil
	}

	if err := s.prefs.SetString(ctx, prefs.KeyDeviceIdentifier, s.deviceID); err != nil {
		return nil, err
	}
	if err := s.prefs.SetBool(ctx, prefs.DeviceVerifiedKey(email), true); err != nil {
		return nil, err
	}
	if err := s.setLoggedIn(ctx, email); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "device verified", "email", email)
	return &VerifyOutcome{Success: true, Message: resp.Message}, nil
}

func (s *AuthSession) noteVerifyFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifyAttempts++
	if delay, stop := s.verifyBackoff.Next(); !stop {
		s.verifyNotUntil = time.Now().Add(delay)
	}
}

// Logout clears the logged-in flag only. The last email and verification
// records are retained so a future offline login needs no re-verification.
func (s *AuthSession) Logout(ctx context.Context) error {
	if !s.opMu.TryLock() {
		return common.ErrBusy
	}
	defer s.opMu.Unlock()

	if err := s.prefs.SetBool(ctx, prefs.KeyIsLoggedIn, false); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = StateLoggedOut
	s.email = ""
	s.mu.Unlock()
	return nil
}

// Register creates an account. Always requires connectivity; the state
// machine is untouched so the caller can proceed to Login afterwards.
func (s *AuthSession) Register(ctx context.Context, email, password, question, answer string) (*RegisterOutcome, error) {
	if !s.opMu.TryLock() {
		return nil, common.ErrBusy
	}
	defer s.opMu.Unlock()

	ctx, cancel := s.scoped(ctx)
	defer cancel()

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" || question == "" || answer == "" {
		return nil, fmt.Errorf("%w: all registration fields are required", common.ErrValidation)
	}

	if !s.probe.Check(ctx) {
		err := fmt.Errorf("%w: registration requires connectivity", common.ErrTransport)
		return &RegisterOutcome{Message: userMessage(err)}, err
	}

	err := s.gw.Register(ctx, gateway.RegisterRequest{
		Email:            email,
		Password:         password,
		SecurityQuestion: question,
		SecurityAnswer:   answer,
	})
	if err != nil {
		return &RegisterOutcome{Message: userMessage(err)}, err
	}

	s.logger.Info(ctx, "registered", "email", email)
	return &RegisterOutcome{Success: true, Message: "Registration successful"}, nil
}

// userMessage maps an error onto a string fit for the UI.
func userMessage(err error) string {
	if de, ok := common.AsDomainError(err); ok {
		return de.Message
	}
	switch {
	case errors.Is(err, common.ErrTransport):
		return "Cannot reach the server. Check your connection and try again."
	case errors.Is(err, common.ErrDecode):
		return "Something went wrong. Please try again later."
	default:
		return err.Error()
	}
}
