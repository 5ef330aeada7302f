// Package gateway defines the typed client for the SkyRun account service:
// one method per remote endpoint, JSON over HTTP underneath. Transport,
// decode, and domain failures come back as distinct error kinds so callers
// can decide between retrying, giving up, and showing a message.
package gateway

import (
	"context"
)

// RegisterRequest carries a new-account registration. All fields required.
type RegisterRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"securityQuestion"`
	SecurityAnswer   string `json:"securityAnswer"`
}

// LoginRequest carries a credential login. The device identifier lets the
// server decide whether this installation still needs verification.
type LoginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	DeviceIdentifier string `json:"deviceIdentifier"`
}

// LoginResponse is the server's login verdict.
type LoginResponse struct {
	Message              string `json:"message"`
	RequiresVerification bool   `json:"requiresVerification"`
	UserID               string `json:"userId"`
}

// SecurityQuestion is the challenge shown before device verification.
type SecurityQuestion struct {
	Question string `json:"question"`
	Message  string `json:"message"`
}

// VerifyDeviceRequest answers the security challenge for one installation.
type VerifyDeviceRequest struct {
	UserEmail        string `json:"userEmail"`
	DeviceIdentifier string `json:"deviceIdentifier"`
	SecurityAnswer   string `json:"securityAnswer"`
}

// VerifyDeviceResponse reports whether the answer was accepted.
type VerifyDeviceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Gateway is the remote endpoint surface used by the auth session and the
// progress reconciler. Implementations must not touch local storage; they
// translate exactly one HTTP exchange per call.
//
// Error contract, uniform across methods:
//   - network/timeout failures wrap common.ErrTransport (retryable);
//   - 2xx bodies that fail to parse wrap common.ErrDecode (never retryable);
//   - semantic rejections surface as *common.DomainError (user-facing).
type Gateway interface {
	Register(ctx context.Context, req RegisterRequest) error
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	GetSecurityQuestion(ctx context.Context, email string) (*SecurityQuestion, error)
	VerifyDevice(ctx context.Context, req VerifyDeviceRequest) (*VerifyDeviceResponse, error)
	GetProgress(ctx context.Context, userEmail string) (map[string]int, error)
	UpdateProgress(ctx context.Context, userEmail string, bestScores map[string]int) error
	Ping(ctx context.Context) error
}
