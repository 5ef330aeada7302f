package devices

import "time"

// Device records a successful security-question verification for a
// (user, installation) pair. Its presence is what lets later logins
// from the same installation skip verification.
type Device struct {
	ID               string
	UserEmail        string
	DeviceIdentifier string
	VerifiedAt       time.Time
}
