// Package prefs is the client's durable key/value store, holding identity
// flags, device-verification records, and cached best scores. Values are
// small strings; typed accessors cover the few shapes we actually persist.
// Passwords are never stored here.
package prefs

import "context"

// Persisted keys. Per-email and per-level keys are built with the helpers
// below so every component spells them the same way.
const (
	KeyLastLoginEmail   = "lastLoginEmail"
	KeyIsLoggedIn       = "isLoggedIn"
	KeyDeviceIdentifier = "deviceIdentifier"

	// KeyInstallationID holds this installation's own identifier. It is
	// distinct from KeyDeviceIdentifier, which records the identifier that
	// was current when the device was last verified.
	KeyInstallationID = "installationId"
)

// DeviceVerifiedKey returns the per-email device-verification flag key.
func DeviceVerifiedKey(email string) string {
	return "deviceVerified_" + email
}

// BestScoreKey returns the per-user, per-level cached best-score key.
func BestScoreKey(userID, levelID string) string {
	return userID + "_" + levelID + "_BestScore"
}

// BestScorePrefix returns the key prefix covering all of a user's levels.
func BestScorePrefix(userID string) string {
	return userID + "_"
}

type Repository interface {
	// GetString returns the stored value or def when the key is absent.
	GetString(ctx context.Context, key, def string) (string, error)
	GetInt(ctx context.Context, key string, def int) (int, error)
	GetBool(ctx context.Context, key string, def bool) (bool, error)

	SetString(ctx context.Context, key, value string) error
	SetInt(ctx context.Context, key string, value int) error
	SetBool(ctx context.Context, key string, value bool) error

	Delete(ctx context.Context, key string) error

	// ListByPrefix returns every key/value pair whose key starts with prefix.
	ListByPrefix(ctx context.Context, prefix string) (map[string]string, error)
}
