package devices

import "context"

type Repository interface {
	Add(ctx context.Context, userEmail string, deviceIdentifier string) error
	Exists(ctx context.Context, userEmail string, deviceIdentifier string) (bool, error)
}
