package users

import "context"

type Repository interface {
	Add(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}
