package user

import (
	"context"

	"fitcoach/internal/auth"
)

type Repository interface {
	Create(ctx context.Context, name, email string, phone *string, passwordHash string, role auth.Role) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListByRole(ctx context.Context, role auth.Role) ([]User, error)
	ListAll(ctx context.Context) ([]User, error)
}
