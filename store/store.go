package store

import (
	"context"

	"github.com/atemonitor/atemap/model"
)

// IStore is a user-record backend. Implementations report missing records
// with ErrUserNotFound and unique-username violations with ErrUsernameTaken.
// Rules spanning several records (the last admin) are enforced by UserStore.
type IStore interface {
	Init() error
	GetUsers(ctx context.Context) ([]model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)
	GetUserByName(ctx context.Context, username string) (model.User, error)
	// CreateUser inserts the user and sets user.ID.
	CreateUser(ctx context.Context, user *model.User) error
	SaveUser(ctx context.Context, user model.User) error
	DeleteUser(ctx context.Context, id int64) error
	Close() error
}
