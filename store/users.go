package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/util"
)

// UserStore manages user records on top of a backend and keeps at least one
// admin in the table. Every mutation runs under mu, so the admin count check
// and the write that depends on it cannot interleave with another request.
type UserStore struct {
	mu sync.Mutex
	db IStore
}

// NewUserStore returns a UserStore backed by db
func NewUserStore(db IStore) *UserStore {
	return &UserStore{db: db}
}

// Bootstrap creates the default admin when the table holds no admin. It is
// safe to call on every start. A non-admin user already named like the
// default admin is promoted and gets the bootstrap password.
func (s *UserStore) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.db.GetUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("cannot read users: %w", err)
	}
	if countAdmins(users) > 0 {
		return false, nil
	}

	existing, err := s.db.GetUserByName(ctx, username)
	switch {
	case err == nil:
		existing.Admin = true
		existing.PasswordHash = util.HashPassword(password, "")
		existing.Permissions = mergePermissions(existing.Permissions, model.DefaultAdminPermissions())
		if err := s.db.SaveUser(ctx, existing); err != nil {
			return false, fmt.Errorf("cannot promote %s to admin: %w", username, err)
		}
		log.Warnf("No admin account found, promoted existing user %s", username)
		return true, nil
	case errors.Is(err, ErrUserNotFound):
	default:
		return false, err
	}

	admin := &model.User{
		Username:     username,
		PasswordHash: util.HashPassword(password, ""),
		Admin:        true,
		Permissions:  model.DefaultAdminPermissions(),
	}
	if err := s.db.CreateUser(ctx, admin); err != nil {
		return false, fmt.Errorf("cannot create default admin: %w", err)
	}
	log.Infof("Default admin account created, username: %s", username)
	return true, nil
}

// Create adds a user and returns its id. The first user of an empty table is
// always an admin with the default permission set.
func (s *UserStore) Create(ctx context.Context, username, password string, permissions model.Permissions, admin bool) (int64, error) {
	if username == "" || password == "" {
		return 0, ErrMissingCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.db.GetUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot read users: %w", err)
	}
	for _, u := range users {
		if u.Username == username {
			return 0, ErrUsernameTaken
		}
	}

	if permissions == nil {
		permissions = model.Permissions{}
	}
	if len(users) == 0 {
		admin = true
		permissions = model.DefaultAdminPermissions()
	}

	user := &model.User{
		Username:     username,
		PasswordHash: util.HashPassword(password, ""),
		Admin:        admin,
		Permissions:  permissions,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

// Get returns the user with the given id
func (s *UserStore) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername returns the user with the given name
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := s.db.GetUserByName(ctx, username)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns every user without password hashes, ordered by id.
func (s *UserStore) List(ctx context.Context) ([]model.UserView, error) {
	users, err := s.db.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}
	return views, nil
}

// Update applies patch to the user. An empty password leaves the hash as is.
func (s *UserStore) Update(ctx context.Context, id int64, patch model.UserPatch) error {
	if patch.Empty() {
		return ErrNoFieldsToUpdate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if patch.Username != nil {
		if *patch.Username == "" {
			return ErrInvalidUsername
		}
		if *patch.Username != user.Username {
			other, err := s.db.GetUserByName(ctx, *patch.Username)
			if err == nil && other.ID != id {
				return ErrUsernameTaken
			}
			if err != nil && !errors.Is(err, ErrUserNotFound) {
				return err
			}
		}
		user.Username = *patch.Username
	}
	if patch.Password != nil && *patch.Password != "" {
		user.PasswordHash = util.HashPassword(*patch.Password, "")
	}
	if patch.Admin != nil {
		if user.Admin && !*patch.Admin {
			users, err := s.db.GetUsers(ctx)
			if err != nil {
				return fmt.Errorf("cannot read users: %w", err)
			}
			if countAdmins(users) <= 1 {
				return ErrLastAdmin
			}
		}
		user.Admin = *patch.Admin
	}
	if patch.Permissions != nil {
		user.Permissions = patch.Permissions
	}

	return s.db.SaveUser(ctx, user)
}

// Delete removes the user unless it is the only admin left.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Admin {
		users, err := s.db.GetUsers(ctx)
		if err != nil {
			return fmt.Errorf("cannot read users: %w", err)
		}
		if countAdmins(users) <= 1 {
			return ErrLastAdmin
		}
	}
	return s.db.DeleteUser(ctx, id)
}

// Authenticate checks a username/password pair.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.db.GetUserByName(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !util.VerifyHash(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func countAdmins(users []model.User) int {
	n := 0
	for _, u := range users {
		if u.Admin {
			n++
		}
	}
	return n
}

func mergePermissions(current, extra model.Permissions) model.Permissions {
	merged := model.Permissions{}
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
