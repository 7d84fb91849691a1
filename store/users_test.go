package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atemonitor/atemap/model"
	"github.com/atemonitor/atemap/store"
	"github.com/atemonitor/atemap/store/jsondb"
	"github.com/atemonitor/atemap/store/sqldb"
	"github.com/atemonitor/atemap/util"
)

type backend struct {
	name string
	open func(t *testing.T) store.IStore
}

var backends = []backend{
	{"jsondb", func(t *testing.T) store.IStore {
		db, err := jsondb.New(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, db.Init())
		return db
	}},
	{"sqlite", func(t *testing.T) store.IStore {
		db, err := sqldb.New(sqldb.SQLite, ":memory:")
		require.NoError(t, err)
		require.NoError(t, db.Init())
		t.Cleanup(func() { db.Close() })
		return db
	}},
}

func forEachBackend(t *testing.T, fn func(t *testing.T, us *store.UserStore, db store.IStore)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			db := b.open(t)
			fn(t, store.NewUserStore(db), db)
		})
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestBootstrap(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()

		created, err := us.Bootstrap(ctx, "admin", "admin")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = us.Bootstrap(ctx, "admin", "other")
		require.NoError(t, err)
		assert.False(t, created)

		users, err := us.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "admin", users[0].Username)
		assert.True(t, users[0].Admin)
		assert.Equal(t, model.DefaultAdminPermissions(), users[0].Permissions)

		// second call must not have changed the password
		_, err = us.Authenticate(ctx, "admin", "admin")
		assert.NoError(t, err)
	})
}

func TestBootstrapPromotesExistingUser(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()

		// a table without admins, written directly to the backend
		u := &model.User{Username: "admin", PasswordHash: util.HashPassword("old", ""), Permissions: model.Permissions{"custom": true}}
		require.NoError(t, db.CreateUser(ctx, u))

		created, err := us.Bootstrap(ctx, "admin", "fresh")
		require.NoError(t, err)
		assert.True(t, created)

		got, err := us.Get(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, got.Admin)
		assert.True(t, got.Permissions.Has("custom"))
		assert.True(t, got.Permissions.Has(model.PermissionManageUsers))

		_, err = us.Authenticate(ctx, "admin", "fresh")
		assert.NoError(t, err)
	})
}

func TestCreate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()

		// first user of an empty table is forced to admin
		id, err := us.Create(ctx, "first", "pw", nil, false)
		require.NoError(t, err)
		first, err := us.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, first.Admin)
		assert.Equal(t, model.DefaultAdminPermissions(), first.Permissions)

		id, err = us.Create(ctx, "bob", "pw", model.Permissions{model.PermissionUploadRuns: true}, false)
		require.NoError(t, err)
		bob, err := us.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, bob.Admin)
		assert.True(t, bob.Permissions.Has(model.PermissionUploadRuns))
		assert.False(t, bob.Permissions.Has(model.PermissionEdit))
		assert.NotEqual(t, first.ID, bob.ID)
	})
}

func TestCreateDuplicateLeavesRecord(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()

		_, err := us.Bootstrap(ctx, "admin", "admin")
		require.NoError(t, err)
		id, err := us.Create(ctx, "bob", "pw1", nil, false)
		require.NoError(t, err)
		before, err := us.Get(ctx, id)
		require.NoError(t, err)

		_, err = us.Create(ctx, "bob", "pw2", model.Permissions{"edit": true}, true)
		assert.ErrorIs(t, err, store.ErrUsernameTaken)

		after, err := us.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before, after)

		users, err := us.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestCreateMissingCredentials(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		_, err := us.Create(ctx, "", "pw", nil, false)
		assert.ErrorIs(t, err, store.ErrMissingCredentials)
		_, err = us.Create(ctx, "bob", "", nil, false)
		assert.ErrorIs(t, err, store.ErrMissingCredentials)
	})
}

func TestConcurrentCreateSameName(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		_, err := us.Bootstrap(ctx, "admin", "admin")
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = us.Create(ctx, "carol", "pw", nil, false)
			}(i)
		}
		wg.Wait()

		ok := 0
		for _, err := range errs {
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, store.ErrUsernameTaken)
			}
		}
		assert.Equal(t, 1, ok)
	})
}

func TestUpdate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		_, err := us.Bootstrap(ctx, "admin", "admin")
		require.NoError(t, err)
		id, err := us.Create(ctx, "bob", "pw", nil, false)
		require.NoError(t, err)

		err = us.Update(ctx, id, model.UserPatch{})
		assert.ErrorIs(t, err, store.ErrNoFieldsToUpdate)

		err = us.Update(ctx, id, model.UserPatch{Password: strPtr("")})
		assert.ErrorIs(t, err, store.ErrNoFieldsToUpdate)

		before, err := us.Get(ctx, id)
		require.NoError(t, err)
		err = us.Update(ctx, id, model.UserPatch{Password: strPtr(""), Admin: boolPtr(false)})
		require.NoError(t, err)
		after, err := us.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before.PasswordHash, after.PasswordHash)

		err = us.Update(ctx, id, model.UserPatch{
			Username:    strPtr("robert"),
			Password:    strPtr("new"),
			Permissions: model.Permissions{model.PermissionEdit: true},
		})
		require.NoError(t, err)
		_, err = us.Authenticate(ctx, "robert", "new")
		assert.NoError(t, err)
		_, err = us.Authenticate(ctx, "bob", "pw")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)

		err = us.Update(ctx, id, model.UserPatch{Username: strPtr("admin")})
		assert.ErrorIs(t, err, store.ErrUsernameTaken)

		err = us.Update(ctx, id, model.UserPatch{Username: strPtr("")})
		assert.ErrorIs(t, err, store.ErrInvalidUsername)

		err = us.Update(ctx, 9999, model.UserPatch{Admin: boolPtr(true)})
		assert.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestLastAdmin(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		_, err := us.Bootstrap(ctx, "admin", "admin")
		require.NoError(t, err)
		admin, err := us.GetByUsername(ctx, "admin")
		require.NoError(t, err)

		assert.ErrorIs(t, us.Delete(ctx, admin.ID), store.ErrLastAdmin)
		assert.ErrorIs(t, us.Update(ctx, admin.ID, model.UserPatch{Admin: boolPtr(false)}), store.ErrLastAdmin)

		id, err := us.Create(ctx, "second", "pw", nil, true)
		require.NoError(t, err)

		require.NoError(t, us.Update(ctx, admin.ID, model.UserPatch{Admin: boolPtr(false)}))
		assert.ErrorIs(t, us.Delete(ctx, id), store.ErrLastAdmin)

		require.NoError(t, us.Update(ctx, admin.ID, model.UserPatch{Admin: boolPtr(true)}))
		require.NoError(t, us.Delete(ctx, id))

		_, err = us.Get(ctx, id)
		assert.ErrorIs(t, err, store.ErrUserNotFound)
		assert.ErrorIs(t, us.Delete(ctx, id), store.ErrUserNotFound)
	})
}

func TestConcurrentRemoveLastTwoAdmins(t *testing.T) {
	cases := []struct {
		name   string
		remove func(ctx context.Context, us *store.UserStore, id int64) error
	}{
		{"delete", func(ctx context.Context, us *store.UserStore, id int64) error {
			return us.Delete(ctx, id)
		}},
		{"demote", func(ctx context.Context, us *store.UserStore, id int64) error {
			return us.Update(ctx, id, model.UserPatch{Admin: boolPtr(false)})
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
				ctx := context.Background()
				a, err := us.Create(ctx, "a", "pw", nil, true)
				require.NoError(t, err)
				b, err := us.Create(ctx, "b", "pw", nil, true)
				require.NoError(t, err)

				var wg sync.WaitGroup
				errs := make([]error, 2)
				for i, id := range []int64{a, b} {
					wg.Add(1)
					go func(i int, id int64) {
						defer wg.Done()
						errs[i] = tc.remove(ctx, us, id)
					}(i, id)
				}
				wg.Wait()

				failed := 0
				for _, err := range errs {
					if err != nil {
						assert.ErrorIs(t, err, store.ErrLastAdmin)
						failed++
					}
				}
				assert.Equal(t, 1, failed)

				users, err := us.List(ctx)
				require.NoError(t, err)
				admins := 0
				for _, u := range users {
					if u.Admin {
						admins++
					}
				}
				assert.Equal(t, 1, admins)
			})
		})
	}
}

func TestDeleteThenDemoteRace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		a, err := us.Create(ctx, "a", "pw", nil, true)
		require.NoError(t, err)
		b, err := us.Create(ctx, "b", "pw", nil, true)
		require.NoError(t, err)

		var wg sync.WaitGroup
		var delErr, demoteErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			delErr = us.Delete(ctx, a)
		}()
		go func() {
			defer wg.Done()
			demoteErr = us.Update(ctx, b, model.UserPatch{Admin: boolPtr(false)})
		}()
		wg.Wait()

		assert.True(t, (delErr == nil) != (demoteErr == nil), "delete=%v demote=%v", delErr, demoteErr)

		users, err := us.List(ctx)
		require.NoError(t, err)
		admins := 0
		for _, u := range users {
			if u.Admin {
				admins++
			}
		}
		assert.Equal(t, 1, admins)
	})
}

func TestAuthenticate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		_, err := us.Bootstrap(ctx, "admin", "secret")
		require.NoError(t, err)

		u, err := us.Authenticate(ctx, "admin", "secret")
		require.NoError(t, err)
		assert.Equal(t, "admin", u.Username)

		_, err = us.Authenticate(ctx, "admin", "wrong")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)
		_, err = us.Authenticate(ctx, "nobody", "secret")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)
	})
}

func TestListHidesHash(t *testing.T) {
	forEachBackend(t, func(t *testing.T, us *store.UserStore, db store.IStore) {
		ctx := context.Background()
		_, err := us.Bootstrap(ctx, "admin", "admin")
		require.NoError(t, err)
		_, err = us.Create(ctx, "bob", "pw", nil, false)
		require.NoError(t, err)

		users, err := us.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "admin", users[0].Username)
		assert.Equal(t, "bob", users[1].Username)
		assert.NotNil(t, users[1].Permissions)
	})
}
