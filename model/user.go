package model

// Permission names known to the map front-end. Permission names are free-form
// strings; these are just the ones granted to the bootstrap admin.
const (
	PermissionEdit        = "edit"
	PermissionUploadRuns  = "upload_runs"
	PermissionManageUsers = "manage_users"
)

// Permissions maps a capability name to whether the user holds it.
type Permissions map[string]bool

// Has reports whether the capability is granted. A missing key is false.
func (p Permissions) Has(capability string) bool {
	return p[capability]
}

// DefaultAdminPermissions returns the permission set given to the bootstrap admin.
func DefaultAdminPermissions() Permissions {
	return Permissions{
		PermissionEdit:        true,
		PermissionUploadRuns:  true,
		PermissionManageUsers: true,
	}
}

// User model
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	// PasswordHash is "salt$digest", never sent to clients.
	PasswordHash string      `json:"password_hash"`
	Admin        bool        `json:"is_admin"`
	Permissions  Permissions `json:"permissions"`
}

// UserView is the public representation of a user
type UserView struct {
	ID          int64       `json:"id"`
	Username    string      `json:"username"`
	Admin       bool        `json:"is_admin"`
	Permissions Permissions `json:"permissions"`
}

// View strips the password hash.
func (u User) View() UserView {
	perms := u.Permissions
	if perms == nil {
		perms = Permissions{}
	}
	return UserView{
		ID:          u.ID,
		Username:    u.Username,
		Admin:       u.Admin,
		Permissions: perms,
	}
}

// UserPatch carries the fields of an update. Nil means "leave unchanged".
type UserPatch struct {
	Username    *string
	Password    *string
	Admin       *bool
	Permissions Permissions
}

// Empty reports whether the patch would change nothing. An empty password is
// treated as absent so that it never clears the stored hash.
func (p UserPatch) Empty() bool {
	return p.Username == nil &&
		(p.Password == nil || *p.Password == "") &&
		p.Admin == nil &&
		p.Permissions == nil
}
