package model

// JSONResponse is the body of simple status replies, e.g. {"status":"updated"}
type JSONResponse struct {
	Status string `json:"status"`
}

// SessionResponse is returned by /api/session
type SessionResponse struct {
	User UserView `json:"user"`
}

// UserResponse is returned by GET /api/users/:id
type UserResponse struct {
	User UserView `json:"user"`
}

// LoginResponse is returned by /api/login
type LoginResponse struct {
	Status string   `json:"status"`
	User   UserView `json:"user"`
}

// UserListResponse is returned by /api/users
type UserListResponse struct {
	Users []UserView `json:"users"`
}
