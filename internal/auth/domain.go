package auth

import "github.com/mohamdabidi2/geox-sub001/internal/shared"

// LoginResult carries the backend-issued credential and profile for a
// successful authentication.
type LoginResult struct {
	Token string             `json:"token"`
	User  shared.UserProfile `json:"user"`
}
