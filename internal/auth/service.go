package auth

import (
	"context"
	"net/http"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// Service wraps authentication against the ERP backend. The gateway keeps no
// credential store of its own; the backend validates the password and issues
// the bearer token every subsequent call carries.
type Service struct {
	client *backend.Client
}

// NewService constructs a new Service.
func NewService(client *backend.Client) *Service {
	return &Service{client: client}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate exchanges credentials for a token and profile. Backend
// rejections (401/403) become ErrInvalidCredentials; transport failures
// propagate so the caller can distinguish "wrong password" from "backend
// down".
func (s *Service) Authenticate(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	err := s.client.Post(ctx, "", "/auth/login", loginRequest{Email: email, Password: password}, &result)
	if err != nil {
		if backend.IsStatus(err, http.StatusUnauthorized) || backend.IsStatus(err, http.StatusForbidden) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	return result, nil
}
