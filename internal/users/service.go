package users

import (
	"context"
	"fmt"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
)

// Service proxies the backend user directory.
type Service struct {
	client *backend.Client
}

// NewService builds Service instance.
func NewService(client *backend.Client) *Service {
	return &Service{client: client}
}

// ListUsers returns all directory entries.
func (s *Service) ListUsers(ctx context.Context, token string) ([]User, error) {
	var users []User
	if err := s.client.Get(ctx, token, "/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one directory entry.
func (s *Service) GetUser(ctx context.Context, token string, id int64) (User, error) {
	var user User
	if err := s.client.Get(ctx, token, fmt.Sprintf("/users/%d", id), &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// CreateUser registers a new directory entry.
func (s *Service) CreateUser(ctx context.Context, token string, in CreateInput) (User, error) {
	var user User
	if err := s.client.Post(ctx, token, "/users", in, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUser rewrites a directory entry.
func (s *Service) UpdateUser(ctx context.Context, token string, id int64, in UpdateInput) (User, error) {
	var user User
	if err := s.client.Put(ctx, token, fmt.Sprintf("/users/%d", id), in, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// DeleteUser removes a directory entry.
func (s *Service) DeleteUser(ctx context.Context, token string, id int64) error {
	return s.client.Delete(ctx, token, fmt.Sprintf("/users/%d", id), nil)
}
