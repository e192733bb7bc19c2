package masterdata

import (
	"context"
	"fmt"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
)

// Service proxies collection operations to the backend. Rows stay untyped:
// the backend owns the schema and the browser grid renders whatever arrives.
type Service struct {
	client *backend.Client
}

// NewService builds Service instance.
func NewService(client *backend.Client) *Service {
	return &Service{client: client}
}

// List fetches all rows of a collection.
func (s *Service) List(ctx context.Context, token string, res Resource) ([]map[string]any, error) {
	var rows []map[string]any
	if err := s.client.Get(ctx, token, res.Path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Get fetches a single row by id.
func (s *Service) Get(ctx context.Context, token string, res Resource, id int64) (map[string]any, error) {
	var row map[string]any
	if err := s.client.Get(ctx, token, fmt.Sprintf("%s/%d", res.Path, id), &row); err != nil {
		return nil, err
	}
	return row, nil
}

// Create posts a new row and returns the backend's representation.
func (s *Service) Create(ctx context.Context, token string, res Resource, body map[string]any) (map[string]any, error) {
	var row map[string]any
	if err := s.client.Post(ctx, token, res.Path, body, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// Update rewrites a row and returns the backend's representation.
func (s *Service) Update(ctx context.Context, token string, res Resource, id int64, body map[string]any) (map[string]any, error) {
	var row map[string]any
	if err := s.client.Put(ctx, token, fmt.Sprintf("%s/%d", res.Path, id), body, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// Delete removes a row by id.
func (s *Service) Delete(ctx context.Context, token string, res Resource, id int64) error {
	return s.client.Delete(ctx, token, fmt.Sprintf("%s/%d", res.Path, id), nil)
}
