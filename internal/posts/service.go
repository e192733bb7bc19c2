package posts

import (
	"context"
	"fmt"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
)

// Service proxies organizational posts to the backend.
type Service struct {
	client *backend.Client
}

// NewService builds Service instance.
func NewService(client *backend.Client) *Service {
	return &Service{client: client}
}

// ListPosts returns all posts.
func (s *Service) ListPosts(ctx context.Context, token string) ([]Post, error) {
	var posts []Post
	if err := s.client.Get(ctx, token, "/postes", &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost registers a new post.
func (s *Service) CreatePost(ctx context.Context, token string, in Input) (Post, error) {
	var post Post
	if err := s.client.Post(ctx, token, "/postes", in, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// UpdatePost rewrites a post.
func (s *Service) UpdatePost(ctx context.Context, token string, id int64, in Input) (Post, error) {
	var post Post
	if err := s.client.Put(ctx, token, fmt.Sprintf("/postes/%d", id), in, &post); err != nil {
		return Post{}, err
	}
	return post, nil
}

// DeletePost removes a post.
func (s *Service) DeletePost(ctx context.Context, token string, id int64) error {
	return s.client.Delete(ctx, token, fmt.Sprintf("/postes/%d", id), nil)
}
