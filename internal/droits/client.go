package droits

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/backend"
)

// CreateInput carries the fields accepted when granting a right. Exactly one
// resource id must be set, matching the kind the grant is created under.
type CreateInput struct {
	UserID     int64     `json:"userId" validate:"required,gt=0"`
	CategoryID int64     `json:"categoryId,omitempty"`
	MagasinID  int64     `json:"magasinId,omitempty"`
	ClientID   int64     `json:"clientId,omitempty"`
	StartsAt   time.Time `json:"startsAt" validate:"required"`
	ExpiresAt  time.Time `json:"expiresAt" validate:"required"`

	// ResponsibleUserID is never caller-supplied; the store overwrites it
	// with the acting session user before the request leaves the gateway.
	ResponsibleUserID int64 `json:"responsibleUserId"`
}

// UpdateInput carries the only mutable fields of a right.
type UpdateInput struct {
	StartsAt          time.Time `json:"startsAt" validate:"required"`
	ExpiresAt         time.Time `json:"expiresAt" validate:"required"`
	ResponsibleUserID int64     `json:"responsibleUserId"`
}

// AccessQuery asks whether a user may touch a specific resource combination.
type AccessQuery struct {
	CategoryID int64
	MagasinID  int64
	ClientID   int64
}

// AllRights is the combined per-kind payload of the aggregate endpoint.
type AllRights struct {
	Categories []AccessRight `json:"categories"`
	Magasins   []AccessRight `json:"magasins"`
	Clients    []AccessRight `json:"clients"`
}

// API is the slice of the backend surface the droits subsystem consumes.
// The concrete implementation lives on Client; tests substitute stubs.
type API interface {
	ListRights(ctx context.Context, token string, kind Kind, userID int64) ([]AccessRight, error)
	ListAllRights(ctx context.Context, token string, userID int64) (AllRights, error)
	CreateRight(ctx context.Context, token string, kind Kind, in CreateInput) (AccessRight, error)
	UpdateRight(ctx context.Context, token string, kind Kind, id int64, in UpdateInput) (AccessRight, error)
	DeleteRight(ctx context.Context, token string, kind Kind, id int64) (AccessRight, error)
	CheckAccess(ctx context.Context, token string, userID int64, q AccessQuery) (bool, error)
}

// Client implements API over the backend REST contract.
type Client struct {
	http *backend.Client
}

// NewClient wraps the shared backend client.
func NewClient(http *backend.Client) *Client {
	return &Client{http: http}
}

// ListRights fetches one user's rights of a single kind.
func (c *Client) ListRights(ctx context.Context, token string, kind Kind, userID int64) ([]AccessRight, error) {
	var rights []AccessRight
	path := fmt.Sprintf("/droits/%s/user/%d", kind, userID)
	if err := c.http.Get(ctx, token, path, &rights); err != nil {
		return nil, err
	}
	return rights, nil
}

// ListAllRights fetches all three collections in one round trip.
func (c *Client) ListAllRights(ctx context.Context, token string, userID int64) (AllRights, error) {
	var all AllRights
	path := fmt.Sprintf("/droits/user/%d/all", userID)
	if err := c.http.Get(ctx, token, path, &all); err != nil {
		return AllRights{}, err
	}
	return all, nil
}

// CreateRight grants a new right of the given kind.
func (c *Client) CreateRight(ctx context.Context, token string, kind Kind, in CreateInput) (AccessRight, error) {
	var created AccessRight
	if err := c.http.Post(ctx, token, fmt.Sprintf("/droits/%s", kind), in, &created); err != nil {
		return AccessRight{}, err
	}
	return created, nil
}

// UpdateRight rewrites the validity window of an existing right.
func (c *Client) UpdateRight(ctx context.Context, token string, kind Kind, id int64, in UpdateInput) (AccessRight, error) {
	var updated AccessRight
	if err := c.http.Put(ctx, token, fmt.Sprintf("/droits/%s/%d", kind, id), in, &updated); err != nil {
		return AccessRight{}, err
	}
	return updated, nil
}

// DeleteRight revokes a right. Deletion is final; there is no soft delete.
// The backend echoes the removed row, which carries the subject whose derived
// rights must be invalidated.
func (c *Client) DeleteRight(ctx context.Context, token string, kind Kind, id int64) (AccessRight, error) {
	var deleted AccessRight
	if err := c.http.Delete(ctx, token, fmt.Sprintf("/droits/%s/%d", kind, id), &deleted); err != nil {
		return AccessRight{}, err
	}
	return deleted, nil
}

// CheckAccess asks the backend directly whether userID currently has access
// to the given resource combination.
func (c *Client) CheckAccess(ctx context.Context, token string, userID int64, q AccessQuery) (bool, error) {
	params := url.Values{}
	if q.CategoryID != 0 {
		params.Set("categoryid", fmt.Sprintf("%d", q.CategoryID))
	}
	if q.MagasinID != 0 {
		params.Set("magasinid", fmt.Sprintf("%d", q.MagasinID))
	}
	if q.ClientID != 0 {
		params.Set("clientid", fmt.Sprintf("%d", q.ClientID))
	}
	path := fmt.Sprintf("/droits/check/%d", userID)
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var result struct {
		Allowed bool `json:"allowed"`
	}
	if err := c.http.Get(ctx, token, path, &result); err != nil {
		return false, err
	}
	return result.Allowed, nil
}
