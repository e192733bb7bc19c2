package posts

import "encoding/json"

// Post is an organizational post. X and Y are layout coordinates for the
// org-chart screen; the backend has served them both as numbers and as
// strings over time, so they pass through untouched.
type Post struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	ParentID int64           `json:"parentId,omitempty"`
	X        json.RawMessage `json:"x,omitempty"`
	Y        json.RawMessage `json:"y,omitempty"`
}

// Input carries the fields accepted on create and update.
type Input struct {
	Name     string          `json:"name" validate:"required"`
	ParentID int64           `json:"parentId,omitempty"`
	X        json.RawMessage `json:"x,omitempty"`
	Y        json.RawMessage `json:"y,omitempty"`
}
