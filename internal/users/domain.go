package users

// User is a directory entry as served by the backend. The droits admin
// screens need it to label subjects and responsibles.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	MagasinID   int64  `json:"magasinId"`
	MagasinName string `json:"magasinName"`
	IsActive    bool   `json:"isActive"`
}

// CreateInput carries the fields accepted when creating a directory entry.
type CreateInput struct {
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required"`
	Password  string `json:"password" validate:"required,min=8"`
	MagasinID int64  `json:"magasinId"`
}

// UpdateInput carries the mutable fields of a directory entry.
type UpdateInput struct {
	Email     string `json:"email" validate:"omitempty,email"`
	Name      string `json:"name"`
	MagasinID int64  `json:"magasinId"`
	IsActive  *bool  `json:"isActive"`
}
