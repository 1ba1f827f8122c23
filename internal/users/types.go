package users

import (
	"context"
	"time"
)

// User is a registered chat user. PasswordHash and IdentityToken never leave
// the server.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Image         string    `json:"image,omitempty"`
	PasswordHash  string    `json:"-"`
	IdentityToken string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile is the public slice of a user joined into message and conversation
// views.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Image string `json:"image,omitempty"`
}

// Profile returns the public view of the user.
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// RegisterRequest is the input for creating a user.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Image    string `json:"image,omitempty" validate:"omitempty,url"`
}

// Store abstracts user persistence.
type Store interface {
	Create(ctx context.Context, user User) (User, error)
	GetByIdentityToken(ctx context.Context, identityToken string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
}
