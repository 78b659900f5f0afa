package contact

import (
	"errors"
	"time"
)

type Contact struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"` // set at creation, immutable, never serialized
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email"`
	ImagePath *string   `json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// covers both "no such contact" and "owned by someone else" so a
	// caller cannot probe for other users' contact ids
	ErrNotFound = errors.New("contact not found")

	ErrDuplicatePhone = errors.New("phone already registered for this user")
	ErrDuplicateEmail = errors.New("email already registered for this user")
)

type CreateContactRequest struct {
	Name  string  `json:"name" form:"name" binding:"required,min=3,max=255"`
	Phone string  `json:"phone" form:"phone" binding:"required,phone"`
	Email *string `json:"email" form:"email" binding:"omitempty,email,max=255"`
}

// a full update payload; owner and image path are not client-settable here
type UpdateContactRequest struct {
	Name  string  `json:"name" form:"name" binding:"required,min=3,max=255"`
	Phone string  `json:"phone" form:"phone" binding:"required,phone"`
	Email *string `json:"email" form:"email" binding:"omitempty,email,max=255"`
}

// owner-scoped list/search parameters, already normalized by the service
type ListFilter struct {
	Query  string
	Limit  int
	Offset int
}

type Page struct {
	Items       []Contact
	Total       int
	PerPage     int
	CurrentPage int
	LastPage    int
}
