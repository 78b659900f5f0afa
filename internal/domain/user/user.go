package user

import (
	"errors"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	ErrNotFound = errors.New("user not found")

	// uniform for unknown email and wrong password, so neither case
	// reveals whether the email is registered
	ErrInvalidCredentials = errors.New("invalid credentials")
)
