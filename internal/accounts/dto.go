package accounts

import "strings"

// RegisterRequest is the body of a self-service registration. Admin accounts
// are provisioned out of band.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=student instructor head_of_faculty"`
}

func (r *RegisterRequest) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
}

// LoginRequest carries password credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AckRequest acknowledges a privacy notice version.
type AckRequest struct {
	Version int `json:"version" validate:"required,min=1"`
}
