package model

import "github.com/golang-jwt/jwt/v5"

// ProfessorClaims are JWT claims for professor authentication
type ProfessorClaims struct {
	ProfessorID string `json:"professorId"`
	Handle      string `json:"handle"`
	jwt.RegisteredClaims
}

// ParticipantClaims are JWT claims for handle-scoped participant tokens
type ParticipantClaims struct {
	Handle        string `json:"handle"`
	ProfessorID   string `json:"professorId"`
	ParticipantID string `json:"participantId"`
	jwt.RegisteredClaims
}

// RegisterRequest is the request body for professor sign-up
type RegisterRequest struct {
	Handle   string `json:"handle" validate:"required,alphanum,min=3,max=32"`
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the request body for professor login
type LoginRequest struct {
	Handle   string `json:"handle" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned after successful login or sign-up
type LoginResponse struct {
	Token       string `json:"token"`
	ProfessorID string `json:"professorId"`
	Handle      string `json:"handle"`
}

// JoinResponse is returned when a participant joins a professor's page
type JoinResponse struct {
	Token         string `json:"token"`
	ParticipantID string `json:"participantId"`
	Handle        string `json:"handle"`
}
