package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"livepoll/internal/apperr"
	"livepoll/internal/model"
	"livepoll/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	professorTokenTTL   = 7 * 24 * time.Hour
	participantTokenTTL = 24 * time.Hour

	professorAudience   = "professor"
	participantAudience = "participant"
)

var (
	ErrInvalidCredentials = errors.New("invalid handle or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthService issues and verifies professor and participant tokens
type AuthService struct {
	profiles  repository.ProfileRepo
	jwtSecret []byte
}

// NewAuthService creates a new auth service
func NewAuthService(profiles repository.ProfileRepo, secret string) *AuthService {
	return &AuthService{
		profiles:  profiles,
		jwtSecret: []byte(secret),
	}
}

// Register creates a professor profile and logs it in
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.LoginResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	p := &model.Profile{
		ID:           uuid.NewString(),
		Handle:       strings.ToLower(req.Handle),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("handle is already taken", err)
		}
		return nil, err
	}
	return s.issueProfessorToken(p)
}

// Login validates credentials and returns a professor token
func (s *AuthService) Login(ctx context.Context, handle, password string) (*model.LoginResponse, error) {
	p, err := s.profiles.GetByHandle(ctx, strings.ToLower(handle))
	if err != nil {
		return nil, err
	}
	if p == nil || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized(ErrInvalidCredentials.Error(), ErrInvalidCredentials)
	}
	return s.issueProfessorToken(p)
}

func (s *AuthService) issueProfessorToken(p *model.Profile) (*model.LoginResponse, error) {
	now := time.Now()
	claims := &model.ProfessorClaims{
		ProfessorID: p.ID,
		Handle:      p.Handle,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Audience:  jwt.ClaimStrings{professorAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(professorTokenTTL)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		Token:       tokenString,
		ProfessorID: p.ID,
		Handle:      p.Handle,
	}, nil
}

// ValidateProfessorToken validates a professor JWT and returns claims
func (s *AuthService) ValidateProfessorToken(tokenString string) (*model.ProfessorClaims, error) {
	claims := &model.ProfessorClaims{}
	if err := s.parse(tokenString, claims, professorAudience); err != nil {
		return nil, err
	}
	if claims.ProfessorID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Join gives an anonymous participant an id and a token scoped to the professor's handle
func (s *AuthService) Join(ctx context.Context, handle string) (*model.JoinResponse, error) {
	p, err := s.profiles.GetByHandle(ctx, strings.ToLower(handle))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("no professor with that handle", nil)
	}

	participantID := "p_" + uuid.New().String()[:8]
	now := time.Now()
	claims := &model.ParticipantClaims{
		Handle:        p.Handle,
		ProfessorID:   p.ID,
		ParticipantID: participantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{participantAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(participantTokenTTL)),
		},
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}
	return &model.JoinResponse{
		Token:         tokenString,
		ParticipantID: participantID,
		Handle:        p.Handle,
	}, nil
}

// ValidateParticipantToken validates a participant JWT and returns claims
func (s *AuthService) ValidateParticipantToken(tokenString string) (*model.ParticipantClaims, error) {
	claims := &model.ParticipantClaims{}
	if err := s.parse(tokenString, claims, participantAudience); err != nil {
		return nil, err
	}
	if claims.ParticipantID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(audience))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
