package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"brainduel/internal/model"
	"brainduel/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingName  = errors.New("display name is required")
)

// AuthService issues and validates anonymous guest sessions. It is the only
// identity the rest of the service knows about: a stable uid plus a display
// profile.
type AuthService struct {
	userRepo  repository.UserRepo
	jwtSecret []byte
}

// NewAuthService creates a new auth service.
func NewAuthService(userRepo repository.UserRepo, jwtSecret string) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
	}
}

// Guest signs a player in anonymously, creating their profile on first visit.
func (s *AuthService) Guest(ctx context.Context, name, avatarURL string) (*model.GuestResponse, error) {
	if name == "" {
		return nil, ErrMissingName
	}

	uid := "u_" + uuid.New().String()[:8]
	if avatarURL == "" {
		avatarURL = fmt.Sprintf("https://picsum.photos/seed/%s/100", uid)
	}

	user, err := s.userRepo.Ensure(ctx, &model.User{
		ID:        uid,
		Name:      name,
		AvatarURL: avatarURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	claims := &model.GuestClaims{
		UID:         uid,
		DisplayName: name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.GuestResponse{
		Token: tokenString,
		User:  user,
	}, nil
}

// Validate parses a guest JWT and returns its claims.
func (s *AuthService) Validate(tokenString string) (*model.GuestClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.GuestClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.GuestClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
