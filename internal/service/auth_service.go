package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/repository"
)

// AuthService signs users in without verifying credentials: after a fixed
// delay any non-empty email is accepted and receives a token.
type AuthService struct {
	userRepo    *repository.UserRepository
	jwtSecret   []byte
	tokenTTL    time.Duration
	signInDelay time.Duration
	log         *zap.Logger
}

func NewAuthService(
	userRepo *repository.UserRepository,
	jwtSecret string,
	tokenTTL time.Duration,
	signInDelay time.Duration,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		signInDelay: signInDelay,
		log:         log,
	}
}

type AuthResult struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (s *AuthService) SignIn(ctx context.Context, email string) (*AuthResult, *apperrors.APIError) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if normalizedEmail == "" {
		return nil, apperrors.BadRequest("invalid_email", "email is required")
	}

	if s.signInDelay > 0 {
		timer := time.NewTimer(s.signInDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, apperrors.Unavailable("sign-in cancelled")
		case <-timer.C:
		}
	}

	now := time.Now().UTC()
	user, err := s.userRepo.Upsert(ctx, &model.User{
		ID:        uuid.NewString(),
		Email:     normalizedEmail,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.Unavailable("sign-in cancelled")
		}
		s.log.Error("upsert user", zap.Error(err))
		return nil, apperrors.Internal("failed to sign in")
	}

	token, apiErr := s.issueToken(*user)
	if apiErr != nil {
		return nil, apiErr
	}

	s.log.Debug("user signed in", zap.String("user_id", user.ID))
	return &AuthResult{
		Token: token,
		User:  *user,
	}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user_not_found", "user not found")
		}
		return nil, apperrors.Internal("failed to get user")
	}
	return user, nil
}

func (s *AuthService) ParseToken(tokenString string) (string, *apperrors.APIError) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", apperrors.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", apperrors.Unauthorized("invalid token")
	}

	if claims.Subject == "" {
		return "", apperrors.Unauthorized("invalid token subject")
	}

	return claims.Subject, nil
}

func (s *AuthService) issueToken(user model.User) (string, *apperrors.APIError) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Internal("failed to sign token")
	}
	return signed, nil
}
