// Package auth содержит логику регистрации водителей, входа и проверки JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	"github.com/magabrotheeeer/clearride/internal/lib/jwt"
	"github.com/magabrotheeeer/clearride/internal/lib/password"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

const minPasswordLen = 8

var (
	// ErrInvalidCredentials неверная почта или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken учётная запись с такой почтой уже есть.
	ErrEmailTaken = errors.New("email already registered")
	// ErrWeakPassword пароль короче допустимого.
	ErrWeakPassword = errors.New("password is too short")
	// ErrInvalidEmail почта не разбирается.
	ErrInvalidEmail = errors.New("invalid email")
)

// AccountRepository описывает контракт для работы с учётными записями в базе данных.
type AccountRepository interface {
	// CreateAccount сохраняет новую учётную запись.
	CreateAccount(ctx context.Context, acc *models.Account) error

	// GetAccountByEmail возвращает учётную запись по почте или storage.ErrNotFound.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	accounts  AccountRepository
	jwtMaker  jwt.Maker
	clock     clock.Clock
	trialDays int
	log       *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(accounts AccountRepository, jwtMaker jwt.Maker, clk clock.Clock, trialDays int, log *slog.Logger) *AuthService {
	return &AuthService{
		accounts:  accounts,
		jwtMaker:  jwtMaker,
		clock:     clk,
		trialDays: trialDays,
		log:       log,
	}
}

// Register создает учётную запись с пробным периодом и ролью "user". Возвращает её ID.
func (s *AuthService) Register(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "auth.Register"

	email, err := normalizeEmail(email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(rawPassword) < minPasswordLen {
		return "", fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.clock.Now()
	trialEnd := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)
	acc := &models.Account{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      hashed,
		Role:              models.RoleUser,
		SubscriptionType:  models.SubscriptionFreeTrial,
		SubscriptionStart: now,
		SubscriptionEnd:   &trialEnd,
		IsActive:          true,
		CreatedAt:         now,
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account registered", slog.String("account_id", acc.ID))
	return acc.ID, nil
}

// Login проверяет пароль и возвращает JWT и роль.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (token, role string, err error) {
	const op = "auth.Login"

	email, err = normalizeEmail(email)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	acc, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(acc.PasswordHash, rawPassword); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	token, err = s.jwtMaker.GenerateToken(acc.ID, acc.Role)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return token, acc.Role, nil
}

// ValidateToken проверяет JWT и возвращает его claims.
func (s *AuthService) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "auth.ValidateToken"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
