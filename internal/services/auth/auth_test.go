package auth_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/clearride/internal/lib/clock"
	customjwt "github.com/magabrotheeeer/clearride/internal/lib/jwt"
	"github.com/magabrotheeeer/clearride/internal/lib/password"
	"github.com/magabrotheeeer/clearride/internal/models"
	"github.com/magabrotheeeer/clearride/internal/services/auth"
	"github.com/magabrotheeeer/clearride/internal/storage"
)

// Мок для AccountRepository
type AccountRepoMock struct {
	mock.Mock
}

func (m *AccountRepoMock) CreateAccount(ctx context.Context, acc *models.Account) error {
	return m.Called(ctx, acc).Error(0)
}

func (m *AccountRepoMock) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(accountID, role string) (string, error) {
	args := m.Called(accountID, role)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.CustomClaims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.CustomClaims), args.Error(1)
}

var testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newService(repo *AccountRepoMock, j *JwtMakerMock) *auth.AuthService {
	return auth.NewAuthService(repo, j, clock.NewFixed(testNow), 7, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		password   string
		setupMocks func(r *AccountRepoMock)
		wantErr    error
	}{
		{
			name:     "successful registration",
			email:    " Driver@Example.co.uk ",
			password: "password123",
			setupMocks: func(r *AccountRepoMock) {
				r.On("CreateAccount", mock.Anything, mock.MatchedBy(func(acc *models.Account) bool {
					return acc.Email == "driver@example.co.uk" &&
						acc.ID != "" &&
						acc.PasswordHash != "" &&
						acc.Role == models.RoleUser &&
						acc.SubscriptionType == models.SubscriptionFreeTrial &&
						acc.SubscriptionEnd != nil &&
						acc.SubscriptionEnd.Equal(testNow.AddDate(0, 0, 7)) &&
						!acc.AppealTrialUsed
				})).Return(nil).Once()
			},
		},
		{
			name:     "email taken",
			email:    "driver@example.co.uk",
			password: "password123",
			setupMocks: func(r *AccountRepoMock) {
				r.On("CreateAccount", mock.Anything, mock.Anything).
					Return(fmt.Errorf("storage.CreateAccount: %w", storage.ErrAlreadyExists)).Once()
			},
			wantErr: auth.ErrEmailTaken,
		},
		{
			name:       "short password",
			email:      "driver@example.co.uk",
			password:   "1234567",
			setupMocks: func(*AccountRepoMock) {},
			wantErr:    auth.ErrWeakPassword,
		},
		{
			name:       "bad email",
			email:      "not-an-email",
			password:   "password123",
			setupMocks: func(*AccountRepoMock) {},
			wantErr:    auth.ErrInvalidEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(AccountRepoMock)
			tt.setupMocks(repo)

			id, err := newService(repo, new(JwtMakerMock)).Register(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, id)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, id)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	rawPassword := "correctpassword"
	hashedPassword, err := password.GetHash(rawPassword)
	require.NoError(t, err)

	account := &models.Account{
		ID:           "acc-1",
		Email:        "driver@example.co.uk",
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
	}

	tests := []struct {
		name       string
		password   string
		setupMocks func(r *AccountRepoMock, j *JwtMakerMock)
		wantToken  string
		wantErr    error
		wantAnyErr bool
	}{
		{
			name:     "successful login",
			password: rawPassword,
			setupMocks: func(r *AccountRepoMock, j *JwtMakerMock) {
				r.On("GetAccountByEmail", mock.Anything, "driver@example.co.uk").Return(account, nil).Once()
				j.On("GenerateToken", "acc-1", "user").Return("jwt-token-123", nil).Once()
			},
			wantToken: "jwt-token-123",
		},
		{
			name:     "unknown email",
			password: rawPassword,
			setupMocks: func(r *AccountRepoMock, _ *JwtMakerMock) {
				r.On("GetAccountByEmail", mock.Anything, "driver@example.co.uk").
					Return(nil, fmt.Errorf("x: %w", storage.ErrNotFound)).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "wrong password",
			password: "wrongpassword",
			setupMocks: func(r *AccountRepoMock, _ *JwtMakerMock) {
				r.On("GetAccountByEmail", mock.Anything, "driver@example.co.uk").Return(account, nil).Once()
			},
			wantErr: auth.ErrInvalidCredentials,
		},
		{
			name:     "token generation error",
			password: rawPassword,
			setupMocks: func(r *AccountRepoMock, j *JwtMakerMock) {
				r.On("GetAccountByEmail", mock.Anything, "driver@example.co.uk").Return(account, nil).Once()
				j.On("GenerateToken", "acc-1", "user").Return("", errors.New("token error")).Once()
			},
			wantAnyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(AccountRepoMock)
			j := new(JwtMakerMock)
			tt.setupMocks(repo, j)

			token, role, err := newService(repo, j).Login(context.Background(), "driver@example.co.uk", tt.password)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAnyErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantToken, token)
				assert.Equal(t, "user", role)
			}
			repo.AssertExpectations(t)
			j.AssertExpectations(t)
		})
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	maker := customjwt.NewJWTMaker("secret", time.Hour)
	svc := auth.NewAuthService(new(AccountRepoMock), maker, clock.NewFixed(testNow), 7, slog.New(slog.NewTextHandler(io.Discard, nil)))

	token, err := maker.GenerateToken("acc-1", "admin")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "admin", claims.Role)

	_, err = svc.ValidateToken(context.Background(), "garbage")
	assert.Error(t, err)
}
