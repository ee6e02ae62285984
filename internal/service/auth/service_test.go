package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rentcore/internal/config"
	"rentcore/internal/domain"
	"rentcore/internal/mocks"
	"rentcore/internal/service/auth"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:       "test-secret",
		JWTAccessExpiry: time.Hour,
		AdminSignupCode: "let-me-in",
	}
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	input := domain.RegisterInput{Email: "  Kim@Example.com ", Password: "password123", Name: " Kim "}

	t.Run("Success", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())

		userRepo.On("ExistsByEmail", ctx, "kim@example.com").Return(false, nil).Once()
		userRepo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "kim@example.com" && u.Name == "Kim" && u.Role == domain.RoleUser && u.PasswordHash != "password123"
		})).Return(nil).Once()

		user, tokens, err := svc.Register(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, tokens.Role)
		assert.Equal(t, int64(3600), tokens.ExpiresIn)

		claims, err := svc.ValidateAccessToken(tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, domain.RoleUser, claims.Role)
		userRepo.AssertExpectations(t)
	})

	t.Run("Email Exists", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())

		userRepo.On("ExistsByEmail", ctx, "kim@example.com").Return(true, nil).Once()

		_, _, err := svc.Register(ctx, input)
		assert.ErrorIs(t, err, auth.ErrEmailExists)
		userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestAuthService_RegisterAdmin(t *testing.T) {
	ctx := context.Background()
	input := domain.RegisterAdminInput{Email: "admin@example.com", Password: "password123", Name: "Admin", AdminCode: "let-me-in"}

	t.Run("Success", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())

		userRepo.On("ExistsByEmail", ctx, "admin@example.com").Return(false, nil).Once()
		userRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil).Once()

		user, err := svc.RegisterAdmin(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleAdmin, user.Role)
		userRepo.AssertExpectations(t)
	})

	t.Run("Wrong Code", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())

		bad := input
		bad.AdminCode = "guess"
		_, err := svc.RegisterAdmin(ctx, bad)
		assert.ErrorIs(t, err, auth.ErrInvalidAdminCode)
		userRepo.AssertNotCalled(t, "ExistsByEmail", mock.Anything, mock.Anything)
	})

	t.Run("Disabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.AdminSignupCode = ""
		svc := auth.NewService(new(mocks.UserRepository), cfg)

		bad := input
		bad.AdminCode = ""
		_, err := svc.RegisterAdmin(ctx, bad)
		assert.ErrorIs(t, err, auth.ErrInvalidAdminCode)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{ID: uuid.New(), Email: "kim@example.com", PasswordHash: string(hash), Role: domain.RoleAdmin, IsActive: true}

	t.Run("Success", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())
		userRepo.On("GetByEmail", ctx, "kim@example.com").Return(user, nil).Once()

		got, tokens, err := svc.Login(ctx, domain.LoginInput{Email: "KIM@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, domain.RoleAdmin, tokens.Role)
	})

	t.Run("Wrong Password", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())
		userRepo.On("GetByEmail", ctx, "kim@example.com").Return(user, nil).Once()

		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "kim@example.com", Password: "wrong"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("Unknown User", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())
		userRepo.On("GetByEmail", ctx, "nobody@example.com").Return(nil, nil).Once()

		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "nobody@example.com", Password: "x"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("Inactive", func(t *testing.T) {
		inactive := *user
		inactive.IsActive = false
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())
		userRepo.On("GetByEmail", ctx, "kim@example.com").Return(&inactive, nil).Once()

		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "kim@example.com", Password: "password123"})
		assert.ErrorIs(t, err, auth.ErrInactiveUser)
	})

	t.Run("Repository Error", func(t *testing.T) {
		userRepo := new(mocks.UserRepository)
		svc := auth.NewService(userRepo, testConfig())
		userRepo.On("GetByEmail", ctx, "kim@example.com").Return(nil, errors.New("db down")).Once()

		_, _, err := svc.Login(ctx, domain.LoginInput{Email: "kim@example.com", Password: "password123"})
		assert.EqualError(t, err, "db down")
	})
}

func TestAuthService_ValidateAccessToken(t *testing.T) {
	svc := auth.NewService(new(mocks.UserRepository), testConfig())

	sign := func(method jwt.SigningMethod, key interface{}, claims auth.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := auth.Claims{
		UserID: uuid.New(),
		Role:   domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	_, err := svc.ValidateAccessToken(sign(jwt.SigningMethodHS256, []byte("test-secret"), valid))
	assert.NoError(t, err)

	_, err = svc.ValidateAccessToken(sign(jwt.SigningMethodHS256, []byte("other-secret"), valid))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = svc.ValidateAccessToken(sign(jwt.SigningMethodHS512, []byte("test-secret"), valid))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = svc.ValidateAccessToken(sign(jwt.SigningMethodHS256, []byte("test-secret"), expired))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	badRole := valid
	badRole.Role = "ROOT"
	_, err = svc.ValidateAccessToken(sign(jwt.SigningMethodHS256, []byte("test-secret"), badRole))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = svc.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAuthService_GetUserByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	userRepo := new(mocks.UserRepository)
	svc := auth.NewService(userRepo, testConfig())

	userRepo.On("GetByID", ctx, id).Return(nil, nil).Once()
	_, err := svc.GetUserByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	userRepo.AssertExpectations(t)
}
