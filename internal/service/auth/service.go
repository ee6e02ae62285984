package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rentcore/internal/config"
	"rentcore/internal/domain"
	"rentcore/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidAdminCode   = errors.New("invalid admin signup code")
	ErrInactiveUser       = errors.New("user is deactivated")
)

type Service interface {
	Register(ctx context.Context, input domain.RegisterInput) (*domain.User, *domain.TokenPair, error)
	RegisterAdmin(ctx context.Context, input domain.RegisterAdminInput) (*domain.User, error)
	Login(ctx context.Context, input domain.LoginInput) (*domain.User, *domain.TokenPair, error)
	ValidateAccessToken(token string) (*Claims, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type service struct {
	userRepo repository.UserRepository
	cfg      *config.Config
	now      func() time.Time
}

func NewService(userRepo repository.UserRepository, cfg *config.Config) Service {
	return &service{
		userRepo: userRepo,
		cfg:      cfg,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) createUser(ctx context.Context, user *domain.User, password string) error {
	exists, err := s.userRepo.ExistsByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	if exists {
		return ErrEmailExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashedPassword)

	return s.userRepo.Create(ctx, user)
}

func (s *service) Register(ctx context.Context, input domain.RegisterInput) (*domain.User, *domain.TokenPair, error) {
	user := &domain.User{
		ID:          uuid.New(),
		Email:       normalizeEmail(input.Email),
		Name:        strings.TrimSpace(input.Name),
		StudentID:   input.StudentID,
		Department:  input.Department,
		Grade:       input.Grade,
		PhoneNumber: input.PhoneNumber,
		Birthday:    input.Birthday,
		Role:        domain.RoleUser,
		IsActive:    true,
	}
	if err := s.createUser(ctx, user, input.Password); err != nil {
		return nil, nil, err
	}

	tokens, err := s.generateToken(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

// RegisterAdmin creates an administrator account. It is gated by the
// configured signup code; an empty code disables admin signup.
func (s *service) RegisterAdmin(ctx context.Context, input domain.RegisterAdminInput) (*domain.User, error) {
	expected := s.cfg.AdminSignupCode
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(input.AdminCode)) != 1 {
		return nil, ErrInvalidAdminCode
	}

	user := &domain.User{
		ID:       uuid.New(),
		Email:    normalizeEmail(input.Email),
		Name:     strings.TrimSpace(input.Name),
		Role:     domain.RoleAdmin,
		IsActive: true,
	}
	if err := s.createUser(ctx, user, input.Password); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, input domain.LoginInput) (*domain.User, *domain.TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	tokens, err := s.generateToken(user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *service) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.IsValid() {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *service) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *service) generateToken(user *domain.User) (*domain.TokenPair, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTAccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken: accessTokenString,
		ExpiresIn:   int64(s.cfg.JWTAccessExpiry.Seconds()),
		Role:        user.Role,
	}, nil
}
