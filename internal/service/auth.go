package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/config"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "emergency-response"

// UserRepository определяет контракт для работы с бд пользователей
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
	ListAvailableResponders(ctx context.Context) ([]*models.User, error)
	UpdateLocation(ctx context.Context, id uuid.UUID, location models.Point) (*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error)
}

// AuthService определяет контракт для регистрации и аутентификации
type AuthService interface {
	Register(ctx context.Context, input models.Registration) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Claims - полезная нагрузка JWT
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	users    UserRepository
	logger   *logrus.Logger
	cfg      *config.Config
	validate *validator.Validate
	now      func() time.Time
}

func NewAuthService(users UserRepository, logger *logrus.Logger, cfg *config.Config) AuthService {
	return &authService{
		users:    users,
		logger:   logger,
		cfg:      cfg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register создает пользователя и выдает токен
func (s *authService) Register(ctx context.Context, input models.Registration) (*models.User, string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Register",
	})
	log.Info("Attempting to register a new user")

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Role == "" {
		input.Role = models.RoleUser
	}

	verr := &ValidationError{}
	if input.Name == "" {
		verr.add("name", "name is required")
	}
	if err := s.validate.Var(input.Email, "required,email"); err != nil {
		verr.add("email", "invalid email")
	}
	if len(input.Password) < 6 {
		verr.add("password", "password must be at least 6 characters")
	}
	if !input.Role.Valid() {
		verr.add("role", "invalid role")
	}
	if err := verr.errOrNil(); err != nil {
		log.WithError(err).Warn("Registration validation failed")
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.WithError(err).Error("Failed to hash password")
		return nil, "", fmt.Errorf("service: could not hash password: %w", err)
	}

	user := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: string(hash),
		Role:         input.Role,
		Status:       models.UserActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			log.Warn("Email is already registered")
			return nil, "", ErrEmailTaken
		}
		log.WithError(err).Error("Failed to create user in repository")
		return nil, "", fmt.Errorf("service: could not create user: %w", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		log.WithError(err).Error("Failed to issue token")
		return nil, "", err
	}

	log.WithField("user_id", user.ID).Info("User registered successfully")
	return user, token, nil
}

// Login проверяет пароль и выдает токен. Неизвестный email и неверный пароль неразличимы.
func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "auth",
		"method":  "Login",
	})

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Warn("Login attempt for unknown email")
			return nil, "", ErrInvalidCredentials
		}
		log.WithError(err).Error("Failed to get user by email")
		return nil, "", fmt.Errorf("service: could not get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.WithField("user_id", user.ID).Warn("Login attempt with wrong password")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		log.WithError(err).Error("Failed to issue token")
		return nil, "", err
	}

	log.WithField("user_id", user.ID).Info("User logged in")
	return user, token, nil
}

// Authenticate проверяет токен и загружает актуальную запись пользователя
func (s *authService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrUnauthorized
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("service: could not get user: %w", err)
	}
	return user, nil
}

func (s *authService) issueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiresIn)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("service: could not sign token: %w", err)
	}
	return token, nil
}
