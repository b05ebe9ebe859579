package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/config"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T) (*authService, *mocks.MockUserRepository) {
	ctrl := gomock.NewController(t)
	usersMock := mocks.NewMockUserRepository(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		JWTSecret:    "test-secret",
		JWTExpiresIn: time.Hour,
	}

	return NewAuthService(usersMock, logger, cfg).(*authService), usersMock
}

func hashed(t *testing.T, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegister_Success(t *testing.T) {
	// Подготовка
	service, usersMock := newTestAuthService(t)
	ctx := context.Background()
	userID := uuid.New()

	// Ожидания
	usersMock.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			assert.Equal(t, "ann@example.com", u.Email)
			assert.Equal(t, models.RoleUser, u.Role)
			assert.Equal(t, models.UserActive, u.Status)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")))
			u.ID = userID
			return nil
		}).
		Times(1)
	usersMock.EXPECT().GetByID(ctx, userID).Return(&models.User{ID: userID, Role: models.RoleUser}, nil).Times(1)

	// Действие
	user, token, err := service.Register(ctx, models.Registration{
		Name:     "Ann",
		Email:    " Ann@Example.com ",
		Password: "secret1",
	})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	require.NotEmpty(t, token)

	authenticated, err := service.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, authenticated.ID)
}

func TestRegister_ValidationError(t *testing.T) {
	// Подготовка
	service, usersMock := newTestAuthService(t)

	// Ожидания
	usersMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	_, _, err := service.Register(context.Background(), models.Registration{
		Email:    "not-an-email",
		Password: "123",
		Role:     "admin",
	})

	// Проверки
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "role")
}

func TestRegister_RejectsMalformedEmail(t *testing.T) {
	service, usersMock := newTestAuthService(t)
	usersMock.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	// адрес с отображаемым именем или без домена не принимается
	for _, email := range []string{"", "Ann <ann@example.com>", "ann@", "ann@@example.com"} {
		_, _, err := service.Register(context.Background(), models.Registration{
			Name:     "Ann",
			Email:    email,
			Password: "secret123",
		})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "email %q", email)
		assert.Equal(t, map[string]string{"email": "invalid email"}, verr.Fields)
	}
}

func TestRegister_EmailTaken(t *testing.T) {
	// Подготовка
	service, usersMock := newTestAuthService(t)

	// Ожидания
	usersMock.EXPECT().Create(gomock.Any(), gomock.Any()).Return(ErrEmailTaken).Times(1)

	// Действие
	_, _, err := service.Register(context.Background(), models.Registration{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "secret1",
		Role:     models.RoleResponder,
	})

	// Проверки
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        "ann@example.com",
		PasswordHash: "",
		Role:         models.RoleModerator,
	}

	t.Run("success", func(t *testing.T) {
		service, usersMock := newTestAuthService(t)
		u := *user
		u.PasswordHash = hashed(t, "secret1")
		usersMock.EXPECT().GetByEmail(gomock.Any(), "ann@example.com").Return(&u, nil).Times(1)

		got, token, err := service.Login(context.Background(), "ANN@example.com", "secret1")

		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		claims := &Claims{}
		_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
		require.NoError(t, err)
		assert.Equal(t, u.ID.String(), claims.UserID)
		assert.Equal(t, "moderator", claims.Role)
		assert.Equal(t, "emergency-response", claims.Issuer)
	})

	t.Run("wrong password", func(t *testing.T) {
		service, usersMock := newTestAuthService(t)
		u := *user
		u.PasswordHash = hashed(t, "secret1")
		usersMock.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(&u, nil).Times(1)

		_, _, err := service.Login(context.Background(), "ann@example.com", "wrong")

		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		service, usersMock := newTestAuthService(t)
		usersMock.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, ErrUserNotFound).Times(1)

		_, _, err := service.Login(context.Background(), "nobody@example.com", "secret1")

		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("repository error", func(t *testing.T) {
		service, usersMock := newTestAuthService(t)
		usersMock.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down")).Times(1)

		_, _, err := service.Login(context.Background(), "ann@example.com", "secret1")

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	service, usersMock := newTestAuthService(t)
	userID := uuid.New()

	sign := func(claims Claims, method jwt.SigningMethod, key any) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}
	valid := func() Claims {
		return Claims{
			UserID: userID.String(),
			Role:   "user",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "emergency-response",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	foreignIssuer := valid()
	foreignIssuer.Issuer = "someone-else"
	badSubject := valid()
	badSubject.UserID = "not-a-uuid"

	testCases := map[string]string{
		"garbage":        "not.a.token",
		"wrong secret":   sign(valid(), jwt.SigningMethodHS256, []byte("other-secret")),
		"wrong method":   sign(valid(), jwt.SigningMethodHS512, []byte("test-secret")),
		"expired":        sign(expired, jwt.SigningMethodHS256, []byte("test-secret")),
		"foreign issuer": sign(foreignIssuer, jwt.SigningMethodHS256, []byte("test-secret")),
		"bad user id":    sign(badSubject, jwt.SigningMethodHS256, []byte("test-secret")),
	}

	usersMock.EXPECT().GetByID(gomock.Any(), gomock.Any()).Times(0)

	for name, token := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Authenticate(context.Background(), token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	service, usersMock := newTestAuthService(t)
	user := &models.User{ID: uuid.New(), Role: models.RoleUser}
	token, err := service.issueToken(user)
	require.NoError(t, err)

	usersMock.EXPECT().GetByID(gomock.Any(), user.ID).Return(nil, ErrUserNotFound).Times(1)

	_, err = service.Authenticate(context.Background(), token)

	assert.ErrorIs(t, err, ErrUnauthorized)
}
