package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/access"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestResponderService(t *testing.T) (ResponderService, *mocks.MockUserRepository) {
	ctrl := gomock.NewController(t)
	usersMock := mocks.NewMockUserRepository(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	policy, err := access.NewPolicy()
	require.NoError(t, err)

	return NewResponderService(usersMock, policy, logger), usersMock
}

func TestListAvailable(t *testing.T) {
	t.Run("moderator", func(t *testing.T) {
		service, usersMock := newTestResponderService(t)
		expected := []*models.User{{ID: uuid.New(), Role: models.RoleResponder, Status: models.UserActive}}
		usersMock.EXPECT().ListAvailableResponders(gomock.Any()).Return(expected, nil).Times(1)

		got, err := service.ListAvailable(context.Background(), moderator())

		require.NoError(t, err)
		assert.Equal(t, expected, got)
	})

	t.Run("responder is forbidden", func(t *testing.T) {
		service, usersMock := newTestResponderService(t)
		usersMock.EXPECT().ListAvailableResponders(gomock.Any()).Times(0)

		_, err := service.ListAvailable(context.Background(), models.Actor{ID: uuid.New(), Role: models.RoleResponder})

		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestUpdateLocation(t *testing.T) {
	responder := models.Actor{ID: uuid.New(), Role: models.RoleResponder}

	t.Run("success", func(t *testing.T) {
		service, usersMock := newTestResponderService(t)
		point := models.Point{Longitude: 37.61, Latitude: 55.75}
		usersMock.EXPECT().
			UpdateLocation(gomock.Any(), responder.ID, point).
			Return(&models.User{ID: responder.ID, Location: &point}, nil).
			Times(1)

		user, err := service.UpdateLocation(context.Background(), responder, point)

		require.NoError(t, err)
		assert.Equal(t, &point, user.Location)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		service, _ := newTestResponderService(t)

		_, err := service.UpdateLocation(context.Background(), responder, models.Point{Longitude: 181})

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("regular user is forbidden", func(t *testing.T) {
		service, _ := newTestResponderService(t)

		_, err := service.UpdateLocation(context.Background(), citizen(), models.Point{})

		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestUpdateStatus(t *testing.T) {
	responder := models.Actor{ID: uuid.New(), Role: models.RoleResponder}

	t.Run("success", func(t *testing.T) {
		service, usersMock := newTestResponderService(t)
		usersMock.EXPECT().
			UpdateStatus(gomock.Any(), responder.ID, models.UserInactive).
			Return(&models.User{ID: responder.ID, Status: models.UserInactive}, nil).
			Times(1)

		user, err := service.UpdateStatus(context.Background(), responder, models.UserInactive)

		require.NoError(t, err)
		assert.Equal(t, models.UserInactive, user.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		service, _ := newTestResponderService(t)

		_, err := service.UpdateStatus(context.Background(), responder, "busy")

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("moderator is forbidden", func(t *testing.T) {
		service, _ := newTestResponderService(t)

		_, err := service.UpdateStatus(context.Background(), moderator(), models.UserActive)

		assert.ErrorIs(t, err, ErrForbidden)
	})
}
