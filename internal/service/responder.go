package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shenikar/emergency_response_system/internal/access"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/sirupsen/logrus"
)

// ResponderService определяет контракт для операций спасателей
type ResponderService interface {
	ListAvailable(ctx context.Context, actor models.Actor) ([]*models.User, error)
	UpdateLocation(ctx context.Context, actor models.Actor, location models.Point) (*models.User, error)
	UpdateStatus(ctx context.Context, actor models.Actor, status models.UserStatus) (*models.User, error)
}

type responderService struct {
	users  UserRepository
	policy *access.Policy
	logger *logrus.Logger
}

func NewResponderService(users UserRepository, policy *access.Policy, logger *logrus.Logger) ResponderService {
	return &responderService{
		users:  users,
		policy: policy,
		logger: logger,
	}
}

// ListAvailable возвращает активных спасателей
func (s *responderService) ListAvailable(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "responder",
		"method":  "ListAvailable",
		"user_id": actor.ID,
	})

	if !s.policy.Allowed(actor.Role, access.ObjResponder, access.ActListAvailable) {
		return nil, ErrForbidden
	}

	responders, err := s.users.ListAvailableResponders(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list available responders")
		return nil, fmt.Errorf("service: could not list responders: %w", err)
	}
	return responders, nil
}

// UpdateLocation сохраняет текущее местоположение спасателя
func (s *responderService) UpdateLocation(ctx context.Context, actor models.Actor, location models.Point) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "responder",
		"method":  "UpdateLocation",
		"user_id": actor.ID,
	})

	if !s.policy.Allowed(actor.Role, access.ObjResponder, access.ActUpdateLocation) {
		return nil, ErrForbidden
	}
	if !validPoint(location) {
		return nil, newValidationError("coordinates", "invalid coordinates")
	}

	user, err := s.users.UpdateLocation(ctx, actor.ID, location)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.WithError(err).Error("Failed to update responder location")
		return nil, fmt.Errorf("service: could not update location: %w", err)
	}

	log.Info("Responder location updated")
	return user, nil
}

// UpdateStatus переключает готовность спасателя к назначению
func (s *responderService) UpdateStatus(ctx context.Context, actor models.Actor, status models.UserStatus) (*models.User, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "responder",
		"method":  "UpdateStatus",
		"user_id": actor.ID,
	})

	if !s.policy.Allowed(actor.Role, access.ObjResponder, access.ActUpdateStatus) {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, newValidationError("status", "invalid status")
	}

	user, err := s.users.UpdateStatus(ctx, actor.ID, status)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		log.WithError(err).Error("Failed to update responder status")
		return nil, fmt.Errorf("service: could not update status: %w", err)
	}

	log.WithField("status", status).Info("Responder status updated")
	return user, nil
}
