package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrIncidentNotFound     = errors.New("incident not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrForbidden            = errors.New("you do not have permission to perform this action")
	ErrConflict             = errors.New("incident was modified by another request, reload and retry")
	ErrResponderUnavailable = errors.New("one or more responders are unavailable")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailTaken           = errors.New("user already exists with this email")
	ErrUnauthorized         = errors.New("invalid or expired token")
)

// ValidationError - ошибка входных данных с детализацией по полям
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// errOrNil возвращает nil, если ошибок не накопилось
func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func newValidationError(field, message string) *ValidationError {
	e := &ValidationError{}
	e.add(field, message)
	return e
}
