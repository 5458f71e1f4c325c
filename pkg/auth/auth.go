// Package auth resolves a bearer token into the calling user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrUnauthenticated is returned when a token is missing or invalid.
var ErrUnauthenticated = errors.New("unauthenticated")

// User is the authenticated caller. Records and tags are scoped by ID.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Authenticator validates a raw access token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// Chain tries each authenticator in order and returns the first user found.
type Chain struct {
	authenticators []Authenticator
	log            *zap.Logger
}

func NewChain(log *zap.Logger, authenticators ...Authenticator) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	var active []Authenticator
	for _, a := range authenticators {
		if a != nil {
			active = append(active, a)
		}
	}
	return &Chain{authenticators: active, log: log}
}

// Enabled reports whether any authenticator is configured.
func (c *Chain) Enabled() bool {
	return len(c.authenticators) > 0
}

func (c *Chain) Authenticate(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(c.authenticators) == 0 {
		return nil, ErrUnauthenticated
	}

	var lastErr error
	for _, a := range c.authenticators {
		user, err := a.Authenticate(ctx, token)
		if err == nil && user != nil && user.ID != "" {
			return user, nil
		}
		lastErr = err
		c.log.Debug("authenticator rejected token", zap.String("authenticator", fmt.Sprintf("%T", a)), zap.Error(err))
	}
	if lastErr == nil || !errors.Is(lastErr, ErrUnauthenticated) {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, lastErr)
	}
	return nil, lastErr
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
