package auth

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// SupabaseAuthenticator asks the Supabase auth server who owns a token.
// Used when the JWT secret is not configured.
type SupabaseAuthenticator struct {
	lookup func(token string) (*User, error)
}

func NewSupabaseAuthenticator(client *supabase.Client) *SupabaseAuthenticator {
	return &SupabaseAuthenticator{lookup: func(token string) (*User, error) {
		resp, err := client.Auth.WithToken(token).GetUser()
		if err != nil {
			return nil, err
		}
		return &User{ID: resp.ID.String(), Email: resp.Email}, nil
	}}
}

func (a *SupabaseAuthenticator) Authenticate(ctx context.Context, token string) (*User, error) {
	user, err := a.lookup(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return user, nil
}
