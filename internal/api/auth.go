package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dynatos/pos-terminal/internal/domain"
)

type LoginResult struct {
	Token   string
	Session domain.Session
}

// Login exchanges credentials for a token and the user profile. It is used
// both for signing in and for the admin confirmation of drawer operations.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (LoginResult, error) {
	body, _, err := c.do(ctx, http.MethodPost, "/auth/login", creds)
	if err != nil {
		return LoginResult{}, err
	}

	var resp loginResponse
	empty, err := decodeObject(body, &resp)
	if err != nil {
		return LoginResult{}, err
	}
	if empty || resp.User == nil {
		return LoginResult{}, fmt.Errorf("%w: login response without user", ErrUnexpectedShape)
	}

	return LoginResult{
		Token: resp.Token,
		Session: domain.Session{
			UserID:      resp.User.ID,
			DisplayName: resp.User.Name,
			Role:        domain.ParseRole(resp.User.Role),
		},
	}, nil
}
